//go:build !unix

package memsurface

type sliceBacking struct {
	data []byte
}

func newBacking(size int) (Backing, error) {
	return &sliceBacking{data: make([]byte, size)}, nil
}

func (b *sliceBacking) Bytes() []byte { return b.data }

func (b *sliceBacking) Close() error { return nil }
