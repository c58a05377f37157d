//go:build unix

package memsurface

import "golang.org/x/sys/unix"

const pageSize = 4096

type mmapBacking struct {
	data []byte
}

func newBacking(size int) (Backing, error) {
	if size < pageSize {
		size = pageSize
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}

	return &mmapBacking{data: data}, nil
}

func (b *mmapBacking) Bytes() []byte { return b.data }

func (b *mmapBacking) Close() error { return unix.Munmap(b.data) }
