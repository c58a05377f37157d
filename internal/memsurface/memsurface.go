// Package memsurface allocates the raw, page-aligned byte spans that back
// both the sheap arena and the mpu simulated register window. On unix
// hosts it is backed by an anonymous mmap region (golang.org/x/sys/unix)
// so alignment arithmetic operates on a real page address; elsewhere it
// falls back to a plain heap slice of the same size.
package memsurface

// Backing is a raw byte span with an explicit release step, standing in
// for the arena/register memory an embedded target would carve directly
// out of SRAM.
type Backing interface {
	Bytes() []byte
	Close() error
}

// New allocates a Backing of at least size bytes.
func New(size int) (Backing, error) {
	return newBacking(size)
}
