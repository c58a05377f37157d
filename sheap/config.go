package sheap

import "time"

// Strategy enumerates the allocation strategies spec.md §6 recognises.
// Only FirstFit is implemented; the others are reserved exactly as the
// source reserves them, and New rejects any other value.
type Strategy int

const (
	FirstFit Strategy = iota
	bestFitReserved
	worstFitReserved
)

// Config mirrors the build-time options of spec.md §6. It is assembled
// once via Option funcs and applied by New; sheap has no mechanism to
// reconfigure a live heap.
type Config struct {
	ExtendedHeader         bool
	PCLogSize               int
	MinimumMallocSize       uint32
	FreeCheckUnalignedSize  bool
	OverwriteOnFree         bool
	OverwriteValue          byte
	Strategy                Strategy
	MutexWaitTicks          time.Duration
	NoOS                    bool
}

// Option configures a Config. Using the functional-options pattern keeps
// New's signature stable as new build-time knobs are added.
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		ExtendedHeader:         false,
		PCLogSize:              16,
		MinimumMallocSize:      4,
		FreeCheckUnalignedSize: true,
		OverwriteOnFree:        true,
		OverwriteValue:         0xFF,
		Strategy:               FirstFit,
		MutexWaitTicks:         0,
		NoOS:                   false,
	}
}

// WithExtendedHeader enables the 32-bit id field in header and boundary.
func WithExtendedHeader(enabled bool) Option {
	return func(c *Config) { c.ExtendedHeader = enabled }
}

// WithPCLogSize sets the caller-id ring capacity. Must be > 0.
func WithPCLogSize(n int) Option {
	return func(c *Config) { c.PCLogSize = n }
}

// WithMinimumMallocSize sets the allocation alignment unit, clamped to
// at least 4 bytes by New.
func WithMinimumMallocSize(n uint32) Option {
	return func(c *Config) { c.MinimumMallocSize = n }
}

// WithFreeCheckUnalignedSize toggles alignment-padding verification on
// free.
func WithFreeCheckUnalignedSize(enabled bool) Option {
	return func(c *Config) { c.FreeCheckUnalignedSize = enabled }
}

// WithOverwriteOnFree toggles overwriting freed payload and metadata.
func WithOverwriteOnFree(enabled bool) Option {
	return func(c *Config) { c.OverwriteOnFree = enabled }
}

// WithOverwriteValue sets the fill byte used for the overwrite pattern.
func WithOverwriteValue(b byte) Option {
	return func(c *Config) { c.OverwriteValue = b }
}

// WithStrategy sets the allocation strategy. Only FirstFit is supported;
// New reports InvalidAllocationStrategy for anything else.
func WithStrategy(s Strategy) Option {
	return func(c *Config) { c.Strategy = s }
}

// WithMutexWaitTicks sets the timeout budget for acquiring the heap
// mutex. Zero means wait forever.
func WithMutexWaitTicks(d time.Duration) Option {
	return func(c *Config) { c.MutexWaitTicks = d }
}

// WithNoOS selects the no-OS build: reentry guards instead of an RTOS
// mutex wait, per spec.md §5.
func WithNoOS(enabled bool) Option {
	return func(c *Config) { c.NoOS = enabled }
}
