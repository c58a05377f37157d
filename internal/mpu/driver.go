// Package mpu programs, enables, disables and queries the Cortex-M Memory
// Protection Unit's region registers, and validates region alignment
// against the size-encoded rules of §3. It knows nothing about which task
// a region belongs to — that bookkeeping lives in package stackguard.
package mpu

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ag00se/sheaperd-library/internal/memsurface"
)

// registerPairBytes is the simulated width of one region's RBAR+RASR
// register pair.
const registerPairBytes = 8

// Driver is the concrete MPU programming interface for a single hardware
// instance. It is safe for concurrent use; callers needing atomicity
// across multiple region writes (stackguard.TaskSwitchIn) must hold their
// own higher-level lock, since the driver only guarantees each individual
// Program/Query call is consistent.
type Driver struct {
	mu          sync.Mutex
	variant     Variant
	window      memsurface.Backing
	regionCount int
	enabled     bool
}

// NewDriver discovers the hardware region count (here, the configured
// ceiling the embedder supplies, standing in for reading the MPU_TYPE
// register) and allocates the simulated register window.
func NewDriver(variant Variant, regionCount int) (*Driver, error) {
	if regionCount <= 0 {
		return nil, fmt.Errorf("mpu: region count must be > 0")
	}

	window, err := memsurface.New(regionCount * registerPairBytes)
	if err != nil {
		return nil, fmt.Errorf("mpu: allocate register window: %w", err)
	}

	return &Driver{
		variant:     variant,
		window:      window,
		regionCount: regionCount,
	}, nil
}

// RegionCount returns the number of hardware regions discovered at init.
func (d *Driver) RegionCount() int {
	return d.regionCount
}

// ValidateAlignment checks base/sizeCode against the driver's variant
// rule without programming anything.
func (d *Driver) ValidateAlignment(base uint32, sizeCode uint8) error {
	return Region{BaseAddress: base, SizeCode: sizeCode}.Validate(d.variant)
}

// Program writes region r into hardware slot index. It validates
// alignment first and leaves the register pair untouched on failure, so a
// rejected Program never half-writes a region.
func (d *Driver) Program(index int, r Region) error {
	if index < 0 || index >= d.regionCount {
		return fmt.Errorf("mpu: region index %d out of range [0,%d)", index, d.regionCount)
	}

	if err := r.Validate(d.variant); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	dmb()
	d.writeRegister(index, r)
	dsb()
	isb()

	return nil
}

// Disable clears slot index's enable bit without altering its other
// fields, matching the hardware's per-region "valid" bit toggle.
func (d *Driver) Disable(index int) error {
	if index < 0 || index >= d.regionCount {
		return fmt.Errorf("mpu: region index %d out of range [0,%d)", index, d.regionCount)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	r := d.readRegister(index)
	r.Enabled = false

	dmb()
	d.writeRegister(index, r)
	dsb()

	return nil
}

// Query reads back the region currently programmed at index.
func (d *Driver) Query(index int) (Region, error) {
	if index < 0 || index >= d.regionCount {
		return Region{}, fmt.Errorf("mpu: region index %d out of range [0,%d)", index, d.regionCount)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.readRegister(index), nil
}

// EnableGlobal sets the MPU's master enable bit, bracketed by the data
// and instruction synchronisation barriers spec.md §5 requires around
// enable/disable transitions so no stale access can be satisfied by an
// about-to-change permission set.
func (d *Driver) EnableGlobal() {
	d.mu.Lock()
	defer d.mu.Unlock()

	dsb()
	isb()
	d.enabled = true
	dsb()
	isb()
}

// DisableGlobal clears the MPU's master enable bit.
func (d *Driver) DisableGlobal() {
	d.mu.Lock()
	defer d.mu.Unlock()

	dsb()
	isb()
	d.enabled = false
	dsb()
	isb()
}

// Enabled reports whether the MPU is currently globally enabled. Unlike
// the flagged source bug (checking the address of the query function
// instead of calling it), this always performs a real read.
func (d *Driver) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.enabled
}

// Close releases the simulated register window.
func (d *Driver) Close() error {
	return d.window.Close()
}

func (d *Driver) writeRegister(index int, r Region) {
	buf := d.window.Bytes()[index*registerPairBytes : index*registerPairBytes+registerPairBytes]

	binary.LittleEndian.PutUint32(buf[0:4], r.BaseAddress)

	var rasr uint32
	rasr |= uint32(r.SizeCode) & 0x1F
	rasr |= uint32(r.Access) << 24
	rasr |= uint32(r.TEX) << 19

	if r.Cacheable {
		rasr |= 1 << 17
	}

	if r.Bufferable {
		rasr |= 1 << 16
	}

	if r.Shareable {
		rasr |= 1 << 18
	}

	if r.ExecuteNever {
		rasr |= 1 << 28
	}

	if r.Enabled {
		rasr |= 1 << 8
	}

	binary.LittleEndian.PutUint32(buf[4:8], rasr)
}

func (d *Driver) readRegister(index int) Region {
	buf := d.window.Bytes()[index*registerPairBytes : index*registerPairBytes+registerPairBytes]

	base := binary.LittleEndian.Uint32(buf[0:4])
	rasr := binary.LittleEndian.Uint32(buf[4:8])

	return Region{
		BaseAddress:  base,
		SizeCode:     uint8(rasr & 0x1F),
		Access:       AccessPermission((rasr >> 24) & 0xFF),
		TEX:          uint8((rasr >> 19) & 0x7),
		Cacheable:    rasr&(1<<17) != 0,
		Bufferable:   rasr&(1<<16) != 0,
		Shareable:    rasr&(1<<18) != 0,
		ExecuteNever: rasr&(1<<28) != 0,
		Enabled:      rasr&(1<<8) != 0,
	}
}
