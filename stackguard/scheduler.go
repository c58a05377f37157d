// Package stackguard implements the per-task stack-overflow detector:
// it binds each registered task's stack to an MPU region and reprograms
// the region table on every task switch so that only the running task's
// stack is writable, per spec.md §4.F.
package stackguard

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"time"

	"github.com/ag00se/sheaperd-library/internal/assert"
	"github.com/ag00se/sheaperd-library/internal/mpu"
	"github.com/ag00se/sheaperd-library/internal/osmutex"
)

// DenialPermission is programmed into every region belonging to a task
// that is not the one being switched in.
const DenialPermission = mpu.AccessDenied

// driver is the subset of *mpu.Driver the scheduler needs. It exists so
// tests can substitute a generated mock (see mpumock) to assert the exact
// register-programming sequence TaskSwitchIn issues, without exercising
// the real simulated register window.
type driver interface {
	RegionCount() int
	ValidateAlignment(base uint32, sizeCode uint8) error
	Program(index int, r mpu.Region) error
	Disable(index int) error
	Query(index int) (mpu.Region, error)
	EnableGlobal()
	DisableGlobal()
	Enabled() bool
}

// Scheduler owns the logical region table layered over an mpu.Driver and
// the memory-fault dispatch path.
type Scheduler struct {
	driver driver
	table  *regionTable
	mu     *osmutex.Mutex
	report *assert.Reporter

	onFault FaultHandler
}

// FaultHandler is invoked with the faulting address and the eight-word
// exception frame when the memory-management fault handler observes a
// data-access violation.
type FaultHandler func(faultAddress uint32, frame ExceptionFrame)

// Init disables the MPU, clears the region table, and stores the
// fault callback. Returns NoMPUAvailable if driver reports zero hardware
// regions.
func Init(d *mpu.Driver, reporter *assert.Reporter, onFault FaultHandler, mutexWaitTicks time.Duration) (*Scheduler, error) {
	return newScheduler(d, reporter, onFault, mutexWaitTicks)
}

func newScheduler(d driver, reporter *assert.Reporter, onFault FaultHandler, mutexWaitTicks time.Duration) (*Scheduler, error) {
	regionCount := d.RegionCount()
	if regionCount == 0 {
		reporter.Report(assert.NoMPUAvailable, nil, "MPU driver reports zero hardware regions")
		return nil, fmt.Errorf("stackguard: no MPU available")
	}

	d.DisableGlobal()

	for i := 0; i < regionCount; i++ {
		_ = d.Disable(i)
	}

	return &Scheduler{
		driver:  d,
		table:   newRegionTable(regionCount),
		mu:      osmutex.New(mutexWaitTicks),
		report:  reporter,
		onFault: onFault,
	}, nil
}

func (s *Scheduler) acquire() (release func(), err error) {
	release, err = s.mu.Acquired(context.Background())
	if err != nil {
		s.report.Report(assert.MutexAcquireFailed, nil, "%v", err)
		return func() {}, err
	}

	return release, nil
}

// AddTask claims the region table's next free slot and programs it with
// the supplied attributes (default cacheable, shareable, not bufferable,
// standard TEX, per spec.md's addTask contract).
func (s *Scheduler) AddTask(taskID uint32, stackBase uint32, sizeCode uint8, initialAccess mpu.AccessPermission, executeNever bool) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	if _, exists := s.table.find(taskID); exists {
		s.report.Report(assert.InvalidRegionNumber, map[string]any{"taskId": taskID}, "task %d is already registered", taskID)
		return fmt.Errorf("stackguard: task %d already registered", taskID)
	}

	index, ok := s.table.reserve()
	if !ok {
		s.report.Report(assert.NoMPURegionLeft, nil, "no free MPU region for task %d", taskID)
		return fmt.Errorf("stackguard: no free MPU region")
	}

	region := mpu.DefaultAttributes()
	region.BaseAddress = stackBase
	region.SizeCode = sizeCode
	region.Access = initialAccess
	region.ExecuteNever = executeNever
	region.Enabled = true

	if verr := s.driver.ValidateAlignment(stackBase, sizeCode); verr != nil {
		switch {
		case errors.Is(verr, mpu.ErrBaseNotFloorAligned):
			s.report.Report(assert.InvalidMPUAddress, map[string]any{"base": stackBase}, "%v", verr)
		case errors.Is(verr, mpu.ErrBaseNotNaturallyAligned):
			s.report.Report(assert.InvalidStackAlignment, map[string]any{"base": stackBase}, "%v", verr)
		case errors.Is(verr, mpu.ErrInvalidSizeCode):
			s.report.Report(assert.MPUInvalidRegionSize, map[string]any{"sizeCode": sizeCode}, "%v", verr)
		default:
			s.report.Report(assert.InvalidRegionNumber, nil, "%v", verr)
		}

		return verr
	}

	if perr := s.driver.Program(index, region); perr != nil {
		s.report.Report(assert.InvalidRegionNumber, map[string]any{"index": index}, "%v", perr)
		return perr
	}

	s.table.bind(index, taskID, region)

	return nil
}

// AddTaskByteSize converts stackBytes (which must be a power of two) to a
// size code and delegates to AddTask.
func (s *Scheduler) AddTaskByteSize(taskID uint32, stackBase uint32, stackBytes uint32, initialAccess mpu.AccessPermission, executeNever bool) error {
	if stackBytes == 0 || bits.OnesCount32(stackBytes) != 1 {
		err := fmt.Errorf("stackguard: stack size %d is not a power of two", stackBytes)
		s.report.Report(assert.MPUInvalidRegionSize, map[string]any{"stackBytes": stackBytes}, "%v", err)
		return err
	}

	// 2^(code+1) == stackBytes => code = log2(stackBytes) - 1.
	sizeCode := uint8(bits.TrailingZeros32(stackBytes) - 1)

	return s.AddTask(taskID, stackBase, sizeCode, initialAccess, executeNever)
}

// RemoveTask clears the slot bound to taskID. Returns TaskNotFound if no
// slot carries that id.
func (s *Scheduler) RemoveTask(taskID uint32) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	index, ok := s.table.release(taskID)
	if !ok {
		s.report.Report(assert.TaskNotFound, map[string]any{"taskId": taskID}, "task %d is not registered", taskID)
		return fmt.Errorf("stackguard: task %d not found", taskID)
	}

	return s.driver.Disable(index)
}

// TaskSwitchIn is the scheduler hook: it disables the MPU, grants
// all-access to taskID's region and the configured denial permission to
// every other occupied region, rewrites the registers, and re-enables the
// MPU if enableMPU is true.
//
// spec.md's source runs this lock-free, relying on the scheduler having
// already disabled preemption for the duration of the task-switch hook.
// Go has no equivalent to disabling interrupts from user code, so this
// port takes the mutex instead: it is the only available primitive that
// gives the same guarantee spec.md §4.F actually asks for — taskSwitchIn
// never observes, or leaves behind, a partially-programmed MPU table.
func (s *Scheduler) TaskSwitchIn(taskID uint32, enableMPU bool) {
	release, err := s.acquire()
	if err != nil {
		return
	}
	defer release()

	s.driver.DisableGlobal()

	s.table.each(func(index int, sl slot) {
		region := sl.region

		if sl.taskID == taskID {
			region.Access = mpu.AccessFull
		} else {
			region.Access = DenialPermission
		}

		_ = s.driver.Program(index, region)
	})

	if enableMPU {
		s.driver.EnableGlobal()
	}
}

// Guard enables the MPU.
func (s *Scheduler) Guard() {
	s.driver.EnableGlobal()
}
