package stackguard

import (
	"testing"
	"time"

	"github.com/ag00se/sheaperd-library/internal/assert"
	"github.com/ag00se/sheaperd-library/internal/mpu"
)

func newTestScheduler(t *testing.T, regionCount int, onFault FaultHandler) (*Scheduler, []*assert.Violation) {
	t.Helper()

	driver, err := mpu.NewDriver(mpu.M3M4M7, regionCount)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	t.Cleanup(func() { driver.Close() })

	reporter := assert.NewReporter()
	var violations []*assert.Violation
	reporter.SetSink(func(v *assert.Violation) { violations = append(violations, v) })

	s, err := Init(driver, reporter, onFault, time.Second)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	return s, violations
}

func TestAddTaskProgramsRegion(t *testing.T) {
	s, _ := newTestScheduler(t, 4, nil)

	if err := s.AddTask(7, 0x20000000, 0x04, mpu.AccessFull, false); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	idx, ok := s.table.find(7)
	if !ok {
		t.Fatalf("task 7 not found in region table after AddTask")
	}

	got, err := s.driver.Query(idx)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if got.BaseAddress != 0x20000000 {
		t.Fatalf("BaseAddress = %#x, want %#x", got.BaseAddress, 0x20000000)
	}
}

func TestAddTaskRejectsMisalignedBase(t *testing.T) {
	s, violations := newTestScheduler(t, 4, nil)

	// Size code 0x05 -> 2^6 = 64 bytes; 0x20000020 clears the 32-byte
	// floor but is not a multiple of 64, so M3M4M7's natural-alignment
	// rule (not the floor) is what rejects it.
	if err := s.AddTask(1, 0x20000020, 0x05, mpu.AccessFull, false); err == nil {
		t.Fatalf("AddTask succeeded with a misaligned base")
	}

	if !hasKind(violations, assert.InvalidStackAlignment) {
		t.Fatalf("expected INVALID_STACK_ALIGNMENT violation, got %v", kindsOf(violations))
	}
}

func TestAddTaskRejectsBaseBelowFloor(t *testing.T) {
	s, violations := newTestScheduler(t, 4, nil)

	if err := s.AddTask(1, 0x20000010, 0x04, mpu.AccessFull, false); err == nil {
		t.Fatalf("AddTask succeeded with a base below the 32-byte floor")
	}

	if !hasKind(violations, assert.InvalidMPUAddress) {
		t.Fatalf("expected INVALID_MPU_ADDRESS violation, got %v", kindsOf(violations))
	}
}

func TestAddTaskByteSizeRejectsNonPowerOfTwo(t *testing.T) {
	s, violations := newTestScheduler(t, 4, nil)

	if err := s.AddTaskByteSize(1, 0x20000000, 100, mpu.AccessFull, false); err == nil {
		t.Fatalf("AddTaskByteSize succeeded with a non-power-of-two size")
	}

	if !hasKind(violations, assert.MPUInvalidRegionSize) {
		t.Fatalf("expected MPU_INVALID_REGION_SIZE violation, got %v", kindsOf(violations))
	}
}

func TestAddTaskByteSizeConvertsToSizeCode(t *testing.T) {
	s, _ := newTestScheduler(t, 4, nil)

	if err := s.AddTaskByteSize(1, 0x20000000, 32, mpu.AccessFull, false); err != nil {
		t.Fatalf("AddTaskByteSize: %v", err)
	}

	idx, _ := s.table.find(1)
	got, _ := s.driver.Query(idx)

	if got.SizeCode != 0x04 {
		t.Fatalf("SizeCode = %#x, want 0x04 (32 bytes)", got.SizeCode)
	}
}

func TestRemoveTaskClearsSlotAndCorrectsNextUnused(t *testing.T) {
	s, _ := newTestScheduler(t, 4, nil)

	s.AddTask(1, 0x20000000, 0x04, mpu.AccessFull, false)
	s.AddTask(2, 0x20000020, 0x04, mpu.AccessFull, false)

	if err := s.RemoveTask(1); err != nil {
		t.Fatalf("RemoveTask: %v", err)
	}

	if s.table.nextUnused != 0 {
		t.Fatalf("nextUnused = %d, want 0 after removing the lowest occupied slot", s.table.nextUnused)
	}

	if _, ok := s.table.find(1); ok {
		t.Fatalf("task 1 still present after RemoveTask")
	}
}

func TestRemoveTaskReportsTaskNotFound(t *testing.T) {
	s, violations := newTestScheduler(t, 4, nil)

	if err := s.RemoveTask(42); err == nil {
		t.Fatalf("RemoveTask succeeded for an unregistered task")
	}

	if !hasKind(violations, assert.TaskNotFound) {
		t.Fatalf("expected TASK_NOT_FOUND violation, got %v", kindsOf(violations))
	}
}

// P6: every non-empty slot carries a distinct taskId.
func TestRegionTableUniqueTaskIDs(t *testing.T) {
	s, _ := newTestScheduler(t, 4, nil)

	s.AddTask(1, 0x20000000, 0x04, mpu.AccessFull, false)

	if err := s.AddTask(1, 0x20000020, 0x04, mpu.AccessFull, false); err == nil {
		t.Fatalf("AddTask succeeded with a duplicate taskId")
	}
}

// P7 / S6: after TaskSwitchIn(T, true), exactly one region has full-access
// permission, at T's registered base, and all others carry the denial
// permission.
func TestTaskSwitchInSelectivity(t *testing.T) {
	s, _ := newTestScheduler(t, 4, nil)

	s.AddTask(7, 0x20000000, 0x04, mpu.AccessPrivOnlyRW, false)
	s.AddTask(9, 0x20000020, 0x04, mpu.AccessPrivOnlyRW, false)

	s.TaskSwitchIn(7, true)

	idx7, _ := s.table.find(7)
	idx9, _ := s.table.find(9)

	r7, _ := s.driver.Query(idx7)
	r9, _ := s.driver.Query(idx9)

	if r7.Access != mpu.AccessFull {
		t.Fatalf("task 7's region Access = %v, want AccessFull", r7.Access)
	}

	if r7.BaseAddress != 0x20000000 {
		t.Fatalf("task 7's region BaseAddress = %#x, want %#x", r7.BaseAddress, 0x20000000)
	}

	if r9.Access != DenialPermission {
		t.Fatalf("task 9's region Access = %v, want DenialPermission", r9.Access)
	}

	if !s.driver.Enabled() {
		t.Fatalf("MPU not enabled after TaskSwitchIn(_, true)")
	}

	s.TaskSwitchIn(9, true)

	r7, _ = s.driver.Query(idx7)
	r9, _ = s.driver.Query(idx9)

	if r9.Access != mpu.AccessFull {
		t.Fatalf("after switching to 9, task 9's Access = %v, want AccessFull", r9.Access)
	}

	if r7.Access != DenialPermission {
		t.Fatalf("after switching to 9, task 7's Access = %v, want DenialPermission", r7.Access)
	}
}

func TestTaskSwitchInToUnregisteredTaskDeniesAll(t *testing.T) {
	s, _ := newTestScheduler(t, 4, nil)

	s.AddTask(7, 0x20000000, 0x04, mpu.AccessPrivOnlyRW, false)

	s.TaskSwitchIn(123, true)

	idx7, _ := s.table.find(7)
	r7, _ := s.driver.Query(idx7)

	if r7.Access != DenialPermission {
		t.Fatalf("region Access = %v, want DenialPermission when switching to an unregistered task", r7.Access)
	}
}

func TestHandleMemFaultInvokesCallbackOnDataAccessViolation(t *testing.T) {
	var gotAddr uint32
	var gotFrame ExceptionFrame
	called := false

	s, _ := newTestScheduler(t, 4, func(addr uint32, frame ExceptionFrame) {
		called = true
		gotAddr = addr
		gotFrame = frame
	})

	frame := ExceptionFrame{0, 0, 0, 0, 0, 0, 0xDEAD, 0}
	s.HandleMemFault(cfsrDACCVIOL|cfsrMMARVALID, 0x20000000, frame)

	if !called {
		t.Fatalf("fault callback not invoked on DACCVIOL with valid MMFAR")
	}

	if gotAddr != 0x20000000 {
		t.Fatalf("callback address = %#x, want %#x", gotAddr, 0x20000000)
	}

	if gotFrame != frame {
		t.Fatalf("callback frame = %+v, want %+v", gotFrame, frame)
	}
}

func TestHandleMemFaultIgnoresNonDataAccessFaults(t *testing.T) {
	called := false

	s, _ := newTestScheduler(t, 4, func(uint32, ExceptionFrame) { called = true })

	s.HandleMemFault(cfsrMMARVALID, 0x20000000, ExceptionFrame{})

	if called {
		t.Fatalf("fault callback invoked without DACCVIOL set")
	}
}

func hasKind(violations []*assert.Violation, kind assert.Kind) bool {
	for _, v := range violations {
		if v.Kind == kind {
			return true
		}
	}

	return false
}

func kindsOf(violations []*assert.Violation) []assert.Kind {
	kinds := make([]assert.Kind, len(violations))
	for i, v := range violations {
		kinds[i] = v.Kind
	}

	return kinds
}
