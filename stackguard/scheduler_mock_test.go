package stackguard

import (
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/ag00se/sheaperd-library/internal/assert"
	"github.com/ag00se/sheaperd-library/internal/mpu"
	"github.com/ag00se/sheaperd-library/stackguard/mpumock"
)

// TestTaskSwitchInProgramsExactRegisterSequence verifies, against a mocked
// driver, that TaskSwitchIn disables the MPU, reprograms every occupied
// slot with the right access permission, and re-enables the MPU - in that
// order - without touching the real simulated register window.
func TestTaskSwitchInProgramsExactRegisterSequence(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockDriver := mpumock.NewMockDriver(ctrl)

	reporter := assert.NewReporter()

	gomock.InOrder(
		mockDriver.EXPECT().RegionCount().Return(2),
		mockDriver.EXPECT().DisableGlobal(),
		mockDriver.EXPECT().Disable(0).Return(nil),
		mockDriver.EXPECT().Disable(1).Return(nil),
	)

	s, err := newScheduler(mockDriver, reporter, nil, time.Second)
	if err != nil {
		t.Fatalf("newScheduler: %v", err)
	}

	region7 := mpu.DefaultAttributes()
	region7.BaseAddress = 0x20000000
	region7.SizeCode = 0x04
	region7.Access = mpu.AccessPrivOnlyRW
	region7.Enabled = true

	s.table.bind(0, 7, region7)

	region9 := mpu.DefaultAttributes()
	region9.BaseAddress = 0x20000020
	region9.SizeCode = 0x04
	region9.Access = mpu.AccessPrivOnlyRW
	region9.Enabled = true

	s.table.bind(1, 9, region9)

	gomock.InOrder(
		mockDriver.EXPECT().DisableGlobal(),
		mockDriver.EXPECT().Program(0, gomock.Any()).DoAndReturn(func(index int, r mpu.Region) error {
			if r.Access != mpu.AccessFull {
				t.Fatalf("task 7 (running) programmed with Access = %v, want AccessFull", r.Access)
			}

			return nil
		}),
		mockDriver.EXPECT().Program(1, gomock.Any()).DoAndReturn(func(index int, r mpu.Region) error {
			if r.Access != DenialPermission {
				t.Fatalf("task 9 (not running) programmed with Access = %v, want DenialPermission", r.Access)
			}

			return nil
		}),
		mockDriver.EXPECT().EnableGlobal(),
	)

	s.TaskSwitchIn(7, true)
}
