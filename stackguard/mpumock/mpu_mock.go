// Hand-written in MockGen's output shape; not regenerated by any build step.
// Source: github.com/ag00se/sheaperd-library/stackguard (driver interface)

// Package mpumock provides a go.uber.org/mock/gomock mock of the
// unexported stackguard.driver interface, hand-maintained in the same
// shape mockgen would emit, so scheduler tests can assert the exact
// register-programming call sequence TaskSwitchIn issues without
// exercising the real simulated MPU register window.
package mpumock

import (
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"

	mpu "github.com/ag00se/sheaperd-library/internal/mpu"
)

// MockDriver is a mock of the stackguard driver interface.
type MockDriver struct {
	ctrl     *gomock.Controller
	recorder *MockDriverMockRecorder
}

// MockDriverMockRecorder is the mock recorder for MockDriver.
type MockDriverMockRecorder struct {
	mock *MockDriver
}

// NewMockDriver creates a new mock instance.
func NewMockDriver(ctrl *gomock.Controller) *MockDriver {
	mock := &MockDriver{ctrl: ctrl}
	mock.recorder = &MockDriverMockRecorder{mock}

	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockDriver) EXPECT() *MockDriverMockRecorder {
	return m.recorder
}

// RegionCount mocks base method.
func (m *MockDriver) RegionCount() int {
	m.ctrl.T.Helper()

	ret := m.ctrl.Call(m, "RegionCount")
	ret0, _ := ret[0].(int)

	return ret0
}

// RegionCount indicates an expected call of RegionCount.
func (mr *MockDriverMockRecorder) RegionCount() *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "RegionCount", reflect.TypeOf((*MockDriver)(nil).RegionCount))
}

// ValidateAlignment mocks base method.
func (m *MockDriver) ValidateAlignment(base uint32, sizeCode uint8) error {
	m.ctrl.T.Helper()

	ret := m.ctrl.Call(m, "ValidateAlignment", base, sizeCode)
	ret0, _ := ret[0].(error)

	return ret0
}

// ValidateAlignment indicates an expected call of ValidateAlignment.
func (mr *MockDriverMockRecorder) ValidateAlignment(base, sizeCode any) *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ValidateAlignment", reflect.TypeOf((*MockDriver)(nil).ValidateAlignment), base, sizeCode)
}

// Program mocks base method.
func (m *MockDriver) Program(index int, r mpu.Region) error {
	m.ctrl.T.Helper()

	ret := m.ctrl.Call(m, "Program", index, r)
	ret0, _ := ret[0].(error)

	return ret0
}

// Program indicates an expected call of Program.
func (mr *MockDriverMockRecorder) Program(index, r any) *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Program", reflect.TypeOf((*MockDriver)(nil).Program), index, r)
}

// Disable mocks base method.
func (m *MockDriver) Disable(index int) error {
	m.ctrl.T.Helper()

	ret := m.ctrl.Call(m, "Disable", index)
	ret0, _ := ret[0].(error)

	return ret0
}

// Disable indicates an expected call of Disable.
func (mr *MockDriverMockRecorder) Disable(index any) *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Disable", reflect.TypeOf((*MockDriver)(nil).Disable), index)
}

// Query mocks base method.
func (m *MockDriver) Query(index int) (mpu.Region, error) {
	m.ctrl.T.Helper()

	ret := m.ctrl.Call(m, "Query", index)
	ret0, _ := ret[0].(mpu.Region)
	ret1, _ := ret[1].(error)

	return ret0, ret1
}

// Query indicates an expected call of Query.
func (mr *MockDriverMockRecorder) Query(index any) *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Query", reflect.TypeOf((*MockDriver)(nil).Query), index)
}

// EnableGlobal mocks base method.
func (m *MockDriver) EnableGlobal() {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "EnableGlobal")
}

// EnableGlobal indicates an expected call of EnableGlobal.
func (mr *MockDriverMockRecorder) EnableGlobal() *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "EnableGlobal", reflect.TypeOf((*MockDriver)(nil).EnableGlobal))
}

// DisableGlobal mocks base method.
func (m *MockDriver) DisableGlobal() {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "DisableGlobal")
}

// DisableGlobal indicates an expected call of DisableGlobal.
func (mr *MockDriverMockRecorder) DisableGlobal() *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DisableGlobal", reflect.TypeOf((*MockDriver)(nil).DisableGlobal))
}

// Enabled mocks base method.
func (m *MockDriver) Enabled() bool {
	m.ctrl.T.Helper()

	ret := m.ctrl.Call(m, "Enabled")
	ret0, _ := ret[0].(bool)

	return ret0
}

// Enabled indicates an expected call of Enabled.
func (mr *MockDriverMockRecorder) Enabled() *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Enabled", reflect.TypeOf((*MockDriver)(nil).Enabled))
}
