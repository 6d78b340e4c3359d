package lfca

import (
	"reflect"

	"go.uber.org/mock/gomock"
)

// MockAtomics is a gomock-style double for Atomics, in the shape mockgen
// would generate. Tests use it to force a specific CAS to fail so the
// allocator's reservation and publish retry loops can be exercised
// deterministically.
type MockAtomics struct {
	ctrl     *gomock.Controller
	recorder *MockAtomicsMockRecorder
}

// MockAtomicsMockRecorder records expected calls on a MockAtomics.
type MockAtomicsMockRecorder struct {
	mock *MockAtomics
}

// NewMockAtomics returns a new mock controlled by ctrl.
func NewMockAtomics(ctrl *gomock.Controller) *MockAtomics {
	mock := &MockAtomics{ctrl: ctrl}
	mock.recorder = &MockAtomicsMockRecorder{mock: mock}

	return mock
}

// EXPECT returns the recorder for setting up expectations.
func (m *MockAtomics) EXPECT() *MockAtomicsMockRecorder { return m.recorder }

// CAS mocks base method.
func (m *MockAtomics) CAS(addr *uint64, old, new uint64) bool { //nolint:predeclared // matches interface signature
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CAS", addr, old, new)
	ret0, _ := ret[0].(bool)

	return ret0
}

// CAS indicates an expected call of CAS.
func (mr *MockAtomicsMockRecorder) CAS(addr, old, new interface{}) *gomock.Call { //nolint:predeclared
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CAS", reflect.TypeOf((*MockAtomics)(nil).CAS), addr, old, new)
}

// Load mocks base method.
func (m *MockAtomics) Load(addr *uint64) uint64 {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Load", addr)
	ret0, _ := ret[0].(uint64)

	return ret0
}

// Load indicates an expected call of Load.
func (mr *MockAtomicsMockRecorder) Load(addr interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Load", reflect.TypeOf((*MockAtomics)(nil).Load), addr)
}

// Store mocks base method.
func (m *MockAtomics) Store(addr *uint64, v uint64) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Store", addr, v)
}

// Store indicates an expected call of Store.
func (mr *MockAtomicsMockRecorder) Store(addr, v interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Store", reflect.TypeOf((*MockAtomics)(nil).Store), addr, v)
}

// Add mocks base method.
func (m *MockAtomics) Add(addr *uint64, delta uint64) uint64 {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Add", addr, delta)
	ret0, _ := ret[0].(uint64)

	return ret0
}

// Add indicates an expected call of Add.
func (mr *MockAtomicsMockRecorder) Add(addr, delta interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Add", reflect.TypeOf((*MockAtomics)(nil).Add), addr, delta)
}
