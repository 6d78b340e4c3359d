package ringbuffer

import (
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/qorix-group/baselibs-sub006/internal/tracing/chunklist"
)

// MockRing is a gomock-style double for Ring, in the shape mockgen would
// generate. Lets tracejob tests force a slot-exhaustion or
// publish-ordering scenario without a real Buffer.
type MockRing struct {
	ctrl     *gomock.Controller
	recorder *MockRingMockRecorder
}

// MockRingMockRecorder records expected calls on a MockRing.
type MockRingMockRecorder struct {
	mock *MockRing
}

// NewMockRing returns a new mock controlled by ctrl.
func NewMockRing(ctrl *gomock.Controller) *MockRing {
	mock := &MockRing{ctrl: ctrl}
	mock.recorder = &MockRingMockRecorder{mock: mock}

	return mock
}

// EXPECT returns the recorder for setting up expectations.
func (m *MockRing) EXPECT() *MockRingMockRecorder { return m.recorder }

// GetEmptyElement mocks base method.
func (m *MockRing) GetEmptyElement() (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetEmptyElement")
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)

	return ret0, ret1
}

// GetEmptyElement indicates an expected call of GetEmptyElement.
func (mr *MockRingMockRecorder) GetEmptyElement() *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetEmptyElement", reflect.TypeOf((*MockRing)(nil).GetEmptyElement))
}

// FreeElement mocks base method.
func (m *MockRing) FreeElement(idx int) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "FreeElement", idx)
}

// FreeElement indicates an expected call of FreeElement.
func (mr *MockRingMockRecorder) FreeElement(idx interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FreeElement", reflect.TypeOf((*MockRing)(nil).FreeElement), idx)
}

// Publish mocks base method.
func (m *MockRing) Publish(idx int, clientID, contextID uint64, loc chunklist.ShmLocation) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Publish", idx, clientID, contextID, loc)
}

// Publish indicates an expected call of Publish.
func (mr *MockRingMockRecorder) Publish(idx, clientID, contextID, loc interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Publish", reflect.TypeOf((*MockRing)(nil).Publish), idx, clientID, contextID, loc)
}

// StatusAt mocks base method.
func (m *MockRing) StatusAt(idx int) Status {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "StatusAt", idx)
	ret0, _ := ret[0].(Status)

	return ret0
}

// StatusAt indicates an expected call of StatusAt.
func (mr *MockRingMockRecorder) StatusAt(idx interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "StatusAt", reflect.TypeOf((*MockRing)(nil).StatusAt), idx)
}

// SlotAt mocks base method.
func (m *MockRing) SlotAt(idx int) Slot {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SlotAt", idx)
	ret0, _ := ret[0].(Slot)

	return ret0
}

// SlotAt indicates an expected call of SlotAt.
func (mr *MockRingMockRecorder) SlotAt(idx interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SlotAt", reflect.TypeOf((*MockRing)(nil).SlotAt), idx)
}

// Reclaim mocks base method.
func (m *MockRing) Reclaim(idx int) bool {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Reclaim", idx)
	ret0, _ := ret[0].(bool)

	return ret0
}

// Reclaim indicates an expected call of Reclaim.
func (mr *MockRingMockRecorder) Reclaim(idx interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Reclaim", reflect.TypeOf((*MockRing)(nil).Reclaim), idx)
}

// Capacity mocks base method.
func (m *MockRing) Capacity() int {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Capacity")
	ret0, _ := ret[0].(int)

	return ret0
}

// Capacity indicates an expected call of Capacity.
func (mr *MockRingMockRecorder) Capacity() *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Capacity", reflect.TypeOf((*MockRing)(nil).Capacity))
}
