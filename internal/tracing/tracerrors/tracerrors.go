// Package tracerrors provides standardized error reporting for the tracing
// substrate, in the style of the runtime's own internal/errors package:
// every failure carries a category, a stable code, and the caller that
// raised it instead of a bare string.
package tracerrors

import (
	"fmt"
	"runtime"
)

// Kind enumerates every error condition the tracing substrate can raise.
// Recoverable kinds mean the caller may retry or otherwise continue; fatal
// kinds mean the call's precondition or internal state was violated.
type Kind string

const (
	KindNotEnoughMemory              Kind = "NOT_ENOUGH_MEMORY"
	KindRingBufferNotInitialized     Kind = "RING_BUFFER_NOT_INITIALIZED"
	KindIndexOutOfBoundsInSharedList Kind = "INDEX_OUT_OF_BOUNDS_IN_SHARED_LIST"
	KindNoSpaceLeftForAllocation     Kind = "NO_SPACE_LEFT_FOR_ALLOCATION"
	KindNoMetaInfoProvided           Kind = "NO_META_INFO_PROVIDED"
	KindWrongHandle                  Kind = "WRONG_HANDLE"
	KindCallbackAlreadyRegistered    Kind = "CALLBACK_ALREADY_REGISTERED"
	KindDaemonNotConnected           Kind = "DAEMON_NOT_CONNECTED"
	KindInvalidArgument              Kind = "INVALID_ARGUMENT"
	KindBaseAddressVoid              Kind = "BASE_ADDRESS_VOID"
	KindSizeIsZero                   Kind = "SIZE_IS_ZERO"
)

// recoverable reports whether a Kind's failure permits the caller to retry.
var recoverable = map[Kind]bool{
	KindNotEnoughMemory:              true,
	KindRingBufferNotInitialized:     true,
	KindIndexOutOfBoundsInSharedList: true,
	KindNoSpaceLeftForAllocation:     true,
	KindNoMetaInfoProvided:           true,
	KindWrongHandle:                  true,
	KindCallbackAlreadyRegistered:    true,
	KindDaemonNotConnected:           true,
	KindInvalidArgument:              false,
	KindBaseAddressVoid:              false,
	KindSizeIsZero:                   false,
}

// Error is the structured error type every package in the tracing substrate
// returns. It mirrors internal/errors.StandardError: category-like Kind,
// human message, free-form context, and the caller that raised it.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]interface{}
	Caller  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s (caller: %s)", e.Kind, e.Message, e.Caller)
}

// Recoverable reports whether the caller may retry after this error.
func (e *Error) Recoverable() bool {
	return recoverable[e.Kind]
}

// New constructs an Error, recording the immediate caller for diagnostics.
func New(kind Kind, message string, context map[string]interface{}) *Error {
	caller := "unknown"

	if pc, _, _, ok := runtime.Caller(1); ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	return &Error{Kind: kind, Message: message, Context: context, Caller: caller}
}

// Is reports whether err is a *Error of the given Kind, supporting
// errors.Is-style matching without exposing the Error struct's fields.
func Is(err error, kind Kind) bool {
	te, ok := err.(*Error)
	return ok && te.Kind == kind
}

// Convenience constructors, one per Kind used on the hot path.

func NotEnoughMemory(op string, requested, available uintptr) *Error {
	return New(KindNotEnoughMemory,
		fmt.Sprintf("not enough memory for %s: requested %d, available %d", op, requested, available),
		map[string]interface{}{"op": op, "requested": requested, "available": available})
}

func RingBufferNotInitialized(op string) *Error {
	return New(KindRingBufferNotInitialized,
		fmt.Sprintf("ring buffer not initialized for %s", op),
		map[string]interface{}{"op": op})
}

func IndexOutOfBoundsInSharedList(index, size int) *Error {
	return New(KindIndexOutOfBoundsInSharedList,
		fmt.Sprintf("index %d out of bounds for shared list of size %d", index, size),
		map[string]interface{}{"index": index, "size": size})
}

func NoSpaceLeftForAllocation(op string) *Error {
	return New(KindNoSpaceLeftForAllocation,
		fmt.Sprintf("no space left for allocation in %s", op),
		map[string]interface{}{"op": op})
}

func NoMetaInfoProvided() *Error {
	return New(KindNoMetaInfoProvided, "meta-info variant is not AraComMetaInfo", nil)
}

func WrongHandle(expected, got int32) *Error {
	return New(KindWrongHandle,
		fmt.Sprintf("shared memory handle mismatch: expected %d, got %d", expected, got),
		map[string]interface{}{"expected": expected, "got": got})
}

func CallbackAlreadyRegistered(name string) *Error {
	return New(KindCallbackAlreadyRegistered,
		fmt.Sprintf("callback %q already registered", name),
		map[string]interface{}{"name": name})
}

func DaemonNotConnected() *Error {
	return New(KindDaemonNotConnected, "daemon is not connected", nil)
}

func InvalidArgument(op, details string) *Error {
	return New(KindInvalidArgument,
		fmt.Sprintf("invalid argument in %s: %s", op, details),
		map[string]interface{}{"op": op})
}

func BaseAddressVoid() *Error {
	return New(KindBaseAddressVoid, "base address must not be null", nil)
}

func SizeIsZero() *Error {
	return New(KindSizeIsZero, "size must not be zero", nil)
}
