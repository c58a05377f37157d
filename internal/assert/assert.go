// Package assert routes integrity-violation and configuration-violation
// notifications from sheap and stackguard to a user-supplied sink, tagged
// by a taxonomy of violation kinds.
package assert

import (
	"fmt"
	"runtime"
	"sync"
)

// Kind identifies the class of violation being reported. The values mirror
// the taxonomy in the sheaperd specification: init/allocation/free errors,
// MPU/stackguard errors, exclusion errors and configuration errors.
type Kind int

const (
	// Init.
	InitInvalidSize Kind = iota
	NotInitialized

	// Allocation.
	OutOfMemory
	SizeZeroAlloc
	InvalidBlock
	MallocCallOverlap

	// Free.
	NullFree
	FreePtrNotInHeap
	FreeInvalidHeader
	FreeInvalidBoundary
	OutOfBoundWrite
	DoubleFree
	FreeCallOverlap
	CoalescingNextInvalidCRC
	CoalescingPrevInvalidCRC

	// MPU / stackguard.
	NoMPUAvailable
	MPUNotEnabled
	InvalidMPUAddress
	InvalidStackAlignment
	InvalidRegionNumber
	NoMPURegionLeft
	TaskNotFound
	MPUInvalidRegionSize

	// Exclusion.
	MutexCreationFailed
	MutexDeletionFailed
	MutexIsNull
	MutexAcquireFailed
	MutexReleaseFailed

	// Configuration.
	InvalidAllocationStrategy
)

var kindNames = map[Kind]string{
	InitInvalidSize:           "INIT_INVALID_SIZE",
	NotInitialized:            "NOT_INITIALIZED",
	OutOfMemory:               "OUT_OF_MEMORY",
	SizeZeroAlloc:             "SIZE_ZERO_ALLOC",
	InvalidBlock:              "INVALID_BLOCK",
	MallocCallOverlap:         "MALLOC_CALL_OVERLAP",
	NullFree:                  "NULL_FREE",
	FreePtrNotInHeap:          "FREE_PTR_NOT_IN_HEAP",
	FreeInvalidHeader:         "FREE_INVALID_HEADER",
	FreeInvalidBoundary:       "FREE_INVALID_BOUNDARY",
	OutOfBoundWrite:           "OUT_OF_BOUND_WRITE",
	DoubleFree:                "DOUBLE_FREE",
	FreeCallOverlap:           "FREE_CALL_OVERLAP",
	CoalescingNextInvalidCRC:  "COALESCING_NEXT_INVALID_CRC",
	CoalescingPrevInvalidCRC:  "COALESCING_PREV_INVALID_CRC",
	NoMPUAvailable:            "NO_MPU_AVAILABLE",
	MPUNotEnabled:             "MPU_NOT_ENABLED",
	InvalidMPUAddress:         "INVALID_MPU_ADDRESS",
	InvalidStackAlignment:     "INVALID_STACK_ALIGNMENT",
	InvalidRegionNumber:       "INVALID_REGION_NUMBER",
	NoMPURegionLeft:           "NO_MPU_REGION_LEFT",
	TaskNotFound:              "TASK_NOT_FOUND",
	MPUInvalidRegionSize:      "MPU_INVALID_REGION_SIZE",
	MutexCreationFailed:       "MUTEX_CREATION_FAILED",
	MutexDeletionFailed:       "MUTEX_DELETION_FAILED",
	MutexIsNull:               "MUTEX_IS_NULL",
	MutexAcquireFailed:        "MUTEX_ACQUIRE_FAILED",
	MutexReleaseFailed:        "MUTEX_RELEASE_FAILED",
	InvalidAllocationStrategy: "INVALID_ALLOCATION_STRATEGY",
}

// String renders the kind's wire/log name, e.g. "DOUBLE_FREE".
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "UNKNOWN_ASSERTION_KIND"
}

// Violation describes a single reported assertion failure.
type Violation struct {
	Kind    Kind
	Message string
	Context map[string]any
	Caller  string
}

// Error implements the error interface so a Violation can be wrapped or
// logged with the standard error-formatting verbs.
func (v *Violation) Error() string {
	return fmt.Sprintf("[%s] %s (caller: %s)", v.Kind, v.Message, v.Caller)
}

// Sink receives a Violation as it is reported. Sinks must not block for
// long or re-enter the subsystem that raised the violation.
type Sink func(v *Violation)

// Reporter dispatches Violations to a registered Sink. The zero value
// reports nothing until a Sink is registered with SetSink.
type Reporter struct {
	mu   sync.RWMutex
	sink Sink
}

// NewReporter returns a Reporter with no sink registered.
func NewReporter() *Reporter {
	return &Reporter{}
}

// SetSink installs the sink that receives future violations. Passing nil
// silences reporting.
func (r *Reporter) SetSink(sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sink = sink
}

// Report builds a Violation from kind, a printf-style message and an
// optional context map, and dispatches it to the registered sink, if any.
// The immediate caller (skip=1) is recorded automatically.
func (r *Reporter) Report(kind Kind, context map[string]any, format string, args ...any) {
	r.mu.RLock()
	sink := r.sink
	r.mu.RUnlock()

	if sink == nil {
		return
	}

	caller := "unknown"

	if pc, _, _, ok := runtime.Caller(1); ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	sink(&Violation{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Context: context,
		Caller:  caller,
	})
}
