// Command sheaperd-demo wires a SHEAP heap and a STACKGUARD scheduler
// together, each with its own assert.Reporter, exercising both subsystems
// against the hosted (mmap-backed) build the same way an integration
// test would, but as a runnable program instead of a *testing.T.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ag00se/sheaperd-library/internal/assert"
	"github.com/ag00se/sheaperd-library/internal/mpu"
	"github.com/ag00se/sheaperd-library/sheap"
	"github.com/ag00se/sheaperd-library/stackguard"
)

// defaultSink returns the [SHEAP]/[STACKGUARD]-tagged log.Printf sink used
// when an embedder doesn't register its own, in the same spirit as the
// teacher's security_logging.go category-tag prefixing.
func defaultSink(tag string) assert.Sink {
	return func(v *assert.Violation) {
		log.Printf("[%s] %s: %s (context=%v, caller=%s)", tag, v.Kind, v.Message, v.Context, v.Caller)
	}
}

func runSheapDemo(reporter *assert.Reporter) error {
	heap, err := sheap.New(4096, reporter,
		sheap.WithExtendedHeader(true),
		sheap.WithOverwriteOnFree(true),
		sheap.WithFreeCheckUnalignedSize(true),
	)
	if err != nil {
		return fmt.Errorf("sheap.New: %w", err)
	}
	defer heap.Close()

	a, ok := heap.Allocate(128, 0xA11CE)
	if !ok {
		return fmt.Errorf("Allocate(a) failed")
	}

	b, ok := heap.Allocate(64, 0xB0B)
	if !ok {
		return fmt.Errorf("Allocate(b) failed")
	}

	var stats sheap.Statistics
	heap.GetHeapStatistics(&stats)
	log.Printf("sheap: allocated two blocks, allocations=%d alignedAllocated=%d totalWithOverhead=%d", stats.CurrentAllocations, stats.AlignedAllocated, stats.TotalWithOverhead)

	if !heap.Free(a, 0xA11CE) {
		return fmt.Errorf("Free(a) reported failure")
	}
	if !heap.Free(b, 0xB0B) {
		return fmt.Errorf("Free(b) reported failure")
	}

	// Trip the double-free detector deliberately to show the reporter
	// sink firing.
	heap.Free(a, 0xA11CE)

	return nil
}

func runStackguardDemo(reporter *assert.Reporter) error {
	driver, err := mpu.NewDriver(mpu.M3M4M7, 8)
	if err != nil {
		return fmt.Errorf("mpu.NewDriver: %w", err)
	}
	defer driver.Close()

	var faultAddr uint32
	onFault := func(addr uint32, frame stackguard.ExceptionFrame) {
		faultAddr = addr
		log.Printf("stackguard: memory fault at %#x, frame=%+v", addr, frame)
	}

	sched, err := stackguard.Init(driver, reporter, onFault, time.Second)
	if err != nil {
		return fmt.Errorf("stackguard.Init: %w", err)
	}

	if err := sched.AddTaskByteSize(1, 0x20000000, 64, mpu.AccessPrivOnlyRW, false); err != nil {
		return fmt.Errorf("AddTaskByteSize(1): %w", err)
	}
	if err := sched.AddTaskByteSize(2, 0x20000040, 64, mpu.AccessPrivOnlyRW, false); err != nil {
		return fmt.Errorf("AddTaskByteSize(2): %w", err)
	}

	sched.TaskSwitchIn(1, true)
	log.Printf("stackguard: switched in task 1, task 2's stack is now denied")

	sched.HandleMemFault(0x1<<1|0x1<<7, 0x20000040, stackguard.ExceptionFrame{})
	if faultAddr != 0x20000040 {
		return fmt.Errorf("expected synthetic fault at task 2's base, got %#x", faultAddr)
	}

	return sched.RemoveTask(1)
}

func main() {
	sheapReporter := assert.NewReporter()
	sheapReporter.SetSink(defaultSink("SHEAP"))

	if err := runSheapDemo(sheapReporter); err != nil {
		log.Printf("sheap demo failed: %v", err)
		os.Exit(1)
	}

	stackguardReporter := assert.NewReporter()
	stackguardReporter.SetSink(defaultSink("STACKGUARD"))

	if err := runStackguardDemo(stackguardReporter); err != nil {
		log.Printf("stackguard demo failed: %v", err)
		os.Exit(1)
	}
}
