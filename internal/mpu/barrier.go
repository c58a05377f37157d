package mpu

import "sync/atomic"

// dmb, dsb and isb stand in for the Cortex-M DMB/DSB/ISB instructions that
// bracket MPU enable/disable pairs (spec.md §5): DMB orders prior memory
// accesses against the reprogramming that follows; DSB waits for memory
// accesses up to this point to complete; ISB flushes the pipeline so
// instructions after the barrier are fetched under the new permissions.
// The actual instructions are the hardware adaptation spec.md treats as
// an external collaborator; a sequentially-consistent atomic fence is the
// closest Go has to the same ordering guarantee on a hosted build.
var barrierFence atomic.Uint32

func dmb() { barrierFence.Add(1) }
func dsb() { barrierFence.Add(1) }
func isb() { barrierFence.Add(1) }
