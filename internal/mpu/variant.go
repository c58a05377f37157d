package mpu

// Variant selects the Cortex-M MPU register-layout family. The concrete
// register bit-field offsets for each variant are the hardware adaptation
// spec.md treats as an external collaborator; Variant here governs only
// the alignment rule, which is an architectural (not per-chip) property.
type Variant int

const (
	M0Plus Variant = iota
	M3M4M7
	M23
	M33M35P
)

func (v Variant) String() string {
	switch v {
	case M0Plus:
		return "M0PLUS"
	case M3M4M7:
		return "M3_M4_M7"
	case M23:
		return "M23"
	case M33M35P:
		return "M33_M35P"
	default:
		return "UNKNOWN_MPU_VARIANT"
	}
}

// RequiresNaturalAlignment reports whether base addresses on this variant
// must additionally be a multiple of the region size (the Armv7-M rule),
// beyond the universal 32-byte floor. The Armv8-M variants (M23, M33/M35P)
// use a base+limit region encoding and only need the 32-byte floor.
func (v Variant) RequiresNaturalAlignment() bool {
	switch v {
	case M3M4M7, M0Plus:
		return true
	default:
		return false
	}
}
