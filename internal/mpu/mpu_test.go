package mpu

import "testing"

func TestNewDriverDiscoversRegionCount(t *testing.T) {
	d, err := NewDriver(M3M4M7, 8)
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	defer d.Close()

	if d.RegionCount() != 8 {
		t.Fatalf("RegionCount() = %d, want 8", d.RegionCount())
	}
}

func TestNewDriverRejectsZeroRegions(t *testing.T) {
	if _, err := NewDriver(M3M4M7, 0); err == nil {
		t.Fatal("expected error for zero region count")
	}
}

func TestProgramAndQueryRoundTrip(t *testing.T) {
	d, err := NewDriver(M3M4M7, 4)
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	defer d.Close()

	r := DefaultAttributes()
	r.BaseAddress = 0x20000000
	r.SizeCode = 0x09 // 1024 bytes, 0x20000000 is a multiple of 1024
	r.Access = AccessFull
	r.Enabled = true

	if err := d.Program(1, r); err != nil {
		t.Fatalf("Program failed: %v", err)
	}

	got, err := d.Query(1)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if got.BaseAddress != r.BaseAddress || got.SizeCode != r.SizeCode || got.Access != r.Access || !got.Enabled {
		t.Fatalf("Query() = %+v, want %+v", got, r)
	}
}

func TestProgramRejectsMisalignedBaseForArmv7(t *testing.T) {
	d, err := NewDriver(M3M4M7, 4)
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	defer d.Close()

	r := DefaultAttributes()
	r.BaseAddress = 0x20000040 // not a multiple of the 1024-byte region size
	r.SizeCode = 0x09

	if err := d.Program(0, r); err == nil {
		t.Fatal("expected alignment error on Armv7 variant")
	}
}

func TestArmv8VariantsOnlyRequire32ByteFloor(t *testing.T) {
	d, err := NewDriver(M33M35P, 4)
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	defer d.Close()

	r := DefaultAttributes()
	r.BaseAddress = 0x20000020 // 32-byte aligned but not naturally aligned to 1024
	r.SizeCode = 0x09

	if err := d.Program(0, r); err != nil {
		t.Fatalf("Program should succeed on Armv8-M variant: %v", err)
	}
}

func TestProgramRejectsInvalidSizeCode(t *testing.T) {
	d, err := NewDriver(M3M4M7, 4)
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	defer d.Close()

	r := DefaultAttributes()
	r.BaseAddress = 0x20000000
	r.SizeCode = 0x02 // below MinSizeCode

	if err := d.Program(0, r); err == nil {
		t.Fatal("expected size-code range error")
	}
}

func TestProgramRejectsOutOfRangeIndex(t *testing.T) {
	d, err := NewDriver(M3M4M7, 2)
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	defer d.Close()

	if err := d.Program(5, DefaultAttributes()); err == nil {
		t.Fatal("expected out-of-range index error")
	}
}

func TestGlobalEnableDisable(t *testing.T) {
	d, err := NewDriver(M3M4M7, 2)
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	defer d.Close()

	if d.Enabled() {
		t.Fatal("driver should start disabled")
	}

	d.EnableGlobal()

	if !d.Enabled() {
		t.Fatal("Enabled() should be true after EnableGlobal")
	}

	d.DisableGlobal()

	if d.Enabled() {
		t.Fatal("Enabled() should be false after DisableGlobal")
	}
}

func TestSizeBytesEncoding(t *testing.T) {
	if SizeBytes(0x04) != 32 {
		t.Fatalf("SizeBytes(0x04) = %d, want 32", SizeBytes(0x04))
	}

	if SizeBytes(0x1F) != 1<<32 {
		t.Fatalf("SizeBytes(0x1F) = %d, want 2^32", SizeBytes(0x1F))
	}
}
