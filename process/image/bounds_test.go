package image

import (
	"debug/elf"
	"errors"
	"testing"

	"mempatch/process"
	"mempatch/process_blob"
)

const base = 0x10000000

func TestBoundsPE(t *testing.T) {
	for _, pe64 := range []bool{false, true} {
		proc := process_blob.NewProcessDump(100)
		// The declared size is what counts, not how much is mapped
		img := process_blob.PEImage(0x3000, pe64)
		proc.AddModule("client.dll", base, img[:0x1000])

		size, err := Bounds(proc, base)
		if err != nil {
			t.Fatalf("pe64=%v: Bounds failed - got %v", pe64, err)
		}
		if size != 0x3000 {
			t.Fatalf("pe64=%v: expected size 0x3000 - got 0x%X", pe64, uint(size))
		}
	}
}

func TestBoundsELF(t *testing.T) {
	for _, class := range []elf.Class{elf.ELFCLASS64, elf.ELFCLASS32} {
		proc := process_blob.NewProcessDump(100)
		img := process_blob.ELFImage(0x1000, class,
			process_blob.Load{Vaddr: 0, Memsz: 0x1800},
			process_blob.Load{Vaddr: 0x4100, Memsz: 0x100},
		)
		proc.AddModule("client.so", base, img)

		size, err := Bounds(proc, base)
		if err != nil {
			t.Fatalf("%v: Bounds failed - got %v", class, err)
		}
		if size != 0x5000 {
			t.Fatalf("%v: expected size 0x5000 - got 0x%X", class, uint(size))
		}
	}
}

func TestBoundsErrors(t *testing.T) {
	proc := process_blob.NewProcessDump(100)
	proc.AddModule("garbage.dll", base, make([]byte, 0x1000))

	if _, err := Bounds(proc, base); !errors.Is(err, process.ErrBounds) {
		t.Fatalf("expected ErrBounds for unknown magic - got %v", err)
	}

	if _, err := Bounds(proc, 0x20000000); !errors.Is(err, process.ErrBounds) {
		t.Fatalf("expected ErrBounds for unmapped base - got %v", err)
	}

	// e_lfanew pointing outside the mapping
	img := process_blob.PEImage(0x1000, false)
	img[0x3C], img[0x3D] = 0x00, 0x20
	proc.AddModule("broken.dll", 0x30000000, img)
	if _, err := Bounds(proc, 0x30000000); !errors.Is(err, process.ErrBounds) {
		t.Fatalf("expected ErrBounds for unreadable NT headers - got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	proc := process_blob.NewProcessDump(100)
	m := proc.AddModule("client.dll", base, process_blob.PEImage(0x2000, true))
	m.Size = 0

	got, err := Describe(proc, m)
	if err != nil {
		t.Fatalf("Describe failed - got %v", err)
	}
	if got.Size != 0x2000 || got.Base != base || got.Name != "client.dll" {
		t.Fatalf("unexpected module - got %s", got.String())
	}
}
