package process_blob

import (
	"bytes"
	"debug/elf"
	"errors"
	"testing"

	"mempatch/process"
)

func TestReadWriteAcrossRegions(t *testing.T) {
	p := NewProcessDump(1)
	p.AddRegion(0x2000, bytes.Repeat([]byte{0xBB}, 0x10), "rw-p", "")
	p.AddRegion(0x1FF0, bytes.Repeat([]byte{0xAA}, 0x10), "r--p", "")

	got, err := p.ReadMemory(0x1FFE, 4)
	if err != nil || !bytes.Equal(got, []byte{0xAA, 0xAA, 0xBB, 0xBB}) {
		t.Fatalf("expected a read across two regions - got % X, %v", got, err)
	}

	if err := p.WriteMemory(0x1FFF, []byte{1, 2}); err != nil {
		t.Fatalf("WriteMemory failed - got %v", err)
	}
	got, _ = p.ReadMemory(0x1FFE, 4)
	if !bytes.Equal(got, []byte{0xAA, 1, 2, 0xBB}) {
		t.Fatalf("unexpected memory after write - got % X", got)
	}
	if p.ProtectChanges() != 1 {
		t.Fatalf("expected only the read-only region to be relaxed - got %d", p.ProtectChanges())
	}

	if _, err := p.ReadMemory(0x2008, 0x10); !errors.Is(err, process.ErrAddressNotMapped) {
		t.Fatalf("expected ErrAddressNotMapped past the end - got %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	p := NewProcessDump(1)
	p.AddModule("client.dll", 0x1000, make([]byte, 0x10))

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed - got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close failed - got %v", err)
	}
	if p.Releases() != 1 || p.CloseCalls() != 2 {
		t.Fatalf("expected 1 release from 2 calls - got %d from %d", p.Releases(), p.CloseCalls())
	}
	if _, err := p.ReadMemory(0x1000, 1); !errors.Is(err, process.ErrProcessNotOpen) {
		t.Fatalf("expected ErrProcessNotOpen after Close - got %v", err)
	}
	if _, err := p.Modules(); !errors.Is(err, process.ErrProcessNotOpen) {
		t.Fatalf("expected ErrProcessNotOpen after Close - got %v", err)
	}
}

func TestImages(t *testing.T) {
	pe := PEImage(0x2000, true)
	if pe[0] != 'M' || pe[1] != 'Z' || string(pe[0x80:0x84]) != "PE\x00\x00" {
		t.Fatalf("unexpected PE headers")
	}

	img := ELFImage(0x200, elf.ELFCLASS64, Load{Vaddr: 0, Memsz: 0x100})
	f, err := elf.NewFile(bytes.NewReader(img))
	if err != nil {
		t.Fatalf("expected debug/elf to accept the image - got %v", err)
	}
	if len(f.Progs) != 2 || f.Progs[0].Type != elf.PT_LOAD || f.Progs[1].Type != elf.PT_DYNAMIC {
		t.Fatalf("unexpected program headers - got %d", len(f.Progs))
	}
}
