package search

import (
	"errors"
	"testing"

	"mempatch/process"
	"mempatch/process_blob"
)

const base = 0x400000

var decalPattern = process.MustAOB(
	[]byte{0x09, 0x83, 0x00, 0x00, 0x00, 0x00, 0x00, 0xC7},
	[]byte{0xFF, 0xFF, 0x00, 0x00, 0xFF, 0xFF, 0x00, 0xFF},
)

func moduleWith(size int, at ...int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = 0xCC
	}
	for n, off := range at {
		copy(data[off:], []byte{0x09, 0x83, byte(n), 0x7F, 0x00, 0x00, 0x10, 0xC7})
	}
	return data
}

func TestFindFirstMatch(t *testing.T) {
	proc := process_blob.NewProcessDump(1)
	proc.AddRegion(base, moduleWith(0x1000, 0x200, 0x100, 0x800), "r-xp", "client.dll")

	addr, found, err := Find(proc, base, 0x1000, decalPattern)
	if err != nil || !found {
		t.Fatalf("expected a match - got %v, %v", found, err)
	}
	if addr != base+0x100 {
		t.Fatalf("expected lowest match at 0x%X - got %s", base+0x100, addr.ToString())
	}

	all, err := FindAll(proc, base, 0x1000, decalPattern)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 matches - got %d, %v", len(all), err)
	}
	if all[0] != base+0x100 || all[1] != base+0x200 || all[2] != base+0x800 {
		t.Fatalf("expected ascending matches - got %v", all)
	}
}

func TestFindWindowEdges(t *testing.T) {
	proc := process_blob.NewProcessDump(1)
	data := moduleWith(0x100, 0, 0x100-8)
	proc.AddRegion(base, data, "r-xp", "client.dll")

	addr, found, err := Find(proc, base, 0x100, decalPattern)
	if err != nil || !found || addr != base {
		t.Fatalf("expected a match at offset 0 - got %s, %v, %v", addr.ToString(), found, err)
	}

	// The last valid offset is size - len(pattern)
	addr, found, err = Find(proc, base+8, 0x100-8, decalPattern)
	if err != nil || !found || addr != base+0x100-8 {
		t.Fatalf("expected a match at the last offset - got %s, %v, %v", addr.ToString(), found, err)
	}

	_, found, err = Find(proc, base+8, 0x100-9, decalPattern)
	if err != nil || found {
		t.Fatalf("expected no match when the window cuts the pattern - got %v, %v", found, err)
	}

	_, found, err = Find(proc, base, 4, decalPattern)
	if err != nil || found {
		t.Fatalf("expected no match for a window shorter than the pattern - got %v, %v", found, err)
	}
}

func TestFindWildcardsIgnoreContent(t *testing.T) {
	for _, b := range []byte{0x00, 0x42, 0xFF} {
		proc := process_blob.NewProcessDump(1)
		data := moduleWith(0x40)
		copy(data[0x10:], []byte{0x09, 0x83, b, b, 0x00, 0x00, b, 0xC7})
		proc.AddRegion(base, data, "r-xp", "client.dll")

		addr, found, err := Find(proc, base, 0x40, decalPattern)
		if err != nil || !found || addr != base+0x10 {
			t.Fatalf("wildcard byte 0x%02X: expected match at +0x10 - got %s, %v, %v", b, addr.ToString(), found, err)
		}
	}
}

func TestFindNotFoundIsNotAnError(t *testing.T) {
	proc := process_blob.NewProcessDump(1)
	proc.AddRegion(base, moduleWith(0x1000), "r-xp", "client.dll")

	_, found, err := Find(proc, base, 0x1000, decalPattern)
	if err != nil || found {
		t.Fatalf("expected a clean miss - got %v, %v", found, err)
	}
}

func TestFindReadFailure(t *testing.T) {
	proc := process_blob.NewProcessDump(1)
	proc.AddRegion(base, moduleWith(0x1000, 0x10), "r-xp", "client.dll")
	proc.ReadFault = func(process.ProcessMemoryAddress, process.ProcessMemorySize) error {
		return errors.New("EIO")
	}

	_, found, err := Find(proc, base, 0x1000, decalPattern)
	if err == nil || found {
		t.Fatalf("expected a read error - got %v, %v", found, err)
	}
}

func TestFindChunkedAcrossBoundary(t *testing.T) {
	proc := process_blob.NewProcessDump(1)
	// The match straddles the first chunk boundary at 0x100
	// and another sits right before the hole
	proc.AddRegion(base, moduleWith(0x400, 0xFC, 0x3F8), "r-xp", "client.dll")
	// A hole in the middle of the window forces the chunked path
	proc.AddRegion(base+0x1000, moduleWith(0x400, 0x20), "r-xp", "client.dll")
	// Unreadable memory is never scanned
	proc.AddRegion(base+0x1400, moduleWith(0x100, 0x10), "---p", "guard")

	all, err := FindAll(proc, base, 0x1500, decalPattern, WithChunkSize(0x100))
	if err != nil {
		t.Fatalf("FindAll failed - got %v", err)
	}
	if len(all) != 3 || all[0] != base+0xFC || all[1] != base+0x3F8 || all[2] != base+0x1020 {
		t.Fatalf("expected matches at +0xFC, +0x3F8 and +0x1020 - got %v", all)
	}

	addr, found, err := Find(proc, base, 0x1500, decalPattern, WithChunkSize(0x100))
	if err != nil || !found || addr != base+0xFC {
		t.Fatalf("expected first match at +0xFC - got %s, %v, %v", addr.ToString(), found, err)
	}
}

func TestFindPatternMatchesLimit(t *testing.T) {
	data := moduleWith(0x80, 0x10, 0x30, 0x50)
	if got := findPatternMatches(data, decalPattern, 2); len(got) != 2 || got[0] != 0x10 || got[1] != 0x30 {
		t.Fatalf("expected the first two offsets - got %v", got)
	}
	if got := findPatternMatches(moduleWith(0x80), decalPattern, 0); got != nil {
		t.Fatalf("expected no matches - got %v", got)
	}
}

func TestFindLeavesCallerOptionsAlone(t *testing.T) {
	proc := process_blob.NewProcessDump(1)
	proc.AddModule("client.dll", uint64(base), moduleWith(0x200, 0x10, 0x40))

	options := make([]Option, 1, 4)
	options[0] = WithChunkSize(0x100)
	if _, found, err := Find(proc, base, 0x200, decalPattern, options...); err != nil || !found {
		t.Fatalf("expected a match - got %v, %v", found, err)
	}

	spare := options[:2]
	if spare[1] != nil {
		t.Fatalf("expected Find not to write into the caller's option slice")
	}
	if all, err := FindAll(proc, base, 0x200, decalPattern, options...); err != nil || len(all) != 2 {
		t.Fatalf("expected both matches without a limit - got %d, %v", len(all), err)
	}
}

func TestFindInvalidPattern(t *testing.T) {
	proc := process_blob.NewProcessDump(1)
	_, _, err := Find(proc, base, 0x10, process.AOB{Pattern: []byte{1, 2}, Mask: []byte{0xFF}})
	if !errors.Is(err, process.ErrInvalidPattern) {
		t.Fatalf("expected ErrInvalidPattern - got %v", err)
	}
}
