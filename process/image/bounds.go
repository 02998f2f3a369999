// Package image computes the in-memory size of a loaded module from its headers.
// Only the fields needed for the size are read; nothing else is validated.
package image

import (
	"debug/elf"
	"debug/pe"
	"encoding/binary"
	"fmt"

	"mempatch/process"
)

const pageSize = 0x1000

// dosHeader is IMAGE_DOS_HEADER reduced to the two fields we read
type dosHeader struct {
	Magic  uint16
	_      [58]byte
	Lfanew uint32
}

// ntHeaders is IMAGE_NT_HEADERS32. SizeOfImage sits at the same offset in
// PE32 and PE32+ optional headers, so this layout serves both.
type ntHeaders struct {
	Signature      uint32
	FileHeader     pe.FileHeader
	OptionalHeader pe.OptionalHeader32
}

// Bounds returns the in-memory size of the module loaded at base. Errors wrap process.ErrBounds.
func Bounds(proc process.Process, base process.ProcessMemoryAddress) (process.ProcessMemorySize, error) {
	magic, err := proc.ReadMemory(base, 4)
	if err != nil {
		return 0, fmt.Errorf("%w: read magic at %s: %v", process.ErrBounds, base.ToString(), err)
	}

	switch {
	case magic[0] == 'M' && magic[1] == 'Z':
		return peBounds(proc, base)
	case string(magic) == elf.ELFMAG:
		return elfBounds(proc, base)
	}

	return 0, fmt.Errorf("%w: unknown image format at %s (% X)", process.ErrBounds, base.ToString(), magic)
}

// Describe returns m with Size replaced by the size from the image headers
func Describe(proc process.Process, m process.Module) (process.Module, error) {
	size, err := Bounds(proc, m.Base)
	if err != nil {
		return m, fmt.Errorf("%s: %w", m.Name, err)
	}
	m.Size = size
	return m, nil
}

func peBounds(proc process.Process, base process.ProcessMemoryAddress) (process.ProcessMemorySize, error) {
	dos, err := process.Read[dosHeader](proc, base)
	if err != nil {
		return 0, fmt.Errorf("%w: DOS header: %v", process.ErrBounds, err)
	}

	nt, err := process.Read[ntHeaders](proc, base+process.ProcessMemoryAddress(dos.Lfanew))
	if err != nil {
		return 0, fmt.Errorf("%w: NT headers at +0x%X: %v", process.ErrBounds, dos.Lfanew, err)
	}

	return process.ProcessMemorySize(nt.OptionalHeader.SizeOfImage), nil
}

func elfBounds(proc process.Process, base process.ProcessMemoryAddress) (process.ProcessMemorySize, error) {
	ident, err := proc.ReadMemory(base, elf.EI_NIDENT)
	if err != nil {
		return 0, fmt.Errorf("%w: ELF ident: %v", process.ErrBounds, err)
	}
	if elf.Data(ident[elf.EI_DATA]) != elf.ELFDATA2LSB {
		return 0, fmt.Errorf("%w: big endian ELF images are not supported", process.ErrBounds)
	}

	var loads []segment
	switch elf.Class(ident[elf.EI_CLASS]) {
	case elf.ELFCLASS64:
		loads, err = elfSegments[elf.Header64, elf.Prog64](proc, base,
			func(h elf.Header64) (uint64, uint16) { return h.Phoff, h.Phnum },
			func(p elf.Prog64) segment { return segment{elf.ProgType(p.Type), p.Vaddr, p.Memsz} })
	case elf.ELFCLASS32:
		loads, err = elfSegments[elf.Header32, elf.Prog32](proc, base,
			func(h elf.Header32) (uint64, uint16) { return uint64(h.Phoff), h.Phnum },
			func(p elf.Prog32) segment { return segment{elf.ProgType(p.Type), uint64(p.Vaddr), uint64(p.Memsz)} })
	default:
		return 0, fmt.Errorf("%w: unknown ELF class %d", process.ErrBounds, ident[elf.EI_CLASS])
	}
	if err != nil {
		return 0, err
	}

	return loadExtent(loads)
}

type segment struct {
	typ   elf.ProgType
	vaddr uint64
	memsz uint64
}

// elfSegments reads the ELF header and then the program header table it points at
func elfSegments[H any, P any](
	proc process.Process,
	base process.ProcessMemoryAddress,
	table func(H) (uint64, uint16),
	convert func(P) segment,
) ([]segment, error) {
	hdr, err := process.Read[H](proc, base)
	if err != nil {
		return nil, fmt.Errorf("%w: ELF header: %v", process.ErrBounds, err)
	}

	phoff, phnum := table(hdr)
	if phnum == 0 {
		return nil, fmt.Errorf("%w: no program headers", process.ErrBounds)
	}

	var zero P
	entSize := process.ProcessMemoryAddress(binary.Size(zero))
	segments := make([]segment, 0, phnum)
	for i := 0; i < int(phnum); i++ {
		addr := base + process.ProcessMemoryAddress(phoff) + process.ProcessMemoryAddress(i)*entSize
		ph, err := process.Read[P](proc, addr)
		if err != nil {
			return nil, fmt.Errorf("%w: program header %d: %v", process.ErrBounds, i, err)
		}
		segments = append(segments, convert(ph))
	}
	return segments, nil
}

// loadExtent is the page aligned span from the lowest to the highest PT_LOAD
func loadExtent(segments []segment) (process.ProcessMemorySize, error) {
	var lo, hi uint64
	found := false
	for _, s := range segments {
		if s.typ != elf.PT_LOAD {
			continue
		}
		start := s.vaddr &^ (pageSize - 1)
		end := (s.vaddr + s.memsz + pageSize - 1) &^ (pageSize - 1)
		if !found || start < lo {
			lo = start
		}
		if !found || end > hi {
			hi = end
		}
		found = true
	}

	if !found {
		return 0, fmt.Errorf("%w: no PT_LOAD segments", process.ErrBounds)
	}
	return process.ProcessMemorySize(hi - lo), nil
}
