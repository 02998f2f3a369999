package process_blob

import (
	"bytes"
	"debug/elf"
	"debug/pe"
	"encoding/binary"
)

const peHeaderOffset = 0x80

// PEImage returns a size byte module image whose headers declare SizeOfImage
// as size. The rest of the image is zero.
func PEImage(size int, pe64 bool) []byte {
	var hdr bytes.Buffer
	hdr.Write([]byte("PE\x00\x00"))

	fh := pe.FileHeader{Machine: pe.IMAGE_FILE_MACHINE_I386, Characteristics: pe.IMAGE_FILE_EXECUTABLE_IMAGE}
	if pe64 {
		fh.Machine = pe.IMAGE_FILE_MACHINE_AMD64
		fh.SizeOfOptionalHeader = uint16(binary.Size(pe.OptionalHeader64{}))
		binary.Write(&hdr, binary.LittleEndian, fh)
		binary.Write(&hdr, binary.LittleEndian, pe.OptionalHeader64{Magic: 0x20b, SizeOfImage: uint32(size), SizeOfHeaders: 0x400})
	} else {
		fh.SizeOfOptionalHeader = uint16(binary.Size(pe.OptionalHeader32{}))
		binary.Write(&hdr, binary.LittleEndian, fh)
		binary.Write(&hdr, binary.LittleEndian, pe.OptionalHeader32{Magic: 0x10b, SizeOfImage: uint32(size), SizeOfHeaders: 0x400})
	}

	image := make([]byte, size)
	image[0], image[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(image[0x3C:], peHeaderOffset)
	copy(image[peHeaderOffset:], hdr.Bytes())
	return image
}

// Load is one PT_LOAD segment for ELFImage
type Load struct {
	Vaddr uint64
	Memsz uint64
}

// ELFImage returns a size byte little endian ELF image with one PT_LOAD per
// entry of loads and a PT_DYNAMIC that bounds calculations must ignore
func ELFImage(size int, class elf.Class, loads ...Load) []byte {
	var buf bytes.Buffer
	phnum := uint16(len(loads) + 1)

	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(class)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	if class == elf.ELFCLASS64 {
		hdr := elf.Header64{
			Ident:     ident,
			Type:      uint16(elf.ET_DYN),
			Machine:   uint16(elf.EM_X86_64),
			Version:   uint32(elf.EV_CURRENT),
			Phoff:     uint64(binary.Size(elf.Header64{})),
			Ehsize:    uint16(binary.Size(elf.Header64{})),
			Phentsize: uint16(binary.Size(elf.Prog64{})),
			Phnum:     phnum,
		}
		binary.Write(&buf, binary.LittleEndian, hdr)
		for _, l := range loads {
			binary.Write(&buf, binary.LittleEndian, elf.Prog64{Type: uint32(elf.PT_LOAD), Vaddr: l.Vaddr, Memsz: l.Memsz, Filesz: l.Memsz})
		}
		binary.Write(&buf, binary.LittleEndian, elf.Prog64{Type: uint32(elf.PT_DYNAMIC), Vaddr: 0x7fff0000, Memsz: 0x1000})
	} else {
		hdr := elf.Header32{
			Ident:     ident,
			Type:      uint16(elf.ET_DYN),
			Machine:   uint16(elf.EM_386),
			Version:   uint32(elf.EV_CURRENT),
			Phoff:     uint32(binary.Size(elf.Header32{})),
			Ehsize:    uint16(binary.Size(elf.Header32{})),
			Phentsize: uint16(binary.Size(elf.Prog32{})),
			Phnum:     phnum,
		}
		binary.Write(&buf, binary.LittleEndian, hdr)
		for _, l := range loads {
			binary.Write(&buf, binary.LittleEndian, elf.Prog32{Type: uint32(elf.PT_LOAD), Vaddr: uint32(l.Vaddr), Memsz: uint32(l.Memsz), Filesz: uint32(l.Memsz)})
		}
		binary.Write(&buf, binary.LittleEndian, elf.Prog32{Type: uint32(elf.PT_DYNAMIC), Vaddr: 0x7fff0000, Memsz: 0x1000})
	}

	image := make([]byte, size)
	copy(image, buf.Bytes())
	return image
}
