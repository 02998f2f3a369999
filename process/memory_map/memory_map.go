package memory_map

import (
	"fmt"
	"path/filepath"
	"sort"
)

// MemoryMapItem represents a memory region in a process's address space
type MemoryMapItem struct {
	Address uint64 // The starting address of the memory region
	Size    uint   // The size of the memory region in bytes
	Perms   string // Permissions (e.g., "r-xp" for read, execute, private)
	Offset  uint64 // Offset into the backing file, 0 for anonymous regions
	Path    string // Backing file or pseudo name ("[heap]"), empty for anonymous regions
}

// String returns a string representation of the memory map item
func (mmItem MemoryMapItem) String() string {
	return fmt.Sprintf("Address: %x, Size: %d, Perms: %s, Path: %s", mmItem.Address, mmItem.Size, mmItem.Perms, mmItem.Path)
}

func (mmItem MemoryMapItem) End() uint64 {
	return mmItem.Address + uint64(mmItem.Size)
}

func (mmItem MemoryMapItem) IsReadable() bool {
	return len(mmItem.Perms) > 0 && mmItem.Perms[0] == 'r'
}

func (mmItem MemoryMapItem) IsWritable() bool {
	return len(mmItem.Perms) > 1 && mmItem.Perms[1] == 'w'
}

// MemoryMap defines the interface for operations related to a process's memory map
type MemoryMap interface {
	// ReadMemoryMap reads and parses the memory map for a process
	ReadMemoryMap(pid int) ([]MemoryMapItem, error)

	// IsReadablePerms checks if a memory region has read permissions
	IsReadablePerms(perms string) bool

	// IsWritablePerms checks if a memory region has write permissions
	IsWritablePerms(perms string) bool

	// IsExecutablePerms checks if a memory region has execute permissions
	IsExecutablePerms(perms string) bool
}

// MappedImage is a file mapped into the address space, possibly as several regions
type MappedImage struct {
	Path string
	Base uint64 // Address of the region that maps file offset 0
	End  uint64 // End of the last region backed by the same file
}

// Images groups the file backed regions of a sorted memory map by path.
// Images are returned in address order of their first mapping; pseudo paths
// such as "[heap]" and files never mapped at offset 0 are skipped.
func Images(memoryMap []MemoryMapItem) []MappedImage {
	var images []MappedImage
	index := make(map[string]int)

	for _, item := range memoryMap {
		if item.Path == "" || item.Path[0] == '[' || !filepath.IsAbs(item.Path) {
			continue
		}
		i, seen := index[item.Path]
		if !seen {
			if item.Offset != 0 {
				continue
			}
			index[item.Path] = len(images)
			images = append(images, MappedImage{Path: item.Path, Base: item.Address, End: item.End()})
			continue
		}
		if item.End() > images[i].End {
			images[i].End = item.End()
		}
	}

	return images
}

// GetMemoryRegionForAddress returns the memory region containing an address.
// memoryMap must be sorted by address.
func GetMemoryRegionForAddress(addr uint64, memoryMap []MemoryMapItem) *MemoryMapItem {
	i := sort.Search(len(memoryMap), func(i int) bool {
		return memoryMap[i].End() > addr
	})
	if i < len(memoryMap) && memoryMap[i].Address <= addr {
		return &memoryMap[i]
	}

	return nil
}

// RegionsForRange returns the regions covering [addr, addr+size). ok is false
// when part of the range is not mapped.
func RegionsForRange(addr uint64, size uint, memoryMap []MemoryMapItem) (regions []MemoryMapItem, ok bool) {
	end := addr + uint64(size)
	for cur := addr; cur < end; {
		item := GetMemoryRegionForAddress(cur, memoryMap)
		if item == nil {
			return regions, false
		}
		regions = append(regions, *item)
		cur = item.End()
	}
	return regions, true
}

// SortByAddress sorts the map in place, which the lookups above require
func SortByAddress(memoryMap []MemoryMapItem) {
	sort.Slice(memoryMap, func(i, j int) bool {
		return memoryMap[i].Address < memoryMap[j].Address
	})
}
