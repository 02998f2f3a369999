// Package search scans a window of process memory for an AOB pattern
package search

import (
	"fmt"

	"mempatch/process"
	"mempatch/process/memory_map"
)

// Searcher holds configuration for the search
type Searcher struct {
	// ChunkSize is the read size used when the whole window can't be read at once
	ChunkSize uint
	// Limit stops FindAll after this many matches, 0 means no limit
	Limit int
}

// Option is a function that configures a Searcher
type Option func(*Searcher)

func WithChunkSize(size uint) Option {
	return func(s *Searcher) {
		s.ChunkSize = size
	}
}

func WithLimit(n int) Option {
	return func(s *Searcher) {
		s.Limit = n
	}
}

func newSearcher(options []Option) *Searcher {
	s := &Searcher{
		ChunkSize: 64 * 1024, // Default
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Find returns the address of the first match of aob in [base, base+size).
// A window without a match yields found == false and a nil error; err is only
// set when the memory could not be read.
func Find(proc process.Process, base process.ProcessMemoryAddress, size process.ProcessMemorySize, aob process.AOB, options ...Option) (addr process.ProcessMemoryAddress, found bool, err error) {
	opts := make([]Option, 0, len(options)+1)
	opts = append(opts, options...)
	opts = append(opts, WithLimit(1))
	matches, err := FindAll(proc, base, size, aob, opts...)
	if err != nil || len(matches) == 0 {
		return 0, false, err
	}
	return matches[0], true, nil
}

// FindAll returns every match in [base, base+size) in ascending order
func FindAll(proc process.Process, base process.ProcessMemoryAddress, size process.ProcessMemorySize, aob process.AOB, options ...Option) ([]process.ProcessMemoryAddress, error) {
	if !aob.IsValid() {
		return nil, fmt.Errorf("%w: mask length (%d) doesn't match pattern length (%d)",
			process.ErrInvalidPattern, len(aob.Mask), len(aob.Pattern))
	}

	s := newSearcher(options)

	if uint(size) < uint(aob.Len()) {
		return nil, nil
	}

	// Fast path: one read of the whole window
	data, err := proc.ReadMemory(base, size)
	if err == nil {
		return toAddresses(base, findPatternMatches(data, aob, s.Limit)), nil
	}

	return s.findChunked(proc, base, size, aob, err)
}

// findChunked scans the readable parts of the window in overlapping chunks so
// a match straddling two chunks is still seen. The memory map decides what is
// readable; without one the whole window is chunked blindly. Unreadable chunks
// are skipped, and if nothing at all could be read bulkErr is returned.
func (s *Searcher) findChunked(proc process.Process, base process.ProcessMemoryAddress, size process.ProcessMemorySize, aob process.AOB, bulkErr error) ([]process.ProcessMemoryAddress, error) {
	var results []process.ProcessMemoryAddress
	readAny := false

	for _, seg := range readableSegments(proc, uint64(base), uint64(base)+uint64(size)) {
		found, read := s.scanSegment(proc, seg, aob, len(results))
		readAny = readAny || read
		results = append(results, found...)
		if s.Limit > 0 && len(results) >= s.Limit {
			return results, nil
		}
	}

	if !readAny {
		return nil, fmt.Errorf("cannot read %s at %s: %w", size.ToString(), base.ToString(), bulkErr)
	}

	return results, nil
}

type segment struct {
	start, end uint64
}

// readableSegments intersects [start, end) with the readable regions of the
// process, joining regions that touch
func readableSegments(proc process.Process, start, end uint64) []segment {
	mm, err := proc.GetMemoryMap()
	if err != nil || len(mm) == 0 {
		return []segment{{start, end}}
	}
	memory_map.SortByAddress(mm)

	var segments []segment
	for _, region := range mm {
		if !region.IsReadable() || region.End() <= start || region.Address >= end {
			continue
		}
		lo, hi := region.Address, region.End()
		if lo < start {
			lo = start
		}
		if hi > end {
			hi = end
		}
		if n := len(segments); n > 0 && segments[n-1].end == lo {
			segments[n-1].end = hi
			continue
		}
		segments = append(segments, segment{lo, hi})
	}
	return segments
}

// scanSegment returns the matches in seg and whether any chunk could be read.
// have is the number of matches already collected for the limit.
func (s *Searcher) scanSegment(proc process.Process, seg segment, aob process.AOB, have int) ([]process.ProcessMemoryAddress, bool) {
	patLen := uint64(aob.Len())
	chunk := uint64(s.ChunkSize)
	if chunk < 2*patLen {
		chunk = 2 * patLen
	}

	var results []process.ProcessMemoryAddress
	readAny := false

	for start := seg.start; start+patLen <= seg.end; {
		n := chunk
		if start+n > seg.end {
			n = seg.end - start
		}

		addr := process.ProcessMemoryAddress(start)
		data, err := proc.ReadMemory(addr, process.ProcessMemorySize(n))
		if err == nil {
			readAny = true
			limit := 0
			if s.Limit > 0 {
				limit = s.Limit - have - len(results)
			}
			results = append(results, toAddresses(addr, findPatternMatches(data, aob, limit))...)
			if s.Limit > 0 && have+len(results) >= s.Limit {
				break
			}
		}

		if start+n >= seg.end {
			break
		}
		// the next chunk starts at the first offset not fully checked here
		start += n - (patLen - 1)
	}

	return results, readAny
}

// findPatternMatches finds occurrences of the pattern in the data, left to
// right, stopping after limit matches when limit > 0
func findPatternMatches(data []byte, aob process.AOB, limit int) []uint {
	if len(data) < aob.Len() {
		return nil
	}

	var matches []uint

	// Scan through the data byte by byte
	for i := 0; i <= len(data)-aob.Len(); i++ {
		if !aob.Matches(data[i:]) {
			continue
		}
		matches = append(matches, uint(i))
		if limit > 0 && len(matches) >= limit {
			break
		}
	}

	return matches
}

func toAddresses(base process.ProcessMemoryAddress, offsets []uint) []process.ProcessMemoryAddress {
	if len(offsets) == 0 {
		return nil
	}
	out := make([]process.ProcessMemoryAddress, len(offsets))
	for i, off := range offsets {
		out[i] = base + process.ProcessMemoryAddress(off)
	}
	return out
}
