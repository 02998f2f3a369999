package process

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// ProcessMemoryAddress represents a memory address within a process
type ProcessMemoryAddress uint64

func (pma ProcessMemoryAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(pma))
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint

func (pms ProcessMemorySize) ToString() string {
	return fmt.Sprintf("%d bytes", uint(pms))
}

// AOB (Array of Bytes) represents a pattern to search for in memory
type AOB struct {
	Pattern []byte // The byte pattern to search for
	Mask    []byte // Mask where 0xFF means exact match and 0x00 means wildcard
}

// IsValid checks if the AOB pattern is valid
func (aob AOB) IsValid() bool {
	return len(aob.Pattern) > 0 && len(aob.Pattern) == len(aob.Mask)
}

// Len returns the number of elements in the pattern
func (aob AOB) Len() int {
	return len(aob.Pattern)
}

// IsWildcard reports whether element i matches any byte
func (aob AOB) IsWildcard(i int) bool {
	return aob.Mask[i] == 0
}

// Matches reports whether data starts with the pattern
func (aob AOB) Matches(data []byte) bool {
	if len(data) < len(aob.Pattern) {
		return false
	}
	for j := 0; j < len(aob.Pattern); j++ {
		if data[j]&aob.Mask[j] != aob.Pattern[j]&aob.Mask[j] {
			return false
		}
	}
	return true
}

func (aob AOB) String() string {
	var sb strings.Builder
	for i, b := range aob.Pattern {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if aob.IsWildcard(i) {
			sb.WriteString("??")
		} else {
			fmt.Fprintf(&sb, "%02X", b)
		}
	}
	return sb.String()
}

// NewAOB builds an AOB from a pattern and a mask. A nil mask means every byte is literal.
func NewAOB(pattern, mask []byte) (AOB, error) {
	if len(pattern) == 0 {
		return AOB{}, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}
	if mask == nil {
		mask = bytes.Repeat([]byte{0xFF}, len(pattern))
	}
	if len(pattern) != len(mask) {
		return AOB{}, fmt.Errorf("%w: mask length (%d) doesn't match pattern length (%d)",
			ErrInvalidPattern, len(mask), len(pattern))
	}
	p := make([]byte, len(pattern))
	m := make([]byte, len(mask))
	copy(p, pattern)
	copy(m, mask)
	return AOB{Pattern: p, Mask: m}, nil
}

// MustAOB is NewAOB for patterns known at compile time
func MustAOB(pattern, mask []byte) AOB {
	aob, err := NewAOB(pattern, mask)
	if err != nil {
		panic(err)
	}
	return aob
}

// ParseAOB parses a pattern such as "09 83 ?? ?? 00 00 ?? C7".
// Elements are separated by spaces or commas; "?" and "??" are wildcards.
func ParseAOB(s string) (AOB, error) {
	parts := splitBytes(s)
	if len(parts) == 0 {
		return AOB{}, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}

	pattern := make([]byte, len(parts))
	mask := make([]byte, len(parts))
	for i, part := range parts {
		if part == "??" || part == "?" {
			continue
		}
		val, err := parseHexByte(part)
		if err != nil {
			return AOB{}, err
		}
		pattern[i] = val
		mask[i] = 0xFF
	}

	return AOB{Pattern: pattern, Mask: mask}, nil
}

// ParseBytes parses literal hex bytes such as "90 90 FF C7"
func ParseBytes(s string) ([]byte, error) {
	parts := splitBytes(s)
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: no bytes", ErrInvalidPattern)
	}
	out := make([]byte, len(parts))
	for i, part := range parts {
		val, err := parseHexByte(part)
		if err != nil {
			return nil, err
		}
		out[i] = val
	}
	return out, nil
}

// FormatBytes is the inverse of ParseBytes
func FormatBytes(data []byte) string {
	return AOB{Pattern: data, Mask: bytes.Repeat([]byte{0xFF}, len(data))}.String()
}

func splitBytes(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

func parseHexByte(part string) (byte, error) {
	part = strings.TrimPrefix(strings.TrimPrefix(part, "0x"), "0X")
	val, err := strconv.ParseUint(part, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid hex byte %q", ErrInvalidPattern, part)
	}
	return byte(val), nil
}
