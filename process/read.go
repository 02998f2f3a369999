package process

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Read reads a single fixed-size little-endian value of type T at addr.
// T must be a type accepted by encoding/binary (integers, arrays, structs of those).
func Read[T any](proc Process, addr ProcessMemoryAddress) (T, error) {
	var t T
	size := binary.Size(t)
	if size < 0 {
		return t, fmt.Errorf("type %T has no fixed size", t)
	}
	if size == 0 {
		return t, nil
	}

	data, err := proc.ReadMemory(addr, ProcessMemorySize(size))
	if err != nil {
		return t, err
	}

	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &t); err != nil {
		return t, fmt.Errorf("decode %T at %s: %w", t, addr.ToString(), err)
	}
	return t, nil
}
