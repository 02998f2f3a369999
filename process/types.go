package process

import "fmt"

// ProcessID represents a unique identifier for a process
type ProcessID int

// Module identifies one loaded image inside a process. It is only meaningful
// while the Process it was enumerated from is open.
type Module struct {
	Name string               // Base file name, e.g. "client.dll"
	Path string               // Full path as reported by the OS, may be empty
	Base ProcessMemoryAddress // Load address of the image
	Size ProcessMemorySize    // Size as reported by the enumeration, 0 if unknown
}

func (m Module) String() string {
	return fmt.Sprintf("%s@%s (%s)", m.Name, m.Base.ToString(), m.Size.ToString())
}

// End returns the first address past the module
func (m Module) End() ProcessMemoryAddress {
	return m.Base + ProcessMemoryAddress(m.Size)
}
