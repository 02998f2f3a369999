package process

// Opener requests read/write access to a process
type Opener interface {
	// Open attaches to pid. Failures wrap ErrAttach.
	Open(pid ProcessID) (Process, error)
}

// OpenerFunc adapts a function to the Opener interface
type OpenerFunc func(pid ProcessID) (Process, error)

func (f OpenerFunc) Open(pid ProcessID) (Process, error) {
	return f(pid)
}
