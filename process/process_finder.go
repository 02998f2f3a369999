package process

import "context"

// Locator finds the process to attach to. A Locator answers once; polling is
// left to the caller. found is false with a nil error when nothing matches yet.
type Locator interface {
	Locate(ctx context.Context) (pid ProcessID, found bool, err error)
}

// LocatorFunc adapts a function to the Locator interface
type LocatorFunc func(ctx context.Context) (ProcessID, bool, error)

func (f LocatorFunc) Locate(ctx context.Context) (ProcessID, bool, error) {
	return f(ctx)
}

// FirstOf returns a Locator that asks each locator in order and returns the
// first hit. Errors from one locator do not stop the others.
func FirstOf(locators ...Locator) Locator {
	return LocatorFunc(func(ctx context.Context) (ProcessID, bool, error) {
		var firstErr error
		for _, l := range locators {
			pid, found, err := l.Locate(ctx)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if found {
				return pid, true, nil
			}
		}
		return 0, false, firstErr
	})
}
