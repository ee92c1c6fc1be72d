package driver

import "context"

// Resettable is implemented by drivers that need to reinitialize internal
// state between leases, the Go equivalent of the original Python driver's
// optional reset() hook run on session start.
type Resettable interface {
	Driver
	Reset(ctx context.Context) error
}

// Closeable is implemented by drivers holding something that must be
// released when a lease ends (a file handle, a background goroutine, a
// hardware lock), the equivalent of the original's close() hook run on
// session teardown. Most drivers own nothing beyond their method table and
// don't implement this.
type Closeable interface {
	Driver
	Close() error
}

// ResetTree resets root's entire subtree children-first: every descendant
// finishes resetting before its parent starts, so a composite's Reset (if
// it implements one) can assume its children are already back in a known
// state.
func ResetTree(ctx context.Context, root Driver) error {
	for _, child := range root.Children() {
		if err := ResetTree(ctx, child); err != nil {
			return err
		}
	}
	if r, ok := root.(Resettable); ok {
		return r.Reset(ctx)
	}
	return nil
}

// CloseTree closes root's entire subtree children-first, the same cascade
// order as ResetTree. It keeps closing siblings after one fails so a single
// stuck driver doesn't leak the rest of the tree, returning the first error
// encountered.
func CloseTree(root Driver) error {
	var firstErr error
	for _, child := range root.Children() {
		if err := CloseTree(child); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c, ok := root.(Closeable); ok {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
