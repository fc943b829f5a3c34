package cartcache

import (
	"fmt"
)

// DecodeError reports a stored payload the codec could not decode. Raw
// carries the untouched bytes so lenient callers can fall back to their own
// interpretation; strict callers treat the entry as corrupt.
type DecodeError struct {
	Key string
	Raw []byte
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q (%d bytes): %v", e.Key, len(e.Raw), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// WriteThroughError distinguishes which half of a write-through failed:
// the system-of-record persist, or the cache update after a successful
// persist. In both cases any cached entry for the key has been invalidated.
type WriteThroughError struct {
	Key        string
	PersistErr error
	CacheErr   error
}

func (e *WriteThroughError) Error() string {
	switch {
	case e.PersistErr != nil && e.CacheErr != nil:
		return fmt.Sprintf("write-through %q: persist failed: %v (cache invalidate also failed: %v)",
			e.Key, e.PersistErr, e.CacheErr)
	case e.PersistErr != nil:
		return fmt.Sprintf("write-through %q: persist failed: %v", e.Key, e.PersistErr)
	case e.CacheErr != nil:
		return fmt.Sprintf("write-through %q: persisted but cache update failed: %v", e.Key, e.CacheErr)
	default:
		return fmt.Sprintf("write-through %q: unknown error", e.Key)
	}
}

func (e *WriteThroughError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.PersistErr != nil {
		errs = append(errs, e.PersistErr)
	}
	if e.CacheErr != nil {
		errs = append(errs, e.CacheErr)
	}
	return errs
}
