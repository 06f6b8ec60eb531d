package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/beacon-sdk/beacon-go/internal/debuglog"
)

// Fallback is a Store that prefers Primary and uses Secondary for a key once
// a primary write of that key failed.
//
// A degraded key is read from and written to Secondary until a primary write
// succeeds again. That write carries the current value, so the primary is
// back in sync and the secondary copy is dropped. Reads of healthy keys never
// fall through to Secondary: a primary read error is returned as is.
type Fallback struct {
	Primary   Store
	Secondary Store

	mu       sync.Mutex
	degraded map[string]bool
}

// NewFallback returns a Store that writes through primary and falls back to
// secondary. A nil secondary defaults to a Memory store.
func NewFallback(primary, secondary Store) *Fallback {
	if secondary == nil {
		secondary = NewMemory()
	}
	return &Fallback{Primary: primary, Secondary: secondary}
}

// Degraded reports whether key is currently served by the secondary store.
func (f *Fallback) Degraded(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Primary == nil || f.degraded[key]
}

func (f *Fallback) Read(key string) ([]byte, error) {
	if f.Degraded(key) {
		return f.Secondary.Read(key)
	}
	return f.Primary.Read(key)
}

func (f *Fallback) Write(key string, value []byte) error {
	if f.Primary == nil {
		return f.Secondary.Write(key, value)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.Primary.Write(key, value); err != nil {
		debuglog.Printf("primary store write %q failed, using fallback: %v", key, err)
		if err := f.Secondary.Write(key, value); err != nil {
			return fmt.Errorf("fallback store write %q: %w", key, err)
		}
		if f.degraded == nil {
			f.degraded = make(map[string]bool)
		}
		f.degraded[key] = true
		return nil
	}

	if f.degraded[key] {
		debuglog.Printf("primary store recovered for %q", key)
		delete(f.degraded, key)
		if err := f.Secondary.Delete(key); err != nil {
			debuglog.Printf("dropping fallback copy of %q: %v", key, err)
		}
	}
	return nil
}

func (f *Fallback) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	if f.Primary != nil {
		if err := f.Primary.Delete(key); err != nil {
			errs = append(errs, err)
		}
	}
	if err := f.Secondary.Delete(key); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		delete(f.degraded, key)
	}
	return errors.Join(errs...)
}
