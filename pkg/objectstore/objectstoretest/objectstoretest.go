// Package objectstoretest provides an in-memory ObjectStore fake for
// tests, standing in for a real S3 bucket.
package objectstoretest

import (
	"context"
	"fmt"
	"sync"

	"github.com/prismlabs/prism/pkg/objectstore"
)

// Fake is a goroutine-safe, in-memory implementation of
// objectstore.ObjectStore.
type Fake struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// New returns an empty Fake ready for use.
func New() *Fake {
	return &Fake{objects: make(map[string][]byte)}
}

func (f *Fake) UploadBytes(_ context.Context, key string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.objects[key] = cp
	return nil
}

func (f *Fake) DownloadBytes(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("objectstoretest: key %q not found", key)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (f *Fake) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *Fake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

var _ objectstore.ObjectStore = (*Fake)(nil)
