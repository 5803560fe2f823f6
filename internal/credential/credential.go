package credential

import (
	"bytes"
	"context"
	"sync"
)

// Credential is the opaque serialized token cache together with a flag
// recording whether it changed since it was last persisted.
type Credential struct {
	mu    sync.Mutex
	data  []byte
	dirty bool
}

// New returns a clean credential holding data.
func New(data []byte) *Credential {
	return &Credential{data: bytes.Clone(data)}
}

// Bytes returns a copy of the serialized form.
func (c *Credential) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Clone(c.data)
}

// Empty reports whether nothing has been cached yet.
func (c *Credential) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data) == 0
}

// Replace swaps in a new serialized form. The credential becomes dirty
// only when the content actually changed.
func (c *Credential) Replace(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if bytes.Equal(c.data, data) {
		return
	}
	c.data = bytes.Clone(data)
	c.dirty = true
}

// MarkDirty forces the next Save to persist the credential.
func (c *Credential) MarkDirty() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = true
}

// Dirty reports whether the credential changed since the last successful
// save.
func (c *Credential) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// snapshot returns the data to persist and whether a save is needed.
func (c *Credential) snapshot() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Clone(c.data), c.dirty
}

// markSaved clears the dirty flag if the content is still the one that
// was persisted.
func (c *Credential) markSaved(saved []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if bytes.Equal(c.data, saved) {
		c.dirty = false
	}
}

// Store persists and restores a Credential across process restarts.
type Store interface {
	// Load returns the persisted credential, or an empty one when nothing
	// has been persisted yet. On an unexpected read error it returns an
	// empty credential together with the error.
	Load(ctx context.Context) (*Credential, error)

	// Save persists the credential if it is dirty and clears the flag on
	// success. Failures are *model.PersistenceError values.
	Save(ctx context.Context, c *Credential) error
}
