// Package registry tracks the live process of every server ID together with
// the last startup diagnostic recorded for it.
package registry

import (
	"sort"
	"sync"
)

type Registry struct {
	handles    map[string]*Handle
	lastErrors map[string]string
	mutex      sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		handles:    make(map[string]*Handle),
		lastErrors: make(map[string]string),
	}
}

// Register associates handle with serverID. It returns false and changes
// nothing when the ID already has a handle.
func (r *Registry) Register(serverID string, handle *Handle) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.handles[serverID]; exists {
		return false
	}
	r.handles[serverID] = handle
	return true
}

func (r *Registry) Lookup(serverID string) (*Handle, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	handle, ok := r.handles[serverID]
	return handle, ok
}

func (r *Registry) Remove(serverID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.handles, serverID)
}

// RemoveIf drops the entry for serverID only while it still holds handle, so
// an exit observer of an old process can never evict a newer one.
func (r *Registry) RemoveIf(serverID string, handle *Handle) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if current, ok := r.handles[serverID]; ok && current == handle {
		delete(r.handles, serverID)
		return true
	}
	return false
}

// IDs returns a sorted snapshot of the registered server IDs
func (r *Registry) IDs() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.handles)
}

func (r *Registry) SetLastError(serverID string, message string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.lastErrors[serverID] = message
}

// SetLastErrorIfEmpty records message unless a diagnostic already exists.
// It reports whether message was stored.
func (r *Registry) SetLastErrorIfEmpty(serverID string, message string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.lastErrors[serverID] != "" {
		return false
	}
	r.lastErrors[serverID] = message
	return true
}

func (r *Registry) LastError(serverID string) string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.lastErrors[serverID]
}

func (r *Registry) ClearLastError(serverID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.lastErrors, serverID)
}
