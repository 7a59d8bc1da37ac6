// Package identity provides the stable suggestion identity registry.
// A stable ID is derived from (prompt, prediction) content so the same
// suggestion correlates across rendering and telemetry, and the binding
// is invalidated on acceptance so an accepted suggestion's identity is
// never recycled for a different suggestion body.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/google/uuid"
)

// Registry maps suggestion content to stable IDs.
type Registry struct {
	mu  sync.Mutex
	ids map[string]string // content key -> stable ID

	// retired holds IDs invalidated by DeleteIfValueMatches. They must
	// never be reissued within this process.
	retired map[string]bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		ids:     make(map[string]string),
		retired: make(map[string]bool),
	}
}

// GetOrCreate returns the stable ID for the given (prompt, prediction)
// content, minting a new one on first sight. The same content always
// maps to the same ID until the binding is deleted.
func (r *Registry) GetOrCreate(promptKey, prediction string) string {
	key := contentKey(promptKey, prediction)

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.ids[key]; ok {
		return id
	}
	id := uuid.New().String()
	r.ids[key] = id
	return id
}

// DeleteIfValueMatches removes the content binding whose current stable
// ID equals id and retires the ID. Content seen again afterwards mints
// a fresh ID. Unknown IDs are ignored.
func (r *Registry) DeleteIfValueMatches(id string) {
	if id == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, value := range r.ids {
		if value == id {
			delete(r.ids, key)
			r.retired[id] = true
			return
		}
	}
}

// Retired reports whether id was invalidated by DeleteIfValueMatches.
func (r *Registry) Retired(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retired[id]
}

// Len returns the number of live content bindings.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func contentKey(promptKey, prediction string) string {
	h := sha256.New()
	h.Write([]byte(promptKey))
	h.Write([]byte{0})
	h.Write([]byte(prediction))
	return hex.EncodeToString(h.Sum(nil))
}
