package sandbox

import (
	"sync"

	"github.com/dop251/goja"
)

// Session is the component registry scripts render into. Each runtime owns
// exactly one; descriptors are kept as live engine values and serialized
// only when extracted.
type Session struct {
	mu         sync.Mutex
	ids        []string
	components map[string]goja.Value
}

// NewSession creates an empty registry
func NewSession() *Session {
	return &Session{components: make(map[string]goja.Value)}
}

// Render stores or replaces a component descriptor. Replacing keeps the
// original position.
func (s *Session) Render(id string, descriptor goja.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.components[id]; !ok {
		s.ids = append(s.ids, id)
	}
	s.components[id] = descriptor
}

// Remove drops a component and reports whether it existed
func (s *Session) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.components[id]; !ok {
		return false
	}
	delete(s.components, id)
	for i, existing := range s.ids {
		if existing == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
	return true
}

// Clear drops every component
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = nil
	s.components = make(map[string]goja.Value)
}

// IDs returns component IDs in render order
func (s *Session) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

// Len returns the number of components
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// toObject builds a fresh engine object mapping IDs to descriptors
func (s *Session) toObject(vm *goja.Runtime) *goja.Object {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj := vm.NewObject()
	for _, id := range s.ids {
		_ = obj.Set(id, s.components[id])
	}
	return obj
}
