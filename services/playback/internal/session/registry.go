package session

import "sync"

// Registry hands out one Controller per user, created on demand. Controllers
// are single-writer-per-key: all mutation goes through the controller's own
// lock.
type Registry struct {
	mu          sync.Mutex
	controllers map[string]*Controller
	newCtrl     func(userID string) *Controller
}

func NewRegistry(newCtrl func(userID string) *Controller) *Registry {
	return &Registry{
		controllers: make(map[string]*Controller),
		newCtrl:     newCtrl,
	}
}

// Get returns the user's controller, creating it if absent.
func (r *Registry) Get(userID string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.controllers[userID]; ok {
		return c
	}
	c := r.newCtrl(userID)
	r.controllers[userID] = c
	return c
}

// Remove closes and forgets the user's controller (logout).
func (r *Registry) Remove(userID string) {
	r.mu.Lock()
	c := r.controllers[userID]
	delete(r.controllers, userID)
	r.mu.Unlock()
	if c != nil {
		c.Close()
	}
}
