package core

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry is the process-wide account-id -> controller map. Like the other
// logical stores it performs no locking of its own; the owning app context
// serializes access through one coarse lock.
type Registry struct {
	controllers map[uuid.UUID]*Controller
	logger      *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		controllers: make(map[uuid.UUID]*Controller),
		logger:      logger,
	}
}

// Add registers a controller under its account id, replacing any previous
// controller for that id.
func (r *Registry) Add(c *Controller) {
	r.logger.Info("registered controller",
		zap.String("id", c.ID.String()),
		zap.String("username", c.Account.Username))
	r.controllers[c.ID] = c
}

// Get returns the controller for an account id.
func (r *Registry) Get(id uuid.UUID) (*Controller, bool) {
	c, ok := r.controllers[id]
	return c, ok
}

// Contains reports whether a controller exists for an account id.
func (r *Registry) Contains(id uuid.UUID) bool {
	_, ok := r.controllers[id]
	return ok
}

// Remove tears down and forgets the controller for an account id.
func (r *Registry) Remove(id uuid.UUID) {
	if c, ok := r.controllers[id]; ok {
		c.Close()
		delete(r.controllers, id)
	}
}

// Close tears down every registered controller.
func (r *Registry) Close() {
	for id, c := range r.controllers {
		c.Close()
		delete(r.controllers, id)
	}
}

// Len returns the number of registered controllers.
func (r *Registry) Len() int {
	return len(r.controllers)
}
