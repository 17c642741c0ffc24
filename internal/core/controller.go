package core

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quasar/mcfleet/internal/store"
)

// Controller is the set of connection instances belonging to one account
// identity. Built once per account per process run, from either a fresh
// authentication or a cached credential.
type Controller struct {
	// ID is the account id, the registry key. Distinct from the in-game UUID.
	ID      uuid.UUID
	Account Account

	instances map[uuid.UUID]*Instance

	connector Connector
	notify    Notifier
	logger    *zap.Logger
}

func NewController(id uuid.UUID, account Account,
	connector Connector, notify Notifier, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		ID:        id,
		Account:   account,
		instances: make(map[uuid.UUID]*Instance),
		connector: connector,
		notify:    notify,
		logger:    logger,
	}
}

// CreateInstance allocates a new, stopped instance targeting the given
// server and returns its id.
func (c *Controller) CreateInstance(target store.Server, version Version) uuid.UUID {
	id := uuid.New()
	c.instances[id] = NewInstance(id, c.Account, target, version, c.connector, c.notify, c.logger)
	return id
}

// RestoreInstance rebuilds a stopped instance under its persisted id, used
// when reconstructing a controller from the client record.
func (c *Controller) RestoreInstance(id uuid.UUID, target store.Server, version Version) {
	c.instances[id] = NewInstance(id, c.Account, target, version, c.connector, c.notify, c.logger)
}

// Instance returns the instance with the given id.
func (c *Controller) Instance(id uuid.UUID) (*Instance, bool) {
	inst, ok := c.instances[id]
	return inst, ok
}

// Instances returns the live instance map. Callers must hold the registry's
// store lock while iterating.
func (c *Controller) Instances() map[uuid.UUID]*Instance {
	return c.instances
}

// RemoveInstance tears the instance down and forgets it.
func (c *Controller) RemoveInstance(id uuid.UUID) {
	if inst, ok := c.instances[id]; ok {
		inst.Close()
		delete(c.instances, id)
	}
}

// Close tears down every instance.
func (c *Controller) Close() {
	for id, inst := range c.instances {
		inst.Close()
		delete(c.instances, id)
	}
}
