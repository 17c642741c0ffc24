package app

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/quasar/mcfleet/internal/core"
	"github.com/quasar/mcfleet/internal/relay"
	"github.com/quasar/mcfleet/internal/store"
)

// InstanceInfo pairs a persisted connection configuration with the live
// running state of its instance.
type InstanceInfo struct {
	ID      uuid.UUID    `json:"id"`
	Running bool         `json:"running"`
	Version core.Version `json:"version"`
	Server  store.Server `json:"server"`
}

// locateInstance resolves an instance under the registry lock and returns
// the live pointer. Instance operations themselves run outside the lock;
// the instance's own mutex makes them safe.
func (a *App) locateInstance(accountID, instanceID uuid.UUID) (*core.Instance, error) {
	a.registryMu.Lock()
	defer a.registryMu.Unlock()
	controller, ok := a.controllers.Get(accountID)
	if !ok {
		return nil, fmt.Errorf("no client controller found for id %s", accountID)
	}
	instance, ok := controller.Instance(instanceID)
	if !ok {
		return nil, fmt.Errorf("no client instance found for key %s", instanceID)
	}
	return instance, nil
}

// CreateConnection allocates a new stopped instance for the account against
// a registered server, persists the connection record, and returns the
// instance id.
func (a *App) CreateConnection(accountID uuid.UUID, serverName string, version core.Version) (uuid.UUID, error) {
	a.serversMu.Lock()
	server, ok := a.servers.Get(serverName)
	a.serversMu.Unlock()
	if !ok {
		return uuid.Nil, fmt.Errorf("server %q not found", serverName)
	}
	if version == "" {
		version = core.DefaultVersion()
	}

	a.registryMu.Lock()
	controller, ok := a.controllers.Get(accountID)
	if !ok {
		a.registryMu.Unlock()
		return uuid.Nil, fmt.Errorf("controller for client %s not found", accountID)
	}
	instanceID := controller.CreateInstance(server, version)
	a.registryMu.Unlock()

	a.clientsMu.Lock()
	client, ok := a.clients.GetByID(accountID)
	if ok {
		client.Connections[instanceID] = store.Connection{
			ID:      instanceID,
			Version: version.String(),
			Server:  server,
		}
	}
	var err error
	if ok {
		err = a.clients.Save(a.cfg.DataDir)
	}
	a.clientsMu.Unlock()
	if !ok {
		return uuid.Nil, fmt.Errorf("no client registered with id %s", accountID)
	}
	if err != nil {
		return uuid.Nil, err
	}
	return instanceID, nil
}

// RemoveConnection tears down an instance and deletes its persisted record.
func (a *App) RemoveConnection(accountID, instanceID uuid.UUID) error {
	a.registryMu.Lock()
	controller, ok := a.controllers.Get(accountID)
	if ok {
		controller.RemoveInstance(instanceID)
	}
	a.registryMu.Unlock()
	if !ok {
		return fmt.Errorf("controller for client %s not found", accountID)
	}

	a.clientsMu.Lock()
	defer a.clientsMu.Unlock()
	client, ok := a.clients.GetByID(accountID)
	if !ok {
		return fmt.Errorf("no client registered with id %s", accountID)
	}
	delete(client.Connections, instanceID)
	return a.clients.Save(a.cfg.DataDir)
}

// ConnectInstance starts the instance's background connection task.
func (a *App) ConnectInstance(accountID, instanceID uuid.UUID) error {
	instance, err := a.locateInstance(accountID, instanceID)
	if err != nil {
		return err
	}
	a.relay.Send(instanceID, relay.ChatPayload("Received connect command..."))
	instance.Connect()
	return nil
}

// DisconnectInstance requests a graceful stop, observed on the next tick.
func (a *App) DisconnectInstance(accountID, instanceID uuid.UUID) error {
	a.relay.Send(instanceID, relay.ChatPayload("Received disconnect command..."))
	instance, err := a.locateInstance(accountID, instanceID)
	if err != nil {
		return err
	}
	return instance.DisconnectNotify()
}

// SoftKillInstance waits out the grace period, then aborts. The wait
// suspends, so it runs with no store lock held.
func (a *App) SoftKillInstance(accountID, instanceID uuid.UUID) error {
	a.relay.Send(instanceID, relay.ChatPayload("Received soft-kill command..."))
	instance, err := a.locateInstance(accountID, instanceID)
	if err != nil {
		return err
	}
	return instance.SoftKill()
}

// KillInstance aborts the instance's task immediately.
func (a *App) KillInstance(accountID, instanceID uuid.UUID) error {
	a.relay.Send(instanceID, relay.ChatPayload("Received hard-kill command..."))
	instance, err := a.locateInstance(accountID, instanceID)
	if err != nil {
		return err
	}
	return instance.Kill()
}

// SendChat queues a chat message on a running instance. Rejected while the
// instance is offline.
func (a *App) SendChat(accountID, instanceID uuid.UUID, message string) error {
	instance, err := a.locateInstance(accountID, instanceID)
	if err != nil {
		return err
	}
	if err := instance.SendMessage(message); err != nil {
		return fmt.Errorf("cannot send chat while the instance is offline: %w", err)
	}
	return nil
}

// Instances lists the account's instances with their live running state.
func (a *App) Instances(accountID uuid.UUID) ([]InstanceInfo, error) {
	a.registryMu.Lock()
	defer a.registryMu.Unlock()
	controller, ok := a.controllers.Get(accountID)
	if !ok {
		return nil, fmt.Errorf("controller for client %s not found", accountID)
	}
	out := make([]InstanceInfo, 0, len(controller.Instances()))
	for id, instance := range controller.Instances() {
		out = append(out, InstanceInfo{
			ID:      id,
			Running: instance.Running(),
			Version: instance.Version,
			Server:  instance.Target,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

// AvailableVersions lists the supported protocol versions in release order.
func (a *App) AvailableVersions() []core.Version {
	return core.Versions()
}
