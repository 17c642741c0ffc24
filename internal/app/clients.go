package app

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/quasar/mcfleet/internal/store"
)

// ClientInfo is the read-only account summary handed to the command surface.
type ClientInfo struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	Authenticated bool      `json:"authenticated"`
	UUID          uuid.UUID `json:"uuid"`
	InstanceCount int       `json:"instanceCount"`
}

// Clients lists all registered accounts.
func (a *App) Clients() []ClientInfo {
	a.clientsMu.Lock()
	defer a.clientsMu.Unlock()
	out := make([]ClientInfo, 0, len(a.clients.Clients))
	for _, c := range a.clients.Clients {
		out = append(out, ClientInfo{
			ID:            c.ID,
			Username:      c.Username,
			Authenticated: c.Auth == store.AuthMicrosoft,
			UUID:          c.UUID,
			InstanceCount: len(c.Connections),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// Client returns the account summary for one account id.
func (a *App) Client(id uuid.UUID) (ClientInfo, bool) {
	a.clientsMu.Lock()
	defer a.clientsMu.Unlock()
	c, ok := a.clients.GetByID(id)
	if !ok {
		return ClientInfo{}, false
	}
	return ClientInfo{
		ID:            c.ID,
		Username:      c.Username,
		Authenticated: c.Auth == store.AuthMicrosoft,
		UUID:          c.UUID,
		InstanceCount: len(c.Connections),
	}, true
}

// RemoveClient unregisters an account by its in-game profile UUID and tears
// down its controller if one is live.
func (a *App) RemoveClient(profileUUID uuid.UUID) error {
	a.clientsMu.Lock()
	client, ok := a.clients.GetByUUID(profileUUID)
	var accountID uuid.UUID
	if ok {
		accountID = client.ID
	}
	var err error
	if ok {
		err = a.clients.Unregister(profileUUID)
		if err == nil {
			err = a.clients.Save(a.cfg.DataDir)
		}
	}
	a.clientsMu.Unlock()
	if !ok {
		return fmt.Errorf("client %s does not exist", profileUUID)
	}
	if err != nil {
		return err
	}

	a.registryMu.Lock()
	a.controllers.Remove(accountID)
	a.registryMu.Unlock()
	return nil
}
