package app

import (
	"sort"

	"github.com/quasar/mcfleet/internal/store"
)

// AddServer registers a named connection target.
func (a *App) AddServer(name, ip string, port uint16) error {
	a.serversMu.Lock()
	defer a.serversMu.Unlock()
	if err := a.servers.Create(name, ip, port); err != nil {
		return err
	}
	return a.servers.Save(a.cfg.DataDir)
}

// DeleteServer removes a named connection target.
func (a *App) DeleteServer(name string) error {
	a.serversMu.Lock()
	defer a.serversMu.Unlock()
	if err := a.servers.Delete(name); err != nil {
		return err
	}
	return a.servers.Save(a.cfg.DataDir)
}

// Servers lists all registered targets, sorted by name.
func (a *App) Servers() []store.Server {
	a.serversMu.Lock()
	defer a.serversMu.Unlock()
	out := make([]store.Server, 0, len(a.servers.Servers))
	for _, s := range a.servers.Servers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
