// Package store persists the client and server registries as JSON files in
// the data dir. Files are rewritten in full on every mutation; callers
// serialize access through the app's store locks.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const serversFile = "servers.json"

// Server describes one connection target.
type Server struct {
	Name string `json:"name"`
	IP   string `json:"ip"`
	Port uint16 `json:"port"`
}

func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.IP, s.Port)
}

// ServerList is the persisted name -> server registry.
type ServerList struct {
	Servers map[string]Server

	logger *zap.Logger
}

func NewServerList(logger *zap.Logger) *ServerList {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServerList{
		Servers: make(map[string]Server),
		logger:  logger,
	}
}

// LoadServers reads servers.json from the data dir. Missing file is created
// empty; malformed content degrades to an empty registry.
func LoadServers(dir string, logger *zap.Logger) *ServerList {
	l := NewServerList(logger)
	path := filepath.Join(dir, serversFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
			l.logger.Warn("failed to initialise server list file", zap.String("path", path), zap.Error(err))
		}
		return l
	}
	data, err := os.ReadFile(path)
	if err != nil {
		l.logger.Error("failed to load server list", zap.String("path", path), zap.Error(err))
		return l
	}
	if err := json.Unmarshal(data, &l.Servers); err != nil {
		l.logger.Error("failed to parse server list, starting empty", zap.String("path", path), zap.Error(err))
		l.Servers = make(map[string]Server)
	}
	return l
}

// Save rewrites servers.json with the full current contents.
func (l *ServerList) Save(dir string) error {
	data, err := json.MarshalIndent(l.Servers, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, serversFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		l.logger.Warn("failed to write server list", zap.String("path", path), zap.Error(err))
		return err
	}
	return nil
}

// Create registers a new named server target.
func (l *ServerList) Create(name, ip string, port uint16) error {
	if _, ok := l.Servers[name]; ok {
		return fmt.Errorf("server %s already exists", name)
	}
	l.logger.Info("creating server", zap.String("name", name), zap.String("addr", fmt.Sprintf("%s:%d", ip, port)))
	l.Servers[name] = Server{Name: name, IP: ip, Port: port}
	return nil
}

// Delete removes a named server target.
func (l *ServerList) Delete(name string) error {
	if _, ok := l.Servers[name]; !ok {
		return fmt.Errorf("server %s does not exist", name)
	}
	l.logger.Info("deleting server", zap.String("name", name))
	delete(l.Servers, name)
	return nil
}

// Get returns the server registered under name.
func (l *ServerList) Get(name string) (Server, bool) {
	s, ok := l.Servers[name]
	return s, ok
}
