package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const clientsFile = "clients.json"

// AuthKind says how a client authenticates.
type AuthKind string

const (
	AuthOffline   AuthKind = "offline"
	AuthMicrosoft AuthKind = "microsoft"
)

// Connection is one persisted instance configuration for a client: which
// server it targets and with which protocol version.
type Connection struct {
	ID      uuid.UUID `json:"id"`
	Version string    `json:"version"`
	Server  Server    `json:"server"`
}

// Client is one persisted account record. ID is the randomly generated
// account id used as the registry key; UUID is the in-game profile UUID.
type Client struct {
	ID          uuid.UUID                `json:"id"`
	Username    string                   `json:"username"`
	UUID        uuid.UUID                `json:"uuid"`
	Auth        AuthKind                 `json:"auth"`
	Connections map[uuid.UUID]Connection `json:"connections"`
}

// ClientList is the persisted account-id -> client registry.
type ClientList struct {
	Clients map[uuid.UUID]*Client

	logger *zap.Logger
}

func NewClientList(logger *zap.Logger) *ClientList {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientList{
		Clients: make(map[uuid.UUID]*Client),
		logger:  logger,
	}
}

// LoadClients reads clients.json from the data dir. Missing file is created
// empty; malformed content degrades to an empty registry.
func LoadClients(dir string, logger *zap.Logger) *ClientList {
	l := NewClientList(logger)
	path := filepath.Join(dir, clientsFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
			l.logger.Warn("failed to initialise client list file", zap.String("path", path), zap.Error(err))
		}
		return l
	}
	data, err := os.ReadFile(path)
	if err != nil {
		l.logger.Error("failed to load client list", zap.String("path", path), zap.Error(err))
		return l
	}
	if err := json.Unmarshal(data, &l.Clients); err != nil {
		l.logger.Error("failed to parse client list, starting empty", zap.String("path", path), zap.Error(err))
		l.Clients = make(map[uuid.UUID]*Client)
	}
	return l
}

// Save rewrites clients.json with the full current contents.
func (l *ClientList) Save(dir string) error {
	data, err := json.MarshalIndent(l.Clients, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, clientsFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		l.logger.Warn("failed to write client list", zap.String("path", path), zap.Error(err))
		return err
	}
	return nil
}

// GetByUsername returns the first client with the given display name.
func (l *ClientList) GetByUsername(username string) (*Client, bool) {
	for _, c := range l.Clients {
		if c.Username == username {
			return c, true
		}
	}
	return nil, false
}

// GetByUUID returns the first client with the given in-game profile UUID.
func (l *ClientList) GetByUUID(id uuid.UUID) (*Client, bool) {
	for _, c := range l.Clients {
		if c.UUID == id {
			return c, true
		}
	}
	return nil, false
}

// GetByID returns the client registered under the given account id.
func (l *ClientList) GetByID(id uuid.UUID) (*Client, bool) {
	c, ok := l.Clients[id]
	return c, ok
}

// Register creates a new client record under a freshly allocated account id.
// Registration is rejected if the display name is already taken; the registry
// is left untouched in that case.
func (l *ClientList) Register(username string, profileUUID uuid.UUID, kind AuthKind) (uuid.UUID, error) {
	if _, ok := l.GetByUsername(username); ok {
		return uuid.Nil, fmt.Errorf("client %s already exists", username)
	}
	id := uuid.New()
	l.logger.Info("creating client", zap.String("username", username), zap.String("id", id.String()))
	l.Clients[id] = &Client{
		ID:          id,
		Username:    username,
		UUID:        profileUUID,
		Auth:        kind,
		Connections: make(map[uuid.UUID]Connection),
	}
	return id, nil
}

// Unregister removes the client with the given in-game profile UUID.
func (l *ClientList) Unregister(profileUUID uuid.UUID) error {
	c, ok := l.GetByUUID(profileUUID)
	if !ok {
		return fmt.Errorf("client %s does not exist", profileUUID)
	}
	l.logger.Info("deleting client", zap.String("uuid", profileUUID.String()))
	delete(l.Clients, c.ID)
	return nil
}
