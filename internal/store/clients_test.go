package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookup(t *testing.T) {
	l := NewClientList(nil)

	steveUUID := uuid.New()
	id, err := l.Register("Steve", steveUUID, AuthOffline)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	byName, ok := l.GetByUsername("Steve")
	require.True(t, ok)
	assert.Equal(t, id, byName.ID)
	assert.Equal(t, steveUUID, byName.UUID)
	assert.Equal(t, AuthOffline, byName.Auth)
	assert.NotNil(t, byName.Connections)

	byUUID, ok := l.GetByUUID(steveUUID)
	require.True(t, ok)
	assert.Same(t, byName, byUUID)

	byID, ok := l.GetByID(id)
	require.True(t, ok)
	assert.Same(t, byName, byID)
}

func TestRegisterDuplicateUsernameRejected(t *testing.T) {
	l := NewClientList(nil)

	first, err := l.Register("Steve", uuid.New(), AuthOffline)
	require.NoError(t, err)

	_, err = l.Register("Steve", uuid.New(), AuthMicrosoft)
	require.ErrorContains(t, err, "already exists")

	// The registry is untouched: still one client, the original one.
	require.Len(t, l.Clients, 1)
	c, ok := l.GetByID(first)
	require.True(t, ok)
	assert.Equal(t, AuthOffline, c.Auth)
}

func TestUnregister(t *testing.T) {
	l := NewClientList(nil)

	steveUUID := uuid.New()
	_, err := l.Register("Steve", steveUUID, AuthOffline)
	require.NoError(t, err)

	require.NoError(t, l.Unregister(steveUUID))
	assert.Empty(t, l.Clients)

	require.ErrorContains(t, l.Unregister(steveUUID), "does not exist")
}

func TestClientsRoundTrip(t *testing.T) {
	dir := t.TempDir()

	l := NewClientList(nil)
	id, err := l.Register("Steve", uuid.New(), AuthMicrosoft)
	require.NoError(t, err)
	c, _ := l.GetByID(id)
	connID := uuid.New()
	c.Connections[connID] = Connection{
		ID:      connID,
		Version: "1.21.7",
		Server:  Server{Name: "hub", IP: "10.0.0.1", Port: 25565},
	}
	require.NoError(t, l.Save(dir))

	loaded := LoadClients(dir, nil)
	require.Len(t, loaded.Clients, 1)
	got, ok := loaded.GetByID(id)
	require.True(t, ok)
	assert.Equal(t, *c, *got)
}

func TestLoadClientsMissingAndMalformed(t *testing.T) {
	l := LoadClients(t.TempDir(), nil)
	assert.Empty(t, l.Clients)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, clientsFile), []byte("{broken"), 0644))
	l = LoadClients(dir, nil)
	assert.NotNil(t, l.Clients)
	assert.Empty(t, l.Clients)
}
