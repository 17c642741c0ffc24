package core

import (
	"github.com/google/uuid"

	"github.com/quasar/mcfleet/internal/store"
)

// Account is the resolved auth material a connection runs under: the in-game
// identity plus, for Microsoft accounts, the session token. Offline accounts
// carry no token; their UUID is the deterministic offline derivation.
type Account struct {
	Kind        store.AuthKind
	Username    string
	UUID        uuid.UUID
	AccessToken string
}

// OfflineAccount builds auth material for an unauthenticated account.
func OfflineAccount(username string, id uuid.UUID) Account {
	return Account{
		Kind:     store.AuthOffline,
		Username: username,
		UUID:     id,
	}
}

// MicrosoftAccount builds auth material from an authenticated session.
func MicrosoftAccount(username string, id uuid.UUID, sessionToken string) Account {
	return Account{
		Kind:        store.AuthMicrosoft,
		Username:    username,
		UUID:        id,
		AccessToken: sessionToken,
	}
}
