// Package auth contains the authentication state machine and the on-disk
// credential cache that feeds controller construction.
package auth

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/quasar/mcfleet/internal/msa"
)

// Profile is a stable account identity: the in-game UUID plus display name.
// Offline profiles derive their UUID deterministically from the username.
type Profile struct {
	UUID          uuid.UUID         `json:"uuid"`
	Username      string            `json:"username"`
	Skins         []json.RawMessage `json:"skins,omitempty"`
	Capes         []json.RawMessage `json:"capes,omitempty"`
	Authenticated bool              `json:"authenticated"`
}

// OfflineProfile builds an unauthenticated profile whose UUID is the v3 UUID
// of "OfflinePlayer:<name>" in the X.500 namespace. The same name always
// yields the same UUID, matching what offline-mode servers compute.
func OfflineProfile(username string) Profile {
	id := uuid.NewMD5(uuid.NameSpaceX500, []byte("OfflinePlayer:"+username))
	return Profile{
		UUID:          id,
		Username:      username,
		Authenticated: false,
	}
}

// ProfileFromResponse converts a provider profile into an authenticated Profile.
func ProfileFromResponse(resp *msa.ProfileResponse) (Profile, error) {
	id, err := uuid.Parse(resp.ID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		UUID:          id,
		Username:      resp.Name,
		Skins:         resp.Skins,
		Capes:         resp.Capes,
		Authenticated: true,
	}, nil
}
