package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quasar/mcfleet/internal/auth"
	"github.com/quasar/mcfleet/internal/core"
	"github.com/quasar/mcfleet/internal/store"
)

// ErrNoOngoingAuth is returned by AuthFinish when no login was started
// under the given login key.
var ErrNoOngoingAuth = errors.New("no ongoing auth found for login key")

func progress(cb auth.Listener, state auth.State) {
	if cb != nil {
		cb(state)
	}
}

// AuthOffline registers a new offline account under the given username and
// constructs its controller. Fails if the username is already registered;
// the persisted store is left untouched in that case.
func (a *App) AuthOffline(username string, cb auth.Listener) (uuid.UUID, auth.Profile, error) {
	progress(cb, auth.State{Kind: auth.StateWorking, Message: "Verifying account..."})

	profile := auth.OfflineProfile(username)

	a.clientsMu.Lock()
	if _, exists := a.clients.GetByUsername(username); exists {
		a.clientsMu.Unlock()
		progress(cb, auth.State{Kind: auth.StateError,
			Message: fmt.Sprintf("Account %s is already registered.", username)})
		return uuid.Nil, auth.Profile{}, fmt.Errorf("account %s already exists", username)
	}
	id, err := a.clients.Register(username, profile.UUID, store.AuthOffline)
	if err == nil {
		err = a.clients.Save(a.cfg.DataDir)
	}
	a.clientsMu.Unlock()
	if err != nil {
		progress(cb, auth.State{Kind: auth.StateError, Message: err.Error()})
		return uuid.Nil, auth.Profile{}, err
	}

	controller := core.NewController(id,
		core.OfflineAccount(username, profile.UUID),
		a.connector, a.relay, a.logger)
	a.registryMu.Lock()
	a.controllers.Add(controller)
	a.registryMu.Unlock()

	progress(cb, auth.State{Kind: auth.StateWorking, Message: "Offline account created."})
	return id, profile, nil
}

// AuthInit begins an interactive Microsoft login: it requests a device code
// and parks the in-progress authentication under the login key until
// AuthFinish consumes it.
func (a *App) AuthInit(ctx context.Context, loginKey string, cb auth.Listener) (*auth.VerificationInfo, error) {
	machine := auth.NewAuthentication(a.provider, a.logger)

	// Network call, so no store lock is held here.
	state := machine.GetAccessInfo(ctx, cb)
	if machine.Verification == nil {
		return nil, errors.New(state.Message)
	}

	a.authMu.Lock()
	a.ongoing[loginKey] = machine
	a.authMu.Unlock()
	return machine.Verification, nil
}

// AuthFinish completes an interactive login started by AuthInit: it waits
// for the user's out-of-band verification (bounded by timeout, default 90s),
// exchanges tokens, and — when register is set — persists the credential,
// registers the client and constructs its controller. The parked
// authentication is consumed either way.
func (a *App) AuthFinish(ctx context.Context, loginKey string, timeout time.Duration,
	register bool, cb auth.Listener) (uuid.UUID, auth.Profile, error) {
	a.authMu.Lock()
	machine, ok := a.ongoing[loginKey]
	delete(a.ongoing, loginKey)
	a.authMu.Unlock()
	if !ok {
		return uuid.Nil, auth.Profile{}, fmt.Errorf("%w: %s", ErrNoOngoingAuth, loginKey)
	}

	// Both steps suspend on the network; no store lock may be held.
	if state := machine.AuthenticateMS(ctx, timeout, cb); state.Kind == auth.StateError {
		return uuid.Nil, auth.Profile{}, errors.New(state.Message)
	}
	state := machine.AuthenticateMinecraft(ctx, cb)
	if state.Kind != auth.StateSuccess || machine.Profile == nil {
		return uuid.Nil, auth.Profile{}, errors.New(state.Message)
	}
	profile := *machine.Profile

	if !register {
		return uuid.Nil, profile, nil
	}

	record, ok := machine.Record()
	if !ok {
		return uuid.Nil, auth.Profile{}, errors.New("authentication did not produce a cacheable credential")
	}

	a.cacheMu.Lock()
	a.cache.Records[loginKey] = record
	saveErr := a.cache.Save(a.cfg.DataDir)
	a.cacheMu.Unlock()
	if saveErr != nil {
		// The in-memory record stays usable; the caller decides whether a
		// non-durable credential is acceptable.
		a.logger.Warn("credential cached in memory only", zap.Error(saveErr))
	}

	a.clientsMu.Lock()
	id, err := a.clients.Register(profile.Username, profile.UUID, store.AuthMicrosoft)
	if err == nil {
		err = a.clients.Save(a.cfg.DataDir)
	}
	a.clientsMu.Unlock()
	if err != nil {
		return uuid.Nil, auth.Profile{}, err
	}

	controller := core.NewController(id,
		core.MicrosoftAccount(profile.Username, profile.UUID, record.AccessToken),
		a.connector, a.relay, a.logger)
	a.registryMu.Lock()
	a.controllers.Add(controller)
	a.registryMu.Unlock()

	if saveErr != nil {
		return id, profile, saveErr
	}
	return id, profile, nil
}

// AuthCached authenticates from the credential cache: a valid record is used
// as-is, an expired one goes through the silent refresh path, and a missing
// or unrefreshable one requires the interactive flow to be re-run. On
// success the client record is ensured and the controller registered.
func (a *App) AuthCached(ctx context.Context, loginKey string, cb auth.Listener) (uuid.UUID, auth.Profile, error) {
	progress(cb, auth.State{Kind: auth.StateWorking, Message: "Looking for cache..."})

	a.cacheMu.Lock()
	record, ok := a.cache.Records[loginKey]
	a.cacheMu.Unlock()
	if !ok {
		progress(cb, auth.State{Kind: auth.StateError, Message: "No cache found."})
		return uuid.Nil, auth.Profile{}, fmt.Errorf("%w: %s", auth.ErrNoCacheEntry, loginKey)
	}

	var saveErr error
	if record.Expired(time.Now().Unix()) {
		progress(cb, auth.State{Kind: auth.StateWorking, Message: "Cache expired, attempting silent refresh..."})

		// Provider calls, so the cache lock is released during the refresh.
		refreshed, err := auth.RefreshRecord(ctx, a.provider, record, cb)
		if err != nil {
			return uuid.Nil, auth.Profile{}, err
		}

		a.cacheMu.Lock()
		a.cache.Records[loginKey] = refreshed
		saveErr = a.cache.Save(a.cfg.DataDir)
		a.cacheMu.Unlock()
		if saveErr != nil {
			// The refreshed record stays usable in memory for this run.
			a.logger.Warn("refreshed credential cached in memory only", zap.Error(saveErr))
		}
		record = refreshed
	} else {
		progress(cb, auth.State{Kind: auth.StateWorking, Message: "Valid cache found."})
	}

	id, err := a.materializeController(record, cb)
	if err != nil {
		return uuid.Nil, auth.Profile{}, err
	}
	progress(cb, auth.State{Kind: auth.StateSuccess,
		Message: "Cache successfully validated, authentication is allowed."})
	if saveErr != nil {
		return id, record.Profile, saveErr
	}
	return id, record.Profile, nil
}

// materializeController ensures a persisted client record exists for the
// credential's profile, then rebuilds the controller with one stopped
// instance per persisted connection.
func (a *App) materializeController(record auth.Record, cb auth.Listener) (uuid.UUID, error) {
	profile := record.Profile

	a.clientsMu.Lock()
	client, ok := a.clients.GetByUUID(profile.UUID)
	if !ok {
		progress(cb, auth.State{Kind: auth.StateWorking,
			Message: "Registering new client from cached profile..."})
		id, err := a.clients.Register(profile.Username, profile.UUID, store.AuthMicrosoft)
		if err == nil {
			err = a.clients.Save(a.cfg.DataDir)
		}
		if err != nil {
			a.clientsMu.Unlock()
			return uuid.Nil, err
		}
		client, _ = a.clients.GetByID(id)
	}
	connections := make([]store.Connection, 0, len(client.Connections))
	for _, conn := range client.Connections {
		connections = append(connections, conn)
	}
	id := client.ID
	a.clientsMu.Unlock()

	controller := core.NewController(id,
		core.MicrosoftAccount(profile.Username, profile.UUID, record.AccessToken),
		a.connector, a.relay, a.logger)
	for _, conn := range connections {
		version, err := core.ParseVersion(conn.Version)
		if err != nil {
			a.logger.Warn("skipping persisted connection with unsupported version",
				zap.String("instance", conn.ID.String()), zap.String("version", conn.Version))
			continue
		}
		controller.RestoreInstance(conn.ID, conn.Server, version)
	}

	a.registryMu.Lock()
	a.controllers.Add(controller)
	a.registryMu.Unlock()
	return id, nil
}

// Recall ensures a controller exists for a known account id, rebuilding it
// from the persisted client record and, for Microsoft accounts, the
// credential cache. Reports whether the controller is ready.
func (a *App) Recall(ctx context.Context, accountID uuid.UUID, cb auth.Listener) (bool, error) {
	a.registryMu.Lock()
	exists := a.controllers.Contains(accountID)
	a.registryMu.Unlock()
	if exists {
		return true, nil
	}

	a.clientsMu.Lock()
	client, ok := a.clients.GetByID(accountID)
	var (
		kind        store.AuthKind
		username    string
		profileUUID uuid.UUID
		connections []store.Connection
	)
	if ok {
		kind = client.Auth
		username = client.Username
		profileUUID = client.UUID
		for _, conn := range client.Connections {
			connections = append(connections, conn)
		}
	}
	a.clientsMu.Unlock()
	if !ok {
		return false, fmt.Errorf("no client registered with id %s", accountID)
	}

	if kind == store.AuthOffline {
		controller := core.NewController(accountID,
			core.OfflineAccount(username, profileUUID),
			a.connector, a.relay, a.logger)
		for _, conn := range connections {
			version, err := core.ParseVersion(conn.Version)
			if err != nil {
				continue
			}
			controller.RestoreInstance(conn.ID, conn.Server, version)
		}
		a.registryMu.Lock()
		a.controllers.Add(controller)
		a.registryMu.Unlock()
		return true, nil
	}

	a.cacheMu.Lock()
	key, found := a.cache.FindKeyByProfileUUID(profileUUID)
	a.cacheMu.Unlock()
	if !found {
		return false, fmt.Errorf("no authentication key found in cache for client %s", profileUUID)
	}
	if _, _, err := a.AuthCached(ctx, key, cb); err != nil {
		// A persistence failure can leave the controller ready anyway;
		// report readiness honestly alongside the error.
		a.registryMu.Lock()
		exists := a.controllers.Contains(accountID)
		a.registryMu.Unlock()
		return exists, err
	}
	return true, nil
}

// Validity returns the cached session token expiry for a profile UUID, or
// zero when no credential is cached.
func (a *App) Validity(profileUUID uuid.UUID) int64 {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	if record, ok := a.cache.FindByProfileUUID(profileUUID); ok {
		return record.Expiration
	}
	return 0
}
