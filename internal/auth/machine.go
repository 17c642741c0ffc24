package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quasar/mcfleet/internal/msa"
)

// DefaultAuthTimeout bounds the wait for the user to complete the
// out-of-band device-code verification.
const DefaultAuthTimeout = 90 * time.Second

var (
	// ErrNoVerification is returned when AuthenticateMS runs before
	// GetAccessInfo has produced verification info.
	ErrNoVerification = errors.New("no verification info available")
	// ErrNoMSAToken is returned when AuthenticateMinecraft runs before
	// AuthenticateMS has produced a Microsoft token.
	ErrNoMSAToken = errors.New("no Microsoft token to exchange")
	// ErrNoCacheEntry is returned when a cached login key has no record.
	ErrNoCacheEntry = errors.New("no cached record for key")
	// ErrReauthRequired is returned when both the cached session token and
	// its refresh material are unusable.
	ErrReauthRequired = errors.New("cached record and refresh both invalid, re-authentication required")
)

// Provider is the OAuth/profile capability the state machine drives.
// *msa.Client implements it.
type Provider interface {
	RequestDeviceCode(ctx context.Context) (*msa.DeviceCodeResponse, error)
	PollForToken(ctx context.Context, dc *msa.DeviceCodeResponse) (*msa.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*msa.TokenResponse, error)
	AuthenticateXbox(ctx context.Context, msaAccessToken string) (*msa.XboxAuthResponse, error)
	AuthenticateXSTS(ctx context.Context, xboxToken string) (*msa.XboxAuthResponse, error)
	LoginWithXbox(ctx context.Context, uhs, xstsToken string) (*msa.MinecraftAuthResponse, error)
	FetchProfile(ctx context.Context, accessToken string) (*msa.ProfileResponse, error)
}

// VerificationInfo is the device-code material shown to the user.
type VerificationInfo struct {
	Code       string
	URI        string
	Device     string
	Expiration int
	Interval   int
}

// Authentication drives one interactive login, step by step. It is transient
// and single-use: the app keeps it in an in-memory map keyed by login key
// between the init and finish commands, and discards it once finished.
type Authentication struct {
	provider Provider
	logger   *zap.Logger

	Verification  *VerificationInfo
	MSA           *ExpiringToken
	SessionToken  string
	SessionExpiry int64
	Profile       *Profile
	State         State
}

func NewAuthentication(provider Provider, logger *zap.Logger) *Authentication {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authentication{
		provider: provider,
		logger:   logger,
		State:    working("Authentication started, waiting for requests"),
	}
}

// transition records the new state and notifies the listener before the
// caller proceeds. Listeners therefore observe every transition in order.
func (a *Authentication) transition(state State, cb Listener) {
	a.State = state
	if cb != nil {
		cb(state)
	}
}

// GetAccessInfo requests a device code and stores the verification info the
// user needs to complete the login out of band. Leaves the machine Working
// on success, Error otherwise.
func (a *Authentication) GetAccessInfo(ctx context.Context, cb Listener) State {
	a.transition(working("Getting access info..."), cb)
	dc, err := a.provider.RequestDeviceCode(ctx)
	if err != nil {
		a.transition(failure(err.Error()), cb)
		return a.State
	}
	a.Verification = &VerificationInfo{
		Code:       dc.UserCode,
		URI:        dc.VerificationURI,
		Device:     dc.DeviceCode,
		Expiration: dc.ExpiresIn,
		Interval:   dc.Interval,
	}
	a.transition(working("Got MS access credentials."), cb)
	return a.State
}

// AuthenticateMS waits for the user to complete verification, bounded by
// timeout (DefaultAuthTimeout if non-positive), and stores the resulting
// Microsoft token pair.
func (a *Authentication) AuthenticateMS(ctx context.Context, timeout time.Duration, cb Listener) State {
	a.transition(working("Waiting for user authentication..."), cb)
	if a.Verification == nil {
		a.transition(failure(ErrNoVerification.Error()), cb)
		return a.State
	}
	if timeout <= 0 {
		timeout = DefaultAuthTimeout
	}
	a.transition(working("Authenticating Microsoft account..."), cb)

	// The poll deadline is the shorter of the provider's device-code expiry
	// and the caller's timeout.
	dc := &msa.DeviceCodeResponse{
		UserCode:        a.Verification.Code,
		VerificationURI: a.Verification.URI,
		DeviceCode:      a.Verification.Device,
		ExpiresIn:       int(timeout.Seconds()),
		Interval:        a.Verification.Interval,
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	token, err := a.provider.PollForToken(ctx, dc)
	if err != nil {
		if errors.Is(err, msa.ErrAuthTimeout) {
			a.transition(failure("Authentication timed out"), cb)
		} else {
			a.transition(failure(err.Error()), cb)
		}
		return a.State
	}
	a.MSA = &ExpiringToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    time.Now().Unix() + int64(token.ExpiresIn),
	}
	a.transition(working("Got Microsoft access token, successfully authenticated!"), cb)
	return a.State
}

// AuthenticateMinecraft exchanges the Microsoft token for a Minecraft session
// token and fetches the profile. A failed profile fetch forces Error even
// though the session token may already be stored.
func (a *Authentication) AuthenticateMinecraft(ctx context.Context, cb Listener) State {
	a.transition(working("Waiting for Microsoft authentication..."), cb)
	if a.MSA == nil {
		a.transition(failure(ErrNoMSAToken.Error()), cb)
		return a.State
	}
	a.transition(working("Authenticating Minecraft session..."), cb)

	token, expiry, err := exchangeSessionToken(ctx, a.provider, a.MSA.AccessToken)
	if err != nil {
		a.transition(failure(err.Error()), cb)
		return a.State
	}
	a.SessionToken = token
	a.SessionExpiry = expiry

	a.transition(working("Got session token, retrieving profile..."), cb)
	resp, err := a.provider.FetchProfile(ctx, token)
	if err != nil {
		a.transition(failure(err.Error()), cb)
		return a.State
	}
	profile, err := ProfileFromResponse(resp)
	if err != nil {
		a.transition(failure(fmt.Sprintf("malformed profile: %v", err)), cb)
		return a.State
	}
	a.Profile = &profile
	a.logger.Info("authenticated Minecraft session",
		zap.String("username", profile.Username),
		zap.String("uuid", profile.UUID.String()))

	a.transition(success(token), cb)
	return a.State
}

// Record assembles the cacheable credential produced by a completed login.
// Valid only once the machine has reached Success.
func (a *Authentication) Record() (Record, bool) {
	if a.State.Kind != StateSuccess || a.MSA == nil || a.Profile == nil {
		return Record{}, false
	}
	return Record{
		AccessToken: a.SessionToken,
		Expiration:  a.SessionExpiry,
		MSA:         *a.MSA,
		Profile:     *a.Profile,
	}, true
}

// exchangeSessionToken runs the Xbox -> XSTS -> Minecraft token chain.
func exchangeSessionToken(ctx context.Context, p Provider, msaAccessToken string) (string, int64, error) {
	xbox, err := p.AuthenticateXbox(ctx, msaAccessToken)
	if err != nil {
		return "", 0, fmt.Errorf("xbox auth failed: %w", err)
	}
	xsts, err := p.AuthenticateXSTS(ctx, xbox.Token)
	if err != nil {
		return "", 0, fmt.Errorf("xsts auth failed: %w", err)
	}
	if len(xsts.DisplayClaims.XUI) == 0 {
		return "", 0, fmt.Errorf("xsts response missing user hash")
	}
	mc, err := p.LoginWithXbox(ctx, xsts.DisplayClaims.XUI[0].UHS, xsts.Token)
	if err != nil {
		return "", 0, fmt.Errorf("minecraft login failed: %w", err)
	}
	return mc.AccessToken, time.Now().Unix() + int64(mc.ExpiresIn), nil
}

// RefreshRecord silently renews an expired record: it refreshes the MSA token
// pair and re-runs the session token exchange. The profile is carried over
// unchanged. On failure the caller must fall back to the interactive flow.
func RefreshRecord(ctx context.Context, p Provider, rec Record, cb Listener) (Record, error) {
	if cb != nil {
		cb(working("Refreshing Microsoft token..."))
	}
	token, err := p.RefreshToken(ctx, rec.MSA.RefreshToken)
	if err != nil {
		if cb != nil {
			cb(failure(fmt.Sprintf("Failed to refresh MSA token. Re-authentication is required. (%v)", err)))
		}
		return Record{}, fmt.Errorf("%w: %v", ErrReauthRequired, err)
	}
	if cb != nil {
		cb(working("Successfully refreshed MSA token"))
	}

	sessionToken, expiry, err := exchangeSessionToken(ctx, p, token.AccessToken)
	if err != nil {
		if cb != nil {
			cb(failure(fmt.Sprintf("Failed to renew session token. Re-authentication is required. (%v)", err)))
		}
		return Record{}, fmt.Errorf("%w: %v", ErrReauthRequired, err)
	}
	refreshed := Record{
		AccessToken: sessionToken,
		Expiration:  expiry,
		MSA: ExpiringToken{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			ExpiresAt:    time.Now().Unix() + int64(token.ExpiresIn),
		},
		Profile: rec.Profile,
	}
	if cb != nil {
		cb(working("Renewed cached session token."))
	}
	return refreshed, nil
}
