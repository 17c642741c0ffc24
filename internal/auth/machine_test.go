package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quasar/mcfleet/internal/msa"
)

// fakeProvider scripts the whole provider surface and records which calls
// were made.
type fakeProvider struct {
	calls []string

	deviceCodeErr error
	pollToken     *msa.TokenResponse
	pollErr       error
	refreshToken  *msa.TokenResponse
	refreshErr    error
	xboxErr       error
	xstsErr       error
	loginErr      error
	profile       *msa.ProfileResponse
	profileErr    error
}

func (f *fakeProvider) RequestDeviceCode(context.Context) (*msa.DeviceCodeResponse, error) {
	f.calls = append(f.calls, "deviceCode")
	if f.deviceCodeErr != nil {
		return nil, f.deviceCodeErr
	}
	return &msa.DeviceCodeResponse{
		DeviceCode:      "device-123",
		UserCode:        "ABCD-EFGH",
		VerificationURI: "https://microsoft.com/link",
		ExpiresIn:       900,
		Interval:        1,
	}, nil
}

func (f *fakeProvider) PollForToken(context.Context, *msa.DeviceCodeResponse) (*msa.TokenResponse, error) {
	f.calls = append(f.calls, "poll")
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if f.pollToken != nil {
		return f.pollToken, nil
	}
	return &msa.TokenResponse{AccessToken: "msa-access", RefreshToken: "msa-refresh", ExpiresIn: 3600}, nil
}

func (f *fakeProvider) RefreshToken(context.Context, string) (*msa.TokenResponse, error) {
	f.calls = append(f.calls, "refresh")
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	if f.refreshToken != nil {
		return f.refreshToken, nil
	}
	return &msa.TokenResponse{AccessToken: "msa-access-2", RefreshToken: "msa-refresh-2", ExpiresIn: 3600}, nil
}

func (f *fakeProvider) AuthenticateXbox(context.Context, string) (*msa.XboxAuthResponse, error) {
	f.calls = append(f.calls, "xbox")
	if f.xboxErr != nil {
		return nil, f.xboxErr
	}
	resp := &msa.XboxAuthResponse{Token: "xbl-token"}
	resp.DisplayClaims.XUI = []struct {
		UHS string `json:"uhs"`
	}{{UHS: "hash123"}}
	return resp, nil
}

func (f *fakeProvider) AuthenticateXSTS(context.Context, string) (*msa.XboxAuthResponse, error) {
	f.calls = append(f.calls, "xsts")
	if f.xstsErr != nil {
		return nil, f.xstsErr
	}
	resp := &msa.XboxAuthResponse{Token: "xsts-token"}
	resp.DisplayClaims.XUI = []struct {
		UHS string `json:"uhs"`
	}{{UHS: "hash123"}}
	return resp, nil
}

func (f *fakeProvider) LoginWithXbox(context.Context, string, string) (*msa.MinecraftAuthResponse, error) {
	f.calls = append(f.calls, "login")
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &msa.MinecraftAuthResponse{AccessToken: "session-token", ExpiresIn: 86400}, nil
}

func (f *fakeProvider) FetchProfile(context.Context, string) (*msa.ProfileResponse, error) {
	f.calls = append(f.calls, "profile")
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	if f.profile != nil {
		return f.profile, nil
	}
	return &msa.ProfileResponse{ID: "069a79f444e94726a5befca90e38aaf5", Name: "Notch"}, nil
}

// recorder collects every state transition a listener observes.
type recorder struct {
	states []State
}

func (r *recorder) listen(s State) { r.states = append(r.states, s) }

func (r *recorder) messages() []string {
	out := make([]string, len(r.states))
	for i, s := range r.states {
		out[i] = s.Message
	}
	return out
}

func TestFullInteractiveFlow(t *testing.T) {
	provider := &fakeProvider{}
	rec := &recorder{}
	machine := NewAuthentication(provider, nil)
	ctx := context.Background()

	state := machine.GetAccessInfo(ctx, rec.listen)
	require.Equal(t, StateWorking, state.Kind)
	require.NotNil(t, machine.Verification)
	assert.Equal(t, "ABCD-EFGH", machine.Verification.Code)
	assert.Equal(t, "https://microsoft.com/link", machine.Verification.URI)

	state = machine.AuthenticateMS(ctx, time.Minute, rec.listen)
	require.Equal(t, StateWorking, state.Kind)
	require.NotNil(t, machine.MSA)
	assert.Equal(t, "msa-access", machine.MSA.AccessToken)

	state = machine.AuthenticateMinecraft(ctx, rec.listen)
	require.Equal(t, StateSuccess, state.Kind)
	assert.Equal(t, "session-token", state.Message)
	require.NotNil(t, machine.Profile)
	assert.Equal(t, "Notch", machine.Profile.Username)
	assert.True(t, machine.Profile.Authenticated)

	// Every transition is observed, in order.
	assert.Equal(t, []string{
		"Getting access info...",
		"Got MS access credentials.",
		"Waiting for user authentication...",
		"Authenticating Microsoft account...",
		"Got Microsoft access token, successfully authenticated!",
		"Waiting for Microsoft authentication...",
		"Authenticating Minecraft session...",
		"Got session token, retrieving profile...",
		"session-token",
	}, rec.messages())

	assert.Equal(t, []string{"deviceCode", "poll", "xbox", "xsts", "login", "profile"}, provider.calls)

	record, ok := machine.Record()
	require.True(t, ok)
	assert.Equal(t, "session-token", record.AccessToken)
	assert.Equal(t, "msa-refresh", record.MSA.RefreshToken)
	assert.Equal(t, "Notch", record.Profile.Username)
	assert.Greater(t, record.Expiration, time.Now().Unix())
}

func TestAuthenticateMSWithoutVerification(t *testing.T) {
	machine := NewAuthentication(&fakeProvider{}, nil)

	state := machine.AuthenticateMS(context.Background(), time.Minute, nil)
	require.Equal(t, StateError, state.Kind)
	assert.Equal(t, ErrNoVerification.Error(), state.Message)
}

func TestAuthenticateMinecraftWithoutMSAToken(t *testing.T) {
	machine := NewAuthentication(&fakeProvider{}, nil)

	state := machine.AuthenticateMinecraft(context.Background(), nil)
	require.Equal(t, StateError, state.Kind)
	assert.Equal(t, ErrNoMSAToken.Error(), state.Message)
}

func TestAuthenticateMSTimeout(t *testing.T) {
	provider := &fakeProvider{pollErr: msa.ErrAuthTimeout}
	machine := NewAuthentication(provider, nil)

	require.Equal(t, StateWorking, machine.GetAccessInfo(context.Background(), nil).Kind)
	state := machine.AuthenticateMS(context.Background(), time.Minute, nil)
	require.Equal(t, StateError, state.Kind)
	assert.Equal(t, "Authentication timed out", state.Message)
}

func TestProfileFetchFailureForcesError(t *testing.T) {
	provider := &fakeProvider{profileErr: errors.New("profile service down")}
	machine := NewAuthentication(provider, nil)
	ctx := context.Background()

	machine.GetAccessInfo(ctx, nil)
	machine.AuthenticateMS(ctx, time.Minute, nil)
	state := machine.AuthenticateMinecraft(ctx, nil)

	require.Equal(t, StateError, state.Kind)
	// The session token was obtained, but without a profile the login does
	// not count and nothing is cacheable.
	assert.NotEmpty(t, machine.SessionToken)
	_, ok := machine.Record()
	assert.False(t, ok)
}

func TestRecordRequiresSuccess(t *testing.T) {
	machine := NewAuthentication(&fakeProvider{}, nil)
	_, ok := machine.Record()
	assert.False(t, ok)
}

func TestRefreshRecord(t *testing.T) {
	provider := &fakeProvider{}
	rec := &recorder{}
	original := Record{
		AccessToken: "stale-session",
		Expiration:  time.Now().Unix() - 100,
		MSA: ExpiringToken{
			AccessToken:  "stale-access",
			RefreshToken: "msa-refresh",
			ExpiresAt:    time.Now().Unix() - 100,
		},
		Profile: Profile{Username: "Notch", Authenticated: true},
	}

	refreshed, err := RefreshRecord(context.Background(), provider, original, rec.listen)
	require.NoError(t, err)
	assert.Equal(t, "session-token", refreshed.AccessToken)
	assert.Equal(t, "msa-access-2", refreshed.MSA.AccessToken)
	assert.Equal(t, "msa-refresh-2", refreshed.MSA.RefreshToken)
	assert.Equal(t, original.Profile, refreshed.Profile, "profile carries over unchanged")
	assert.Greater(t, refreshed.Expiration, time.Now().Unix()-1)
	assert.Equal(t, []string{"refresh", "xbox", "xsts", "login"}, provider.calls)
}

func TestRefreshRecordReauthRequired(t *testing.T) {
	t.Run("refresh fails", func(t *testing.T) {
		provider := &fakeProvider{refreshErr: errors.New("invalid_grant")}
		_, err := RefreshRecord(context.Background(), provider, Record{}, nil)
		require.ErrorIs(t, err, ErrReauthRequired)
	})

	t.Run("exchange fails", func(t *testing.T) {
		provider := &fakeProvider{xstsErr: errors.New("xsts rejected")}
		_, err := RefreshRecord(context.Background(), provider, Record{}, nil)
		require.ErrorIs(t, err, ErrReauthRequired)
	})
}
