package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shiver1514/feishu-sync/internal/tokenfile"
)

// RefreshMargin is the minimum time-to-expiry before a token is proactively
// refreshed, matching §4.1's "safety margin ≥ 5 minutes".
const RefreshMargin = 5 * time.Minute

// RefreshEndpointPath is appended to DefaultBaseURL for the refresh call;
// Feishu uses a distinct path rather than re-POSTing to access_token.
const RefreshEndpointPath = "/authen/v1/refresh_access_token"

// TokenPriority is an ordered list of tiers to try, per "acquire_token
// (priority: ordered list of {user, tenant})" in §4.1.
type TokenPriority []TokenKind

// DefaultPriority prefers the user token (reflects the acting user's own
// Drive) and falls back to the tenant token.
var DefaultPriority = TokenPriority{TokenUser, TokenTenant}

// Authenticator implements TokenSource against the real Feishu identity
// endpoints, caching both tiers in memory and persisting the user tier to
// disk via internal/tokenfile.
type Authenticator struct {
	httpClient    *http.Client
	appID         string
	appSecret     string
	userTokenPath string
	priority      TokenPriority
	logger        *slog.Logger

	mu                sync.Mutex
	tenantAccessToken string
	tenantExp         time.Time
	userFile          *tokenfile.File
}

// NewAuthenticator builds an Authenticator. userTokenPath may point to a
// file that does not yet exist; the user tier is simply unavailable until
// one is obtained out-of-band (the authorization-code login flow, which is
// part of the out-of-scope control console per §1).
func NewAuthenticator(httpClient *http.Client, appID, appSecret, userTokenPath string, priority TokenPriority, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		httpClient:    httpClient,
		appID:         appID,
		appSecret:     appSecret,
		userTokenPath: userTokenPath,
		priority:      priority,
		logger:        logger,
	}
}

// Token implements TokenSource, trying each tier in priority order and
// returning the first one that is available (refreshing if necessary).
func (a *Authenticator) Token(ctx context.Context) (Token, error) {
	var lastErr error
	for _, kind := range a.priority {
		switch kind {
		case TokenUser:
			tok, err := a.userToken(ctx)
			if err == nil {
				return tok, nil
			}
			lastErr = err
		case TokenTenant:
			tok, err := a.tenantToken(ctx)
			if err == nil {
				return tok, nil
			}
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = ErrAuthUnavailable
	}
	return Token{}, fmt.Errorf("%w: %v", ErrAuthUnavailable, lastErr)
}

func (a *Authenticator) userToken(ctx context.Context) (Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.userFile == nil {
		f, err := tokenfile.Load(a.userTokenPath)
		if err != nil {
			return Token{}, fmt.Errorf("loading user token file: %w", err)
		}
		a.userFile = f
	}

	if a.userFile.NeedsRefresh(RefreshMargin, time.Now()) {
		if err := a.refreshUserToken(ctx); err != nil {
			return Token{}, err
		}
	}

	return Token{Value: a.userFile.AccessToken, Kind: TokenUser}, nil
}

type refreshRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	Code             int    `json:"code"`
	Msg              string `json:"msg"`
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
}

// refreshUserToken exchanges the stored refresh token for a new access
// token and persists the result, mirroring feishu_client.py's
// refresh_user_token against POST /authen/v1/refresh_access_token.
func (a *Authenticator) refreshUserToken(ctx context.Context) error {
	payload, err := json.Marshal(refreshRequest{GrantType: "refresh_token", RefreshToken: a.userFile.RefreshToken})
	if err != nil {
		return fmt.Errorf("marshaling refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, DefaultBaseURL+RefreshEndpointPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+a.userFile.AccessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: refresh call failed: %v", ErrRemoteTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading refresh response: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return fmt.Errorf("decoding refresh response: %w", err)
	}
	if tr.Code != 0 {
		return fmt.Errorf("%w: refresh rejected: %s", ErrAuthUnavailable, tr.Msg)
	}

	now := time.Now()
	newFile := tokenfile.NewFromResponse(tr.AccessToken, tr.RefreshToken, tr.TokenType, tr.ExpiresIn, tr.RefreshExpiresIn, now)
	if err := tokenfile.Save(a.userTokenPath, newFile); err != nil {
		return fmt.Errorf("persisting refreshed user token: %w", err)
	}
	a.userFile = newFile

	a.logger.Info("user token refreshed", slog.Time("expires_at", newFile.ExpiresAt()))
	return nil
}

type tenantTokenRequest struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
}

type tenantTokenResponse struct {
	Code                 int    `json:"code"`
	Msg                  string `json:"msg"`
	TenantAccessToken    string `json:"tenant_access_token"`
	Expire               int64  `json:"expire"`
}

// tenantToken acquires (and caches until near expiry) an app-credential
// token via POST /auth/v3/tenant_access_token/internal.
func (a *Authenticator) tenantToken(ctx context.Context) (Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tenantAccessToken != "" && time.Now().Before(a.tenantExp.Add(-RefreshMargin)) {
		return Token{Value: a.tenantAccessToken, Kind: TokenTenant}, nil
	}

	payload, err := json.Marshal(tenantTokenRequest{AppID: a.appID, AppSecret: a.appSecret})
	if err != nil {
		return Token{}, fmt.Errorf("marshaling tenant token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, DefaultBaseURL+"/auth/v3/tenant_access_token/internal", bytes.NewReader(payload))
	if err != nil {
		return Token{}, fmt.Errorf("building tenant token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("%w: tenant token call failed: %v", ErrRemoteTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, fmt.Errorf("reading tenant token response: %w", err)
	}

	var tr tenantTokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Token{}, fmt.Errorf("decoding tenant token response: %w", err)
	}
	if tr.Code != 0 {
		return Token{}, fmt.Errorf("%w: tenant token rejected: %s", ErrAuthUnavailable, tr.Msg)
	}

	a.tenantAccessToken = tr.TenantAccessToken
	a.tenantExp = time.Now().Add(time.Duration(tr.Expire) * time.Second)

	return Token{Value: a.tenantAccessToken, Kind: TokenTenant}, nil
}
