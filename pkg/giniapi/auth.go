package giniapi

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// refreshWindow is how close to expiry a token may get before every
// authenticated call triggers a refresh grant first.
const refreshWindow = 60 * time.Second

// TokenKind distinguishes bearer tokens (OAuth2 grants) from basic tokens
// (trusted-gateway backend flows).
type TokenKind string

// Token kinds.
const (
	TokenBearer TokenKind = "bearer"
	TokenBasic  TokenKind = "basic"
)

// Token is the credential authorizing API requests. A session owns at most
// one live Token; refreshes mutate it in place so every holder of the
// reference observes the new values without re-fetching it.
//
// Token is shared mutable state. The session does not serialize refreshes
// internally — callers dispatching from multiple goroutines must guard
// EnsureFresh and token reads with their own mutex.
type Token struct {
	AccessValue  string    `json:"access_token"`
	Kind         TokenKind `json:"token_kind"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
	RefreshValue string    `json:"refresh_token,omitempty"`
}

// authorizationHeader renders the token as an Authorization header value.
func (t *Token) authorizationHeader() string {
	if t.Kind == TokenBasic {
		return "Basic " + t.AccessValue
	}

	return "Bearer " + t.AccessValue
}

// needsRefresh reports whether the token should be refreshed before the
// next authenticated call: a refresh value exists and less than the
// refresh window remains. Tokens without expiry never refresh.
func (t *Token) needsRefresh(now time.Time) bool {
	return t.RefreshValue != "" && !t.ExpiresAt.IsZero() && t.ExpiresAt.Before(now.Add(refreshWindow))
}

// Credentials selects the login strategy. Strategy priority is fixed:
// an authorization code wins over username/password, which wins over the
// trusted-gateway fallback (HTTP Basic from client_id/client_secret,
// used for backend-to-backend anonymous-user flows).
type Credentials struct {
	AuthCode string
	Username string
	Password string
}

// authStrategy is the resolved login strategy.
type authStrategy int

const (
	strategyAuthCode authStrategy = iota
	strategyPassword
	strategyGateway
)

func (s authStrategy) String() string {
	switch s {
	case strategyAuthCode:
		return "authorization_code"
	case strategyPassword:
		return "password"
	default:
		return "trusted_gateway"
	}
}

// resolveStrategy is total over the three credential shapes and never fails
// on its own — downstream token exchange may.
func resolveStrategy(creds Credentials) authStrategy {
	switch {
	case creds.AuthCode != "":
		return strategyAuthCode
	case creds.Username != "" && creds.Password != "":
		return strategyPassword
	default:
		return strategyGateway
	}
}

// Login exchanges the given credentials for a session token. Any previous
// token is replaced. Identity-provider failures surface as ErrOAuth.
func (c *Client) Login(ctx context.Context, creds Credentials) error {
	strategy := resolveStrategy(creds)
	c.logger.Info("logging in",
		slog.String("strategy", strategy.String()),
		slog.String("oauth_base", c.oauthBase),
	)

	tok, err := c.acquire(ctx, strategy, creds)
	if err != nil {
		return err
	}

	c.token = tok
	c.logger.Info("login successful",
		slog.String("kind", string(tok.Kind)),
		slog.Time("expires_at", tok.ExpiresAt),
	)

	return nil
}

// acquire performs the grant for the resolved strategy.
func (c *Client) acquire(ctx context.Context, strategy authStrategy, creds Credentials) (*Token, error) {
	switch strategy {
	case strategyAuthCode:
		tok, err := c.oauthConfig().Exchange(c.oauthContext(ctx), creds.AuthCode)
		if err != nil {
			return nil, c.oauthError("exchanging authorization code", err)
		}

		return fromOAuth2Token(tok), nil

	case strategyPassword:
		tok, err := c.oauthConfig().PasswordCredentialsToken(c.oauthContext(ctx), creds.Username, creds.Password)
		if err != nil {
			return nil, c.oauthError("password grant", err)
		}

		return fromOAuth2Token(tok), nil

	default:
		// Trusted gateway: HTTP Basic from client credentials, no expiry,
		// no network call.
		basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))

		return &Token{AccessValue: basic, Kind: TokenBasic}, nil
	}
}

// EnsureFresh refreshes the session token in place when it is within the
// refresh window of expiry. It is a no-op for tokens without a refresh
// value or without expiry (basic/gateway tokens). Called automatically
// before every authenticated dispatch.
func (c *Client) EnsureFresh(ctx context.Context) error {
	if c.token == nil {
		return &APIError{Message: "no session token, login required", RequestID: undef, Err: ErrOAuth}
	}

	if !c.token.needsRefresh(time.Now()) {
		return nil
	}

	return c.refresh(ctx)
}

// refresh performs a refresh grant and mutates the session token in place.
// The refresh value is retained unless the provider rotates it.
func (c *Client) refresh(ctx context.Context) error {
	tok := c.token
	c.logger.Debug("refreshing token", slog.Time("expires_at", tok.ExpiresAt))

	// Expiry in the past forces the oauth2 token source to hit the
	// refresh grant instead of returning the cached token.
	src := c.oauthConfig().TokenSource(c.oauthContext(ctx), &oauth2.Token{
		AccessToken:  tok.AccessValue,
		RefreshToken: tok.RefreshValue,
		Expiry:       time.Now().Add(-time.Minute),
	})

	fresh, err := src.Token()
	if err != nil {
		return c.oauthError("refreshing token", err)
	}

	tok.AccessValue = fresh.AccessToken
	tok.ExpiresAt = fresh.Expiry
	if fresh.RefreshToken != "" {
		tok.RefreshValue = fresh.RefreshToken
	}

	c.logger.Debug("token refreshed", slog.Time("expires_at", tok.ExpiresAt))

	return nil
}

// Logout revokes the session token. When a refresh value exists the token
// is refreshed first so the deletion call itself is authorized with a live
// token. A deletion response other than 204 surfaces as ErrOAuth.
func (c *Client) Logout(ctx context.Context) error {
	if c.token == nil {
		return nil
	}

	if c.token.RefreshValue != "" {
		if err := c.refresh(ctx); err != nil {
			return err
		}
	}

	resource := "/accessToken/" + c.token.AccessValue

	resp, err := c.dispatch(ctx, http.MethodDelete, resource, nil)
	if err != nil {
		return reclassify(err, ErrOAuth)
	}

	if resp.StatusCode != http.StatusNoContent {
		return newAPIError(ErrOAuth, http.MethodDelete, resp.URL, resp.StatusCode, resp.Body)
	}

	c.logger.Info("token revoked")
	c.token = nil

	return nil
}

// oauthConfig builds the oauth2 configuration for the identity provider's
// token endpoint. Client credentials ride in the request body, which is
// what the provider's token endpoint expects for all three grants.
func (c *Client) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RedirectURL:  c.oauthRedirect,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.oauthBase + "/oauth/authorize",
			TokenURL:  c.oauthTokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (c *Client) oauthTokenURL() string {
	return c.oauthBase + "/oauth/token"
}

// oauthContext injects the session's HTTP client into the oauth2 library
// so token-endpoint calls share transport settings with API calls.
func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// oauthError maps an oauth2 library failure to ErrOAuth, carrying the
// provider's HTTP status and error body when available.
func (c *Client) oauthError(op string, err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) && rErr.Response != nil {
		apiErr := newAPIError(ErrOAuth, http.MethodPost, c.oauthTokenURL(), rErr.Response.StatusCode, rErr.Body)
		if apiErr.Message == undef {
			apiErr.Message = fmt.Sprintf("%s: %s", op, rErr.ErrorCode)
		}

		return apiErr
	}

	return &APIError{
		Method:    http.MethodPost,
		URL:       c.oauthTokenURL(),
		Message:   fmt.Sprintf("%s: %v", op, err),
		RequestID: undef,
		Err:       ErrOAuth,
	}
}

// fromOAuth2Token converts the oauth2 library's token into the session's
// in-place-mutable Token.
func fromOAuth2Token(tok *oauth2.Token) *Token {
	return &Token{
		AccessValue:  tok.AccessToken,
		Kind:         TokenBearer,
		ExpiresAt:    tok.Expiry,
		RefreshValue: tok.RefreshToken,
	}
}
