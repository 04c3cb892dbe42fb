package security

import (
	"context"
	"fmt"
	"sync"
	"time"

	oidc "github.com/coreos/go-oidc"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"
)

// providerTTL is how long a fetched issuer configuration (and its key set)
// is reused before being refreshed.
const providerTTL = time.Hour

// OIDCVerifier verifies browser session tokens against the identity
// provider. The provider handle and its signing keys are process-wide state
// with an explicit lifecycle: fetched on first use, refreshed on a fixed
// TTL, guarded by a single mutex so the refresh has one writer.
type OIDCVerifier struct {
	issuer       string
	clientID     string
	clientSecret string
	redirectURL  string

	mu        sync.Mutex
	provider  *oidc.Provider
	verifier  *oidc.IDTokenVerifier
	fetchedAt time.Time
}

func NewOIDCVerifier() *OIDCVerifier {
	return &OIDCVerifier{
		issuer:       viper.GetString("oidc.issuer"),
		clientID:     viper.GetString("oidc.client_id"),
		clientSecret: viper.GetString("oidc.client_secret"),
		redirectURL:  viper.GetString("oidc.redirect_uri"),
	}
}

func (o *OIDCVerifier) load(ctx context.Context) (*oidc.Provider, *oidc.IDTokenVerifier, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.provider != nil && time.Since(o.fetchedAt) < providerTTL {
		return o.provider, o.verifier, nil
	}

	provider, err := oidc.NewProvider(ctx, o.issuer)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to discover OIDC issuer, %w", err)
	}

	o.provider = provider
	o.verifier = provider.Verifier(&oidc.Config{ClientID: o.clientID})
	o.fetchedAt = time.Now()

	return o.provider, o.verifier, nil
}

func (o *OIDCVerifier) check(ctx context.Context, rawToken string) (*oidc.IDToken, *Identity, error) {
	_, verifier, err := o.load(ctx)
	if err != nil {
		return nil, nil, err
	}

	idToken, err := verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, nil, fmt.Errorf("id token rejected, %w", err)
	}

	var claims struct {
		Email string   `json:"email"`
		Name  string   `json:"name"`
		Roles []string `json:"roles"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, nil, fmt.Errorf("failed to read id token claims, %w", err)
	}

	name := claims.Name
	if name == "" {
		name = claims.Email
	}

	return idToken, &Identity{
		UserID: idToken.Subject,
		Email:  claims.Email,
		Name:   name,
		Roles:  claims.Roles,
	}, nil
}

// Verify checks a raw id_token against the issuer's key set and extracts
// the identity claims.
func (o *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	_, id, err := o.check(ctx, rawToken)
	return id, err
}

// VerifyLogin checks a freshly exchanged id_token, including the nonce
// minted for this login attempt, and reports when the token expires so the
// session cookie can match its lifetime.
func (o *OIDCVerifier) VerifyLogin(ctx context.Context, rawToken, nonce string) (*Identity, time.Time, error) {
	idToken, id, err := o.check(ctx, rawToken)
	if err != nil {
		return nil, time.Time{}, err
	}

	if idToken.Nonce != nonce {
		return nil, time.Time{}, fmt.Errorf("id token nonce mismatch")
	}

	return id, idToken.Expiry, nil
}

// OAuthConfig returns the oauth2 exchange config for the login redirect
// flow.
func (o *OIDCVerifier) OAuthConfig(ctx context.Context) (*oauth2.Config, error) {
	provider, _, err := o.load(ctx)
	if err != nil {
		return nil, err
	}

	return &oauth2.Config{
		ClientID:     o.clientID,
		ClientSecret: o.clientSecret,
		RedirectURL:  o.redirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}, nil
}
