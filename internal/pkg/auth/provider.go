package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/jake-scott/contxt-cli/internal/pkg/logging"
)

const defaultAuthProvider = "contxt.auth0.com"

// TokenProvider supplies bearer tokens for an API audience
type TokenProvider interface {
	GetToken(ctx context.Context, clientID string, audience string) (string, error)
}

// ClientCredentials fetches tokens with the OAuth2 client-credentials grant,
// caching them in a StoredTokenCache
type ClientCredentials struct {
	AuthProvider string

	clientSecret string
	cache        *StoredTokenCache
}

func NewClientCredentials(cache *StoredTokenCache) ClientCredentials {
	return ClientCredentials{
		AuthProvider: defaultAuthProvider,
		cache:        cache,
	}
}

func (c ClientCredentials) WithClientSecret(secret string) ClientCredentials {
	c.clientSecret = secret
	return c
}

func (c ClientCredentials) WithAuthProvider(provider string) ClientCredentials {
	if provider != "" {
		c.AuthProvider = provider
	}
	return c
}

// obfuscate the secret when stringified
func (c ClientCredentials) String() string {
	return fmt.Sprintf("AuthProvider [%s] clientSecret [%s]", c.AuthProvider, hashOf(c.clientSecret))
}

func (c ClientCredentials) tokenURL() string {
	if strings.HasPrefix(c.AuthProvider, "http://") || strings.HasPrefix(c.AuthProvider, "https://") {
		return strings.TrimSuffix(c.AuthProvider, "/") + "/oauth/token"
	}
	return "https://" + c.AuthProvider + "/oauth/token"
}

// GetToken returns a cached token if one is still valid, else runs the
// client-credentials grant and caches the result
func (c ClientCredentials) GetToken(ctx context.Context, clientID string, audience string) (string, error) {
	if c.cache != nil {
		if token, ok := c.cache.GetToken(clientID, audience); ok {
			return token, nil
		}
	}

	if c.clientSecret == "" {
		return "", fmt.Errorf("no client secret configured for client %s, cannot execute client credentials grant", clientID)
	}

	logging.Logger(ctx).Debugf("fetching token for client %s, audience %s from %s", clientID, audience, c.AuthProvider)

	cfg := clientcredentials.Config{
		ClientID:       clientID,
		ClientSecret:   c.clientSecret,
		TokenURL:       c.tokenURL(),
		EndpointParams: url.Values{"audience": {audience}},
		AuthStyle:      oauth2.AuthStyleInParams,
	}

	token, err := cfg.Token(ctx)
	if err != nil {
		return "", errors.Wrapf(err, "executing client credentials grant for %s", audience)
	}

	if c.cache != nil {
		if err := c.cache.SetToken(clientID, audience, token.AccessToken, token.RefreshToken); err != nil {
			logging.Logger(ctx).WithError(err).Warn("caching access token")
		}
	}

	return token.AccessToken, nil
}

// Static always returns the same token; an empty token disables authentication
type Static string

func (s Static) GetToken(ctx context.Context, clientID string, audience string) (string, error) {
	return string(s), nil
}
