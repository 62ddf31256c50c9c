package auth

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/go-homedir"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/jake-scott/contxt-cli/internal/pkg/logging"
)

const (
	defaultMinTokenValidity = time.Second * 60
	defaultTokenFile        = "~/.contxt/tokens"
)

// Version of a token that we marshal/unmarshal
type storedToken struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func hashOf(s string) string {
	sum := sha1.Sum([]byte(s))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// obfuscate tokens when stringified
func (t storedToken) String() string {
	return fmt.Sprintf("token [%s] refresh_token [%s]", hashOf(t.Token), hashOf(t.RefreshToken))
}

// On-disk layout: client ID -> audience -> token
type tokenFile map[string]map[string]storedToken

// StoredTokenCache keeps access tokens per (client ID, audience) in memory and
// in a JSON file shared with other invocations of the CLI.
type StoredTokenCache struct {
	MinTokenValidity time.Duration

	fileName string
	mem      *cache.Cache
	now      func() time.Time
	mu       sync.Mutex
}

// NewStoredTokenCache returns a cache backed by fileName; an empty name
// selects ~/.contxt/tokens
func NewStoredTokenCache(fileName string) (*StoredTokenCache, error) {
	if fileName == "" {
		fileName = defaultTokenFile
	}

	expanded, err := homedir.Expand(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "expanding token cache path %s", fileName)
	}

	return &StoredTokenCache{
		MinTokenValidity: defaultMinTokenValidity,
		fileName:         expanded,
		mem:              cache.New(cache.NoExpiration, time.Minute*10),
		now:              time.Now,
	}, nil
}

// WithClock replaces the time source used for expiry checks
func (c *StoredTokenCache) WithClock(now func() time.Time) *StoredTokenCache {
	c.now = now
	return c
}

// FileName returns the path of the backing file
func (c *StoredTokenCache) FileName() string {
	return c.fileName
}

func cacheKey(clientID, audience string) string {
	return clientID + "|" + audience
}

// TokenExpiry returns the exp claim of a JWT access token.  The signature is
// not verified; only the issuer can do that.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, errors.Wrap(err, "parsing access token")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, errors.Wrap(err, "reading token expiry")
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("access token has no exp claim")
	}

	return exp.Time, nil
}

// usable reports whether the token stays valid for at least MinTokenValidity,
// returning how long it may be kept in memory
func (c *StoredTokenCache) usable(token string) (time.Duration, bool) {
	exp, err := TokenExpiry(token)
	if err != nil {
		logging.Logger(nil).WithError(err).Debug("treating cached token as expired")
		return 0, false
	}

	remaining := exp.Sub(c.now()) - c.MinTokenValidity
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

// GetToken returns a cached, unexpired token for the client and audience
func (c *StoredTokenCache) GetToken(clientID, audience string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(clientID, audience)
	if v, ok := c.mem.Get(key); ok {
		token := v.(string)
		if _, ok := c.usable(token); ok {
			return token, true
		}
		c.mem.Delete(key)
	}

	tokens, err := c.load()
	if err != nil {
		logging.Logger(nil).WithError(err).Warn("reading token cache")
		return "", false
	}

	stored, ok := tokens[clientID][audience]
	if !ok {
		logging.Logger(nil).Debugf("no cached token for client %s, audience %s", clientID, audience)
		return "", false
	}

	ttl, ok := c.usable(stored.Token)
	if !ok {
		logging.Logger(nil).Debugf("cached token for client %s, audience %s has expired", clientID, audience)
		return "", false
	}

	c.mem.Set(key, stored.Token, ttl)
	return stored.Token, true
}

// SetToken stores a token for the client and audience, in memory and on disk
func (c *StoredTokenCache) SetToken(clientID, audience, token, refreshToken string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl, ok := c.usable(token); ok {
		c.mem.Set(cacheKey(clientID, audience), token, ttl)
	}

	tokens, err := c.load()
	if err != nil {
		return err
	}

	if tokens[clientID] == nil {
		tokens[clientID] = map[string]storedToken{}
	}
	st := storedToken{Token: token, RefreshToken: refreshToken}
	tokens[clientID][audience] = st

	logging.Logger(nil).Debugf("storing token for client %s, audience %s: %s", clientID, audience, st)
	return c.save(tokens)
}

// Clear removes every cached token
func (c *StoredTokenCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mem.Flush()
	if err := os.Remove(c.fileName); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing token cache %s", c.fileName)
	}
	return nil
}

func (c *StoredTokenCache) load() (tokenFile, error) {
	tokens := tokenFile{}

	file, err := os.Open(c.fileName)
	if os.IsNotExist(err) {
		return tokens, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening token cache %s for read", c.fileName)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&tokens); err != nil {
		return nil, errors.Wrapf(err, "loading token cache from %s", c.fileName)
	}
	return tokens, nil
}

func (c *StoredTokenCache) save(tokens tokenFile) error {
	if err := os.MkdirAll(filepath.Dir(c.fileName), 0700); err != nil {
		return errors.Wrapf(err, "creating token cache directory for %s", c.fileName)
	}

	file, err := os.OpenFile(c.fileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrapf(err, "opening token cache %s for write", c.fileName)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(tokens); err != nil {
		return errors.Wrapf(err, "saving token cache to %s", c.fileName)
	}
	return nil
}
