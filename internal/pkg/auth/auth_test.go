package auth

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeJWT(t *testing.T, exp time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "edge-node",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("not-a-real-key"))
	require.NoError(t, err)
	return signed
}

func newTestCache(t *testing.T) *StoredTokenCache {
	t.Helper()

	c, err := NewStoredTokenCache(filepath.Join(t.TempDir(), "contxt", "tokens"))
	require.NoError(t, err)
	return c
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, err := TokenExpiry(makeJWT(t, exp))
	require.NoError(t, err)
	assert.True(t, got.Equal(exp))

	_, err = TokenExpiry("opaque-token")
	assert.Error(t, err)
}

func TestStoredTokenCacheRoundTrip(t *testing.T) {
	c := newTestCache(t)
	token := makeJWT(t, time.Now().Add(time.Hour))

	_, ok := c.GetToken("client", "https://control.example/")
	assert.False(t, ok)

	require.NoError(t, c.SetToken("client", "https://control.example/", token, "refresh"))

	got, ok := c.GetToken("client", "https://control.example/")
	assert.True(t, ok)
	assert.Equal(t, token, got)

	// a second cache sharing the file sees the token
	other, err := NewStoredTokenCache(c.FileName())
	require.NoError(t, err)
	got, ok = other.GetToken("client", "https://control.example/")
	assert.True(t, ok)
	assert.Equal(t, token, got)

	raw, err := os.ReadFile(c.FileName())
	require.NoError(t, err)
	var onDisk map[string]map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, "refresh", onDisk["client"]["https://control.example/"]["refresh_token"])
}

func TestStoredTokenCacheExpiry(t *testing.T) {
	c := newTestCache(t)
	now := time.Now()
	c.WithClock(func() time.Time { return now })

	// within MinTokenValidity of expiring counts as expired
	require.NoError(t, c.SetToken("client", "aud", makeJWT(t, now.Add(30*time.Second)), ""))
	_, ok := c.GetToken("client", "aud")
	assert.False(t, ok)

	token := makeJWT(t, now.Add(10*time.Minute))
	require.NoError(t, c.SetToken("client", "aud", token, ""))
	_, ok = c.GetToken("client", "aud")
	assert.True(t, ok)

	now = now.Add(20 * time.Minute)
	_, ok = c.GetToken("client", "aud")
	assert.False(t, ok)
}

func TestStoredTokenCacheClear(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.SetToken("client", "aud", makeJWT(t, time.Now().Add(time.Hour)), ""))
	require.NoError(t, c.Clear())

	_, ok := c.GetToken("client", "aud")
	assert.False(t, ok)

	// clearing an absent file is fine
	require.NoError(t, c.Clear())
}

func TestClientCredentialsFetchesAndCaches(t *testing.T) {
	defer gock.Off()

	token := makeJWT(t, time.Now().Add(time.Hour))
	gock.New("https://auth.example.com").
		Post("/oauth/token").
		Times(1).
		Reply(200).
		JSON(map[string]interface{}{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})

	c := newTestCache(t)
	provider := NewClientCredentials(c).WithAuthProvider("auth.example.com").WithClientSecret("s3cret")

	got, err := provider.GetToken(context.Background(), "client", "https://control.example/")
	require.NoError(t, err)
	assert.Equal(t, token, got)
	assert.True(t, gock.IsDone())

	// served from the cache, no second request
	got, err = provider.GetToken(context.Background(), "client", "https://control.example/")
	require.NoError(t, err)
	assert.Equal(t, token, got)
}

func TestClientCredentialsGrantFailure(t *testing.T) {
	defer gock.Off()

	gock.New("https://auth.example.com").
		Post("/oauth/token").
		Reply(401).
		JSON(map[string]string{"error": "access_denied"})

	provider := NewClientCredentials(newTestCache(t)).WithAuthProvider("https://auth.example.com/").WithClientSecret("s3cret")
	_, err := provider.GetToken(context.Background(), "client", "aud")
	assert.Error(t, err)
}

func TestClientCredentialsNeedsSecret(t *testing.T) {
	provider := NewClientCredentials(newTestCache(t))
	_, err := provider.GetToken(context.Background(), "client", "aud")
	assert.Error(t, err)
	assert.NotContains(t, provider.String(), "s3cret")
}

func TestStaticProvider(t *testing.T) {
	token, err := Static("abc").GetToken(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}
