package engine

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/photomirror/catalog"
	"github.com/jon4hz/photomirror/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testCredentials = `{
  "installed": {
    "client_id": "test-client-id",
    "client_secret": "test-client-secret",
    "redirect_uris": ["http://localhost"],
    "auth_uri": "https://accounts.google.com/o/oauth2/auth",
    "token_uri": "https://oauth2.googleapis.com/token"
  }
}`

func testIdentityConfig(t *testing.T) *config.IdentityConfig {
	t.Helper()
	dir := t.TempDir()
	authFile := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(authFile, []byte(testCredentials), 0o600))

	return &config.IdentityConfig{
		DataDir:     filepath.Join(dir, "data"),
		AuthFile:    authFile,
		Concurrency: 2,
	}
}

func TestNewIdentity(t *testing.T) {
	cfg := testIdentityConfig(t)

	identity, err := NewIdentity("personal", cfg, log.New(io.Discard))
	require.NoError(t, err)
	defer identity.Close() //nolint:errcheck

	assert.Equal(t, "personal", identity.Name())

	// The data directory and catalog were created.
	_, err = os.Stat(filepath.Join(cfg.DataDir, "photomirror.db"))
	assert.NoError(t, err)

	// Media files and album links live under the library subdirectory, next
	// to (not mixed with) the catalog and lock file.
	assert.Equal(t, filepath.Join(cfg.DataDir, "library"), identity.media.libraryDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "library"), identity.albums.libraryDir)

	stats, err := identity.Stats(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.LastMediaIndex.IsZero())
	assert.True(t, stats.LastAlbumsIndex.IsZero())
}

func TestIdentity_Lock(t *testing.T) {
	cfg := testIdentityConfig(t)

	identity, err := NewIdentity("personal", cfg, log.New(io.Discard))
	require.NoError(t, err)
	defer identity.Close() //nolint:errcheck

	require.NoError(t, identity.Lock())
	assert.ErrorIs(t, identity.Lock(), ErrLocked)
	require.NoError(t, identity.Unlock())
	require.NoError(t, identity.Lock())
	require.NoError(t, identity.Unlock())
}

func TestSettingsTokenStore(t *testing.T) {
	cat, err := catalog.Open(t.TempDir())
	require.NoError(t, err)
	defer cat.Close() //nolint:errcheck

	store := &settingsTokenStore{cat: cat}
	ctx := context.Background()

	token, err := store.Token(ctx)
	require.NoError(t, err)
	assert.Nil(t, token)

	want := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).UTC(),
	}
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Token(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.True(t, want.Expiry.Equal(got.Expiry))
}

func TestManager_UnknownIdentity(t *testing.T) {
	cfg := &config.Config{Identities: map[string]*config.IdentityConfig{
		"personal": testIdentityConfig(t),
	}}

	_, err := NewManager(cfg, log.New(io.Discard), []string{"missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown identity")
}

func TestManager_SelectsAllByDefault(t *testing.T) {
	cfg := &config.Config{Identities: map[string]*config.IdentityConfig{
		"b": testIdentityConfig(t),
		"a": testIdentityConfig(t),
	}}

	mgr, err := NewManager(cfg, log.New(io.Discard), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, mgr.Identities())
}

func TestManager_Run_IsolatesFailures(t *testing.T) {
	cfg := &config.Config{Identities: map[string]*config.IdentityConfig{
		"a": testIdentityConfig(t),
		"b": testIdentityConfig(t),
	}}

	mgr, err := NewManager(cfg, log.New(io.Discard), nil)
	require.NoError(t, err)

	var ran []string
	err = mgr.Run(context.Background(), func(_ context.Context, identity *Identity) error {
		ran = append(ran, identity.Name())
		if identity.Name() == "a" {
			return assert.AnError
		}
		return nil
	})

	// Identity b still ran even though a failed.
	require.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, ran)
}

func TestManager_Run_ReleasesLock(t *testing.T) {
	cfg := &config.Config{Identities: map[string]*config.IdentityConfig{
		"a": testIdentityConfig(t),
	}}

	mgr, err := NewManager(cfg, log.New(io.Discard), nil)
	require.NoError(t, err)

	require.NoError(t, mgr.Run(context.Background(), func(_ context.Context, _ *Identity) error {
		_, err := os.Stat(filepath.Join(cfg.Identities["a"].DataDir, lockFileName))
		assert.NoError(t, err)
		return nil
	}))

	// The lock is gone after the run.
	_, err = os.Stat(filepath.Join(cfg.Identities["a"].DataDir, lockFileName))
	assert.True(t, os.IsNotExist(err))
}
