package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(SessionDirEnv, dir)

	in := Session{Token: "tok", Username: "alice", APIBase: "http://localhost:8080", ExpiresAt: time.Now().Add(time.Hour).UTC()}
	require.NoError(t, SaveSession(in))

	info, err := os.Stat(filepath.Join(dir, "session.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err := LoadSession()
	require.NoError(t, err)
	assert.Equal(t, in.Token, out.Token)
	assert.Equal(t, in.APIBase, out.APIBase)

	require.NoError(t, ClearSession())
	_, err = LoadSession()
	assert.Error(t, err)
	require.NoError(t, ClearSession())
}

func TestSessionExpired(t *testing.T) {
	t.Setenv(SessionDirEnv, t.TempDir())
	require.NoError(t, SaveSession(Session{Token: "tok", Username: "bob", ExpiresAt: time.Now().Add(-time.Minute)}))
	_, err := LoadSession()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestSessionWithoutToken(t *testing.T) {
	t.Setenv(SessionDirEnv, t.TempDir())
	require.NoError(t, SaveSession(Session{Username: "bob"}))
	_, err := LoadSession()
	assert.EqualError(t, err, "no token found in session")
}
