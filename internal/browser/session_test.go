package browser

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
)

func TestSessionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	in := &Session{
		SavedAt: time.Now().UTC().Truncate(time.Second),
		Cookies: []*network.CookieParam{
			{Name: "sid", Value: "abc", Domain: ".example.com", Path: "/", Secure: true, HTTPOnly: true},
		},
		LocalStorage: map[string]string{"auth": "token"},
	}
	require.NoError(t, SaveSession(path, in))

	out, err := LoadSession(path)
	require.NoError(t, err)
	require.True(t, in.SavedAt.Equal(out.SavedAt))
	require.Len(t, out.Cookies, 1)
	require.Equal(t, "sid", out.Cookies[0].Name)
	require.Equal(t, "token", out.LocalStorage["auth"])
}

func TestSessionFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, SaveSession(path, &Session{SavedAt: time.Now()}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadSessionMissing(t *testing.T) {
	_, err := LoadSession(filepath.Join(t.TempDir(), "nope.json"))
	require.ErrorIs(t, err, ErrNoSession)
}

func TestLoadSessionCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))

	_, err := LoadSession(path)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoSession)
}
