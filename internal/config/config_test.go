package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "apptsheet.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://partners.fresha.com", cfg.Portal.BaseURL)
	require.Equal(t, 1, cfg.TargetDateOffsetDays)
	require.FileExists(t, path)

	// Second load reads the file that was just written.
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Portal.BaseURL, again.Portal.BaseURL)
	require.Equal(t, cfg.Columns.Reference, again.Columns.Reference)
}

func TestLoadPartialFileGetsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apptsheet.yaml")
	body := "portal:\n  base_url: https://portal.test\nartifact_dir: out\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://portal.test", cfg.Portal.BaseURL)
	require.Equal(t, "out", cfg.ArtifactDir)
	require.Equal(t, "/sales/appointments-list/", cfg.Portal.ListPath)
	require.Equal(t, 300, cfg.Portal.TypeKeyDelayMs)
	require.NotEmpty(t, cfg.Columns.Phone)
	require.NotEmpty(t, cfg.Message.Template)
}

func TestNormalizeUnknownPhonePolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Grouping.UnknownPhonePolicy = "whatever"
	cfg.Normalize()
	require.Equal(t, UnknownSeparate, cfg.Grouping.UnknownPhonePolicy)

	cfg.Grouping.UnknownPhonePolicy = UnknownMerge
	cfg.Normalize()
	require.Equal(t, UnknownMerge, cfg.Grouping.UnknownPhonePolicy)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apptsheet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\n\t bad"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestURLHelpers(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, "https://partners.fresha.com/sales/appointments-list/", cfg.ListURL())
	require.Equal(t, "https://partners.fresha.com/users/sign-in", cfg.SignInURL())
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv(EnvEmail, "salon@example.com")
	t.Setenv(EnvPassword, "hunter2")

	creds, err := CredentialsFromEnv()
	require.NoError(t, err)
	require.Equal(t, "salon@example.com", creds.Email)
	require.Equal(t, "hunter2", creds.Password)
}

func TestCredentialsFromEnvMissing(t *testing.T) {
	t.Setenv(EnvEmail, "salon@example.com")
	t.Setenv(EnvPassword, "")

	_, err := CredentialsFromEnv()
	require.Error(t, err)
}

func TestLoadDotenvDoesNotOverrideEnv(t *testing.T) {
	t.Setenv(EnvEmail, "explicit@example.com")
	t.Setenv(EnvPassword, "explicit-pass")

	path := filepath.Join(t.TempDir(), ".env")
	body := EnvEmail + "=dotfile@example.com\n" + EnvPassword + "=dotfile-pass\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	LoadDotenv(path)

	creds, err := CredentialsFromEnv()
	require.NoError(t, err)
	require.Equal(t, "explicit@example.com", creds.Email)
}
