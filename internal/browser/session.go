package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
)

// Session is the persisted authenticated-session blob: cookies plus the
// portal origin's localStorage. It is written after a successful login
// and read on every subsequent run. Its validity is never inspected
// here: the portal itself rejects stale sessions, which the auth flow
// detects through URL and sign-in form checks.
type Session struct {
	SavedAt      time.Time              `json:"saved_at"`
	Cookies      []*network.CookieParam `json:"cookies"`
	LocalStorage map[string]string      `json:"local_storage"`
}

// ErrNoSession is returned by LoadSession when no blob exists yet.
var ErrNoSession = errors.New("browser: no persisted session")

// LoadSession reads a Session blob from path. A missing file returns
// ErrNoSession; an unreadable or corrupt file returns the underlying
// error. Both are non-fatal for the pipeline, which then logs in fresh.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("browser: read session file: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("browser: decode session file: %w", err)
	}
	return &s, nil
}

// SaveSession writes the Session blob whole (no partial updates), with
// the same atomic rename + 0600 discipline as the config file.
func SaveSession(path string, s *Session) error {
	if path == "" {
		return errors.New("browser: session path is empty")
	}
	if s == nil {
		return errors.New("browser: session is nil")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".apptsheet-session-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
