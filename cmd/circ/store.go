package main

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/and161185/library-circulation/internal/convert"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

var errLoginRequired = errors.New("no valid session (login required)")

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "circ")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "circ")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveTokens(t convert.Tokens) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(tokenFile{
		AccessToken:      t.AccessToken,
		RefreshToken:     t.RefreshToken,
		ExpiresAt:        t.ExpiresAt,
		RefreshExpiresAt: t.RefreshExpiresAt,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(tokenPath(), b, 0o600)
}

func loadTokens() (tokenFile, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return tokenFile{}, errLoginRequired
		}
		return tokenFile{}, err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return tokenFile{}, err
	}
	return tf, nil
}

func clearTokens() error {
	err := os.Remove(tokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// accessValid reports whether the stored access token can still be used at now.
func (tf tokenFile) accessValid(now time.Time) bool {
	return tf.AccessToken != "" && now.Before(tf.ExpiresAt)
}

func (tf tokenFile) refreshValid(now time.Time) bool {
	return tf.RefreshToken != "" && now.Before(tf.RefreshExpiresAt)
}
