// Package tokenfile persists the Feishu user-token JSON document described
// in §6: a flat object with access_token, refresh_token, token_type,
// expires_in, refresh_expires_in, and created_at (epoch milliseconds).
package tokenfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// FilePerms matches the teacher's token-file permission (owner read/write
	// only — the file carries a live bearer credential).
	FilePerms = 0o600
	// DirPerms is applied when the parent directory must be created.
	DirPerms = 0o700
)

// File is the on-disk shape of the token file.
type File struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
	CreatedAt        int64  `json:"created_at"`
}

// ExpiresAt returns the absolute instant the access token expires.
func (f *File) ExpiresAt() time.Time {
	created := time.UnixMilli(f.CreatedAt)
	return created.Add(time.Duration(f.ExpiresIn) * time.Second)
}

// RefreshExpiresAt returns the absolute instant the refresh token expires.
func (f *File) RefreshExpiresAt() time.Time {
	created := time.UnixMilli(f.CreatedAt)
	return created.Add(time.Duration(f.RefreshExpiresIn) * time.Second)
}

// NeedsRefresh reports whether the access token is within margin of expiry,
// or already expired. The spec requires a safety margin of at least 5
// minutes (§4.1).
func (f *File) NeedsRefresh(margin time.Duration, now time.Time) bool {
	return !now.Before(f.ExpiresAt().Add(-margin))
}

// Load reads a token file. A missing file is reported via os.IsNotExist on
// the returned error so callers can fall back to another acquisition path.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing token file %s: %w", path, err)
	}
	return &f, nil
}

// Save writes f to path as an atomic write-temp-then-rename, matching the
// token-file ownership rule in §5: "writes are full-rewrite".
func Save(path string, f *File) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("creating token directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling token file: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.json.tmp")
	if err != nil {
		return fmt.Errorf("creating temp token file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("setting token file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp token file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming token file into place: %w", err)
	}

	return nil
}

// NewFromResponse builds a File from a freshly obtained or refreshed token,
// stamping CreatedAt at now.
func NewFromResponse(accessToken, refreshToken, tokenType string, expiresIn, refreshExpiresIn int64, now time.Time) *File {
	return &File{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        tokenType,
		ExpiresIn:        expiresIn,
		RefreshExpiresIn: refreshExpiresIn,
		CreatedAt:        now.UnixMilli(),
	}
}
