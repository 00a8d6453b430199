package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type tokenFile struct {
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

// FileTier keeps the token in a JSON file readable only by the owner.
type FileTier struct {
	Path string
}

// NewFileTier creates a tier writing to path.
func NewFileTier(path string) *FileTier {
	return &FileTier{Path: path}
}

func (f *FileTier) Get(_ context.Context) (string, bool, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading token file %s: %w", f.Path, err)
	}
	var stored tokenFile
	if err := json.Unmarshal(data, &stored); err != nil {
		return "", false, fmt.Errorf("parsing token file %s: %w", f.Path, err)
	}
	if stored.Token == "" {
		return "", false, nil
	}
	return stored.Token, true, nil
}

// Set writes the file with mode 0600, creating the parent directory with 0700.
func (f *FileTier) Set(_ context.Context, token string) error {
	data, err := json.MarshalIndent(tokenFile{Token: token, SavedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling token: %w", err)
	}
	data = append(data, '\n')

	directory := filepath.Dir(f.Path)
	if err := os.MkdirAll(directory, 0700); err != nil {
		return fmt.Errorf("creating token directory %s: %w", directory, err)
	}
	if err := os.WriteFile(f.Path, data, 0600); err != nil {
		return fmt.Errorf("writing token file %s: %w", f.Path, err)
	}
	return nil
}

func (f *FileTier) Delete(_ context.Context) error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file %s: %w", f.Path, err)
	}
	return nil
}

// DurablePath is the default location of the durable token file:
// $XDG_CONFIG_HOME/rollbook/token.json, falling back to ~/.config.
func DurablePath() string {
	configDirectory := os.Getenv("XDG_CONFIG_HOME")
	if configDirectory == "" {
		homeDirectory, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "rollbook", "token.json")
		}
		configDirectory = filepath.Join(homeDirectory, ".config")
	}
	return filepath.Join(configDirectory, "rollbook", "token.json")
}

// SessionPath is the default location of the session-scoped token file under
// $XDG_RUNTIME_DIR, which the system clears on logout. It returns "" when no
// runtime directory is available.
func SessionPath() string {
	runtimeDirectory := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDirectory == "" {
		return ""
	}
	return filepath.Join(runtimeDirectory, "rollbook", "token.json")
}
