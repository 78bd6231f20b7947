package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
)

const backupTimeFormat = "20060102_150405"

// Layout describes the node binary's on-disk state. The tool never writes
// inside it except for the per-account key info dumps; the rest is owned by
// seid and only backed up or removed wholesale.
type Layout struct {
	RootDir    string
	ConfigDir  string
	MarkerFile string
}

// NewLayout builds the layout rooted at the given directory.
func NewLayout(rootDir string) Layout {
	configDir := filepath.Join(rootDir, "config")

	return Layout{
		RootDir:    rootDir,
		ConfigDir:  configDir,
		MarkerFile: filepath.Join(configDir, "config.toml"),
	}
}

// DefaultLayout resolves the layout under the invoking user's home directory.
func DefaultLayout() (Layout, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Layout{}, fmt.Errorf("failed to resolve home directory: %w", err)
	}

	return NewLayout(filepath.Join(home, ".sei")), nil
}

// AlreadyInitializedError indicates that a prior run's state is still on
// disk. Moniker is best-effort diagnostic detail pulled from the marker file.
type AlreadyInitializedError struct {
	RootDir    string
	MarkerFile string
	Moniker    string
}

func (e *AlreadyInitializedError) Error() string {
	if e.Moniker != "" {
		return fmt.Sprintf("the file %s already exists (moniker %q), please reset your %s state", e.MarkerFile, e.Moniker, e.RootDir)
	}

	return fmt.Sprintf("the file %s already exists, please reset your %s state", e.MarkerFile, e.RootDir)
}

// ValidateClean fails when the marker config file from a prior initialization
// still exists. Existence alone triggers the failure; the moniker is read
// only to tell the operator which node the leftover state belongs to.
func (l Layout) ValidateClean(fs afero.Fs) error {
	exists, err := afero.Exists(fs, l.MarkerFile)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", l.MarkerFile, err)
	}

	if !exists {
		return nil
	}

	initErr := &AlreadyInitializedError{RootDir: l.RootDir, MarkerFile: l.MarkerFile}

	if bz, err := afero.ReadFile(fs, l.MarkerFile); err == nil {
		var marker struct {
			Moniker string `toml:"moniker"`
		}
		if err := toml.Unmarshal(bz, &marker); err == nil {
			initErr.Moniker = marker.Moniker
		}
	}

	return initErr
}

// Backup copies the whole state directory to a timestamped sibling and
// returns the backup path. Returns "" when there is nothing to back up.
func (l Layout) Backup(fs afero.Fs, now time.Time) (string, error) {
	exists, err := afero.DirExists(fs, l.RootDir)
	if err != nil {
		return "", fmt.Errorf("failed to check %s: %w", l.RootDir, err)
	}

	if !exists {
		return "", nil
	}

	backupPath := fmt.Sprintf("%s_backup_%s", l.RootDir, now.Format(backupTimeFormat))
	if err := copyTree(fs, l.RootDir, backupPath); err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", l.RootDir, err)
	}

	return backupPath, nil
}

// Remove deletes the state directory entirely.
func (l Layout) Remove(fs afero.Fs) error {
	if err := fs.RemoveAll(l.RootDir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", l.RootDir, err)
	}

	return nil
}

// KeyInfoPath returns the path of an account's credential dump file.
func (l Layout) KeyInfoPath(name string) string {
	return filepath.Join(l.ConfigDir, fmt.Sprintf("%s_key_info.txt", name))
}

// WriteKeyInfo persists the raw key-creation output verbatim for operator
// recovery and returns the file's path. The content includes the mnemonic,
// so the file is written operator-readable only.
func (l Layout) WriteKeyInfo(fs afero.Fs, name, raw string) (string, error) {
	if err := fs.MkdirAll(l.ConfigDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", l.ConfigDir, err)
	}

	path := l.KeyInfoPath(name)
	if err := afero.WriteFile(fs, path, []byte(raw), 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	return path, nil
}

func copyTree(fs afero.Fs, src, dst string) error {
	return afero.Walk(fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dst, rel)

		if info.IsDir() {
			return fs.MkdirAll(target, info.Mode().Perm())
		}

		bz, err := afero.ReadFile(fs, path)
		if err != nil {
			return err
		}

		return afero.WriteFile(fs, target, bz, info.Mode().Perm())
	})
}
