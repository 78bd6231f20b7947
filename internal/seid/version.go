package seid

import (
	"context"
	"encoding/json"
	"fmt"

	goversion "github.com/hashicorp/go-version"
	"go.uber.org/zap"
)

// VersionInfo is the parsed form of `version --long --output json`.
type VersionInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// Version reports the installed binary's build information.
func (b *Binary) Version(ctx context.Context) (VersionInfo, error) {
	out, err := b.runner.Run(ctx, b.name, "version", "--long", "--output", "json")
	if err != nil {
		return VersionInfo{}, fmt.Errorf("failed to read binary version: %w", err)
	}

	var info VersionInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		return VersionInfo{}, fmt.Errorf("failed to parse version output: %w", err)
	}

	return info, nil
}

// EnsureVersion fails when the installed binary does not report the expected
// version. Comparison is semantic, so "v3.0.5" and "3.0.5" match.
func (b *Binary) EnsureVersion(ctx context.Context, expected string) error {
	info, err := b.Version(ctx)
	if err != nil {
		return err
	}

	want, err := goversion.NewVersion(expected)
	if err != nil {
		return fmt.Errorf("invalid expected version %q: %w", expected, err)
	}

	got, err := goversion.NewVersion(info.Version)
	if err != nil {
		return fmt.Errorf("binary reported an unparseable version %q: %w", info.Version, err)
	}

	if !got.Equal(want) {
		return fmt.Errorf("expected version %s but the installed binary reports %s", expected, info.Version)
	}

	b.logger.Info("binary version verified", zap.String("version", info.Version), zap.String("commit", info.Commit))

	return nil
}
