// Package services holds the business logic behind the stt commands.
package services

import (
	"github.com/conneroisu/stt/internal/build"
	"github.com/conneroisu/stt/internal/config"
	"github.com/conneroisu/stt/internal/errors"
	"github.com/conneroisu/stt/internal/logging"
	"github.com/conneroisu/stt/internal/registry"
	"github.com/conneroisu/stt/internal/transformer"
)

// NewBackend builds the Go backend described by the backend section. The
// artifact cache is left out when caching is disabled.
func NewBackend(cfg *config.Config, logger logging.Logger) (*build.GoBackend, error) {
	opts := []build.GoOption{
		build.WithGoBinary(cfg.Backend.GoBinary),
		build.WithGoVersion(cfg.Backend.GoVersion),
		build.WithVet(cfg.Backend.Vet),
		build.WithBackendLogger(logger),
	}

	if !cfg.Backend.NoCache {
		cache, err := build.NewArtifactCache(cfg.Backend.CacheDir, cfg.Backend.CacheSize, 0)
		if err != nil {
			return nil, errors.NewIOError("", "opening artifact cache", err).
				WithContext("dir", cfg.Backend.CacheDir)
		}
		opts = append(opts, build.WithCache(cache))
	}

	return build.NewGoBackend(opts...), nil
}

// TransformerOptions turns the configuration into transformer options.
// extra options are applied last.
func TransformerOptions(cfg *config.Config, backend build.Backend, reg *registry.Registry, logger logging.Logger, extra ...transformer.Option) []transformer.Option {
	opts := []transformer.Option{
		transformer.WithBaseDir(cfg.Templates.BaseDir),
		transformer.WithBackend(backend),
		transformer.WithRegistry(reg),
		transformer.WithLogger(logger),
		transformer.WithProvenance(cfg.Templates.Provenance),
		transformer.WithTrim(cfg.Templates.Trim),
		transformer.WithModules(cfg.Backend.Modules...),
	}
	if cfg.Templates.StagingDir != "" {
		opts = append(opts, transformer.WithStagingDir(cfg.Templates.StagingDir))
	}
	return append(opts, extra...)
}

// LoadRegistry merges the snapshot at path into reg so tokens minted by
// earlier runs still resolve. A missing snapshot is not an error.
func LoadRegistry(reg *registry.Registry, path string) error {
	if path == "" {
		return nil
	}
	if err := reg.LoadFile(path); err != nil {
		return errors.NewIOError("", "loading registry snapshot", err).WithContext("path", path)
	}
	return nil
}

// SaveRegistry writes reg to path when it holds any token.
func SaveRegistry(reg *registry.Registry, path string) error {
	if path == "" || reg.Count() == 0 {
		return nil
	}
	if err := reg.SaveFile(path); err != nil {
		return errors.NewIOError("", "saving registry snapshot", err).WithContext("path", path)
	}
	return nil
}
