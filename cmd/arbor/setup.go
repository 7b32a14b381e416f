package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"arbor/internal/audit"
	"arbor/internal/cache"
	"arbor/internal/check"
	"arbor/internal/config"
	"arbor/internal/suppress"
)

// loadConfig reads --config, or arbor.toml found upwards from the working
// directory, or falls back to the defaults.
func loadConfig(path string, log *zap.Logger) (*config.Config, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		found, ok, err := config.Find(wd)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Debug("no configuration file, using defaults")
			return config.Default(), nil
		}
		path = found
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log.Debug("configuration loaded", zap.String("path", path), zap.Int("checks", len(cfg.Checks)))
	return cfg, nil
}

// checkSpecs returns the configured checks; without [[check]] tables every
// registered check runs with its defaults and the run severity.
func checkSpecs(cfg *config.Config, reg *check.Registry) ([]check.Spec, error) {
	if len(cfg.Checks) > 0 {
		return cfg.Specs()
	}
	sev, err := check.ParseSeverity(cfg.Run.Severity)
	if err != nil {
		return nil, err
	}
	names := reg.Names()
	specs := make([]check.Spec, len(names))
	for i, name := range names {
		specs[i] = check.Spec{Name: name, Severity: sev}
	}
	return specs, nil
}

// buildFilters turns [[filter]] tables into pipeline filters, in order.
func buildFilters(cfg *config.Config, tabWidth int) ([]audit.Filter, error) {
	filters := make([]audit.Filter, 0, len(cfg.Filters))
	for i, fc := range cfg.Filters {
		switch fc.Type {
		case config.FilterSuppressions:
			s, err := suppress.Load(cfg.Resolve(fc.File), tabWidth)
			if err != nil {
				return nil, fmt.Errorf("[[filter]] #%d: %w", i+1, err)
			}
			filters = append(filters, s)
		case config.FilterSuppress:
			el, err := suppress.NewElement(suppress.Rule{
				Files:   fc.Files,
				Checks:  fc.Checks,
				Message: fc.Message,
				ID:      fc.ID,
				Query:   fc.Query,
			}, tabWidth)
			if err != nil {
				return nil, fmt.Errorf("[[filter]] #%d: %w", i+1, err)
			}
			filters = append(filters, el)
		case config.FilterSeverity:
			sev, err := check.ParseSeverity(fc.Min)
			if err != nil {
				return nil, fmt.Errorf("[[filter]] #%d: %w", i+1, err)
			}
			filters = append(filters, audit.SeverityFilter{Min: sev})
		default:
			return nil, fmt.Errorf("[[filter]] #%d: unknown type %q", i+1, fc.Type)
		}
	}
	return filters, nil
}

// openCache opens the clean-file cache keyed by the fingerprint of cfg;
// nil when no cache file is configured.
func openCache(cfg *config.Config, log *zap.Logger) (*cache.Cache, error) {
	if cfg.Run.CacheFile == "" {
		return nil, nil
	}
	fp, err := cache.Fingerprint(cacheKey{Run: cfg.Run, Checks: cfg.Checks, Filters: cfg.Filters})
	if err != nil {
		return nil, fmt.Errorf("cache fingerprint: %w", err)
	}
	return cache.Open(cfg.Resolve(cfg.Run.CacheFile), fp, log)
}

// cacheKey is the part of the configuration that decides whether a cached
// clean result still holds.
type cacheKey struct {
	Run     config.RunConfig
	Checks  []config.CheckConfig
	Filters []config.FilterConfig
}
