package config

import (
	"errors"
	"fmt"

	"github.com/flemzord/tgplug/internal/core"
)

// RequiredModule is the module every configuration must enable.
const RequiredModule = "bot.telegram"

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present, checks that
// all referenced module IDs exist in the registry and that the bot module
// is configured, and validates the log and telemetry sections.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	} else if _, ok := cfg.Modules[RequiredModule]; !ok {
		errs = append(errs, fmt.Errorf("config: module %q must be configured", RequiredModule))
	}

	for _, id := range cfg.ModuleIDs() {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	if _, err := cfg.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if _, err := cfg.Log.OutputFormat(); err != nil {
		errs = append(errs, err)
	}
	if err := cfg.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}

	return errors.Join(errs...)
}
