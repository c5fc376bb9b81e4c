package core

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModuleID is a dotted, namespaced module identifier such as
// "bot.telegram" or "plugin.notes". The part before the first dot is the
// module namespace; plugin discovery selects modules by it.
type ModuleID string

// Namespace returns the leading segment of the ID.
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// Validate reports whether id has the "<namespace>.<name>" form.
func (id ModuleID) Validate() error {
	ns, name, ok := strings.Cut(string(id), ".")
	switch {
	case id == "":
		return fmt.Errorf("module ID must not be empty")
	case !ok || ns == "" || name == "":
		return fmt.Errorf("module ID %q must have the form <namespace>.<name>", id)
	case strings.ContainsAny(string(id), " \t\n"):
		return fmt.Errorf("module ID %q must not contain whitespace", id)
	}
	return nil
}

// Module is implemented by every compiled-in module.
type Module interface {
	ModuleInfo() ModuleInfo
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is the unique module identifier used as the configuration key.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// A module takes part in the phases it implements, in this order:
// Configure, Provision, Validate while loading, then Start and Stop.

// Configurable receives the module's node from the "modules" section.
// It is skipped when the section has no entry for the module.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner applies defaults, builds collaborators and publishes
// services on the AppContext.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator checks the provisioned module without side effects.
type Validator interface {
	Validate() error
}

// Starter launches background work once every module is loaded. Plugins
// are registered on the bot's chain before any Start runs.
type Starter interface {
	Start() error
}

// Stopper releases what Start acquired. Modules stop in reverse start order.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Phase names a lifecycle step.
type Phase string

// Lifecycle phases reported in ModuleError.
const (
	PhaseLoad      Phase = "load"
	PhaseConfigure Phase = "configure"
	PhaseProvision Phase = "provision"
	PhaseValidate  Phase = "validate"
	PhaseStart     Phase = "start"
)

// ModuleError is returned when a module fails one of its lifecycle phases.
type ModuleError struct {
	Module ModuleID
	Phase  Phase
	Err    error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module %s: %s: %v", e.Module, e.Phase, e.Err)
}

func (e *ModuleError) Unwrap() error { return e.Err }
