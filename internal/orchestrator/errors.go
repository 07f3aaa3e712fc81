package orchestrator

import (
	"fmt"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
)

// Switch stages reported by SwitchError.
const (
	StageLookup     = "lookup"
	StageDeactivate = "deactivate"
	StageActivate   = "activate"
)

// SwitchError reports which stage of a switch failed.
type SwitchError struct {
	Slug     string
	Previous string
	Stage    string
	Err      error
}

func (e *SwitchError) Error() string {
	return fmt.Sprintf("switch to %q failed at %s: %v", e.Slug, e.Stage, e.Err)
}

// Unwrap matches modes.ErrSwitchFailed as well as the stage's cause.
func (e *SwitchError) Unwrap() []error { return []error{modes.ErrSwitchFailed, e.Err} }
