package modes

import (
	"context"
	"time"
)

// Hook names one lifecycle extension point.
type Hook string

const (
	HookPreActivate      Hook = "pre_activate"
	HookLoadTools        Hook = "load_tools"
	HookLoadCapabilities Hook = "load_capabilities"
	HookOnActivate       Hook = "on_activate"
	HookOnExecute        Hook = "on_execute"
	HookPreDeactivate    Hook = "pre_deactivate"
	HookOnDeactivate     Hook = "on_deactivate"
	HookCleanup          Hook = "cleanup"
)

// Behavior is the strategy a profile's lifecycle runs. Hooks are invoked strictly in
// order and may block; ctx carries the per-hook deadline.
type Behavior interface {
	PreActivate(ctx context.Context, rt *Runtime) error
	LoadTools(ctx context.Context, rt *Runtime) error
	LoadCapabilities(ctx context.Context, rt *Runtime) error
	OnActivate(ctx context.Context, rt *Runtime) error
	OnExecute(ctx context.Context, rt *Runtime, task Task) (any, error)
	PreDeactivate(ctx context.Context, rt *Runtime) error
	OnDeactivate(ctx context.Context, rt *Runtime) error
	Cleanup(ctx context.Context, rt *Runtime) error
}

// Runtime is the working set of one activation, shared by every hook.
type Runtime struct {
	Profile      Profile
	Context      Context
	Tools        []string
	Capabilities []string
	Toolkit      []string
	Values       map[string]any
}

// NewRuntime creates a runtime for profile p under context c.
func NewRuntime(p Profile, c Context) *Runtime {
	return &Runtime{
		Profile: p.Clone(),
		Context: c.Clone(),
		Values:  make(map[string]any),
	}
}

// Clone returns a copy of rt whose slices and Values map are not shared.
func (rt *Runtime) Clone() *Runtime {
	out := &Runtime{
		Profile:      rt.Profile.Clone(),
		Context:      rt.Context.Clone(),
		Tools:        cloneStrings(rt.Tools),
		Capabilities: cloneStrings(rt.Capabilities),
		Toolkit:      cloneStrings(rt.Toolkit),
		Values:       make(map[string]any, len(rt.Values)),
	}
	for k, v := range rt.Values {
		out.Values[k] = v
	}
	return out
}

// TaskHandler performs the actual work of a task. The engine never does domain work
// itself; callers plug a handler into the behaviors they register.
type TaskHandler func(ctx context.Context, rt *Runtime, task Task) (any, error)

// Task is a unit of work submitted to a profile.
type Task struct {
	ID                   string         `json:"id,omitempty"`
	Description          string         `json:"description"`
	RequiredCapabilities []string       `json:"required_capabilities,omitempty"`
	RequiredTools        []string       `json:"required_tools,omitempty"`
	Input                map[string]any `json:"input,omitempty"`
}

// ExecOptions tune a single Execute call.
type ExecOptions struct {
	// Timeout bounds the execute hook. Zero uses the controller's hook timeout.
	Timeout  time.Duration  `json:"timeout,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Result is the outcome of Execute. Err is nil on success.
type Result struct {
	Success      bool          `json:"success"`
	Output       any           `json:"result,omitempty"`
	Err          error         `json:"-"`
	ErrorMessage string        `json:"error,omitempty"`
	Missing      []string      `json:"missing,omitempty"`
	Duration     time.Duration `json:"-"`
	DurationMs   int64         `json:"duration_ms"`
}

// BaseBehavior loads the profile's own tools and capabilities and delegates execution
// to Handler.
type BaseBehavior struct {
	Handler TaskHandler
}

func (BaseBehavior) PreActivate(context.Context, *Runtime) error { return nil }

func (BaseBehavior) LoadTools(_ context.Context, rt *Runtime) error {
	rt.Tools = cloneStrings(rt.Profile.Tools)
	return nil
}

func (BaseBehavior) LoadCapabilities(_ context.Context, rt *Runtime) error {
	rt.Capabilities = cloneStrings(rt.Profile.Capabilities)
	return nil
}

func (BaseBehavior) OnActivate(context.Context, *Runtime) error { return nil }

func (b BaseBehavior) OnExecute(ctx context.Context, rt *Runtime, task Task) (any, error) {
	if b.Handler != nil {
		return b.Handler(ctx, rt, task)
	}
	return map[string]any{
		"mode":    rt.Profile.Slug,
		"task":    task.Description,
		"toolkit": cloneStrings(rt.Toolkit),
	}, nil
}

func (BaseBehavior) PreDeactivate(context.Context, *Runtime) error { return nil }

func (BaseBehavior) OnDeactivate(context.Context, *Runtime) error { return nil }

func (BaseBehavior) Cleanup(_ context.Context, rt *Runtime) error {
	rt.Tools = nil
	rt.Capabilities = nil
	rt.Toolkit = nil
	for k := range rt.Values {
		delete(rt.Values, k)
	}
	return nil
}

// TierBehavior adds the tier's toolkit on activation.
type TierBehavior struct {
	BaseBehavior
	Tier    int
	Toolkit []string
}

func (b TierBehavior) OnActivate(_ context.Context, rt *Runtime) error {
	rt.Toolkit = cloneStrings(b.Toolkit)
	if d, ok := tierTable[b.Tier]; ok {
		rt.Values["band"] = d.Band
	}
	return nil
}

// BehaviorForTier returns the default behavior for a tier. Tiers without a toolkit get
// the plain BaseBehavior.
func BehaviorForTier(tier int, handler TaskHandler) Behavior {
	base := BaseBehavior{Handler: handler}
	d, ok := tierTable[tier]
	if !ok {
		return base
	}
	return TierBehavior{BaseBehavior: base, Tier: tier, Toolkit: cloneStrings(d.Toolkit)}
}
