package ecs

import (
	"path/filepath"
	"reflect"
	"runtime"

	"github.com/melevo/melevo/pkg/assert"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// System is a unit of game logic. It receives a pointer to its state struct, whose Query fields
// are initialized when the system is registered. Systems should embed BaseSystemState.
//
// Example:
//
//	type MovementSystemState struct {
//	    ecs.BaseSystemState
//	    Movers ecs.Query[struct {
//	        Velocity ecs.Read[Velocity]
//	        Position ecs.Write[Position]
//	    }]
//	}
//
//	func MovementSystem(state *MovementSystemState) error {
//	    for _, mover := range state.Movers.Iter() {
//	        vel := mover.Velocity.Get()
//	        pos := mover.Position.Ptr()
//	        pos.X += vel.X
//	        pos.Y += vel.Y
//	    }
//	    return nil
//	}
type System[T any] func(state *T) error

// SystemHook defines when a system is executed in a tick.
type SystemHook uint8

const (
	// PreStartup runs once, before Startup, on the first tick.
	PreStartup SystemHook = iota
	// Startup runs once on the first tick.
	Startup
	// PostStartup runs once, after Startup, on the first tick.
	PostStartup
	// PreUpdate runs before the main update.
	PreUpdate
	// Update runs during the main update phase.
	Update
	// PostUpdate runs after the main update.
	PostUpdate

	hookCount = int(PostUpdate) + 1
)

var (
	startupHooks = []SystemHook{PreStartup, Startup, PostStartup}
	updateHooks  = []SystemHook{PreUpdate, Update, PostUpdate}
)

func (h SystemHook) String() string {
	switch h {
	case PreStartup:
		return "pre_startup"
	case Startup:
		return "startup"
	case PostStartup:
		return "post_startup"
	case PreUpdate:
		return "pre_update"
	case Update:
		return "update"
	case PostUpdate:
		return "post_update"
	default:
		return "unknown"
	}
}

type systemConfig struct {
	hook SystemHook
	name string
}

// SystemOption configures a system at registration.
type SystemOption func(*systemConfig)

// WithHook sets the hook the system runs in. Defaults to Update.
func WithHook(hook SystemHook) SystemOption {
	return func(cfg *systemConfig) {
		cfg.hook = hook
	}
}

// WithName overrides the system's name, which defaults to the name of its function.
func WithName(name string) SystemOption {
	return func(cfg *systemConfig) {
		cfg.name = name
	}
}

// RegisterSystem registers a system with the scheduler. The system's access is the union of the
// access of every Query field in its state.
func RegisterSystem[T any](s *Scheduler, system System[T], opts ...SystemOption) error {
	cfg := systemConfig{hook: Update}
	for _, opt := range opts {
		opt(&cfg)
	}

	if int(cfg.hook) >= hookCount {
		return eris.Errorf("invalid system hook %d", cfg.hook)
	}
	if cfg.name == "" {
		cfg.name = systemName(system)
	}
	if _, exists := s.registry[cfg.name]; exists {
		return eris.Wrapf(ErrDuplicateSystem, "system %s", cfg.name)
	}

	state := new(T)
	meta := systemInitMetadata{world: s.world, scheduler: s, name: cfg.name}
	if err := initSystemFields(state, &meta); err != nil {
		return eris.Wrapf(err, "failed to register system %s", cfg.name)
	}

	s.register(cfg.hook, systemMetadata{
		name:     cfg.name,
		access:   meta.access,
		fn:       func() error { return system(state) },
		commands: meta.commands,
	})
	return nil
}

// systemInitMetadata collects what system state fields need and contribute during registration.
type systemInitMetadata struct {
	world     *World
	scheduler *Scheduler
	name      string
	access    Access    // Union of the access of the system's queries
	commands  *Commands // The system's command buffer, if it has one
}

// systemField is implemented by system state fields that are initialized at registration.
type systemField interface {
	init(meta *systemInitMetadata) error
}

var _ systemField = &BaseSystemState{}

func initSystemFields[T any](state *T, meta *systemInitMetadata) error {
	value := reflect.ValueOf(state).Elem()
	if value.Kind() != reflect.Struct {
		return eris.Errorf("system state must be a struct, got %s", value.Type())
	}

	for i := range value.NumField() {
		field := value.Field(i)
		fieldType := value.Type().Field(i)
		if !fieldType.IsExported() {
			continue
		}

		assert.That(field.CanAddr(), "system state field %s is not addressable", fieldType.Name)
		stateField, ok := field.Addr().Interface().(systemField)
		if !ok {
			continue
		}

		if err := stateField.init(meta); err != nil {
			return eris.Wrapf(err, "failed to initialize field %s", fieldType.Name)
		}
	}
	return nil
}

// systemName returns the name of a system's function without its package path.
func systemName(system any) string {
	fn := runtime.FuncForPC(reflect.ValueOf(system).Pointer())
	if fn == nil {
		return ""
	}
	return filepath.Base(fn.Name())
}

// BaseSystemState gives a system its logger, the current tick, and a command buffer. Embed it in
// system state structs.
type BaseSystemState struct {
	name      string
	world     *World
	scheduler *Scheduler
	logger    zerolog.Logger
	commands  *Commands
}

func (b *BaseSystemState) init(meta *systemInitMetadata) error {
	b.name = meta.name
	b.world = meta.world
	b.scheduler = meta.scheduler
	b.logger = meta.world.logger.With().Str("system", meta.name).Logger()
	b.commands = newCommands(meta.world, &b.logger)
	meta.commands = b.commands
	return nil
}

// Name returns the system's name.
func (b *BaseSystemState) Name() string {
	return b.name
}

// Logger returns a logger tagged with the system's name.
func (b *BaseSystemState) Logger() *zerolog.Logger {
	return &b.logger
}

// Tick returns the number of completed scheduler runs before the current one.
func (b *BaseSystemState) Tick() uint64 {
	return b.scheduler.tick
}

// Commands returns the system's command buffer. Buffered commands are applied after every system
// in the hook has finished.
func (b *BaseSystemState) Commands() *Commands {
	return b.commands
}

// World returns the world the system runs on. Structural changes made directly on the world while
// other systems run can panic their queries; use Commands instead.
func (b *BaseSystemState) World() *World {
	return b.world
}
