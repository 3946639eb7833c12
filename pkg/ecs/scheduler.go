package ecs

import (
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Scheduler runs the systems registered with it once per call to RunOnce. Within a hook, systems
// whose access conflicts run in registration order and the rest run concurrently.
type Scheduler struct {
	world          *World
	logger         zerolog.Logger
	sequential     bool
	maxConcurrency int

	hooks    [hookCount]systemScheduler
	registry map[string]systemRef // System name -> location in hooks
	stale    bool                 // Schedules need rebuilding before the next run
	started  bool                 // Startup hooks have run
	tick     uint64               // Number of completed runs
}

type systemRef struct {
	hook  SystemHook
	index int
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSequential runs every system on the caller's goroutine in registration order.
func WithSequential() SchedulerOption {
	return func(s *Scheduler) {
		s.sequential = true
	}
}

// WithMaxConcurrency limits how many systems run at once. Zero means no limit.
func WithMaxConcurrency(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n >= 0 {
			s.maxConcurrency = n
		}
	}
}

// NewScheduler creates a scheduler for the world's systems. Defaults come from the world's
// configuration.
func NewScheduler(w *World, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		world:          w,
		logger:         w.logger.With().Str("component", "scheduler").Logger(),
		sequential:     w.sequential,
		maxConcurrency: w.maxConcurrency,
		registry:       make(map[string]systemRef),
	}
	for i := range s.hooks {
		s.hooks[i] = newSystemScheduler()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) register(hook SystemHook, system systemMetadata) {
	s.registry[system.name] = systemRef{hook: hook, index: len(s.hooks[hook].systems)}
	s.hooks[hook].register(system)
	s.stale = true
}

// RunOnce executes one tick. On the first call, the startup hooks run before the update hooks.
// Buffered commands are applied after each hook. If a system fails, the remaining hooks are
// skipped, the failed hook's commands are discarded, and the error is returned. If a command
// fails, the hook's other commands are still applied before the error is returned.
func (s *Scheduler) RunOnce() error {
	if s.stale {
		for i := range s.hooks {
			s.hooks[i].createSchedule()
		}
		s.stale = false
	}

	start := time.Now()

	if !s.started {
		for _, hook := range startupHooks {
			if err := s.runHook(hook); err != nil {
				return err
			}
		}
		s.started = true
	}

	for _, hook := range updateHooks {
		if err := s.runHook(hook); err != nil {
			return err
		}
	}

	s.logger.Debug().Uint64("tick", s.tick).Dur("duration", time.Since(start)).Msg("tick completed")
	s.tick++
	return nil
}

func (s *Scheduler) runHook(hook SystemHook) error {
	hs := &s.hooks[hook]
	if err := hs.run(s.sequential, s.maxConcurrency); err != nil {
		hs.discardCommands()
		return eris.Wrapf(err, "%s systems failed", hook)
	}
	if err := hs.flushCommands(); err != nil {
		return eris.Wrapf(err, "failed to apply %s commands", hook)
	}
	return nil
}

// Tick returns the number of completed runs.
func (s *Scheduler) Tick() uint64 {
	return s.tick
}

// SystemInfo describes a registered system. Access is a copy.
type SystemInfo struct {
	Name   string
	Hook   SystemHook
	Access Access
}

// Systems returns the registered systems ordered by hook, then registration.
func (s *Scheduler) Systems() []SystemInfo {
	infos := make([]SystemInfo, 0, len(s.registry))
	for hook := range s.hooks {
		for _, system := range s.hooks[hook].systems {
			infos = append(infos, SystemInfo{Name: system.name, Hook: SystemHook(hook), Access: system.access.clone()})
		}
	}
	return infos
}

// Conflicts reports whether two registered systems conflict, i.e. can't run concurrently.
func (s *Scheduler) Conflicts(a, b string) (bool, error) {
	accessA, err := s.access(a)
	if err != nil {
		return false, err
	}
	accessB, err := s.access(b)
	if err != nil {
		return false, err
	}
	return accessA.Conflicts(accessB), nil
}

// Tiers groups a hook's systems into waves: every system in a wave only depends on systems in
// earlier waves, so systems within a wave can run at the same time.
func (s *Scheduler) Tiers(hook SystemHook) [][]string {
	if int(hook) >= hookCount {
		return nil
	}
	return s.hooks[hook].tiers()
}

func (s *Scheduler) access(name string) (Access, error) {
	ref, ok := s.registry[name]
	if !ok {
		return Access{}, eris.Errorf("system %s is not registered", name)
	}
	return s.hooks[ref.hook].systems[ref.index].access, nil
}

// -------------------------------------------------------------------------------------------------
// Per-hook Scheduling
// -------------------------------------------------------------------------------------------------

// systemMetadata contains the metadata for a system.
type systemMetadata struct {
	name     string       // The name of the system
	access   Access       // Components the system reads and writes
	fn       func() error // Function that wraps a System
	commands *Commands    // The system's command buffer, nil if it doesn't have one
}

// systemScheduler manages the execution of the systems of one hook in a dependency-aware
// concurrent manner. A system depends on every earlier system whose access conflicts with its own.
type systemScheduler struct {
	systems        []systemMetadata // The systems to run
	tier0          []int            // The first execution tier
	graph          map[int][]int    // Mapping of systems -> systems that depend on it
	activeIndegree uint8            // Determines which indegree is currently active (0 or 1)
	// indegree0 and indegree1 are double-buffered counters tracking remaining dependencies
	// for each system. They alternate between runs to avoid reinitialization.
	indegree0 []atomic.Int32
	indegree1 []atomic.Int32
}

func newSystemScheduler() systemScheduler {
	return systemScheduler{
		systems:        make([]systemMetadata, 0),
		tier0:          make([]int, 0),
		graph:          make(map[int][]int),
		activeIndegree: 0,
	}
}

func (s *systemScheduler) register(system systemMetadata) {
	s.systems = append(s.systems, system)
}

// run executes the systems in the order of their dependencies. Every system runs even if others
// fail; the errors of all failed systems are joined.
func (s *systemScheduler) run(sequential bool, limit int) error {
	// Fast path: no systems in hook.
	if len(s.systems) == 0 {
		return nil
	}

	errs := make([]error, len(s.systems))

	if sequential {
		// Registration order is a topological order of the graph.
		for systemID := range s.systems {
			errs[systemID] = s.runSystem(systemID)
		}
		return errors.Join(errs...)
	}

	executionQueue := make(chan int, len(s.systems))
	defer close(executionQueue)

	currentIndegree, nextIndegree := s.getCurrentAndNextIndegrees()
	g := new(errgroup.Group)
	if limit > 0 {
		g.SetLimit(limit)
	}

	// Schedule all tier 0 systems
	for _, systemID := range s.tier0 {
		executionQueue <- systemID
	}

	// Launch goroutines to execute systems
	for range s.systems {
		systemID := <-executionQueue
		g.Go(func() error {
			// Record the error instead of returning it so the dependents are still scheduled.
			errs[systemID] = s.runSystem(systemID)

			// Process all systems that depend on this one.
			for _, dependent := range s.graph[systemID] {
				remainingDeps := currentIndegree[dependent].Add(-1)
				nextIndegree[dependent].Add(1)

				// If this was the last dependency, schedule it for execution.
				if remainingDeps == 0 {
					executionQueue <- dependent
				}
			}
			return nil
		})
	}

	_ = g.Wait()
	return errors.Join(errs...)
}

// runSystem runs one system, turning a panic into an error.
func (s *systemScheduler) runSystem(systemID int) (err error) {
	name := s.systems[systemID].name
	defer func() {
		if r := recover(); r != nil {
			if panicErr, ok := r.(error); ok {
				err = eris.Wrapf(panicErr, "system %s panicked", name)
			} else {
				err = eris.Wrapf(ErrSystemPanicked, "system %s: %s", name, fmt.Sprint(r))
			}
		}
	}()

	if err := s.systems[systemID].fn(); err != nil {
		return eris.Wrapf(err, "system %s failed", name)
	}
	return nil
}

// flushCommands applies every system's command buffer in registration order and joins the errors.
func (s *systemScheduler) flushCommands() error {
	var errs []error
	for _, system := range s.systems {
		if system.commands == nil {
			continue
		}
		if err := system.commands.apply(); err != nil {
			errs = append(errs, eris.Wrapf(err, "system %s", system.name))
		}
	}
	return errors.Join(errs...)
}

func (s *systemScheduler) discardCommands() {
	for _, system := range s.systems {
		if system.commands != nil {
			system.commands.reset()
		}
	}
}

// getCurrentAndNextIndegrees returns the current and next indegrees. It also switches the active
// indegree buffer with the next one.
func (s *systemScheduler) getCurrentAndNextIndegrees() ([]atomic.Int32, []atomic.Int32) {
	isFirstBuffer := s.activeIndegree == 0  // Capture current state before toggle
	s.activeIndegree = 1 - s.activeIndegree // Toggle between 0 and 1

	if isFirstBuffer {
		return s.indegree0, s.indegree1
	}

	return s.indegree1, s.indegree0
}

// createSchedule initializes the dependency graph and execution schedule for the systems.
// Must be called after registering systems and before the next run.
func (s *systemScheduler) createSchedule() {
	graph, indegree := buildDependencyGraph(s.systems)
	s.graph = graph

	// Initialize double-buffered atomic counters for tracking dependencies. These are used to avoid
	// reallocation during system execution.
	s.indegree0 = make([]atomic.Int32, len(s.systems))
	s.indegree1 = make([]atomic.Int32, len(s.systems))
	s.activeIndegree = 0

	// Initialize the first buffer with the initial dependency counts.
	for k, v := range indegree {
		s.indegree0[k].Store(int32(v)) //nolint:gosec // Won't overflow
	}

	s.tier0 = getFirstTier(s.systems, indegree)
}

// tiers returns the names of the systems grouped by their depth in the dependency graph.
func (s *systemScheduler) tiers() [][]string {
	graph, _ := buildDependencyGraph(s.systems)

	depth := make([]int, len(s.systems))
	maxDepth := -1
	// Edges always point from an earlier system to a later one.
	for systemID := range s.systems {
		for _, dependent := range graph[systemID] {
			depth[dependent] = max(depth[dependent], depth[systemID]+1)
		}
		maxDepth = max(maxDepth, depth[systemID])
	}

	tiers := make([][]string, maxDepth+1)
	for systemID, system := range s.systems {
		tiers[depth[systemID]] = append(tiers[depth[systemID]], system.name)
	}
	return tiers
}

// buildDependencyGraph creates a directed acyclic graph (DAG) of system dependencies based on
// their conflicting component access. It returns the graph as an adjacency list and a map of each
// system's dependency count.
func buildDependencyGraph(systems []systemMetadata) (map[int][]int, map[int]int) {
	graph := make(map[int][]int, len(systems))
	indegree := make(map[int]int, len(systems))

	for systemA := range len(systems) - 1 {
		for systemB := systemA + 1; systemB < len(systems); systemB++ {
			// Check if systemB depends on systemA.
			if systems[systemA].access.Conflicts(systems[systemB].access) {
				graph[systemA] = append(graph[systemA], systemB)
				indegree[systemB]++
			}
		}
	}

	return graph, indegree
}

// getFirstTier returns the list of systems without any dependencies. These will be the first
// systems to be run.
func getFirstTier(systems []systemMetadata, indegree map[int]int) []int {
	var currentTier []int
	for systemID := range systems {
		if indegree[systemID] == 0 {
			currentTier = append(currentTier, systemID)
		}
	}
	return slices.Clip(currentTier)
}
