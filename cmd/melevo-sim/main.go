// Command melevo-sim drives a headless particle simulation on the melevo ECS at a fixed tick rate.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/melevo/melevo/pkg/ecs"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// simConfig holds the simulation settings.
// Configuration can be set via environment variables with the specified defaults.
type simConfig struct {
	// Number of particles alive at any time.
	Population int `env:"SIM_POPULATION" envDefault:"512"`

	// Number of ticks to run. Zero runs until interrupted.
	Ticks uint64 `env:"SIM_TICKS" envDefault:"600"`

	// Ticks per second.
	TickRate float64 `env:"SIM_TICK_RATE" envDefault:"60"`

	// Distance a particle moves per tick.
	Speed float64 `env:"SIM_SPEED" envDefault:"1.5"`

	// Upper bound of a particle's lifetime in ticks.
	MaxLifetime int `env:"SIM_MAX_LIFETIME" envDefault:"240"`

	// Seed of the particle generator.
	Seed uint64 `env:"SIM_SEED" envDefault:"1"`

	// Log a frame summary every this many ticks.
	ReportEvery uint64 `env:"SIM_REPORT_EVERY" envDefault:"60"`
}

func loadSimConfig() (simConfig, error) {
	cfg := simConfig{}

	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse sim config")
	}

	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate sim config")
	}

	return cfg, nil
}

func (cfg *simConfig) validate() error {
	if cfg.Population <= 0 {
		return eris.New("population must be positive")
	}
	if cfg.TickRate <= 0 {
		return eris.New("tick rate must be positive")
	}
	if cfg.MaxLifetime <= 0 {
		return eris.New("max lifetime must be positive")
	}
	if cfg.ReportEvery == 0 {
		return eris.New("report interval must be positive")
	}
	return nil
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error().Err(err).Msg("simulation failed")
		stop()
		os.Exit(1) //nolint:gocritic // stop is called above
	}
}

func run(ctx context.Context, logger zerolog.Logger) error {
	ecsCfg, err := ecs.LoadConfig()
	if err != nil {
		return err
	}
	simCfg, err := loadSimConfig()
	if err != nil {
		return err
	}
	level, err := ecsCfg.Level()
	if err != nil {
		return err
	}
	logger = logger.Level(level)

	world := ecs.NewWorld(ecs.WithConfig(ecsCfg), ecs.WithLogger(logger))
	sched := ecs.NewScheduler(world)

	var frame Frame
	if err := registerSystems(sched, simCfg, &frame); err != nil {
		return eris.Wrap(err, "failed to register systems")
	}
	sched.LogSystems(zerolog.DebugLevel)
	world.LogComponents(zerolog.DebugLevel)

	ticker := time.NewTicker(time.Duration(float64(time.Second) / simCfg.TickRate))
	defer ticker.Stop()

	logger.Info().
		Int("population", simCfg.Population).
		Float64("tick_rate", simCfg.TickRate).
		Uint64("ticks", simCfg.Ticks).
		Msg("simulation started")

	for simCfg.Ticks == 0 || sched.Tick() < simCfg.Ticks {
		select {
		case <-ctx.Done():
			logger.Info().Uint64("tick", sched.Tick()).Msg("simulation interrupted")
			return nil
		case <-ticker.C:
		}

		if err := sched.RunOnce(); err != nil {
			return eris.Wrapf(err, "tick %d failed", sched.Tick())
		}

		if sched.Tick()%simCfg.ReportEvery == 0 {
			logger.Info().
				Uint64("tick", frame.Tick).
				Int("entities", world.EntityCount()).
				Int("visible", frame.Visible).
				Float64("centroid_x", frame.Centroid.X).
				Float64("centroid_y", frame.Centroid.Y).
				Float64("width", frame.MaxX-frame.MinX).
				Float64("height", frame.MaxY-frame.MinY).
				Msg("frame")
		}
	}

	logger.Info().Uint64("ticks", sched.Tick()).Msg("simulation finished")
	return nil
}
