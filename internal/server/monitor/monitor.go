// Package monitor is the operator-facing HTTP surface: liveness, a
// point-in-time session status snapshot and prometheus metrics. It is not
// part of the experiment protocol and is only intended for intra-lab use.
package monitor

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"bvep.dev/stimulus-next/internal/app/appconfig"
	"bvep.dev/stimulus-next/internal/gateway"
	"bvep.dev/stimulus-next/internal/pkg/bininfo"
	"bvep.dev/stimulus-next/internal/pkg/observability"
	"bvep.dev/stimulus-next/internal/score"
	"bvep.dev/stimulus-next/internal/session"
	"bvep.dev/stimulus-next/internal/stim"
)

func Create(conf *appconfig.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Stimulus Engine Monitor",
		ServerHeader:          fmt.Sprintf("stimd/%s", bininfo.Version),
		ReadTimeout:           time.Second * 10,
		WriteTimeout:          time.Second * 10,
		IdleTimeout:           conf.MonitorShutdownTimeout,
		DisableStartupMessage: !conf.DevMode,
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e any) {
			buf := make([]byte, 4096)
			buf = buf[:runtime.Stack(buf, false)]
			log.Error().Msgf("panic: %v\n%s\n", e, buf)
		},
	}))

	fiberprom := fiberprometheus.New(observability.ServiceName)
	fiberprom.RegisterAt(app, "/metrics")
	app.Use(fiberprom.Middleware)

	return app
}

type statusResponse struct {
	Session string      `json:"session"`
	Phase   string      `json:"phase"`
	Driver  stim.Status `json:"driver"`
	Score   score.Stats `json:"score"`
	Version string      `json:"version"`
}

type ControllerDeps struct {
	fx.In
	App          *fiber.App
	Driver       *stim.Driver
	Orchestrator *session.Orchestrator
	Score        *score.Score
	Gateway      *gateway.Gateway
}

// RegisterController mounts the monitor endpoints.
func RegisterController(deps ControllerDeps) {
	deps.App.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	deps.App.Get("/api/v1/status", func(c *fiber.Ctx) error {
		return c.JSON(statusResponse{
			Session: deps.Gateway.SessionID(),
			Phase:   deps.Orchestrator.Phase(),
			Driver:  deps.Driver.Snapshot(),
			Score:   deps.Score.Stats(),
			Version: bininfo.Version,
		})
	})
}

// Run binds the monitor server to the fx lifecycle. An empty listen address
// disables it.
func Run(app *fiber.App, conf *appconfig.Config, lc fx.Lifecycle) {
	if conf.MonitorAddress == "" {
		log.Info().Msg("monitor server disabled")
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", conf.MonitorAddress)
			if err != nil {
				return err
			}
			go func() {
				if err := app.Listener(ln); err != nil {
					log.Error().Err(err).Msg("monitor server terminated unexpectedly")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}
