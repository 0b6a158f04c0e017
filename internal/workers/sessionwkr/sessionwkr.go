// Package sessionwkr runs the stage orchestrator as the application's
// long-lived session goroutine and ties its lifetime to the fx app.
package sessionwkr

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"bvep.dev/stimulus-next/internal/session"
)

type WorkerDeps struct {
	fx.In
	Orchestrator *session.Orchestrator
	Shutdowner   fx.Shutdowner
}

func Start(deps WorkerDeps, lc fx.Lifecycle) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				err := deps.Orchestrator.Run(ctx)
				switch {
				case err == nil:
					log.Info().Msg("session completed")
				case ctx.Err() != nil:
					log.Info().Msg("session cancelled")
				default:
					log.Error().Err(err).Msg("session failed")
				}
				// The engine serves one session per process; ask fx to
				// unwind once the protocol is exhausted.
				if ctx.Err() == nil {
					_ = deps.Shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			return nil
		},
	})
}
