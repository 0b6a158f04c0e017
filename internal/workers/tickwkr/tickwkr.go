// Package tickwkr is the fixed-rate tick source driving the stimulus engine,
// standing in for the display refresh driver. Each tick invokes the driver
// synchronously and runs to completion before the next fires.
package tickwkr

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"bvep.dev/stimulus-next/internal/app/appconfig"
	"bvep.dev/stimulus-next/internal/stim"
)

type WorkerDeps struct {
	fx.In
	Driver *stim.Driver
}

type Worker struct {
	// period is the nominal frame duration derived from the configured
	// tick rate.
	period time.Duration

	WorkerDeps
}

func Start(conf *appconfig.Config, deps WorkerDeps, lc fx.Lifecycle) {
	w := &Worker{
		period:     time.Duration(float64(time.Second) / conf.TickRate),
		WorkerDeps: deps,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go w.loop(ctx, done)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			return nil
		},
	})
}

// loop fires ticks at the nominal period and reports measured timing to the
// driver: the scheduled slot, the actual fire time, the gap since the last
// tick and a smoothed rate estimate. time.Ticker absorbs drift by design.
func (w *Worker) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	log.Info().Dur("period", w.period).Msg("tick worker started")

	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	start := time.Now()
	last := start
	n := 0
	rate := 1 / w.period.Seconds()

	for {
		select {
		case <-ctx.Done():
			log.Info().Int("ticks", n).Msg("tick worker stopped")
			return
		case actual := <-ticker.C:
			n++
			scheduled := start.Add(time.Duration(n) * w.period)
			elapsed := actual.Sub(last)
			if elapsed > 0 {
				// Exponential smoothing keeps the estimate stable
				// against scheduler jitter.
				rate = 0.95*rate + 0.05/elapsed.Seconds()
			}

			w.Driver.Tick(stim.TickInfo{
				Scheduled: scheduled,
				Actual:    actual,
				Elapsed:   elapsed,
				Rate:      rate,
			})
			last = actual
		}
	}
}
