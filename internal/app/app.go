package app

import (
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"

	"bvep.dev/stimulus-next/internal/app/appconfig"
	"bvep.dev/stimulus-next/internal/app/appcontext"
	"bvep.dev/stimulus-next/internal/display"
	"bvep.dev/stimulus-next/internal/gateway"
	"bvep.dev/stimulus-next/internal/infra"
	"bvep.dev/stimulus-next/internal/layout"
	"bvep.dev/stimulus-next/internal/pkg/logger"
	"bvep.dev/stimulus-next/internal/protocol"
	"bvep.dev/stimulus-next/internal/score"
	"bvep.dev/stimulus-next/internal/server/monitor"
	"bvep.dev/stimulus-next/internal/session"
	"bvep.dev/stimulus-next/internal/signals"
	"bvep.dev/stimulus-next/internal/stim"
	"bvep.dev/stimulus-next/internal/workers/sessionwkr"
	"bvep.dev/stimulus-next/internal/workers/tickwkr"
)

func Options(ctx appcontext.Ctx, additionalOpts ...fx.Option) []fx.Option {
	conf, err := appconfig.Parse(ctx)
	if err != nil {
		panic(err)
	}

	// logger and configuration are the only two things that are not in the
	// fx graph because other packages need them before fx starts
	logger.Configure(conf)

	baseOpts := []fx.Option{
		// fx meta
		fx.WithLogger(logger.Fx),

		// Misc
		fx.Supply(conf),
		fx.Provide(signals.NewHub),

		// Infrastructures
		infra.Module(),

		// Protocol & layouts
		fx.Provide(loadProtocol),
		fx.Provide(buildLayouts),
		fx.Provide(newScore),

		// Engine
		fx.Provide(newGateway),
		fx.Provide(newSink),
		fx.Provide(newDriver),
		fx.Provide(newOrchestrator),

		// Monitor server
		fx.Provide(monitor.Create),
		fx.Invoke(monitor.RegisterController),
		fx.Invoke(monitor.Run),

		// Inbound streams must be wired before the session starts so an
		// early ready signal is not lost.
		fx.Invoke(gateway.Subscribe),

		// Workers
		fx.Invoke(tickwkr.Start),
		fx.Invoke(sessionwkr.Start),

		// fx Extra Options
		fx.StartTimeout(10 * time.Second),
		fx.StopTimeout(1 * time.Minute),
	}

	return append(baseOpts, additionalOpts...)
}

func New(ctx appcontext.Ctx, additionalOpts ...fx.Option) *fx.App {
	return fx.New(Options(ctx, additionalOpts...)...)
}

func loadProtocol(conf *appconfig.Config) (*protocol.Protocol, error) {
	return protocol.Load(conf.ProtocolPath)
}

func buildLayouts(proto *protocol.Protocol) (*layout.Registry, error) {
	return proto.Layouts()
}

func newScore(proto *protocol.Protocol) *score.Score {
	return score.New(proto.RefreshHz)
}

func newGateway(nc *nats.Conn, conf *appconfig.Config, hub *signals.Hub) *gateway.Gateway {
	return gateway.New(nc, conf.EventSubjectPrefix, hub)
}

func newSink(gw *gateway.Gateway, conf *appconfig.Config) display.Sink {
	bus := display.NewBusSink(gw)
	if conf.DevMode {
		return display.Multi(bus, display.NewLogSink())
	}
	return bus
}

func newDriver(gw *gateway.Gateway, sink display.Sink, hub *signals.Hub) *stim.Driver {
	return stim.NewDriver(gw, sink, hub)
}

func newOrchestrator(
	proto *protocol.Protocol,
	reg *layout.Registry,
	driver *stim.Driver,
	gw *gateway.Gateway,
	hub *signals.Hub,
	sink display.Sink,
	sc *score.Score,
	conf *appconfig.Config,
) *session.Orchestrator {
	return session.New(proto, reg, driver, gw, hub, sink, sc,
		session.WithWaitTimeout(conf.WaitTimeout))
}
