package appconfig

import (
	"time"

	"bvep.dev/stimulus-next/internal/app/appcontext"
)

// ConfigSpec is the runtime (environment) configuration. The experiment
// protocol itself lives in a separate TOML file; the environment only says
// where to find things and how to run.
type ConfigSpec struct {
	// MonitorAddress is the listen address of the operator monitor server.
	// Leaving this empty disables the monitor server.
	MonitorAddress string `split_words:"true" default:"localhost:9040"`

	// LogJsonStdout is whether to log JSON logs (instead of pretty-print
	// logs) to stdout for the ease of log collection.
	LogJsonStdout bool `split_words:"true" default:"false"`

	// DevMode to indicate development mode. When true, logging drops to
	// trace level and the monitor server reports richer state.
	DevMode bool `split_words:"true"`

	// NatsURL is the URL of the NATS server carrying the session event
	// contract. See https://pkg.go.dev/github.com/nats-io/nats.go#Connect
	// for more information on how to construct a NATS URL.
	NatsURL string `required:"true" split_words:"true" default:"nats://127.0.0.1:4222"`

	// EventSubjectPrefix prefixes every inbound and outbound event subject.
	EventSubjectPrefix string `split_words:"true" default:"stim" validate:"alphanum"`

	// ProtocolPath is the path to the experiment protocol TOML file.
	ProtocolPath string `required:"true" split_words:"true" default:"protocol.toml"`

	// TickRate is the frame rate of the stimulus tick source in Hz. It
	// should match the display refresh driving the renderer.
	TickRate float64 `split_words:"true" default:"60" validate:"gt=0,lte=480"`

	// WaitTimeout bounds every orchestrator signal wait. Zero leaves waits
	// unbounded.
	WaitTimeout time.Duration `split_words:"true" default:"0s"`

	// MonitorShutdownTimeout is the timeout for the monitor server to shut
	// down gracefully.
	MonitorShutdownTimeout time.Duration `split_words:"true" default:"10s"`
}

type Config struct {
	ConfigSpec
	AppContext appcontext.Ctx
}
