package app

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"bvep.dev/stimulus-next/cmd/app/server"
	"bvep.dev/stimulus-next/internal/pkg/bininfo"
)

func Run() {
	app := &cli.App{
		Name:        "stimd",
		Description: "Burst-code stimulus sequencing and task orchestration engine. Built with Go, fiber and go.uber.org/fx. Uses NATS as the session event bus.",
		Version:     bininfo.Version,
		Commands: []*cli.Command{
			server.Command(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("failed to run app")
	}
}
