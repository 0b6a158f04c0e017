package server

import (
	"bvep.dev/stimulus-next/internal/app"
	"bvep.dev/stimulus-next/internal/app/appcontext"
)

// Run assembles the fx graph and blocks until the session finishes or the
// process receives a termination signal.
func Run() {
	app.New(appcontext.Declare(appcontext.EnvServer)).Run()
}
