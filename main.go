package main

import (
	"bvep.dev/stimulus-next/cmd/app"
)

func main() {
	app.Run()
}
