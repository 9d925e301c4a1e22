package main

import (
	"os"

	"eve-hullscout/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
