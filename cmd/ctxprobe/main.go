package main

import (
	"os"

	"ctxprobe/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
