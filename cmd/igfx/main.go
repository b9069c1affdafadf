package main

import (
	"os"

	"github.com/realKyawSwar/igfx-bot-timescale-update/cmd/igfx/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
