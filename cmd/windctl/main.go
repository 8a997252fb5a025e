package main

import (
	"os"

	"github.com/user/wind_analyzer_go/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
