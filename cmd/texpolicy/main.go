package main

import (
	"os"

	"github.com/solatis/texpolicy/cmd/texpolicy/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
