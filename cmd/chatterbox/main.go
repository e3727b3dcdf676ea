package main

import (
	"os"

	"github.com/pranav/chatterbox/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
