package main

import (
	"os"

	"github.com/dshills/restack/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
