package main

import (
	"os"

	"github.com/genluna-medchain/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
