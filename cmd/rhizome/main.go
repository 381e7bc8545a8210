package main

import (
	"os"

	"rhizome/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
