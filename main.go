package main

import (
	"os"

	"laptop-refresh/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
