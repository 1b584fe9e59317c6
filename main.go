package main

import (
	"os"

	"github.com/andydunstall/converge/cli"
)

func main() {
	if err := cli.Start(); err != nil {
		os.Exit(1)
	}
}
