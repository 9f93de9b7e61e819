package main

import (
	"os"

	"github.com/spigell/interviewd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
