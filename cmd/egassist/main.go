package main

import (
	"os"

	"github.com/egdigital/egassist/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
