package main

import (
	"os"

	"github.com/alohalabs/aloha/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
