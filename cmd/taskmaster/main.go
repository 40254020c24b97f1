package main

import (
	"os"

	"taskmaster/cmd/taskmaster/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr, nil))
}
