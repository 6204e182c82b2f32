package main

import (
	"fmt"
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/rezonia/nfse-renderer/cmd/nfse-renderer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
