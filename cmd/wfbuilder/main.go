package main

import (
	"os"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
