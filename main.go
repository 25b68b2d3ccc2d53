package main

import (
	"os"

	"github.com/conneroisu/cydonia/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
