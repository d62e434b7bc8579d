package main

import (
	"os"

	"github.com/templeadmin/templeadmin/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
