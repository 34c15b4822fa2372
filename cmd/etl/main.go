package main

import (
	"os"

	"github.com/qivr/analytics-etl/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
