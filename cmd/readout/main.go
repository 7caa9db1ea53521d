package main

import (
	"os"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
