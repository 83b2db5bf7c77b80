package main

import (
	"github.com/Paintersrp/reaper/internal/cli"
	"github.com/Paintersrp/reaper/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
