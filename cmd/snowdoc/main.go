package main

import "github.com/ci-telemetry/snowdoc/cmd/snowdoc/cmd"

func main() {
	cmd.Execute()
}
