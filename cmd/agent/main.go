// Package main provides the entry point for the EKS upgrade agent CLI.
// The CLI configures the structured logging pipeline and runs the log
// tooling: forwarding agent log files to CloudWatch Logs and checking
// sink health.
package main

import (
	"os"

	"eks-upgrade-agent/cmd/agent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
