// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// relopt runs the relational planners on a plan tree described in YAML.
//
//	relopt opt --planner=volcano --rule-stats plan.yaml
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags cliFlags
	root := &cobra.Command{
		Use:          "relopt",
		Short:        "relopt rewrites and costs relational plan trees",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return flags.validate()
		},
	}
	flags.register(root.PersistentFlags())
	root.AddCommand(
		explainCmd(&flags),
		optCmd(&flags),
		memoCmd(&flags),
		trimCmd(&flags),
		lineageCmd(&flags),
	)
	return root
}
