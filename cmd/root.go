package main

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "./configs/config.yaml"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "woa",
		Short:        "Web Optimizer Assistant backend",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "config file path")

	root.AddCommand(
		newServeCmd(&configPath),
		newParseCmd(),
		newTokenCmd(&configPath),
	)
	return root
}
