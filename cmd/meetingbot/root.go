package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "meetingbot",
		Short:         "Meeting attendance bot",
		Long:          "meetingbot joins a video meeting, records it, and uploads the recording.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	cmd.AddCommand(newRunCommand(&configPath))
	cmd.AddCommand(newConfigCommand(&configPath))
	cmd.AddCommand(newDoctorCommand(&configPath))
	cmd.AddCommand(newEventsCommand(&configPath))
	cmd.AddCommand(newVersionCommand())

	return cmd
}
