package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"meetingbot/internal/config"
	"meetingbot/internal/journal"
)

func newEventsCommand(configPath *string) *cobra.Command {
	var botID int64

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show journaled session events",
		Long:  "Lists the lifecycle events recorded in the local session journal.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if !cfg.Journal.Enabled {
				return fmt.Errorf("session journal is disabled in the config")
			}

			store, err := journal.Open(cmd.Context(), cfg.Journal.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), botID)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No journaled events.")
				return nil
			}

			rows := make([]table.Row, 0, len(entries))
			for _, entry := range entries {
				detail := ""
				if entry.Payload != nil {
					switch {
					case entry.Payload.Description != "":
						detail = entry.Payload.Description
					case entry.Payload.Message != "":
						detail = entry.Payload.Message
					case entry.Payload.ParticipantID != "":
						detail = "participant " + entry.Payload.ParticipantID
					}
				}
				rows = append(rows, table.Row{
					entry.Seq,
					entry.BotID,
					string(entry.Code),
					entry.Time.Format("2006-01-02 15:04:05"),
					detail,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				table.Row{"Seq", "Bot", "Event", "Time", "Detail"}, rows))
			return nil
		},
	}

	cmd.Flags().Int64Var(&botID, "bot", 0, "Filter events to one bot id")
	return cmd
}
