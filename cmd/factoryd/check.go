package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/factoryd/internal/blueprint"
	"github.com/nerrad567/factoryd/internal/infrastructure/config"
)

// newCheckCommand creates the check command.
func newCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [document]",
		Short: "Validate a factory document without starting the engine",
		Long: `Parse and validate a factory document. Without an argument the
document named by factory.document in the service config is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := config.Load(opts.configPath)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				path = cfg.Factory.Document
			}

			doc, err := blueprint.Load(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: ok\n", path)
			fmt.Fprintf(out, "  server_port:    %d\n", doc.ServerPort)
			fmt.Fprintf(out, "  min_cycle_time: %s\n", doc.MinCycleTime())
			fmt.Fprintf(out, "  bus accesses:   %d\n", len(doc.BusAccesses))
			fmt.Fprintf(out, "  storages:       %d\n", len(doc.Storages))
			fmt.Fprintf(out, "  backups:        %d\n", len(doc.Backups))
			fmt.Fprintf(out, "  processes:      %d\n", len(doc.Processes))
			return nil
		},
	}
}
