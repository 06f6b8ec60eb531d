package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete a backup log",
		Long: `Delete a backup log, including its unfired entries.

Examples:
  beaconctl clear --db ./beacon.db --force`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return NewExitError(ExitCommandError, "refusing to delete unfired entries without --force")
			}
			return runClear(opts, cmd)
		},
	}
	addStoreFlags(cmd, opts)
	cmd.Flags().BoolVarP(&force, "force", "f", false, "delete without confirmation")

	return cmd
}

func runClear(opts *StoreOptions, cmd *cobra.Command) error {
	log, closer, err := openBackupLog(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer closer.Close()

	if err := log.Clear(); err != nil {
		return WrapExitError(ExitCommandError, "failed to clear backup log", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok"})
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Backup log cleared.")
	return nil
}
