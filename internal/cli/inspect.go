package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// EntryResult is one backup log entry in command output.
type EntryResult struct {
	RequestNumber int64  `json:"rn"`
	Fired         bool   `json:"fired"`
	Query         string `json:"query"`
}

// InspectResult holds the inspect command output.
type InspectResult struct {
	Entries []EntryResult `json:"entries"`
	Total   int           `json:"total"`
	Unfired int           `json:"unfired"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List the entries of a backup log",
		Long: `List the entries of a backup log in request-number order.

Examples:
  beaconctl inspect --db ./beacon.db
  beaconctl inspect --db ./beacon.sqlite --backend sqlite --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}
	addStoreFlags(cmd, opts)

	return cmd
}

func runInspect(opts *StoreOptions, cmd *cobra.Command) error {
	log, closer, err := openBackupLog(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer closer.Close()

	entries, err := log.Entries()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read backup log", err)
	}

	result := InspectResult{Entries: make([]EntryResult, 0, len(entries)), Total: len(entries)}
	for _, e := range entries {
		if !e.Fired {
			result.Unfired++
		}
		result.Entries = append(result.Entries, EntryResult{
			RequestNumber: e.RequestNumber,
			Fired:         e.Fired,
			Query:         e.Query,
		})
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result})
	}

	w := cmd.OutOrStdout()
	if result.Total == 0 {
		fmt.Fprintln(w, "Backup log is empty.")
		return nil
	}
	fmt.Fprintf(w, "Backup log: %d entries, %d unfired\n", result.Total, result.Unfired)
	for _, e := range result.Entries {
		state := "pending"
		if e.Fired {
			if !opts.Verbose {
				continue
			}
			state = "fired"
		}
		fmt.Fprintf(w, "%6d  %-7s  %s\n", e.RequestNumber, state, e.Query)
	}
	return nil
}
