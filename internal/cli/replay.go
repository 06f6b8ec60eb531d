package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	beacon "github.com/beacon-sdk/beacon-go"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	StoreOptions
	Timeout time.Duration
}

// ReplayResult holds the replay command output.
type ReplayResult struct {
	Fired     int    `json:"fired"`
	Remaining int    `json:"remaining"`
	Error     string `json:"error,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Send the unfired entries of a backup log",
		Long: `Send every unfired entry of a backup log in request-number order and
mark it fired once the endpoint answered with a 2xx status.

Replay stops at the first failed request; it and the entries after it stay
unfired.

Exit codes:
  0 - All entries were delivered
  1 - Replay stopped at a failed request
  2 - Command error (store not found, etc.)

Examples:
  beaconctl replay --db ./beacon.db
  beaconctl replay --db ./beacon.db --timeout 5s --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}
	addStoreFlags(cmd, &opts.StoreOptions)
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "timeout of each request")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	log, closer, err := openBackupLog(&opts.StoreOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer closer.Close()

	transport := beacon.NewHTTPSyncTransport(beacon.TransportOptions{Timeout: opts.Timeout})
	fired, replayErr := log.Replay(transport)

	entries, err := log.Entries()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read backup log", err)
	}
	result := ReplayResult{Fired: fired}
	for _, e := range entries {
		if !e.Fired {
			result.Remaining++
		}
	}
	if replayErr != nil {
		result.Error = replayErr.Error()
	}

	if opts.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if replayErr != nil {
			response.Status = "error"
			response.Error = &CLIError{Code: "E_REPLAY", Message: replayErr.Error()}
		}
		if err := writeJSON(cmd.OutOrStdout(), response); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Replayed %d request(s), %d remaining\n", result.Fired, result.Remaining)
		if replayErr != nil && opts.Verbose {
			fmt.Fprintf(w, "Stopped: %v\n", replayErr)
		}
	}

	if replayErr != nil {
		return WrapExitError(ExitFailure, "replay incomplete", replayErr)
	}
	return nil
}
