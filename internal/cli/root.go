// Package cli implements beaconctl, the operator tool for inspecting and
// draining a persisted backup log.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	beacon "github.com/beacon-sdk/beacon-go"
	"github.com/beacon-sdk/beacon-go/storage"
	"github.com/beacon-sdk/beacon-go/storage/boltstore"
	"github.com/beacon-sdk/beacon-go/storage/sqlitestore"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// StoreOptions select the persisted backup log a command works on.
type StoreOptions struct {
	*RootOptions
	Database string
	Backend  string
	Codec    string
}

// NewRootCommand creates the root command of beaconctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "beaconctl",
		Short: "beaconctl - inspect and replay beacon backup logs",
		Long:  "Operator tool for the write-before-send backup log kept by beacon clients.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func addStoreFlags(cmd *cobra.Command, opts *StoreOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the store file (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Backend, "backend", beacon.StorageBolt, "store backend (bolt|sqlite)")
	cmd.Flags().StringVar(&opts.Codec, "codec", "json", "backup log encoding (json|msgpack)")
}

// openBackupLog opens the backup log selected by opts. The returned closer
// releases the store file.
func openBackupLog(opts *StoreOptions) (*beacon.BackupLog, io.Closer, error) {
	codec, err := storage.CodecByName(opts.Codec)
	if err != nil {
		return nil, nil, err
	}

	var (
		store  storage.Store
		closer io.Closer
	)
	switch opts.Backend {
	case beacon.StorageBolt:
		s, err := boltstore.Open(opts.Database)
		if err != nil {
			return nil, nil, err
		}
		store, closer = s, s
	case beacon.StorageSQLite:
		s, err := sqlitestore.Open(opts.Database)
		if err != nil {
			return nil, nil, err
		}
		store, closer = s, s
	default:
		return nil, nil, fmt.Errorf("unknown backend %q: must be bolt or sqlite", opts.Backend)
	}
	return beacon.NewBackupLog(store, codec), closer, nil
}
