package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"capgate/internal/app"
	"capgate/internal/infra/auditstore"
)

func newAuditCmd(opts *cliOptions) *cobra.Command {
	var (
		dbPath     string
		limit      int
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read the persisted audit trail",
	}
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print the newest audit entries, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := resolveAuditPath(cmd, opts, dbPath)
			if err != nil {
				return err
			}
			store, err := auditstore.OpenStore(path, 0)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.Tail(limit)
			if err != nil {
				return err
			}
			return printAuditEntries(cmd.OutOrStdout(), entries, jsonOutput)
		},
	}
	tail.Flags().IntVarP(&limit, "lines", "n", 20, "number of entries; 0 prints all")
	tail.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")

	cmd.PersistentFlags().StringVar(&dbPath, "audit-db", "", "audit database path; defaults to the profile's audit.storePath")
	cmd.AddCommand(tail)
	return cmd
}

func resolveAuditPath(cmd *cobra.Command, opts *cliOptions, flagPath string) (string, error) {
	path := strings.TrimSpace(flagPath)
	if path == "" {
		logging, err := app.NewLogging(opts.logging())
		if err != nil {
			return "", err
		}
		profile, err := app.NewProfile(cmd.Context(), opts.serveConfig(), app.NewLogger(logging))
		if err != nil {
			return "", err
		}
		path = profile.Audit.StorePath
	}
	if path == "" {
		return "", errors.New("no audit store configured (set --audit-db or audit.storePath)")
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("audit store %s does not exist", path)
		}
		return "", err
	}
	return path, nil
}
