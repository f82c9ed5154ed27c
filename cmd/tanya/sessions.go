package main

import (
	"github.com/hyperjump/tanya/internal/cli"
	"github.com/spf13/cobra"
)

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List, show or delete saved sessions",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved sessions, most recent first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, format, err := openSessions(opts)
				if err != nil {
					return err
				}
				list, err := store.List()
				if err != nil {
					return err
				}
				return cli.WriteSessions(cmd.OutOrStdout(), list, format)
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print every turn of a session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, format, err := openSessions(opts)
				if err != nil {
					return err
				}
				sess, err := store.Load(args[0])
				if err != nil {
					return err
				}
				return cli.WriteTranscript(cmd.OutOrStdout(), sess, format)
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, _, err := openSessions(opts)
				if err != nil {
					return err
				}
				if err := store.Delete(args[0]); err != nil {
					return err
				}
				cmd.Printf("Session deleted: %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

// openSessions opens only the session store; session commands need no index or models.
func openSessions(opts *rootOptions) (*cli.SessionStore, cli.OutputFormat, error) {
	format, err := cli.ParseOutputFormat(opts.output)
	if err != nil {
		return nil, "", err
	}
	cfg, _, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, "", err
	}
	store, err := cli.NewSessionStore(cfg.Storage.SessionsPath)
	if err != nil {
		return nil, "", err
	}
	return store, format, nil
}
