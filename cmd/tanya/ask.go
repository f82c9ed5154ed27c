package main

import (
	"errors"
	"strings"

	"github.com/hyperjump/tanya/internal/cli"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/rag"
	"github.com/spf13/cobra"
)

// buildQuery joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		sessionID   string
		topic       string
		showSources bool
	)
	cmd := &cobra.Command{
		Use:   "ask [flags] <question>",
		Short: "Ask a question about the corpus",
		Long: `Answers one question from the corpus. With --session the question continues that
conversation and the exchange is saved to it; without it a new session is started.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := buildQuery(args)
			if question == "" {
				return errors.New("question is empty")
			}
			c, err := initializeComponents(opts)
			if err != nil {
				return err
			}
			defer c.Close()

			sess, err := c.Sessions.LoadOrNew(sessionID, topic)
			if err != nil {
				return err
			}
			return runTurn(cmd, c, sess, showSources, func() (models.Transcript, *rag.Answer, error) {
				return c.Service.Ask(cmd.Context(), sess.ID, sess.Messages, question)
			})
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id to continue (created if missing)")
	cmd.Flags().StringVar(&topic, "topic", "", "topic label for a new session")
	cmd.Flags().BoolVar(&showSources, "sources", false, "list the retrieved chunks under the answer")
	return cmd
}

func newEditCmd(opts *rootOptions) *cobra.Command {
	var (
		sessionID   string
		showSources bool
	)
	cmd := &cobra.Command{
		Use:   "edit --session <id> <new question>",
		Short: "Rewrite the last question of a session and answer it again",
		Long: `Replaces the most recent user question of a session with new text, discards
everything after it, and regenerates the answer from the earlier turns.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			newText := buildQuery(args)
			if newText == "" {
				return errors.New("new question is empty")
			}
			c, err := initializeComponents(opts)
			if err != nil {
				return err
			}
			defer c.Close()

			sess, err := c.Sessions.Load(sessionID)
			if err != nil {
				return err
			}
			return runTurn(cmd, c, sess, showSources, func() (models.Transcript, *rag.Answer, error) {
				return c.Service.Edit(cmd.Context(), sess.ID, sess.Messages, newText)
			})
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id to edit")
	cmd.Flags().BoolVar(&showSources, "sources", false, "list the retrieved chunks under the answer")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

// runTurn executes one turn and saves the session only when it succeeds.
func runTurn(cmd *cobra.Command, c *Components, sess *cli.Session, showSources bool, turn func() (models.Transcript, *rag.Answer, error)) error {
	updated, answer, err := turn()
	if err != nil {
		return describeError(err)
	}
	sess.Messages = updated
	if err := c.Sessions.Save(sess); err != nil {
		return err
	}
	if err := cli.WriteAnswer(cmd.OutOrStdout(), sess.ID, answer, c.Format, showSources); err != nil {
		return err
	}
	if c.Format == cli.OutputText {
		cmd.PrintErrf("\nsession: %s\n", sess.ID)
	}
	return nil
}
