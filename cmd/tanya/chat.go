package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/tanya/internal/cli"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/rag"
	"github.com/spf13/cobra"
)

const chatHelp = `Type a question and press enter.
  /edit <text>  rewrite your last question and answer it again
  /history      show the conversation so far
  /sources      toggle listing retrieved chunks
  /quit         leave the chat`

func newChatCmd(opts *rootOptions) *cobra.Command {
	var (
		sessionID   string
		topic       string
		showSources bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long: `Starts an interactive conversation over the corpus. Each exchange is saved to the
session after it completes. With refresh: watch the corpus folder is watched for new files.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := initializeComponents(opts)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Index.Start(cmd.Context()); err != nil {
				return err
			}
			sess, err := c.Sessions.LoadOrNew(sessionID, topic)
			if err != nil {
				return err
			}
			s := &chatSession{cmd: cmd, c: c, sess: sess, showSources: showSources}
			return s.run(cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id to continue (created if missing)")
	cmd.Flags().StringVar(&topic, "topic", "", "topic label for a new session")
	cmd.Flags().BoolVar(&showSources, "sources", false, "list the retrieved chunks under each answer")
	return cmd
}

type chatSession struct {
	cmd         *cobra.Command
	c           *Components
	sess        *cli.Session
	showSources bool
}

func (s *chatSession) run(in io.Reader) error {
	ctx := s.cmd.Context()
	out := s.cmd.OutOrStdout()
	fmt.Fprintf(out, "Session %s (%d turns). Type /help for commands.\n", s.sess.ID, len(s.sess.Messages))
	done := make(chan struct{})
	defer close(done)
	lines, scanErr := readLines(in, done)
	for {
		fmt.Fprint(out, "\n> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return <-scanErr
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}
		quit, err := s.handle(line)
		if err != nil {
			if errors.Is(err, models.ErrTurnCancelled) && ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(s.cmd.ErrOrStderr(), "error: %v\n", describeError(err))
		}
		if quit {
			return nil
		}
	}
}

// readLines scans in on its own goroutine so a pending read never blocks cancellation.
// The error channel receives the scanner error once lines is closed. Closing done releases
// the goroutine once its current read returns.
func readLines(in io.Reader, done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}

func (s *chatSession) handle(line string) (quit bool, err error) {
	ctx := s.cmd.Context()
	out := s.cmd.OutOrStdout()
	cmdName, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmdName {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(out, chatHelp)
		return false, nil
	case "/history":
		return false, cli.WriteTranscript(out, s.sess, cli.OutputText)
	case "/sources":
		s.showSources = !s.showSources
		fmt.Fprintf(out, "sources: %t\n", s.showSources)
		return false, nil
	case "/edit":
		if arg == "" {
			return false, errors.New("usage: /edit <new question>")
		}
		return false, s.turn(func() (models.Transcript, *rag.Answer, error) {
			return s.c.Service.Edit(ctx, s.sess.ID, s.sess.Messages, arg)
		})
	}
	if strings.HasPrefix(cmdName, "/") {
		return false, fmt.Errorf("unknown command %s; type /help", cmdName)
	}
	return false, s.turn(func() (models.Transcript, *rag.Answer, error) {
		return s.c.Service.Ask(ctx, s.sess.ID, s.sess.Messages, line)
	})
}

func (s *chatSession) turn(fn func() (models.Transcript, *rag.Answer, error)) error {
	updated, answer, err := fn()
	if err != nil {
		return err
	}
	s.sess.Messages = updated
	if err := s.c.Sessions.Save(s.sess); err != nil {
		return err
	}
	return cli.WriteAnswer(s.cmd.OutOrStdout(), s.sess.ID, answer, s.c.Format, s.showSources)
}
