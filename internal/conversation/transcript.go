// Package conversation applies turns to transcripts: appending an exchange, and editing the
// last user message with truncate-and-regenerate.
package conversation

import (
	"context"

	"github.com/hyperjump/tanya/internal/models"
)

// RegenerateFunc produces the assistant reply for question given the prior turns.
type RegenerateFunc func(ctx context.Context, question string, history models.Transcript) (string, error)

// AppendExchange returns t followed by a user turn and an assistant turn. t is not modified.
func AppendExchange(t models.Transcript, userText, assistantText string) models.Transcript {
	out := make(models.Transcript, len(t), len(t)+2)
	copy(out, t)
	return append(out,
		models.Turn{Role: models.RoleUser, Text: userText},
		models.Turn{Role: models.RoleAssistant, Text: assistantText},
	)
}

// EditLastUserAndRegenerate replaces the text of the most recent user turn with newText,
// drops every turn after it, and appends the reply regenerate produces. regenerate receives
// the turns before the edited one as history. On any error t is returned untouched along
// with the error; t itself is never modified.
func EditLastUserAndRegenerate(ctx context.Context, t models.Transcript, newText string, regenerate RegenerateFunc) (models.Transcript, error) {
	i := t.LastUserIndex()
	if i < 0 {
		return t, models.ErrNoUserTurnFound
	}
	history := t[:i].Clone()
	reply, err := regenerate(ctx, newText, history)
	if err != nil {
		return t, err
	}
	return AppendExchange(history, newText, reply), nil
}
