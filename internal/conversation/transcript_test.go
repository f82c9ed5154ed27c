package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/tanya/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u(text string) models.Turn { return models.Turn{Role: models.RoleUser, Text: text} }
func a(text string) models.Turn { return models.Turn{Role: models.RoleAssistant, Text: text} }

func TestAppendExchange(t *testing.T) {
	base := models.Transcript{u("U1"), a("A1")}
	got := AppendExchange(base, "U2", "A2")
	assert.Equal(t, models.Transcript{u("U1"), a("A1"), u("U2"), a("A2")}, got)
	assert.Len(t, base, 2)

	assert.Equal(t, models.Transcript{u("q"), a("r")}, AppendExchange(nil, "q", "r"))
}

func TestAppendExchange_DoesNotShareBackingArray(t *testing.T) {
	base := make(models.Transcript, 2, 10)
	base[0], base[1] = u("U1"), a("A1")
	first := AppendExchange(base, "U2", "A2")
	second := AppendExchange(base, "X", "Y")
	assert.Equal(t, "U2", first[2].Text)
	assert.Equal(t, "X", second[2].Text)
}

func TestEditLastUserAndRegenerate(t *testing.T) {
	tests := []struct {
		name        string
		transcript  models.Transcript
		wantHistory models.Transcript
		want        models.Transcript
	}{
		{
			name:        "last exchange",
			transcript:  models.Transcript{u("U1"), a("A1"), u("U2"), a("A2")},
			wantHistory: models.Transcript{u("U1"), a("A1")},
			want:        models.Transcript{u("U1"), a("A1"), u("U2'"), a("A2'")},
		},
		{
			name:        "dangling user turn",
			transcript:  models.Transcript{u("U1"), a("A1"), u("U2")},
			wantHistory: models.Transcript{u("U1"), a("A1")},
			want:        models.Transcript{u("U1"), a("A1"), u("U2'"), a("A2'")},
		},
		{
			name:        "trailing assistant turns discarded",
			transcript:  models.Transcript{u("U1"), a("A1"), a("A1b"), a("A1c")},
			wantHistory: models.Transcript{},
			want:        models.Transcript{u("U2'"), a("A2'")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.transcript.Clone()
			var gotQuestion string
			var gotHistory models.Transcript
			got, err := EditLastUserAndRegenerate(context.Background(), tt.transcript, "U2'", func(_ context.Context, q string, h models.Transcript) (string, error) {
				gotQuestion, gotHistory = q, h
				return "A2'", nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "U2'", gotQuestion)
			assert.Equal(t, tt.wantHistory, gotHistory)
			assert.Equal(t, before, tt.transcript, "input must not be modified")
		})
	}
}

func TestEditLastUserAndRegenerate_NoUserTurn(t *testing.T) {
	called := false
	regen := func(context.Context, string, models.Transcript) (string, error) {
		called = true
		return "", nil
	}
	for _, tr := range []models.Transcript{nil, {a("greeting")}} {
		got, err := EditLastUserAndRegenerate(context.Background(), tr, "new", regen)
		assert.ErrorIs(t, err, models.ErrNoUserTurnFound)
		assert.Equal(t, tr, got)
	}
	assert.False(t, called)
}

func TestEditLastUserAndRegenerate_FailureLeavesTranscript(t *testing.T) {
	tr := models.Transcript{u("U1"), a("A1")}
	got, err := EditLastUserAndRegenerate(context.Background(), tr, "U1'", func(context.Context, string, models.Transcript) (string, error) {
		return "", models.ErrGenerationUnavailable
	})
	assert.True(t, errors.Is(err, models.ErrGenerationUnavailable))
	assert.Equal(t, models.Transcript{u("U1"), a("A1")}, got)
}
