package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestTranscript_LastUserIndex(t *testing.T) {
	tests := []struct {
		name string
		tr   Transcript
		want int
	}{
		{"empty", nil, -1},
		{"assistant only", Transcript{{Role: RoleAssistant, Text: "hi"}}, -1},
		{"user last", Transcript{{Role: RoleUser}, {Role: RoleAssistant}, {Role: RoleUser}}, 2},
		{"assistant last", Transcript{{Role: RoleUser}, {Role: RoleAssistant}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tr.LastUserIndex(); got != tt.want {
				t.Errorf("LastUserIndex() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTranscript_CloneIsIndependent(t *testing.T) {
	orig := Transcript{{Role: RoleUser, Text: "a"}}
	c := orig.Clone()
	c[0].Text = "b"
	if orig[0].Text != "a" {
		t.Errorf("clone shares storage with original")
	}
	if Transcript(nil).Clone() != nil {
		t.Error("clone of nil should be nil")
	}
}

func TestFileError_Unwrap(t *testing.T) {
	err := fmt.Errorf("ingest: %w", &FileError{Source: "a.pdf", Err: ErrUnsupportedFileType})
	if !errors.Is(err, ErrUnsupportedFileType) {
		t.Error("expected errors.Is to find ErrUnsupportedFileType")
	}
	var fe *FileError
	if !errors.As(err, &fe) || fe.Source != "a.pdf" {
		t.Errorf("errors.As: got %+v", fe)
	}
}
