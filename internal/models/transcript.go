package models

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"content"`
}

// Transcript is an ordered sequence of turns; index order is conversation order.
type Transcript []Turn

// Clone returns a copy that shares no backing array with t.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}

// LastUserIndex returns the index of the most recent user turn, or -1.
func (t Transcript) LastUserIndex() int {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Role == RoleUser {
			return i
		}
	}
	return -1
}
