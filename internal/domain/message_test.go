package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    MessageState
		expected bool
	}{
		{name: "Valid State: Active", state: MessageStateActive, expected: true},
		{name: "Valid State: Deleted For All", state: MessageStateDeletedForAll, expected: true},
		{name: "Invalid State: Unknown Value", state: MessageState("unknown"), expected: false},
		{name: "Invalid State: Empty String", state: MessageState(""), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.state.IsValid()
			if got != tt.expected {
				t.Errorf("IsValid() for state %q got = %v, want %v", tt.state, got, tt.expected)
			}
		})
	}
}

func TestMessage_DeleteForAll(t *testing.T) {
	t.Run("transitions an active message", func(t *testing.T) {
		m := Message{ID: uuid.New(), State: MessageStateActive}
		at := time.Now()

		m.DeleteForAll(at)

		assert.True(t, m.Deleted())
		require.True(t, m.DeletedAt.Valid)
		assert.Equal(t, at, m.DeletedAt.Time)
	})

	t.Run("second call keeps the original deletion time", func(t *testing.T) {
		m := Message{ID: uuid.New(), State: MessageStateActive}
		first := time.Now()
		m.DeleteForAll(first)

		m.DeleteForAll(first.Add(time.Hour))

		assert.True(t, m.Deleted())
		assert.Equal(t, first, m.DeletedAt.Time)
	})
}

func TestConversation_HasParticipant(t *testing.T) {
	member := uuid.New()
	other := uuid.New()
	conversation := Conversation{
		ID: uuid.New(),
		Participants: []ConversationParticipant{
			{UserID: member},
			{UserID: uuid.New()},
		},
	}

	assert.True(t, conversation.HasParticipant(member))
	assert.False(t, conversation.HasParticipant(other))
}
