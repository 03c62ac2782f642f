package game

import (
	"context"
	"sync"
)

const (
	CHAT_HISTORY_LIMIT = 50
	CHAT_MEMORY_LIMIT  = 500
)

// ChatStore persists room chat. RecentChatMessages returns oldest first and
// skips deleted messages.
type ChatStore interface {
	SaveChatMessage(ctx context.Context, m ChatMessage) error
	RecentChatMessages(ctx context.Context, room string, limit int) ([]ChatMessage, error)
	ModerateChatMessage(ctx context.Context, id string, action ModerationAction, moderator string) (ChatMessage, error)
}

// MemoryChat keeps the last CHAT_MEMORY_LIMIT messages per room.
type MemoryChat struct {
	mu    sync.Mutex
	rooms map[string][]ChatMessage
}

func NewMemoryChat() *MemoryChat {
	return &MemoryChat{rooms: make(map[string][]ChatMessage)}
}

func (m *MemoryChat) SaveChatMessage(_ context.Context, msg ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := append(m.rooms[msg.Room], msg)
	if len(msgs) > CHAT_MEMORY_LIMIT {
		msgs = msgs[len(msgs)-CHAT_MEMORY_LIMIT:]
	}
	m.rooms[msg.Room] = msgs
	return nil
}

func (m *MemoryChat) RecentChatMessages(_ context.Context, room string, limit int) ([]ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ChatMessage
	msgs := m.rooms[room]
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		if !msgs[i].Deleted {
			out = append(out, msgs[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (m *MemoryChat) ModerateChatMessage(_ context.Context, id string, action ModerationAction, moderator string) (ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for room, msgs := range m.rooms {
		for i := range msgs {
			if msgs[i].ID != id {
				continue
			}
			switch action {
			case ModerationDelete:
				msgs[i].Deleted = true
			case ModerationFlag:
				msgs[i].Flagged = true
			default:
				return ChatMessage{}, ErrInvalidParams
			}
			msgs[i].ModeratedBy = moderator
			m.rooms[room] = msgs
			return msgs[i], nil
		}
	}
	return ChatMessage{}, ErrMessageNotFound
}
