package services_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/CrowderSoup/kanban/board"
	"github.com/CrowderSoup/kanban/database"
	"github.com/CrowderSoup/kanban/drag"
	"github.com/CrowderSoup/kanban/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	email   string
	message services.WebSocketMessage
}

type recordingHub struct {
	mu   sync.Mutex
	sent []sent
}

func (h *recordingHub) Broadcast(message services.WebSocketMessage, email string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sent = append(h.sent, sent{email: email, message: message})
}

func (h *recordingHub) messages() []sent {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]sent(nil), h.sent...)
}

// manualClock never fires; tests that need optimistic moves drive DragEnd instead.
type manualClock struct{}

type noopTimer struct{}

func (noopTimer) Stop() bool { return true }

func (manualClock) AfterFunc(time.Duration, func()) drag.Timer { return noopTimer{} }
func (manualClock) Now() time.Time { return time.Unix(0, 0) }

func TestSessionsAreScopedPerUser(t *testing.T) {
	t.Parallel()

	backend := database.NewMemoryBackend()
	sessions := services.NewSessions(backend, database.DefaultKey, &recordingHub{})

	a := sessions.Get("a@example.com")
	b := sessions.Get("b@example.com")

	assert.Same(t, a, sessions.Get("a@example.com"))
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, sessions.Len())

	colID := a.Store.SelectedBoard().Columns[0].ID
	_, ok := a.Store.AddTask(colID, board.Task{Title: "only for a"})
	require.True(t, ok)

	_, found, err := backend.Get(context.Background(), database.UserKey(database.DefaultKey, "a@example.com"))
	assert.NoError(t, err)
	assert.True(t, found)

	_, found, err = backend.Get(context.Background(), database.UserKey(database.DefaultKey, "b@example.com"))
	assert.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, board.Seed().Boards[0].Name, b.Store.SelectedBoard().Name)
	assert.Equal(t, a.Store.SelectedBoard().TaskCount()-1, b.Store.SelectedBoard().TaskCount())
}

func TestSessionBroadcastsChangesToOwner(t *testing.T) {
	t.Parallel()

	hub := &recordingHub{}
	sessions := services.NewSessions(database.NewMemoryBackend(), database.DefaultKey, hub)
	s := sessions.Get("a@example.com")

	colID := s.Store.SelectedBoard().Columns[1].ID
	_, ok := s.Store.AddTask(colID, board.Task{Title: "new"})
	require.True(t, ok)

	msgs := hub.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "a@example.com", msgs[0].email)
	assert.Equal(t, services.MessageState, msgs[0].message.Type)

	data, err := json.Marshal(msgs[0].message.Data)
	require.NoError(t, err)
	doc, err := database.DecodeDocument(data)
	require.NoError(t, err)
	assert.Equal(t, s.Store.Document(), doc)
}

func TestSessionDragPersistsThroughGateway(t *testing.T) {
	t.Parallel()

	backend := database.NewMemoryBackend()
	sessions := services.NewSessions(backend, database.DefaultKey, &recordingHub{},
		services.WithScheduler(manualClock{}),
	)
	s := sessions.Get("a@example.com")

	b := s.Store.SelectedBoard()
	task := b.Columns[0].Tasks[0]
	done := b.Columns[2]

	s.Drag.DragStart(task.ID)
	assert.True(t, s.Drag.DragOver(done.ID))
	assert.True(t, s.Drag.DragEnd(done.ID))

	reloaded := services.NewSessions(backend, database.DefaultKey, &recordingHub{}).Get("a@example.com")
	col, idx, ok := reloaded.Store.SelectedBoard().Locate(task.ID)
	require.True(t, ok)
	assert.Equal(t, done.ID, col)
	assert.Equal(t, len(done.Tasks), idx)
}

type sessionClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *sessionClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *sessionClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func TestIdleSessionsAreEvicted(t *testing.T) {
	t.Parallel()

	clock := &sessionClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	backend := database.NewMemoryBackend()
	sessions := services.NewSessions(backend, database.DefaultKey, &recordingHub{},
		services.WithIdleTimeout(time.Minute),
		services.WithSessionClock(clock.Now),
	)

	a := sessions.Get("a@example.com")
	colID := a.Store.SelectedBoard().Columns[0].ID
	task, ok := a.Store.AddTask(colID, board.Task{Title: "kept"})
	require.True(t, ok)

	clock.Advance(40 * time.Second)
	sessions.Get("b@example.com")
	clock.Advance(40 * time.Second)

	assert.Equal(t, 1, sessions.Evict())
	assert.Equal(t, 1, sessions.Len())

	// the next request reopens the board from storage
	reopened := sessions.Get("a@example.com")
	assert.NotSame(t, a, reopened)
	col, _, ok := reopened.Store.SelectedBoard().Locate(task.ID)
	require.True(t, ok)
	assert.Equal(t, colID, col)
}

func TestHeldSessionsSurviveEviction(t *testing.T) {
	t.Parallel()

	clock := &sessionClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	sessions := services.NewSessions(database.NewMemoryBackend(), database.DefaultKey, &recordingHub{},
		services.WithIdleTimeout(time.Minute),
		services.WithSessionClock(clock.Now),
	)

	held, release := sessions.Hold("a@example.com")
	clock.Advance(time.Hour)

	assert.Equal(t, 0, sessions.Evict())
	assert.Same(t, held, sessions.Get("a@example.com"))

	release()
	release()
	clock.Advance(time.Hour)

	assert.Equal(t, 1, sessions.Evict())
	assert.Equal(t, 0, sessions.Len())
}

func TestZeroIdleTimeoutKeepsSessions(t *testing.T) {
	t.Parallel()

	clock := &sessionClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	sessions := services.NewSessions(database.NewMemoryBackend(), database.DefaultKey, &recordingHub{},
		services.WithSessionClock(clock.Now),
	)

	sessions.Get("a@example.com")
	clock.Advance(24 * time.Hour)

	assert.Equal(t, 0, sessions.Evict())
	assert.Equal(t, 1, sessions.Len())
}
