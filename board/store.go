package board

import (
	"sync"

	"github.com/rs/zerolog"
)

// Persister is the load/save/clear boundary the Store writes through. Implementations
// are best-effort: Load falls back to the seed document and Save/Clear swallow their
// own failures.
type Persister interface {
	Load() Document
	Save(doc Document)
	Clear()
}

// Change describes a mutation that was applied to the store.
type Change struct {
	Op        string
	Persisted bool
}

// Store owns the board collection and the selected board id. Mutators replace the
// touched slices instead of editing them, so a Document taken before a mutation is
// never affected by it.
type Store struct {
	mu         sync.RWMutex
	boards     []Board
	selectedID string

	persister Persister
	logger    zerolog.Logger

	subMu       sync.Mutex
	subscribers map[int]func(Change)
	nextSub     int
}

type Option func(*Store)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore loads the initial document from p and normalizes it.
func NewStore(p Persister, opts ...Option) *Store {
	if p == nil {
		panic("board: NewStore requires a Persister")
	}

	s := &Store{
		persister:   p,
		logger:      zerolog.Nop(),
		subscribers: map[int]func(Change){},
	}
	for _, opt := range opts {
		opt(s)
	}

	doc := p.Load()
	s.boards = Normalize(doc.Boards)
	if len(s.boards) == 0 {
		s.boards = Normalize(Seed().Boards)
	}
	s.selectedID = s.boards[0].ID
	if doc.SelectedBoardID != "" && indexOfBoard(s.boards, doc.SelectedBoardID) >= 0 {
		s.selectedID = doc.SelectedBoardID
	}

	s.logger.Debug().Int("boards", len(s.boards)).Str("selected", s.selectedID).Msg("board store loaded")

	return s
}

// Subscribe registers fn to be called after every applied mutation. The returned
// func removes the subscription.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// Boards returns a copy of every board.
func (s *Store) Boards() []Board {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneBoards(s.boards)
}

// SelectedBoardID returns the id of the board currently displayed.
func (s *Store) SelectedBoardID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.selectedID
}

// SelectedBoard looks up the selected board in the current collection.
func (s *Store) SelectedBoard() Board {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := indexOfBoard(s.boards, s.selectedID); i >= 0 {
		return s.boards[i].clone()
	}
	return s.boards[0].clone()
}

// Document returns the current state in its persisted shape.
func (s *Store) Document() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.document()
}

func (s *Store) document() Document {
	return Document{Boards: cloneBoards(s.boards), SelectedBoardID: s.selectedID}
}

type state struct {
	boards     []Board
	selectedID string
}

// apply runs fn against the current state and, when fn reports a change, installs the
// result and saves it if persist is set. fn must not modify the slices it is given.
func (s *Store) apply(op string, persist bool, fn func(st state) (state, bool)) bool {
	s.mu.Lock()
	next, changed := fn(state{boards: s.boards, selectedID: s.selectedID})
	if !changed {
		s.mu.Unlock()
		s.logger.Debug().Str("op", op).Msg("no-op: target not found")
		return false
	}
	s.boards = next.boards
	s.selectedID = next.selectedID
	if persist {
		s.persister.Save(s.document())
	}
	s.mu.Unlock()

	s.logger.Debug().Str("op", op).Bool("persisted", persist).Msg("board state updated")
	s.notify(Change{Op: op, Persisted: persist})

	return true
}

// withSelected applies fn to the selected board, replacing it in a fresh board slice.
func withSelected(st state, fn func(b Board) (Board, bool)) (state, bool) {
	i := indexOfBoard(st.boards, st.selectedID)
	if i < 0 {
		return st, false
	}
	b, ok := fn(st.boards[i])
	if !ok {
		return st, false
	}
	st.boards = replaceAt(st.boards, i, b)
	return st, true
}

// SelectBoard makes the board with the given id the selected board. Empty or unknown
// ids are ignored.
func (s *Store) SelectBoard(id string) bool {
	if id == "" {
		return false
	}
	return s.apply("selectBoard", true, func(st state) (state, bool) {
		if st.selectedID == id || indexOfBoard(st.boards, id) < 0 {
			return st, false
		}
		st.selectedID = id
		return st, true
	})
}

// AddBoard appends b with freshly assigned ids and selects it.
func (s *Store) AddBoard(b Board) Board {
	var added Board
	s.apply("addBoard", true, func(st state) (state, bool) {
		index := len(st.boards)
		candidate := b.ID
		if candidate == "" {
			candidate = boardID(index)
		}
		b.ID = uniqueID("board", candidate, boardIDTaken(st.boards))
		added = stampBoard(normalizeBoard(b.clone()))

		st.boards = append(append(make([]Board, 0, index+1), st.boards...), added)
		st.selectedID = added.ID
		return st, true
	})
	return added.clone()
}

// UpdateBoard replaces the board currently named originalName with the name and
// columns of updated. The board keeps its id. A retained column (matched by id) that
// arrives without a task list keeps its existing tasks; a nil column list keeps the
// current columns.
func (s *Store) UpdateBoard(originalName string, updated Board) bool {
	return s.apply("updateBoard", true, func(st state) (state, bool) {
		i := indexOfBoardByName(st.boards, originalName)
		if i < 0 {
			return st, false
		}
		old := st.boards[i]

		next := Board{ID: old.ID, Name: updated.Name, Columns: old.Columns}
		if updated.Columns != nil {
			next.Columns = make([]Column, 0, len(updated.Columns))
			for ci, col := range updated.Columns {
				col = col.clone()
				if _, repeated := next.column(col.ID); col.ID == "" || repeated {
					col.ID = uniqueID(old.ID+"-col", columnID(old.ID, ci), func(id string) bool {
						_, inOld := old.column(id)
						_, inNext := next.column(id)
						return inOld || inNext
					})
				} else if prev, ok := old.ColumnByID(col.ID); ok && col.Tasks == nil {
					col.Tasks = prev.Tasks
				}
				if col.Tasks == nil {
					col.Tasks = []Task{}
				}
				next.Columns = append(next.Columns, col)
			}
		}

		st.boards = replaceAt(st.boards, i, stampBoard(next))
		return st, true
	})
}

// DeleteBoard removes every board named name. When the selected board goes away the
// first remaining board is selected; when none remain the seed dataset is restored.
func (s *Store) DeleteBoard(name string) bool {
	return s.apply("deleteBoard", true, func(st state) (state, bool) {
		remaining := make([]Board, 0, len(st.boards))
		for _, b := range st.boards {
			if b.Name != name {
				remaining = append(remaining, b)
			}
		}
		if len(remaining) == len(st.boards) {
			return st, false
		}
		if len(remaining) == 0 {
			remaining = Normalize(Seed().Boards)
		}
		st.boards = remaining
		if indexOfBoard(remaining, st.selectedID) < 0 {
			st.selectedID = remaining[0].ID
		}
		return st, true
	})
}

// AddTask appends t to the column of the selected board. A task without an id, or
// whose id is already in use on the board, gets a fresh one.
func (s *Store) AddTask(columnID string, t Task) (Task, bool) {
	var added Task
	ok := s.apply("addTask", true, func(st state) (state, bool) {
		return withSelected(st, func(b Board) (Board, bool) {
			ci, ok := b.column(columnID)
			if !ok {
				return b, false
			}
			col := b.Columns[ci]

			candidate := t.ID
			if candidate == "" {
				candidate = taskID(col.ID, len(col.Tasks))
			}
			added = sanitizeTask(t)
			added.ID = uniqueID(col.ID+"-task", candidate, taskIDTaken(b))
			added.Status = col.ID

			col.Tasks = append(append(make([]Task, 0, len(col.Tasks)+1), col.Tasks...), added)
			b.Columns = replaceAt(b.Columns, ci, col)
			return b, true
		})
	})
	return added.clone(), ok
}

// EditTask replaces the task originalTaskID in originalColumnID with updated. When
// updated.Status names a different column the task moves to the end of that column.
func (s *Store) EditTask(originalColumnID string, updated Task, originalTaskID string) bool {
	return s.apply("editTask", true, func(st state) (state, bool) {
		return withSelected(st, func(b Board) (Board, bool) {
			si, ok := b.column(originalColumnID)
			if !ok {
				return b, false
			}
			src := b.Columns[si]
			ti, ok := src.task(originalTaskID)
			if !ok {
				return b, false
			}

			next := sanitizeTask(updated)
			next.ID = originalTaskID

			if updated.Status == "" || updated.Status == originalColumnID {
				next.Status = src.ID
				src.Tasks = replaceAt(src.Tasks, ti, next)
				b.Columns = replaceAt(b.Columns, si, src)
				return b, true
			}

			di, ok := b.column(updated.Status)
			if !ok {
				return b, false
			}
			next.Status = b.Columns[di].ID

			src.Tasks = removeAt(src.Tasks, ti)
			b.Columns = replaceAt(b.Columns, si, src)

			dst := b.Columns[di]
			dst.Tasks = append(append(make([]Task, 0, len(dst.Tasks)+1), dst.Tasks...), next)
			b.Columns = replaceAt(b.Columns, di, dst)
			return b, true
		})
	})
}

// DeleteTask removes a task from a column of the selected board.
func (s *Store) DeleteTask(columnID, taskID string) bool {
	return s.apply("deleteTask", true, func(st state) (state, bool) {
		return withSelected(st, func(b Board) (Board, bool) {
			ci, ok := b.column(columnID)
			if !ok {
				return b, false
			}
			col := b.Columns[ci]
			ti, ok := col.task(taskID)
			if !ok {
				return b, false
			}
			col.Tasks = removeAt(col.Tasks, ti)
			b.Columns = replaceAt(b.Columns, ci, col)
			return b, true
		})
	})
}

// ToggleSubtask flips IsCompleted of the subtask at index.
func (s *Store) ToggleSubtask(columnID, taskID string, index int) bool {
	return s.apply("toggleSubtask", true, func(st state) (state, bool) {
		return withSelected(st, func(b Board) (Board, bool) {
			ci, ok := b.column(columnID)
			if !ok {
				return b, false
			}
			col := b.Columns[ci]
			ti, ok := col.task(taskID)
			if !ok {
				return b, false
			}
			t := col.Tasks[ti]
			if index < 0 || index >= len(t.Subtasks) {
				return b, false
			}
			sub := t.Subtasks[index]
			sub.IsCompleted = !sub.IsCompleted
			t.Subtasks = replaceAt(t.Subtasks, index, sub)
			col.Tasks = replaceAt(col.Tasks, ti, t)
			b.Columns = replaceAt(b.Columns, ci, col)
			return b, true
		})
	})
}

// MoveTask removes the task from fromColumnID and inserts it into toColumnID at
// toIndex, clamped to the bounds of the target list after removal. Only a move with
// persist set is written through the Persister; the rest are optimistic.
func (s *Store) MoveTask(fromColumnID, toColumnID, taskID string, toIndex int, persist bool) bool {
	return s.apply("moveTask", persist, func(st state) (state, bool) {
		return withSelected(st, func(b Board) (Board, bool) {
			fi, ok := b.column(fromColumnID)
			if !ok {
				return b, false
			}
			src := b.Columns[fi]
			ti, ok := src.task(taskID)
			if !ok {
				return b, false
			}
			di, ok := b.column(toColumnID)
			if !ok {
				return b, false
			}

			t := src.Tasks[ti]
			src.Tasks = removeAt(src.Tasks, ti)
			b.Columns = replaceAt(b.Columns, fi, src)

			dst := b.Columns[di]
			t.Status = dst.ID
			dst.Tasks = insertAt(dst.Tasks, toIndex, t)
			b.Columns = replaceAt(b.Columns, di, dst)
			return b, true
		})
	})
}

// ResetToDefault clears the persisted document and reseeds from the bundled dataset.
func (s *Store) ResetToDefault() {
	s.mu.Lock()
	s.persister.Clear()
	s.boards = Normalize(Seed().Boards)
	s.selectedID = s.boards[0].ID
	s.mu.Unlock()

	s.logger.Info().Msg("board state reset to default")
	s.notify(Change{Op: "resetToDefault"})
}

// stampBoard makes every task's status match its containing column and gives tasks
// without an id, or repeating one, an id that is unused on the board.
func stampBoard(b Board) Board {
	var pos []taskPos
	var ids []string
	for ci, col := range b.Columns {
		for ti, t := range col.Tasks {
			pos = append(pos, taskPos{col: ci, task: ti})
			ids = append(ids, t.ID)
		}
	}
	ids = claimIDs(ids, func(i int) (string, string) {
		colID := b.Columns[pos[i].col].ID
		return colID + "-task", taskID(colID, pos[i].task)
	})

	columns := make([]Column, len(b.Columns))
	for ci, col := range b.Columns {
		col.Tasks = make([]Task, len(col.Tasks))
		columns[ci] = col
	}
	for i, p := range pos {
		t := sanitizeTask(b.Columns[p.col].Tasks[p.task])
		t.ID = ids[i]
		t.Status = columns[p.col].ID
		columns[p.col].Tasks[p.task] = t
	}
	b.Columns = columns
	return b
}

func sanitizeTask(t Task) Task {
	t = t.clone()
	if t.Subtasks == nil {
		t.Subtasks = []Subtask{}
	}
	return t
}

func indexOfBoard(boards []Board, id string) int {
	for i := range boards {
		if boards[i].ID == id {
			return i
		}
	}
	return -1
}

func indexOfBoardByName(boards []Board, name string) int {
	for i := range boards {
		if boards[i].Name == name {
			return i
		}
	}
	return -1
}

func replaceAt[T any](in []T, i int, v T) []T {
	out := make([]T, len(in))
	copy(out, in)
	out[i] = v
	return out
}

func removeAt[T any](in []T, i int) []T {
	out := make([]T, 0, len(in)-1)
	out = append(out, in[:i]...)
	return append(out, in[i+1:]...)
}

func insertAt[T any](in []T, i int, v T) []T {
	if i < 0 {
		i = 0
	}
	if i > len(in) {
		i = len(in)
	}
	out := make([]T, 0, len(in)+1)
	out = append(out, in[:i]...)
	out = append(out, v)
	return append(out, in[i:]...)
}
