package board_test

import (
	"testing"

	"github.com/CrowderSoup/kanban/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPersister struct {
	doc    board.Document
	saves  []board.Document
	clears int
}

func (p *recordingPersister) Load() board.Document {
	return p.doc
}

func (p *recordingPersister) Save(doc board.Document) {
	p.saves = append(p.saves, doc)
}

func (p *recordingPersister) Clear() {
	p.clears++
}

func twoColumnDoc() board.Document {
	return board.Document{
		Boards: []board.Board{
			{
				ID:   "b1",
				Name: "Board One",
				Columns: []board.Column{
					{ID: "c1", Name: "Todo", Tasks: []board.Task{
						{ID: "t1", Title: "Task 1", Subtasks: []board.Subtask{{Title: "s1"}}},
					}},
					{ID: "c2", Name: "Done", Tasks: []board.Task{}},
				},
			},
		},
		SelectedBoardID: "b1",
	}
}

func newStore(doc board.Document) (*board.Store, *recordingPersister) {
	p := &recordingPersister{doc: doc}
	return board.NewStore(p), p
}

func column(t *testing.T, s *board.Store, id string) board.Column {
	t.Helper()

	col, ok := s.SelectedBoard().ColumnByID(id)
	require.True(t, ok, "column %s", id)

	return col
}

func assertConsistent(t *testing.T, s *board.Store) {
	t.Helper()

	for _, b := range s.Boards() {
		columnIDs := map[string]bool{}
		taskIDs := map[string]bool{}
		for _, col := range b.Columns {
			assert.False(t, columnIDs[col.ID], "duplicate column id %s", col.ID)
			columnIDs[col.ID] = true
			for _, task := range col.Tasks {
				assert.Equal(t, col.ID, task.Status, "task %s status", task.ID)
				assert.False(t, taskIDs[task.ID], "duplicate task id %s", task.ID)
				taskIDs[task.ID] = true
			}
		}
	}
}

func TestNewStoreUsesLoadedData(t *testing.T) {
	t.Parallel()

	s, _ := newStore(twoColumnDoc())

	assert.Len(t, s.Boards(), 1)
	assert.Equal(t, "b1", s.SelectedBoard().ID)
}

func TestNewStoreRespectsSelectedBoardID(t *testing.T) {
	t.Parallel()

	s, _ := newStore(board.Document{
		Boards:          []board.Board{{ID: "bA", Name: "A"}, {ID: "bB", Name: "B"}},
		SelectedBoardID: "bB",
	})

	assert.Equal(t, "bB", s.SelectedBoard().ID)
}

func TestNewStoreFallsBackToSeedWhenEmpty(t *testing.T) {
	t.Parallel()

	s, _ := newStore(board.Document{})

	seed := board.Normalize(board.Seed().Boards)
	assert.Equal(t, seed, s.Boards())
	assert.Equal(t, seed[0].ID, s.SelectedBoardID())
}

func TestMoveTaskAcrossColumnsPersists(t *testing.T) {
	t.Parallel()

	s, p := newStore(twoColumnDoc())

	assert.True(t, s.MoveTask("c1", "c2", "t1", 0, true))

	assert.Empty(t, column(t, s, "c1").Tasks)
	to := column(t, s, "c2")
	require.Len(t, to.Tasks, 1)
	assert.Equal(t, "t1", to.Tasks[0].ID)
	assert.Equal(t, "c2", to.Tasks[0].Status)
	assert.Len(t, p.saves, 1)
	assertConsistent(t, s)
}

func TestMoveTaskOptimisticDoesNotPersist(t *testing.T) {
	t.Parallel()

	s, p := newStore(twoColumnDoc())

	assert.True(t, s.MoveTask("c1", "c2", "t1", 0, false))

	assert.Len(t, column(t, s, "c2").Tasks, 1)
	assert.Empty(t, p.saves)
}

func TestMoveTaskReordersWithinColumn(t *testing.T) {
	t.Parallel()

	s, _ := newStore(twoColumnDoc())
	_, ok := s.AddTask("c1", board.Task{ID: "t2", Title: "Task 2"})
	require.True(t, ok)

	assert.True(t, s.MoveTask("c1", "c1", "t2", 0, false))

	tasks := column(t, s, "c1").Tasks
	require.Len(t, tasks, 2)
	assert.Equal(t, "t2", tasks[0].ID)
	assert.Equal(t, "t1", tasks[1].ID)
}

func TestMoveTaskClampsIndexAndConservesTasks(t *testing.T) {
	t.Parallel()

	s, _ := newStore(twoColumnDoc())
	for i := 0; i < 3; i++ {
		_, ok := s.AddTask("c2", board.Task{Title: "filler"})
		require.True(t, ok)
	}
	before := s.SelectedBoard().TaskCount()

	assert.True(t, s.MoveTask("c1", "c2", "t1", 99, true))

	to := column(t, s, "c2").Tasks
	assert.Equal(t, "t1", to[len(to)-1].ID)
	assert.Equal(t, before, s.SelectedBoard().TaskCount())

	assert.True(t, s.MoveTask("c2", "c1", "t1", -5, true))
	assert.Equal(t, "t1", column(t, s, "c1").Tasks[0].ID)
	assert.Equal(t, before, s.SelectedBoard().TaskCount())
	assertConsistent(t, s)
}

func TestMoveTaskNotFoundIsNoop(t *testing.T) {
	t.Parallel()

	s, p := newStore(twoColumnDoc())
	before := s.Document()

	assert.False(t, s.MoveTask("c2", "c1", "t1", 0, true))
	assert.False(t, s.MoveTask("c1", "nope", "t1", 0, true))
	assert.False(t, s.MoveTask("nope", "c1", "t1", 0, true))

	assert.Equal(t, before, s.Document())
	assert.Empty(t, p.saves)
}

func TestAddTaskAssignsDistinctIDs(t *testing.T) {
	t.Parallel()

	s, p := newStore(twoColumnDoc())

	a, ok := s.AddTask("c1", board.Task{Title: "New"})
	require.True(t, ok)
	b, ok := s.AddTask("c1", board.Task{Title: "New"})
	require.True(t, ok)

	assert.NotEmpty(t, a.ID)
	assert.NotEmpty(t, b.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, column(t, s, "c1").Tasks, 3)
	assert.Len(t, p.saves, 2)
	assertConsistent(t, s)
}

func TestAddTaskReplacesCollidingID(t *testing.T) {
	t.Parallel()

	s, _ := newStore(twoColumnDoc())

	added, ok := s.AddTask("c2", board.Task{ID: "t1", Title: "dup"})
	require.True(t, ok)

	assert.NotEqual(t, "t1", added.ID)
	assertConsistent(t, s)
}

func TestAddTaskUnknownColumn(t *testing.T) {
	t.Parallel()

	s, p := newStore(twoColumnDoc())

	_, ok := s.AddTask("nope", board.Task{Title: "x"})

	assert.False(t, ok)
	assert.Empty(t, p.saves)
}

func TestEditTaskInPlace(t *testing.T) {
	t.Parallel()

	s, _ := newStore(twoColumnDoc())

	ok := s.EditTask("c1", board.Task{Title: "Task 1 updated", Status: "c1"}, "t1")

	assert.True(t, ok)
	task := column(t, s, "c1").Tasks[0]
	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, "Task 1 updated", task.Title)
	assert.Empty(t, task.Subtasks)
}

func TestEditTaskMovesToNewStatusColumn(t *testing.T) {
	t.Parallel()

	s, p := newStore(twoColumnDoc())

	ok := s.EditTask("c1", board.Task{ID: "ignored", Title: "moved", Status: "c2"}, "t1")

	assert.True(t, ok)
	assert.Empty(t, column(t, s, "c1").Tasks)
	to := column(t, s, "c2").Tasks
	require.Len(t, to, 1)
	assert.Equal(t, "t1", to[0].ID)
	assert.Equal(t, "c2", to[0].Status)
	assert.Len(t, p.saves, 1)
	assertConsistent(t, s)
}

func TestEditTaskUnknownTargets(t *testing.T) {
	t.Parallel()

	s, p := newStore(twoColumnDoc())

	assert.False(t, s.EditTask("nope", board.Task{Status: "c1"}, "t1"))
	assert.False(t, s.EditTask("c1", board.Task{Status: "c1"}, "nope"))
	assert.False(t, s.EditTask("c1", board.Task{Status: "nope"}, "t1"))
	assert.Empty(t, p.saves)
}

func TestDeleteTask(t *testing.T) {
	t.Parallel()

	s, p := newStore(twoColumnDoc())

	assert.False(t, s.DeleteTask("c2", "t1"))
	assert.True(t, s.DeleteTask("c1", "t1"))

	assert.Empty(t, column(t, s, "c1").Tasks)
	assert.Len(t, p.saves, 1)
}

func TestToggleSubtaskTwiceRestores(t *testing.T) {
	t.Parallel()

	s, p := newStore(twoColumnDoc())

	assert.True(t, s.ToggleSubtask("c1", "t1", 0))
	assert.True(t, column(t, s, "c1").Tasks[0].Subtasks[0].IsCompleted)

	assert.True(t, s.ToggleSubtask("c1", "t1", 0))
	assert.False(t, column(t, s, "c1").Tasks[0].Subtasks[0].IsCompleted)

	assert.False(t, s.ToggleSubtask("c1", "t1", 1))
	assert.False(t, s.ToggleSubtask("c1", "t1", -1))
	assert.Len(t, p.saves, 2)
}

func TestAddBoardAppendsAndSelects(t *testing.T) {
	t.Parallel()

	s, p := newStore(twoColumnDoc())

	added := s.AddBoard(board.Board{Name: "New Board", Columns: []board.Column{{Name: "Col"}}})

	assert.Len(t, s.Boards(), 2)
	assert.Equal(t, "New Board", s.SelectedBoard().Name)
	assert.Equal(t, added.ID, s.SelectedBoardID())
	assert.Equal(t, "board-1", added.ID)
	assert.Equal(t, "board-1-col-0", added.Columns[0].ID)
	assert.Len(t, p.saves, 1)
}

func TestAddBoardAvoidsIDCollision(t *testing.T) {
	t.Parallel()

	s, _ := newStore(board.Document{Boards: []board.Board{{ID: "board-1", Name: "taken"}}})

	added := s.AddBoard(board.Board{Name: "fresh"})

	assert.NotEqual(t, "board-1", added.ID)
	assert.NotEmpty(t, added.ID)
}

func TestUpdateBoardKeepsTasksOfRetainedColumns(t *testing.T) {
	t.Parallel()

	s, p := newStore(twoColumnDoc())

	ok := s.UpdateBoard("Board One", board.Board{
		Name: "Renamed",
		Columns: []board.Column{
			{ID: "c1", Name: "Backlog"},
			{Name: "Review"},
		},
	})

	assert.True(t, ok)
	b := s.SelectedBoard()
	assert.Equal(t, "b1", b.ID)
	assert.Equal(t, "Renamed", b.Name)
	require.Len(t, b.Columns, 2)
	assert.Equal(t, "Backlog", b.Columns[0].Name)
	assert.Len(t, b.Columns[0].Tasks, 1)
	assert.NotEmpty(t, b.Columns[1].ID)
	assert.NotEqual(t, "c1", b.Columns[1].ID)
	assert.Len(t, p.saves, 1)
	assertConsistent(t, s)
}

func TestUpdateBoardUnknownName(t *testing.T) {
	t.Parallel()

	s, p := newStore(twoColumnDoc())

	assert.False(t, s.UpdateBoard("nope", board.Board{Name: "x"}))
	assert.Empty(t, p.saves)
}

func TestSelectBoard(t *testing.T) {
	t.Parallel()

	s, _ := newStore(board.Document{Boards: []board.Board{{ID: "bA", Name: "A"}, {ID: "bB", Name: "B"}}})

	assert.False(t, s.SelectBoard(""))
	assert.False(t, s.SelectBoard("missing"))
	assert.True(t, s.SelectBoard("bB"))
	assert.Equal(t, "B", s.SelectedBoard().Name)
}

func TestDeleteSelectedBoardFallsBack(t *testing.T) {
	t.Parallel()

	s, p := newStore(board.Document{
		Boards:          []board.Board{{ID: "b1", Name: "Board One"}, {ID: "b2", Name: "Board Two"}},
		SelectedBoardID: "b2",
	})

	assert.True(t, s.DeleteBoard("Board Two"))

	assert.Len(t, s.Boards(), 1)
	assert.Equal(t, "b1", s.SelectedBoardID())
	assert.Len(t, p.saves, 1)
}

func TestDeleteOnlyBoardReseeds(t *testing.T) {
	t.Parallel()

	s, _ := newStore(twoColumnDoc())

	assert.True(t, s.DeleteBoard("Board One"))

	seed := board.Normalize(board.Seed().Boards)
	assert.Equal(t, seed, s.Boards())
	assert.Equal(t, seed[0].ID, s.SelectedBoard().ID)
}

func TestResetToDefault(t *testing.T) {
	t.Parallel()

	s, p := newStore(twoColumnDoc())

	s.ResetToDefault()

	assert.Equal(t, 1, p.clears)
	assert.Empty(t, p.saves)
	seed := board.Normalize(board.Seed().Boards)
	assert.Equal(t, seed, s.Boards())
	assert.Equal(t, seed[0].ID, s.SelectedBoardID())
}

func TestSnapshotsAreNotMutatedByLaterChanges(t *testing.T) {
	t.Parallel()

	s, p := newStore(twoColumnDoc())

	before := s.Document()
	require.True(t, s.ToggleSubtask("c1", "t1", 0))
	require.True(t, s.MoveTask("c1", "c2", "t1", 0, true))

	assert.False(t, before.Boards[0].Columns[0].Tasks[0].Subtasks[0].IsCompleted)
	assert.Len(t, before.Boards[0].Columns[0].Tasks, 1)
	assert.True(t, p.saves[0].Boards[0].Columns[0].Tasks[0].Subtasks[0].IsCompleted)
	assert.Len(t, p.saves[0].Boards[0].Columns[0].Tasks, 1)
}

func TestSubscribersSeeChanges(t *testing.T) {
	t.Parallel()

	s, _ := newStore(twoColumnDoc())

	var changes []board.Change
	unsubscribe := s.Subscribe(func(c board.Change) {
		changes = append(changes, c)
	})

	s.MoveTask("c1", "c2", "t1", 0, false)
	s.DeleteTask("c1", "missing")
	unsubscribe()
	s.MoveTask("c2", "c1", "t1", 0, true)

	assert.Equal(t, []board.Change{{Op: "moveTask", Persisted: false}}, changes)
}

func TestUpdateBoardRepairsRepeatedIDs(t *testing.T) {
	t.Parallel()

	s, _ := newStore(twoColumnDoc())

	ok := s.UpdateBoard("Board One", board.Board{
		Name: "Board One",
		Columns: []board.Column{
			{ID: "c1", Name: "Todo", Tasks: []board.Task{{ID: "t1", Title: "a"}}},
			{ID: "c1", Name: "Copy", Tasks: []board.Task{{ID: "t1", Title: "b"}}},
		},
	})
	require.True(t, ok)

	assertConsistent(t, s)
	b := s.SelectedBoard()
	assert.Equal(t, "c1", b.Columns[0].ID)
	assert.Equal(t, "t1", b.Columns[0].Tasks[0].ID)
	assert.NotEqual(t, "c1", b.Columns[1].ID)
	assert.NotEqual(t, "t1", b.Columns[1].Tasks[0].ID)
}
