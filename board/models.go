package board

// Document is the persisted shape of the whole board collection.
type Document struct {
	Boards          []Board `json:"boards"`
	SelectedBoardID string  `json:"selectedBoardId,omitempty"`
}

type Board struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

type Column struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Tasks []Task `json:"tasks"`
}

// Task.Status holds the id of the column whose task list contains the task.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Subtasks    []Subtask `json:"subtasks"`
}

// Subtask has no identity of its own; it is addressed by its index in Task.Subtasks.
type Subtask struct {
	Title       string `json:"title"`
	IsCompleted bool   `json:"isCompleted"`
}

func (b Board) column(id string) (int, bool) {
	for i := range b.Columns {
		if b.Columns[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

func (c Column) task(id string) (int, bool) {
	for i := range c.Tasks {
		if c.Tasks[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// Locate returns the column id and index of the task with the given id.
func (b Board) Locate(taskID string) (string, int, bool) {
	for _, col := range b.Columns {
		if i, ok := col.task(taskID); ok {
			return col.ID, i, true
		}
	}
	return "", -1, false
}

// ColumnByID returns a copy of the column with the given id.
func (b Board) ColumnByID(id string) (Column, bool) {
	i, ok := b.column(id)
	if !ok {
		return Column{}, false
	}
	return b.Columns[i], true
}

// TaskCount is the number of tasks across every column of the board.
func (b Board) TaskCount() int {
	n := 0
	for _, col := range b.Columns {
		n += len(col.Tasks)
	}
	return n
}

func cloneBoards(in []Board) []Board {
	if in == nil {
		return nil
	}
	out := make([]Board, len(in))
	for i, b := range in {
		out[i] = b.clone()
	}
	return out
}

func (b Board) clone() Board {
	out := b
	if b.Columns != nil {
		out.Columns = make([]Column, len(b.Columns))
		for i, col := range b.Columns {
			out.Columns[i] = col.clone()
		}
	}
	return out
}

func (c Column) clone() Column {
	out := c
	if c.Tasks != nil {
		out.Tasks = make([]Task, len(c.Tasks))
		for i, t := range c.Tasks {
			out.Tasks[i] = t.clone()
		}
	}
	return out
}

func (t Task) clone() Task {
	out := t
	if t.Subtasks != nil {
		out.Subtasks = append([]Subtask(nil), t.Subtasks...)
	}
	return out
}
