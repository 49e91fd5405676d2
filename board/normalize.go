package board

import (
	"fmt"

	"github.com/google/uuid"
)

// Normalize assigns positional ids to boards, columns and tasks that arrived without
// one and rewrites legacy task statuses that name a column instead of referencing its
// id. A positional id that is already in use, and any repeat of an id, is replaced by
// a uuid-suffixed one. It returns a new slice and leaves the input untouched.
func Normalize(boards []Board) []Board {
	ids := make([]string, len(boards))
	for bi, b := range boards {
		ids[bi] = b.ID
	}
	ids = claimIDs(ids, func(i int) (string, string) {
		return "board", boardID(i)
	})

	out := make([]Board, len(boards))
	for bi, b := range boards {
		b = b.clone()
		b.ID = ids[bi]
		out[bi] = normalizeBoard(b)
	}
	return out
}

type taskPos struct {
	col, task int
}

func normalizeBoard(b Board) Board {
	colIDs := make([]string, len(b.Columns))
	for ci, col := range b.Columns {
		colIDs[ci] = col.ID
	}
	colIDs = claimIDs(colIDs, func(i int) (string, string) {
		return b.ID + "-col", columnID(b.ID, i)
	})
	for ci := range b.Columns {
		b.Columns[ci].ID = colIDs[ci]
	}

	// task ids are unique across the whole board, not just their column
	var pos []taskPos
	var taskIDs []string
	for ci, col := range b.Columns {
		for ti, t := range col.Tasks {
			pos = append(pos, taskPos{col: ci, task: ti})
			taskIDs = append(taskIDs, t.ID)
		}
	}
	taskIDs = claimIDs(taskIDs, func(i int) (string, string) {
		colID := b.Columns[pos[i].col].ID
		return colID + "-task", taskID(colID, pos[i].task)
	})

	for i, p := range pos {
		t := &b.Columns[p.col].Tasks[p.task]
		t.ID = taskIDs[i]
		t.Status = normalizeStatus(b, b.Columns[p.col].ID, t.Status)
	}
	return b
}

// claimIDs keeps the first occurrence of every non-empty id and fills the blanks and
// repeats with candidate(i), falling back to uniqueID when the candidate is taken.
func claimIDs(ids []string, candidate func(i int) (prefix, id string)) []string {
	out := make([]string, len(ids))
	taken := map[string]bool{}
	for i, id := range ids {
		if id == "" || taken[id] {
			continue
		}
		taken[id] = true
		out[i] = id
	}

	isTaken := func(id string) bool { return taken[id] }
	for i := range out {
		if out[i] != "" {
			continue
		}
		prefix, id := candidate(i)
		out[i] = uniqueID(prefix, id, isTaken)
		taken[out[i]] = true
	}
	return out
}

func normalizeStatus(b Board, containing, status string) string {
	if status == "" {
		return containing
	}
	for _, col := range b.Columns {
		if col.Name == status {
			return col.ID
		}
	}
	return status
}

func boardID(index int) string {
	return fmt.Sprintf("board-%d", index)
}

func columnID(boardID string, index int) string {
	return fmt.Sprintf("%s-col-%d", boardID, index)
}

func taskID(columnID string, index int) string {
	return fmt.Sprintf("%s-task-%d", columnID, index)
}

// uniqueID returns candidate unless taken reports it in use, in which case a
// uuid-suffixed id with the same prefix is returned.
func uniqueID(prefix, candidate string, taken func(string) bool) string {
	if !taken(candidate) {
		return candidate
	}
	for {
		id := prefix + "-" + uuid.NewString()
		if !taken(id) {
			return id
		}
	}
}

func boardIDTaken(boards []Board) func(string) bool {
	return func(id string) bool {
		for _, b := range boards {
			if b.ID == id {
				return true
			}
		}
		return false
	}
}

func taskIDTaken(b Board) func(string) bool {
	return func(id string) bool {
		_, _, ok := b.Locate(id)
		return ok
	}
}
