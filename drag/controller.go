// Package drag turns the pointer events of a drag gesture into board moves: a stream of
// debounced optimistic moves while the pointer travels and one persisted move on drop.
package drag

import (
	"sync"
	"time"

	"github.com/CrowderSoup/kanban/board"
	"github.com/rs/zerolog"
)

const (
	DefaultSameColumnDelay  = 120 * time.Millisecond
	DefaultCrossColumnDelay = 40 * time.Millisecond
	DefaultFlipWindow       = 250 * time.Millisecond
)

// Mover is the part of the board store the controller drives.
type Mover interface {
	SelectedBoard() board.Board
	MoveTask(fromColumnID, toColumnID, taskID string, toIndex int, persist bool) bool
}

// Config holds the controller timings. Cross-column moves use a shorter delay than
// reorders within a column.
type Config struct {
	SameColumnDelay  time.Duration
	CrossColumnDelay time.Duration
	FlipWindow       time.Duration
}

func DefaultConfig() Config {
	return Config{
		SameColumnDelay:  DefaultSameColumnDelay,
		CrossColumnDelay: DefaultCrossColumnDelay,
		FlipWindow:       DefaultFlipWindow,
	}
}

type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	default:
		return "unknown"
	}
}

type move struct {
	from      string
	to        string
	fromIndex int
	toIndex   int
}

func (m move) sameColumn() bool {
	return m.from == m.to
}

// inverts reports whether m undoes prev. Within a single column the indexes must swap
// as well, otherwise every reorder in that column would count as a flip.
func (m move) inverts(prev move) bool {
	if prev.from != m.to || prev.to != m.from {
		return false
	}
	if !m.sameColumn() {
		return true
	}
	return prev.fromIndex == m.toIndex && prev.toIndex == m.fromIndex
}

type intent struct {
	move move
	at   time.Time
}

type pending struct {
	move  move
	timer Timer
}

// Controller reconciles one drag gesture at a time against a Mover. At most one
// optimistic move is pending at any moment.
type Controller struct {
	mu sync.Mutex

	mover  Mover
	sched  Scheduler
	cfg    Config
	logger zerolog.Logger

	state   State
	taskID  string
	last    *intent
	pending *pending
}

type Option func(*Controller)

func WithConfig(cfg Config) Option {
	return func(c *Controller) {
		c.cfg = cfg
	}
}

func WithScheduler(s Scheduler) Option {
	return func(c *Controller) {
		c.sched = s
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func NewController(m Mover, opts ...Option) *Controller {
	if m == nil {
		panic("drag: NewController requires a Mover")
	}

	c := &Controller{
		mover:  m,
		sched:  WallClock(),
		cfg:    DefaultConfig(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// DragStart begins a gesture for taskID, abandoning any gesture still in progress.
func (c *Controller) DragStart(taskID string) {
	if taskID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Dragging {
		c.logger.Debug().Str("task", c.taskID).Msg("drag restarted before drop")
	}
	c.reset()
	c.state = Dragging
	c.taskID = taskID
}

// DragOver handles one pointer-over tick. It reports whether an optimistic move was
// scheduled.
func (c *Controller) DragOver(targetID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Dragging {
		return false
	}

	m, ok := resolve(c.mover.SelectedBoard(), c.taskID, targetID)
	if !ok {
		c.ignore("unresolved", targetID)
		return false
	}
	if m.sameColumn() && m.fromIndex == m.toIndex {
		// The pointer is back over the task's own slot, so a move still waiting to
		// fire is stale.
		if c.pending != nil {
			c.cancelPending()
			c.last = nil
		}
		c.ignore("redundant", targetID)
		return false
	}

	now := c.sched.Now()
	if c.last != nil && now.Sub(c.last.at) < c.cfg.FlipWindow && m.inverts(c.last.move) {
		c.ignore("flip", targetID)
		return false
	}

	c.cancelPending()
	c.last = &intent{move: m, at: now}

	delay := c.cfg.CrossColumnDelay
	if m.sameColumn() {
		delay = c.cfg.SameColumnDelay
	}
	p := &pending{move: m}
	p.timer = c.sched.AfterFunc(delay, func() { c.fire(p) })
	c.pending = p

	return true
}

// DragEnd finishes the gesture. When the drop target resolves, exactly one persisted
// move is issued even if the task is already in place. An empty targetID means the
// task was dropped outside any target.
func (c *Controller) DragEnd(targetID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Dragging {
		return false
	}

	taskID := c.taskID
	c.reset()

	m, ok := resolve(c.mover.SelectedBoard(), taskID, targetID)
	if !ok {
		c.logger.Debug().Str("task", taskID).Str("target", targetID).Msg("drop outside any target")
		return false
	}

	c.mover.MoveTask(m.from, m.to, taskID, m.toIndex, true)
	c.logger.Debug().Str("task", taskID).Str("from", m.from).Str("to", m.to).Int("index", m.toIndex).Msg("drop persisted")

	return true
}

// DragCancel abandons the gesture without persisting. Optimistic moves already
// applied stay in place.
func (c *Controller) DragCancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Dragging {
		c.logger.Debug().Str("task", c.taskID).Msg("drag canceled")
	}
	c.reset()
}

func (c *Controller) fire(p *pending) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != p {
		return
	}
	c.pending = nil

	c.mover.MoveTask(p.move.from, p.move.to, c.taskID, p.move.toIndex, false)
}

func (c *Controller) cancelPending() {
	if c.pending != nil {
		c.pending.timer.Stop()
		c.pending = nil
	}
}

func (c *Controller) reset() {
	c.cancelPending()
	c.last = nil
	c.state = Idle
	c.taskID = ""
}

func (c *Controller) ignore(reason, targetID string) {
	c.logger.Debug().Str("reason", reason).Str("task", c.taskID).Str("target", targetID).Msg("drag tick ignored")
}

// resolve finds where the dragged task is and where the pointer target would put it.
// A target naming a task means "take that task's slot"; a target naming a column
// means the end of that column.
func resolve(b board.Board, taskID, targetID string) (move, bool) {
	if targetID == "" {
		return move{}, false
	}
	from, fromIndex, ok := b.Locate(taskID)
	if !ok {
		return move{}, false
	}

	m := move{from: from, fromIndex: fromIndex}
	if to, index, ok := b.Locate(targetID); ok {
		m.to = to
		m.toIndex = index
		return m, true
	}
	if col, ok := b.ColumnByID(targetID); ok {
		m.to = col.ID
		m.toIndex = len(col.Tasks)
		if m.sameColumn() {
			m.toIndex = len(col.Tasks) - 1
		}
		return m, true
	}

	return move{}, false
}
