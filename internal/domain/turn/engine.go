package turn

import (
	"time"

	"github.com/ganot/rpstage/internal/domain/session"
)

// DefaultRoundStep is how far the in-fiction clock moves on each rollover.
const DefaultRoundStep = 5 * time.Minute

// Board exposes the state the engine drives.
type Board interface {
	RosterSize() int
	Turns() *session.TurnSystem
	Clock() *session.Clock
}

// Result describes the turn after an advance.
type Result struct {
	Index    int
	Round    int
	NewRound bool
}

// Engine applies turn-order rules to a Board. The enabled flag is stored
// here but never checked; callers decide whether a disabled system accepts
// advances.
type Engine struct {
	board Board
	step  time.Duration
}

// NewEngine creates an engine. A non-positive step uses DefaultRoundStep.
func NewEngine(board Board, step time.Duration) *Engine {
	if step <= 0 {
		step = DefaultRoundStep
	}
	return &Engine{board: board, step: step}
}

// Advance marks the current character as played and moves to the next one.
// It reports false when the roster is empty.
func (e *Engine) Advance() (Result, bool) {
	size := e.board.RosterSize()
	if size == 0 {
		return Result{}, false
	}
	t := e.board.Turns()
	if t.CurrentTurn < 0 || t.CurrentTurn >= size {
		t.CurrentTurn = 0
	}
	if !t.HasPlayed(t.CurrentTurn) {
		t.PlayedThisRound = append(t.PlayedThisRound, t.CurrentTurn)
	}

	next := (t.CurrentTurn + 1) % size
	t.CurrentTurn = next
	res := Result{Index: next, Round: t.RoundNumber}
	if next == 0 {
		t.RoundNumber++
		t.PlayedThisRound = []int{}
		clock := e.board.Clock()
		clock.Date = clock.Date.Add(e.step)
		clock.Round = t.RoundNumber
		res.Round = t.RoundNumber
		res.NewRound = true
	}
	return res, true
}

// SetTurn jumps to index. It reports false when index is outside the roster.
func (e *Engine) SetTurn(index int) bool {
	if index < 0 || index >= e.board.RosterSize() {
		return false
	}
	e.board.Turns().CurrentTurn = index
	return true
}

// Reset returns to the first character of round one and enables the system.
func (e *Engine) Reset() {
	t := e.board.Turns()
	t.CurrentTurn = 0
	t.RoundNumber = 1
	t.PlayedThisRound = []int{}
	t.Enabled = true
}

// Toggle flips the enabled flag and returns the new value.
func (e *Engine) Toggle() bool {
	t := e.board.Turns()
	t.Enabled = !t.Enabled
	return t.Enabled
}

// Enabled reports whether strict turn order is on.
func (e *Engine) Enabled() bool {
	return e.board.Turns().Enabled
}

// Current returns the index whose turn it is, or false for an empty roster.
func (e *Engine) Current() (int, bool) {
	if e.board.RosterSize() == 0 {
		return 0, false
	}
	return e.board.Turns().CurrentTurn, true
}
