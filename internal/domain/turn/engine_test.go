package turn_test

import (
	"testing"
	"time"

	"github.com/ganot/rpstage/internal/domain/session"
	"github.com/ganot/rpstage/internal/domain/turn"
	"github.com/stretchr/testify/require"
)

type board struct {
	size  int
	turns session.TurnSystem
	clock session.Clock
}

func newBoard(size int) *board {
	return &board{size: size, turns: session.DefaultTurnSystem(), clock: session.DefaultClock()}
}

func (b *board) RosterSize() int { return b.size }
func (b *board) Turns() *session.TurnSystem { return &b.turns }
func (b *board) Clock() *session.Clock { return &b.clock }

func TestEngine_AdvanceCycles(t *testing.T) {
	for _, size := range []int{1, 2, 3, 5} {
		b := newBoard(size)
		e := turn.NewEngine(b, 0)

		for call := 1; call <= size*3; call++ {
			res, ok := e.Advance()
			require.True(t, ok)
			require.Equal(t, call%size, res.Index)
			require.Equal(t, call%size == 0, res.NewRound)
			require.Equal(t, 1+call/size, b.turns.RoundNumber)
			require.LessOrEqual(t, len(b.turns.PlayedThisRound), size)
			if res.NewRound {
				require.Empty(t, b.turns.PlayedThisRound)
			}
		}
		require.Equal(t, session.Epoch.Add(3*turn.DefaultRoundStep), b.clock.Date)
		require.Equal(t, 4, b.clock.Round)
	}
}

func TestEngine_AdvanceEmptyRoster(t *testing.T) {
	b := newBoard(0)
	b.turns.RoundNumber = 3
	e := turn.NewEngine(b, time.Minute)

	_, ok := e.Advance()
	require.False(t, ok)
	require.Equal(t, 0, b.turns.CurrentTurn)
	require.Equal(t, 3, b.turns.RoundNumber)
	require.Equal(t, session.Epoch, b.clock.Date)
}

func TestEngine_AdvanceMarksPlayedOnce(t *testing.T) {
	b := newBoard(3)
	b.turns.PlayedThisRound = []int{0}
	e := turn.NewEngine(b, 0)

	res, ok := e.Advance()
	require.True(t, ok)
	require.Equal(t, 1, res.Index)
	require.Equal(t, []int{0}, b.turns.PlayedThisRound)
}

func TestEngine_AdvanceIgnoresEnabled(t *testing.T) {
	b := newBoard(2)
	b.turns.Enabled = false
	_, ok := turn.NewEngine(b, 0).Advance()
	require.True(t, ok)
	require.Equal(t, 1, b.turns.CurrentTurn)
}

func TestEngine_SetTurn(t *testing.T) {
	b := newBoard(3)
	e := turn.NewEngine(b, 0)

	require.True(t, e.SetTurn(2))
	require.Equal(t, 2, b.turns.CurrentTurn)
	require.False(t, e.SetTurn(3))
	require.False(t, e.SetTurn(-1))
	require.Equal(t, 2, b.turns.CurrentTurn)
}

func TestEngine_ResetAndToggle(t *testing.T) {
	b := newBoard(3)
	e := turn.NewEngine(b, 0)
	e.Advance()
	e.Advance()
	e.Advance()
	e.Advance()

	require.False(t, e.Toggle())
	require.False(t, e.Enabled())
	require.True(t, e.Toggle())

	e.Toggle()
	e.Reset()
	require.Equal(t, session.TurnSystem{Enabled: true, CurrentTurn: 0, RoundNumber: 1, PlayedThisRound: []int{}}, b.turns)

	cur, ok := e.Current()
	require.True(t, ok)
	require.Equal(t, 0, cur)
}
