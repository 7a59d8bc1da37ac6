package phase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    Phase
		to      Phase
		allowed bool
	}{
		{"started to contextLoaded", Started, ContextLoaded, true},
		{"started may skip context gathering", Started, Loaded, true},
		{"started to discarded", Started, Discarded, true},
		{"started cannot jump to suggested", Started, Suggested, false},
		{"started cannot jump to accepted", Started, Accepted, false},
		{"contextLoaded to loaded", ContextLoaded, Loaded, true},
		{"contextLoaded cannot go back", ContextLoaded, Started, false},
		{"loaded to postProcessed", Loaded, PostProcessed, true},
		{"loaded cannot skip to suggested", Loaded, Suggested, false},
		{"postProcessed to readyToBeRendered", PostProcessed, ReadyToBeRendered, true},
		{"readyToBeRendered to suggested", ReadyToBeRendered, Suggested, true},
		{"suggested to read", Suggested, Read, true},
		{"suggested to accepted", Suggested, Accepted, true},
		{"suggested to rejected", Suggested, Rejected, true},
		{"suggested to discarded", Suggested, Discarded, true},
		{"read to accepted", Read, Accepted, true},
		{"read to rejected", Read, Rejected, true},
		{"accepted is terminal", Accepted, Read, false},
		{"rejected is terminal", Rejected, Read, false},
		{"discarded is terminal", Discarded, Suggested, false},
		{"unknown phase has no transitions", Phase("bogus"), Loaded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransitionTo(tt.from, tt.to))
		})
	}
}

func TestEveryPhaseCanDiscardUntilTerminal(t *testing.T) {
	for _, p := range All() {
		if Terminal(p) {
			assert.False(t, CanTransitionTo(p, Discarded), "terminal phase %s must not transition", p)
			continue
		}
		assert.True(t, CanTransitionTo(p, Discarded), "non-terminal phase %s must allow discard", p)
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, Terminal(Accepted))
	assert.True(t, Terminal(Rejected))
	assert.True(t, Terminal(Discarded))
	assert.False(t, Terminal(Started))
	assert.False(t, Terminal(Suggested))
	assert.False(t, Terminal(Read))
}

func TestTerminalPhasesHaveNoOutgoingTransitions(t *testing.T) {
	for _, terminal := range []Phase{Accepted, Rejected, Discarded} {
		assert.Empty(t, Next(terminal), "phase %s", terminal)
	}
}

func TestValid(t *testing.T) {
	for _, p := range All() {
		assert.True(t, Valid(p), "phase %s", p)
	}
	assert.False(t, Valid(Phase("bogus")))
	assert.False(t, Valid(Phase("")))
}

func TestNextReturnsACopy(t *testing.T) {
	next := Next(Suggested)
	assert.NotEmpty(t, next)
	next[0] = Phase("mutated")
	assert.NotContains(t, Next(Suggested), Phase("mutated"))
}
