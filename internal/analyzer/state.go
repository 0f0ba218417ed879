package analyzer

import (
	"fmt"

	"github.com/raysh454/clarity/internal/logging"
)

// State is a step of the per-scan state machine.
type State string

const (
	StateIdle        State = "idle"
	StateValidating  State = "validating"
	StateRendering   State = "rendering"
	StateAuditing    State = "auditing"
	StateNormalizing State = "normalizing"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

var transitions = map[State][]State{
	StateIdle:        {StateValidating},
	StateValidating:  {StateRendering, StateFailed},
	StateRendering:   {StateAuditing, StateFailed},
	StateAuditing:    {StateNormalizing, StateFailed},
	StateNormalizing: {StateDone, StateFailed},
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// scanRun tracks one scan's progress through the state machine.
type scanRun struct {
	id      string
	state   State
	history []State
	logger  logging.Logger
}

func newScanRun(id string, logger logging.Logger) *scanRun {
	return &scanRun{
		id:      id,
		state:   StateIdle,
		history: []State{StateIdle},
		logger:  logger.With(logging.Field{Key: "scan_id", Value: id}),
	}
}

func (r *scanRun) to(next State) {
	if !canTransition(r.state, next) {
		r.logger.Error(fmt.Sprintf("illegal scan transition %s -> %s", r.state, next))
	}
	r.logger.Debug("scan state",
		logging.Field{Key: "from", Value: string(r.state)},
		logging.Field{Key: "to", Value: string(next)})
	r.state = next
	r.history = append(r.history, next)
}
