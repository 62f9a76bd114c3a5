package sequencer

import "gemsmith/internal/logging"

// EventType identifies a progress event.
type EventType string

const (
	EventRunStarted      EventType = "run_started"
	EventOperationStart  EventType = "operation_start"
	EventOperationDone   EventType = "operation_done"
	EventSynthesisStart  EventType = "synthesis_start"
	EventSynthesisDone   EventType = "synthesis_done"
	EventFallbackUsed    EventType = "fallback_used"
	EventRunFinished     EventType = "run_finished"
)

// Event is a progress message for the host. Events flow one way, sequencer
// to host, over a buffered channel.
type Event struct {
	Type           EventType
	OperationIndex int
	OperationName  string
	Message        string
	Outcome        *OperationOutcome
}

// emit sends without ever blocking the worker: when the host falls behind
// and the buffer fills, events are dropped, not queued unboundedly.
func (s *Sequencer) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		logging.SequencerDebug("event buffer full; dropped %s event for %s", ev.Type, ev.OperationName)
	}
}
