package engine

import (
	"time"

	"github.com/google/uuid"
)

// Kind is an operation kind.
type Kind string

// Operation kinds.
const (
	KindInit    Kind = "init"
	KindCreate  Kind = "create"
	KindRemove  Kind = "remove"
	KindRestore Kind = "restore"
	KindSend    Kind = "send"
)

// Kinds lists every operation kind.
var Kinds = []Kind{KindInit, KindCreate, KindRemove, KindRestore, KindSend}

// ParseKind returns the kind named s.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// lifecycle reports whether k contributes to the global loading flag.
func (k Kind) lifecycle() bool {
	return k != KindSend
}

// State is the state of an operation record.
type State string

// Operation states.
const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// OperationRecord is the latest run of one operation kind. It is replaced
// when the next run of that kind starts.
type OperationRecord struct {
	ID         uuid.UUID `json:"id"`
	Kind       Kind      `json:"kind"`
	State      State     `json:"state"`
	Payload    any       `json:"payload,omitempty"`
	Err        string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// Phase is the phase an operation event reports.
type Phase string

// Operation phases.
const (
	PhaseStart   Phase = "start"
	PhaseSuccess Phase = "success"
	PhaseFail    Phase = "fail"
)
