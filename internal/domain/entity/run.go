package entity

import "time"

type RunID string

func (id RunID) String() string { return string(id) }

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// Phase is the orchestrator state a run resumes in.
type Phase string

const (
	PhaseThink   Phase = "think"
	PhaseAct     Phase = "act"
	PhaseObserve Phase = "observe"
	PhaseCompact Phase = "compact"
	PhaseDone    Phase = "done"
)

// RunState is the continuation snapshot of a run. It carries everything needed to restart
// the loop: at a compaction boundary, or after a process restart from a checkpoint.
type RunState struct {
	ID         RunID       `json:"id"`
	Query      string      `json:"query"`
	Context    ContextLog  `json:"context"`
	Ledger     UsageLedger `json:"ledger"`
	Generation int         `json:"generation"`

	Phase         Phase   `json:"phase"`
	Cycles        int     `json:"cycles"`
	PendingAction *Action `json:"pending_action,omitempty"`
	ActionResult  string  `json:"action_result,omitempty"`
	TotalCycles   int     `json:"total_cycles"`
}

func NewRunState(id RunID, query string) RunState {
	return RunState{ID: id, Query: query, Phase: PhaseThink}
}

// Continue starts the next generation from a compacted log, keeping the full ledger.
func (s RunState) Continue(compacted ContextLog) RunState {
	return RunState{
		ID:          s.ID,
		Query:       s.Query,
		Context:     compacted,
		Ledger:      s.Ledger,
		Generation:  s.Generation + 1,
		Phase:       PhaseThink,
		TotalCycles: s.TotalCycles,
	}
}

type RunOutcome struct {
	RunID       RunID      `json:"run_id"`
	Answer      string     `json:"answer"`
	TotalUsage  TotalUsage `json:"total_usage"`
	Generations int        `json:"generations"`
	Cycles      int        `json:"cycles"`
}

// Checkpoint is the durable record of a run persisted after every completed step.
type Checkpoint struct {
	State     RunState    `json:"state"`
	Status    RunStatus   `json:"status"`
	Outcome   *RunOutcome `json:"outcome,omitempty"`
	Error     string      `json:"error,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Clone copies the pointer fields of a checkpoint. Context and Ledger are immutable values and
// are shared.
func (c Checkpoint) Clone() Checkpoint {
	out := c
	if c.State.PendingAction != nil {
		action := *c.State.PendingAction
		action.Input = append([]byte(nil), action.Input...)
		out.State.PendingAction = &action
	}
	if c.Outcome != nil {
		outcome := *c.Outcome
		out.Outcome = &outcome
	}
	return out
}
