package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageLedger_Totals(t *testing.T) {
	ledger := NewUsageLedger().
		Append(UsageRecord{Step: StepReason, Tier: TierHigh, InputTokens: 1_000_000, OutputTokens: 100_000, TotalTokens: 1_100_000}).
		Append(UsageRecord{Step: StepObserve, Tier: TierLow, InputTokens: 2_000_000, OutputTokens: 500_000, TotalTokens: 2_500_000})

	totals := ledger.Totals(DefaultPricing())

	assert.Equal(t, 3_000_000, totals.InputTokens)
	assert.Equal(t, 600_000, totals.OutputTokens)
	assert.Equal(t, 3_600_000, totals.TotalTokens)
	// 1.75 + 1.4 high, 0.5 + 1.0 low
	assert.InDelta(t, 4.65, totals.Cost, 1e-9)
}

func TestUsageLedger_UnknownTierIsFree(t *testing.T) {
	ledger := NewUsageLedger(UsageRecord{Tier: "mystery", InputTokens: 10, TotalTokens: 10})
	totals := ledger.Totals(DefaultPricing())

	assert.Equal(t, 10, totals.TotalTokens)
	assert.Zero(t, totals.Cost)
}

func TestUsageLedger_JSON(t *testing.T) {
	data, err := json.Marshal(NewUsageLedger())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	ledger := NewUsageLedger(UsageRecord{Step: StepCompact, Tier: TierLow, InputTokens: 3, OutputTokens: 1, TotalTokens: 4})
	data, err = json.Marshal(ledger)
	require.NoError(t, err)

	var decoded UsageLedger
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ledger.Records(), decoded.Records())
}

func TestRunState_ContinueKeepsLedger(t *testing.T) {
	action := Action{ToolName: ToolMovieSearch}
	state := NewRunState("run-1", "q")
	state.Generation = 2
	state.Cycles = 6
	state.TotalCycles = 15
	state.Phase = PhaseCompact
	state.PendingAction = &action
	state.Ledger = NewUsageLedger(UsageRecord{TotalTokens: 7})

	next := state.Continue(NewContextLog(Summary{Text: "s"}))

	assert.Equal(t, 3, next.Generation)
	assert.Zero(t, next.Cycles)
	assert.Equal(t, 15, next.TotalCycles)
	assert.Equal(t, PhaseThink, next.Phase)
	assert.Nil(t, next.PendingAction)
	assert.Equal(t, state.Ledger.Records(), next.Ledger.Records())
	assert.Equal(t, 1, next.Context.Len())
}

func TestCheckpoint_CloneCopiesPointers(t *testing.T) {
	action := Action{ToolName: ToolMovieSearch, Input: json.RawMessage(`{"query":"Heat"}`)}
	state := NewRunState("run-1", "q")
	state.PendingAction = &action
	cp := Checkpoint{State: state, Outcome: &RunOutcome{Answer: "a"}}

	clone := cp.Clone()
	clone.State.PendingAction.Input[2] = 'X'
	clone.Outcome.Answer = "changed"

	assert.Equal(t, `{"query":"Heat"}`, string(cp.State.PendingAction.Input))
	assert.Equal(t, "a", cp.Outcome.Answer)
	assert.True(t, RunStatusCancelled.Terminal())
	assert.False(t, RunStatusRunning.Terminal())
}
