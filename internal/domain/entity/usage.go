package entity

import "encoding/json"

type Tier string

const (
	TierLow  Tier = "low"
	TierHigh Tier = "high"
)

type StepKind string

const (
	StepReason   StepKind = "reason"
	StepDispatch StepKind = "dispatch"
	StepObserve  StepKind = "observe"
	StepCompact  StepKind = "compact"
)

// UsageRecord is the billed token count of one model invocation.
type UsageRecord struct {
	Step         StepKind `json:"step"`
	Tier         Tier     `json:"tier"`
	InputTokens  int      `json:"input_tokens"`
	OutputTokens int      `json:"output_tokens"`
	TotalTokens  int      `json:"total_tokens"`
}

// Rate is a per-million-token price pair in USD.
type Rate struct {
	InputPerMillion  float64 `json:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million"`
}

type Pricing map[Tier]Rate

func DefaultPricing() Pricing {
	return Pricing{
		TierLow:  {InputPerMillion: 0.25, OutputPerMillion: 2.0},
		TierHigh: {InputPerMillion: 1.75, OutputPerMillion: 14.0},
	}
}

// Cost prices a single record. Unknown tiers cost nothing.
func (p Pricing) Cost(r UsageRecord) float64 {
	rate := p[r.Tier]
	return float64(r.InputTokens)/1_000_000*rate.InputPerMillion +
		float64(r.OutputTokens)/1_000_000*rate.OutputPerMillion
}

type TotalUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost"`
}

// UsageLedger accumulates every record of a run. It survives compaction and is never reset.
type UsageLedger struct {
	records []UsageRecord
}

func NewUsageLedger(records ...UsageRecord) UsageLedger {
	return UsageLedger{records: append([]UsageRecord(nil), records...)}
}

func (l UsageLedger) Append(r UsageRecord) UsageLedger {
	next := make([]UsageRecord, 0, len(l.records)+1)
	next = append(next, l.records...)
	return UsageLedger{records: append(next, r)}
}

func (l UsageLedger) Len() int { return len(l.records) }

func (l UsageLedger) Records() []UsageRecord {
	return append([]UsageRecord(nil), l.records...)
}

// Totals sums the ledger record by record.
func (l UsageLedger) Totals(p Pricing) TotalUsage {
	var t TotalUsage
	for _, r := range l.records {
		t.InputTokens += r.InputTokens
		t.OutputTokens += r.OutputTokens
		t.TotalTokens += r.TotalTokens
		t.Cost += p.Cost(r)
	}
	return t
}

func (l UsageLedger) MarshalJSON() ([]byte, error) {
	if l.records == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.records)
}

func (l *UsageLedger) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &l.records)
}
