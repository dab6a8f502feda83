package lifecycle

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/umbra-research/umbra-interface/internal/types"
	"github.com/umbra-research/umbra-interface/internal/validate"
)

type Step string

const (
	// send
	StepFormEditing       Step = "form_editing"
	StepReviewing         Step = "reviewing"
	StepAwaitingBuild     Step = "awaiting_build"
	StepAwaitingSignature Step = "awaiting_signature"

	// claim
	StepBrowsing       Step = "browsing"
	StepClaimRequested Step = "claim_requested"

	// both
	StepTracking Step = "tracking"
	StepTerminal Step = "terminal"
)

// Active reports whether a flow is past the point where it can be abandoned
// locally. No new send or claim starts while a step is active.
func (s Step) Active() bool {
	switch s {
	case StepAwaitingBuild, StepAwaitingSignature, StepClaimRequested, StepTracking:
		return true
	default:
		return false
	}
}

type Outcome string

const (
	OutcomeFinalized Outcome = "finalized"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
)

// State is the snapshot handed to observers. It is always a copy; changing it
// has no effect on the orchestrator.
type State struct {
	Direction   types.Direction          `json:"direction"`
	Step        Step                     `json:"step"`
	Outcome     Outcome                  `json:"outcome,omitempty"`
	Intent      *types.TransferIntent    `json:"intent,omitempty"`
	Fee         decimal.Decimal          `json:"fee"`
	Entries     []types.InboxEntry       `json:"entries,omitempty"`
	Active      *types.SubmissionRecord  `json:"active,omitempty"`
	Records     []types.SubmissionRecord `json:"records,omitempty"`
	FieldErrors validate.Errors          `json:"fieldErrors,omitempty"`
	LastError   *types.FlowError         `json:"lastError,omitempty"`
	UpdatedAt   time.Time                `json:"updatedAt"`
}

func (s State) clone() State {
	if s.Intent != nil {
		intent := *s.Intent
		s.Intent = &intent
	}
	if s.Active != nil {
		active := *s.Active
		s.Active = &active
	}
	if s.LastError != nil {
		le := *s.LastError
		s.LastError = &le
	}
	if s.Entries != nil {
		entries := make([]types.InboxEntry, len(s.Entries))
		for i, e := range s.Entries {
			e.ClaimSigs = append([]string(nil), e.ClaimSigs...)
			entries[i] = e
		}
		s.Entries = entries
	}
	s.Records = append([]types.SubmissionRecord(nil), s.Records...)
	if s.FieldErrors != nil {
		fe := make(validate.Errors, len(s.FieldErrors))
		for k, v := range s.FieldErrors {
			fe[k] = v
		}
		s.FieldErrors = fe
	}
	return s
}

func outcomeOf(tier types.ConfirmationTier, timedOut bool) Outcome {
	switch {
	case tier == types.TierFailed:
		return OutcomeFailed
	case timedOut:
		return OutcomeTimedOut
	case tier == types.TierFinalized:
		return OutcomeFinalized
	default:
		return OutcomeFailed
	}
}

// worse picks the outcome a batch reports: any failure beats a timeout, and a
// timeout beats finality.
func worse(a, b Outcome) Outcome {
	rank := func(o Outcome) int {
		switch o {
		case OutcomeFailed:
			return 2
		case OutcomeTimedOut:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
