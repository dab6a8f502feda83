package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/umbra-research/umbra-interface/internal/backend"
	"github.com/umbra-research/umbra-interface/internal/inbox"
	"github.com/umbra-research/umbra-interface/internal/status"
	"github.com/umbra-research/umbra-interface/internal/types"
	"github.com/umbra-research/umbra-interface/internal/validate"
)

type Funds interface {
	Balance(ctx context.Context, cluster types.Cluster, owner string, token string) (decimal.Decimal, error)
	EstimateFee(ctx context.Context, cluster types.Cluster) decimal.Decimal
}

type Builder interface {
	BuildTransfer(ctx context.Context, req backend.BuildRequest) backend.BuildResult
}

type Signer interface {
	Identity() string
	SignAndSubmit(ctx context.Context, cluster types.Cluster, payload []byte) (string, error)
}

type Tracker interface {
	Track(ctx context.Context, cluster types.Cluster, signature string, onTier func(types.ConfirmationTier)) status.Outcome
}

type Inbox interface {
	Scan(ctx context.Context, recipient string) ([]types.InboxEntry, error)
	Entries() []types.InboxEntry
	Recipient() string
	BeginClaim(recipient string) []types.InboxEntry
	AttachSignatures(bound map[string][]string)
	Settle(id string, status types.InboxStatus, reason string) bool
}

type Claimer interface {
	Claim(ctx context.Context, recipient string) inbox.ClaimResult
}

// Recorder keeps SubmissionRecords for the activity history.
type Recorder interface {
	Save(ctx context.Context, rec types.SubmissionRecord) error
}

// Metrics is satisfied by metrics.LifecycleMetrics.
type Metrics interface {
	RecordTransfer(direction string, outcome string)
}

type Deps struct {
	Funds    Funds
	Builder  Builder
	Signer   Signer
	Tracker  Tracker
	Inbox    Inbox
	Claimer  Claimer
	Recorder Recorder
	Metrics  Metrics
}

// SendRequest is the raw form input of a send.
type SendRequest struct {
	Cluster   types.Cluster `json:"cluster"`
	Recipient string        `json:"recipient"`
	Token     string        `json:"token"`
	Amount    string        `json:"amount"`
	Memo      string        `json:"memo"`
}

// Orchestrator drives one transfer at a time through validation, build,
// signing and confirmation, for sends and for inbox claims alike. Flows that
// reach the network run on the orchestrator's own context, so they outlive
// the request that started them and stop only on Close.
type Orchestrator struct {
	deps   Deps
	logger logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	pending bool
	subs    map[chan State]struct{}
}

func New(deps Deps, logger logrus.FieldLogger) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		deps:   deps,
		logger: logger.WithField("pkg", "lifecycle.Orchestrator"),
		ctx:    ctx,
		cancel: cancel,
		state: State{
			Direction: types.DirectionSend,
			Step:      StepFormEditing,
			Fee:       decimal.Zero,
			UpdatedAt: time.Now(),
		},
		subs: make(map[chan State]struct{}),
	}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

// Subscribe returns a channel that always holds the latest state. Slow readers
// miss intermediate states, never the last one.
func (o *Orchestrator) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	o.mu.Lock()
	o.subs[ch] = struct{}{}
	ch <- o.state.clone()
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, ch)
			o.mu.Unlock()
		})
	}
}

// update applies fn to the state under the lock and notifies subscribers.
func (o *Orchestrator) update(fn func(s *State)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.state)
	o.state.UpdatedAt = time.Now()
	o.publishLocked()
}

func (o *Orchestrator) publishLocked() {
	snap := o.state.clone()
	for ch := range o.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// reserve claims the orchestrator for a new flow. It fails while another flow
// is active or while another entry point is still gathering its inputs.
func (o *Orchestrator) reserveLocked() error {
	if o.pending || o.state.Step.Active() {
		return fmt.Errorf("%w: %s", types.ErrBusy, o.state.Step)
	}
	o.pending = true
	return nil
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.pending = false
	o.mu.Unlock()
}

// SubmitSendIntent validates a send against the live balance and fee. When
// every rule passes the intent is accepted and the flow moves to Reviewing;
// otherwise it stays in FormEditing with the field errors set.
func (o *Orchestrator) SubmitSendIntent(ctx context.Context, req SendRequest) (State, error) {
	o.mu.Lock()
	if err := o.reserveLocked(); err != nil {
		o.mu.Unlock()
		return State{}, err
	}
	o.mu.Unlock()
	defer o.release()

	if !req.Cluster.Valid() {
		return o.State(), fmt.Errorf("%w: unknown cluster %q", types.ErrValidation, req.Cluster)
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		token = types.NativeToken
	}
	payer := o.deps.Signer.Identity()

	balance, err := o.deps.Funds.Balance(ctx, req.Cluster, payer, token)
	if err != nil {
		o.logger.WithError(err).WithField("cluster", req.Cluster).Error("failed to fetch balance for validation")
		o.update(func(s *State) {
			s.Direction = types.DirectionSend
			s.Step = StepFormEditing
			s.Outcome = ""
			s.LastError = types.NewFlowError(err)
		})
		return o.State(), err
	}

	fee := o.deps.Funds.EstimateFee(ctx, req.Cluster)
	// the fee is paid in SOL, so it only counts against a SOL balance
	feeInToken := decimal.Zero
	if types.IsNativeToken(token) {
		feeInToken = fee
	}

	errs := validate.Validate(validate.Input{
		Destination: req.Recipient,
		Amount:      req.Amount,
		Token:       token,
		Fee:         feeInToken,
		Balance:     balance,
	})
	if !errs.Empty() {
		o.update(func(s *State) {
			s.Direction = types.DirectionSend
			s.Step = StepFormEditing
			s.Outcome = ""
			s.Intent = nil
			s.Fee = fee
			s.FieldErrors = errs
			s.LastError = nil
		})
		return o.State(), errs.Err()
	}

	amount, _ := validate.ParseAmount(req.Amount)
	intent := types.TransferIntent{
		ID:        uuid.NewString(),
		Direction: types.DirectionSend,
		Cluster:   req.Cluster,
		Payer:     payer,
		Recipient: strings.TrimSpace(req.Recipient),
		Token:     token,
		Amount:    amount,
		RawAmount: strings.TrimSpace(req.Amount),
		Memo:      req.Memo,
		CreatedAt: time.Now(),
	}

	o.update(func(s *State) {
		*s = State{
			Direction: types.DirectionSend,
			Step:      StepReviewing,
			Intent:    &intent,
			Fee:       fee,
		}
	})
	o.logger.WithFields(logrus.Fields{
		"cluster":   intent.Cluster,
		"intent_id": intent.ID,
		"token":     intent.Token,
	}).Info("send intent accepted")

	return o.State(), nil
}

// ConfirmSend starts build, signing and tracking of the reviewed intent. It
// returns once the flow is under way; progress is observed through State.
func (o *Orchestrator) ConfirmSend() error {
	o.mu.Lock()
	if o.pending || o.state.Step.Active() {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrBusy, o.state.Step)
	}
	if o.state.Step != StepReviewing || o.state.Intent == nil {
		step := o.state.Step
		o.mu.Unlock()
		return fmt.Errorf("%w: cannot confirm a send from %s", types.ErrInvalidStep, step)
	}
	intent := *o.state.Intent
	o.state.Step = StepAwaitingBuild
	o.state.UpdatedAt = time.Now()
	o.publishLocked()
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		o.runSend(o.ctx, intent)
	}()
	return nil
}

func (o *Orchestrator) runSend(ctx context.Context, intent types.TransferIntent) {
	log := o.logger.WithFields(logrus.Fields{
		"direction": types.DirectionSend,
		"cluster":   intent.Cluster,
		"intent_id": intent.ID,
	})

	built := o.deps.Builder.BuildTransfer(ctx, backend.BuildRequest{
		Payer:     intent.Payer,
		Recipient: intent.Recipient,
		Amount:    intent.Amount.String(),
		Token:     intent.Token,
	})
	if !built.OK() {
		err := built.Err
		if err == nil || !errors.Is(err, types.ErrBuildFailed) {
			err = fmt.Errorf("%w: %v", types.ErrBuildFailed, err)
		}
		log.WithError(err).Error("transfer build failed")
		o.fail(types.DirectionSend, err)
		return
	}

	o.update(func(s *State) { s.Step = StepAwaitingSignature })

	sig, err := o.deps.Signer.SignAndSubmit(ctx, intent.Cluster, built.Payload)
	if err != nil {
		log.WithError(err).Error("transfer signing failed")
		o.fail(types.DirectionSend, err)
		return
	}

	now := time.Now()
	rec := types.SubmissionRecord{
		ReceiptID:   newReceiptID(),
		Direction:   types.DirectionSend,
		Cluster:     intent.Cluster,
		Signature:   sig,
		SubmittedAt: now,
		Tier:        types.TierSubmitted,
		UpdatedAt:   now,
	}
	o.update(func(s *State) {
		s.Step = StepTracking
		s.Records = append(s.Records, rec)
		s.Active = &s.Records[len(s.Records)-1]
	})
	o.save(rec)
	log = log.WithField("signature", sig)
	log.Info("transfer submitted")

	idx := 0
	out := o.deps.Tracker.Track(ctx, intent.Cluster, sig, func(tier types.ConfirmationTier) {
		o.advance(idx, tier)
	})
	rec = o.settle(idx, out)

	outcome := outcomeOf(rec.Tier, rec.TimedOut)
	o.update(func(s *State) {
		s.Step = StepTerminal
		s.Outcome = outcome
		s.Active = &s.Records[idx]
		s.LastError = types.NewFlowError(out.Err)
	})
	o.recordOutcome(types.DirectionSend, outcome)
	log.WithField("outcome", outcome).Info("send finished")
}

// Cancel abandons the form or the reviewed intent. Once anything has been
// handed to the backend or the wallet the flow can only be watched to its end.
func (o *Orchestrator) Cancel() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pending {
		return types.ErrBusy
	}
	switch o.state.Step {
	case StepFormEditing, StepReviewing:
	default:
		return fmt.Errorf("%w: cannot cancel from %s", types.ErrInvalidStep, o.state.Step)
	}

	o.state = State{
		Direction: types.DirectionSend,
		Step:      StepFormEditing,
		Fee:       o.state.Fee,
		UpdatedAt: time.Now(),
	}
	o.publishLocked()
	return nil
}

// ScanInbox refreshes the inbox of recipient and moves to Browsing. A failed
// scan keeps the previous entries and records the error.
func (o *Orchestrator) ScanInbox(ctx context.Context, recipient string) ([]types.InboxEntry, error) {
	o.mu.Lock()
	if err := o.reserveLocked(); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.mu.Unlock()
	defer o.release()

	entries, err := o.deps.Inbox.Scan(ctx, recipient)
	if err != nil {
		o.logger.WithError(err).WithField("recipient", types.MaskAddress(recipient, 4)).Error("inbox scan failed")
	}
	o.update(func(s *State) {
		*s = State{
			Direction: types.DirectionClaim,
			Step:      StepBrowsing,
			Fee:       s.Fee,
			Entries:   o.deps.Inbox.Entries(),
			LastError: types.NewFlowError(err),
		}
	})
	return entries, err
}

// ClaimAll claims every claimable inbox entry for recipient and tracks the
// resulting signatures on cluster. Like ConfirmSend it returns once the claim
// is under way.
func (o *Orchestrator) ClaimAll(cluster types.Cluster, recipient string) error {
	if !cluster.Valid() {
		return fmt.Errorf("%w: unknown cluster %q", types.ErrValidation, cluster)
	}

	o.mu.Lock()
	if err := o.reserveLocked(); err != nil {
		o.mu.Unlock()
		return err
	}

	if recipient != o.deps.Inbox.Recipient() {
		o.pending = false
		o.mu.Unlock()
		return fmt.Errorf("%w: scan the inbox for this recipient first", types.ErrInvalidStep)
	}
	claiming := o.deps.Inbox.BeginClaim(recipient)
	if len(claiming) == 0 {
		o.pending = false
		o.mu.Unlock()
		return fmt.Errorf("%w: nothing to claim", types.ErrInvalidStep)
	}

	o.state = State{
		Direction: types.DirectionClaim,
		Step:      StepClaimRequested,
		Fee:       o.state.Fee,
		Entries:   o.deps.Inbox.Entries(),
		UpdatedAt: time.Now(),
	}
	o.pending = false
	o.publishLocked()
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		o.runClaim(o.ctx, cluster, recipient, claiming)
	}()
	return nil
}

func (o *Orchestrator) runClaim(ctx context.Context, cluster types.Cluster, recipient string, claiming []types.InboxEntry) {
	log := o.logger.WithFields(logrus.Fields{
		"direction": types.DirectionClaim,
		"cluster":   cluster,
		"recipient": types.MaskAddress(recipient, 4),
		"entries":   len(claiming),
	})

	res := o.deps.Claimer.Claim(ctx, recipient)
	if res.Status == inbox.ClaimFailed {
		log.WithError(res.Err).Error("claim failed")
		o.settleEntries(claiming, types.InboxFailed, errMessage(res.Err))
		o.fail(types.DirectionClaim, res.Err)
		return
	}

	if len(res.Signatures) == 0 {
		// the backend had nothing to settle, the entries are still claimable
		o.settleEntries(claiming, types.InboxClaimable, "")
		outcome := OutcomeFinalized
		if res.Err != nil {
			outcome = OutcomeFailed
		}
		o.update(func(s *State) {
			s.Step = StepTerminal
			s.Outcome = outcome
			s.Entries = o.deps.Inbox.Entries()
			s.LastError = types.NewFlowError(res.Err)
		})
		o.recordOutcome(types.DirectionClaim, outcome)
		log.Warn("claim returned no signatures")
		return
	}

	bound := inbox.Bind(claiming, res.Signatures)
	o.deps.Inbox.AttachSignatures(bound)

	now := time.Now()
	records := make([]types.SubmissionRecord, len(res.Signatures))
	for i, sig := range res.Signatures {
		records[i] = types.SubmissionRecord{
			ReceiptID:   newReceiptID(),
			Direction:   types.DirectionClaim,
			Cluster:     cluster,
			Signature:   sig,
			SubmittedAt: now,
			Tier:        types.TierSubmitted,
			UpdatedAt:   now,
		}
	}
	o.update(func(s *State) {
		s.Step = StepTracking
		s.Records = records
		s.Entries = o.deps.Inbox.Entries()
	})
	for _, rec := range records {
		o.save(rec)
	}
	log.WithField("signatures", len(records)).Info("claim submitted")

	outcomes := make(map[string]status.Outcome, len(records))
	var mu sync.Mutex
	var g errgroup.Group
	for i, rec := range records {
		g.Go(func() error {
			out := o.deps.Tracker.Track(ctx, cluster, rec.Signature, func(tier types.ConfirmationTier) {
				o.advance(i, tier)
			})
			o.settle(i, out)
			mu.Lock()
			outcomes[rec.Signature] = out
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	batch := OutcomeFinalized
	var batchErr error
	for _, e := range claiming {
		entryOutcome := OutcomeFinalized
		var entryErr error
		for _, sig := range bound[e.ID] {
			out := outcomes[sig]
			oc := outcomeOf(out.Tier, out.TimedOut)
			if worse(entryOutcome, oc) != entryOutcome {
				entryOutcome, entryErr = oc, out.Err
			}
		}
		if entryOutcome == OutcomeFinalized {
			o.deps.Inbox.Settle(e.ID, types.InboxClaimed, "")
		} else {
			o.deps.Inbox.Settle(e.ID, types.InboxFailed, errMessage(entryErr))
		}
		if worse(batch, entryOutcome) != batch {
			batch, batchErr = entryOutcome, entryErr
		}
	}

	if res.Err != nil && batch == OutcomeFinalized {
		batch, batchErr = OutcomeFailed, res.Err
	}

	o.update(func(s *State) {
		s.Step = StepTerminal
		s.Outcome = batch
		s.Entries = o.deps.Inbox.Entries()
		s.LastError = types.NewFlowError(batchErr)
	})
	o.recordOutcome(types.DirectionClaim, batch)
	log.WithField("outcome", batch).Info("claim finished")
}

func (o *Orchestrator) settleEntries(entries []types.InboxEntry, st types.InboxStatus, reason string) {
	for _, e := range entries {
		o.deps.Inbox.Settle(e.ID, st, reason)
	}
}

// advance moves record idx forward; the tracker never reports a step back.
func (o *Orchestrator) advance(idx int, tier types.ConfirmationTier) {
	o.update(func(s *State) {
		if idx >= len(s.Records) || !s.Records[idx].Tier.Advances(tier) {
			return
		}
		s.Records[idx].Tier = tier
		s.Records[idx].UpdatedAt = time.Now()
		if s.Active != nil && s.Active.Signature == s.Records[idx].Signature {
			s.Active = &s.Records[idx]
		}
	})
}

// settle stores the tracker outcome on record idx and returns the final record.
func (o *Orchestrator) settle(idx int, out status.Outcome) types.SubmissionRecord {
	var rec types.SubmissionRecord
	o.update(func(s *State) {
		r := &s.Records[idx]
		if r.Tier.Advances(out.Tier) {
			r.Tier = out.Tier
		}
		r.TimedOut = out.TimedOut && !r.Tier.Terminal()
		r.Error = errMessage(out.Err)
		r.UpdatedAt = time.Now()
		if s.Active != nil && s.Active.Signature == r.Signature {
			s.Active = r
		}
		rec = *r
	})
	o.save(rec)
	return rec
}

func (o *Orchestrator) fail(direction types.Direction, err error) {
	o.update(func(s *State) {
		s.Step = StepTerminal
		s.Outcome = OutcomeFailed
		s.LastError = types.NewFlowError(err)
		if direction == types.DirectionClaim {
			s.Entries = o.deps.Inbox.Entries()
		}
	})
	o.recordOutcome(direction, OutcomeFailed)
}

func (o *Orchestrator) save(rec types.SubmissionRecord) {
	if o.deps.Recorder == nil {
		return
	}
	if err := o.deps.Recorder.Save(o.ctx, rec); err != nil {
		o.logger.WithError(err).WithField("signature", rec.Signature).Warn("failed to store submission record")
	}
}

func (o *Orchestrator) recordOutcome(direction types.Direction, outcome Outcome) {
	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordTransfer(string(direction), string(outcome))
	}
}

// Wait blocks until every flow started so far has reached Terminal.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops running trackers and waits for their flows to settle. Flows
// stopped this way end TimedOut since their fate on chain is unknown.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}

func newReceiptID() string {
	return "rcpt-" + uuid.NewString()
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
