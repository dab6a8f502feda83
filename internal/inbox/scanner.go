package inbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/umbra-research/umbra-interface/internal/backend"
	"github.com/umbra-research/umbra-interface/internal/types"
)

const DefaultRefresh = 15 * time.Second

type Lister interface {
	Inbox(ctx context.Context, recipient string) ([]backend.InboxItem, error)
}

// Scanner owns the local inbox. Each successful scan replaces the whole set;
// between scans only the claim transitions below may change an entry.
type Scanner struct {
	api    Lister
	logger logrus.FieldLogger

	mu        sync.RWMutex
	recipient string
	entries   []types.InboxEntry
	scannedAt time.Time
	// claims counts BeginClaim calls that marked at least one entry.
	claims uint64
}

func NewScanner(api Lister, logger logrus.FieldLogger) *Scanner {
	return &Scanner{
		api:    api,
		logger: logger.WithField("component", "inbox"),
	}
}

// Scan fetches the inbox of recipient in backend order. On failure it returns
// no entries and the error, and the previous snapshot is left as it was.
// A result that raced a claim is discarded and the current snapshot returned.
func (s *Scanner) Scan(ctx context.Context, recipient string) ([]types.InboxEntry, error) {
	s.mu.RLock()
	claims := s.claims
	s.mu.RUnlock()

	items, err := s.api.Inbox(ctx, recipient)
	if err != nil {
		s.logger.WithError(err).WithField("recipient", types.MaskAddress(recipient, 4)).Warn("inbox scan failed")
		return []types.InboxEntry{}, fmt.Errorf("%w: %v", types.ErrNetworkFailed, err)
	}

	now := time.Now()
	entries := make([]types.InboxEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, toEntry(it, now))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claims != claims || s.claimInFlightLocked() {
		s.logger.WithField("recipient", types.MaskAddress(recipient, 4)).Debug("inbox scan overlapped a claim, keeping snapshot")
		return cloneEntries(s.entries), nil
	}
	s.recipient = recipient
	s.entries = entries
	s.scannedAt = now

	return cloneEntries(entries), nil
}

func toEntry(it backend.InboxItem, discoveredAt time.Time) types.InboxEntry {
	e := types.InboxEntry{
		ID:           it.ID,
		Sender:       it.Payer,
		Recipient:    it.Recipient,
		Token:        it.Token,
		Amount:       it.Amount,
		Signature:    it.Signature,
		DiscoveredAt: discoveredAt,
		Status:       mapStatus(it.Status),
	}
	if ts, err := time.Parse(time.RFC3339, it.Timestamp); err == nil {
		e.SentAt = ts
	}
	return e
}

func mapStatus(s string) types.InboxStatus {
	switch strings.ToLower(s) {
	case "claimed":
		return types.InboxClaimed
	case "claiming":
		return types.InboxClaiming
	case "failed":
		return types.InboxFailed
	default:
		return types.InboxClaimable
	}
}

func (s *Scanner) Entries() []types.InboxEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEntries(s.entries)
}

func (s *Scanner) Recipient() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recipient
}

func (s *Scanner) ScannedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scannedAt
}

func (s *Scanner) Claimable() []types.InboxEntry {
	return Filter(s.Entries(), FilterClaimable)
}

// BeginClaim moves every claimable entry of recipient to Claiming and returns
// them. It returns nothing when the snapshot was scanned for someone else.
func (s *Scanner) BeginClaim(recipient string) []types.InboxEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recipient != recipient {
		return nil
	}

	var claiming []types.InboxEntry
	for i := range s.entries {
		if s.entries[i].Status != types.InboxClaimable {
			continue
		}
		s.entries[i].Status = types.InboxClaiming
		s.entries[i].Error = ""
		claiming = append(claiming, s.entries[i])
	}
	if len(claiming) > 0 {
		s.claims++
	}
	return cloneEntries(claiming)
}

// AttachSignatures records which claim signatures settle an entry.
func (s *Scanner) AttachSignatures(bound map[string][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if sigs, ok := bound[s.entries[i].ID]; ok {
			s.entries[i].ClaimSigs = append([]string(nil), sigs...)
		}
	}
}

// Settle ends a claim for one entry. Only Claiming entries move; anything else
// was replaced by a rescan or already settled.
func (s *Scanner) Settle(id string, status types.InboxStatus, reason string) bool {
	if status != types.InboxClaimed && status != types.InboxFailed && status != types.InboxClaimable {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID != id || s.entries[i].Status != types.InboxClaiming {
			continue
		}
		s.entries[i].Status = status
		s.entries[i].Error = reason
		return true
	}
	return false
}

func (s *Scanner) claimInFlight() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claimInFlightLocked()
}

func (s *Scanner) claimInFlightLocked() bool {
	for _, e := range s.entries {
		if e.Status == types.InboxClaiming {
			return true
		}
	}
	return false
}

// AutoRefresh rescans on every tick until ctx is cancelled. Ticks that land
// while a claim is settling are skipped so the rescan cannot hide it.
func (s *Scanner) AutoRefresh(ctx context.Context, recipient string, every time.Duration) {
	if every <= 0 {
		every = DefaultRefresh
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.claimInFlight() {
				continue
			}
			_, _ = s.Scan(ctx, recipient)
		}
	}
}

type FilterKind string

const (
	FilterAll       FilterKind = "all"
	FilterClaimable FilterKind = "claimable"
	FilterClaimed   FilterKind = "claimed"
)

func Filter(entries []types.InboxEntry, kind FilterKind) []types.InboxEntry {
	res := make([]types.InboxEntry, 0, len(entries))
	for _, e := range entries {
		switch kind {
		case FilterClaimable:
			if e.Status != types.InboxClaimable {
				continue
			}
		case FilterClaimed:
			if e.Status != types.InboxClaimed {
				continue
			}
		}
		res = append(res, e)
	}
	return res
}

func cloneEntries(in []types.InboxEntry) []types.InboxEntry {
	out := make([]types.InboxEntry, len(in))
	for i, e := range in {
		e.ClaimSigs = append([]string(nil), e.ClaimSigs...)
		out[i] = e
	}
	return out
}
