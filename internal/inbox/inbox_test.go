package inbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umbra-research/umbra-interface/internal/backend"
	"github.com/umbra-research/umbra-interface/internal/types"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

type fakeLister struct {
	mu    sync.Mutex
	items []backend.InboxItem
	err   error
	calls int
}

func (f *fakeLister) Inbox(context.Context, string) ([]backend.InboxItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.items, f.err
}

func (f *fakeLister) set(items []backend.InboxItem, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items, f.err = items, err
}

func item(id, status string) backend.InboxItem {
	return backend.InboxItem{
		ID:        id,
		Timestamp: "2026-10-01T12:00:00Z",
		Payer:     "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		Recipient: "R",
		Amount:    decimal.RequireFromString("0.5"),
		Token:     "SOL",
		Status:    status,
	}
}

func TestScanner_ScanReplacesSnapshot(t *testing.T) {
	api := &fakeLister{items: []backend.InboxItem{item("b", "claimable"), item("a", "claimed")}}
	s := NewScanner(api, quietLogger())

	got, err := s.Scan(context.Background(), "R")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID, "backend order is kept")
	assert.Equal(t, types.InboxClaimable, got[0].Status)
	assert.Equal(t, types.InboxClaimed, got[1].Status)
	assert.Equal(t, "9xQe…VFin", got[0].SenderMasked())
	assert.Equal(t, 2026, got[0].SentAt.Year())

	api.set([]backend.InboxItem{item("c", "claimable")}, nil)
	got, err = s.Scan(context.Background(), "R")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", s.Entries()[0].ID)
}

func TestScanner_FailureLeavesSnapshot(t *testing.T) {
	api := &fakeLister{items: []backend.InboxItem{item("a", "claimable")}}
	s := NewScanner(api, quietLogger())
	_, err := s.Scan(context.Background(), "R")
	require.NoError(t, err)
	before := s.Entries()

	api.set(nil, errors.New("502"))
	got, err := s.Scan(context.Background(), "R")

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNetworkFailed)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, before, s.Entries())
}

func TestScanner_Idempotent(t *testing.T) {
	api := &fakeLister{items: []backend.InboxItem{item("a", "claimable"), item("b", "claimable")}}
	s := NewScanner(api, quietLogger())

	first, err := s.Scan(context.Background(), "R")
	require.NoError(t, err)
	second, err := s.Scan(context.Background(), "R")
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Status, second[i].Status)
		assert.True(t, first[i].Amount.Equal(second[i].Amount))
	}
}

func TestScanner_ClaimTransitions(t *testing.T) {
	api := &fakeLister{items: []backend.InboxItem{item("a", "claimable"), item("b", "claimed"), item("c", "claimable")}}
	s := NewScanner(api, quietLogger())
	_, err := s.Scan(context.Background(), "R")
	require.NoError(t, err)

	assert.Empty(t, s.BeginClaim("OTHER"), "a snapshot of another recipient is never claimed")
	assert.Len(t, s.Claimable(), 2)

	claiming := s.BeginClaim("R")
	require.Len(t, claiming, 2)
	assert.Equal(t, []string{"a", "c"}, []string{claiming[0].ID, claiming[1].ID})
	assert.Empty(t, s.Claimable())
	assert.True(t, s.claimInFlight())

	s.AttachSignatures(map[string][]string{"a": {"S1"}, "c": {"S2"}})
	assert.Equal(t, []string{"S1"}, s.Entries()[0].ClaimSigs)

	assert.True(t, s.Settle("a", types.InboxClaimed, ""))
	assert.False(t, s.Settle("a", types.InboxFailed, "late"), "settled entries do not move again")
	assert.False(t, s.Settle("b", types.InboxFailed, "x"), "only claiming entries settle")
	assert.False(t, s.Settle("c", types.InboxClaiming, ""))
	assert.True(t, s.Settle("c", types.InboxFailed, "on-chain failure"))

	entries := s.Entries()
	assert.Equal(t, types.InboxClaimed, entries[0].Status)
	assert.Equal(t, types.InboxClaimed, entries[1].Status)
	assert.Equal(t, types.InboxFailed, entries[2].Status)
	assert.Equal(t, "on-chain failure", entries[2].Error)
	assert.False(t, s.claimInFlight())
}

// gatedLister holds each Inbox call until release is closed.
type gatedLister struct {
	items   []backend.InboxItem
	entered chan struct{}
	release chan struct{}
}

func (g *gatedLister) Inbox(ctx context.Context, _ string) ([]backend.InboxItem, error) {
	g.entered <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.items, nil
}

func TestScanner_ScanOverlappingClaimKeepsClaimProgress(t *testing.T) {
	tests := []struct {
		name         string
		settleEarly  bool
		wantDuringIO types.InboxStatus
	}{
		{name: "claim still settling", wantDuringIO: types.InboxClaiming},
		{name: "claim settled before scan returned", settleEarly: true, wantDuringIO: types.InboxClaimed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := &gatedLister{
				items:   []backend.InboxItem{item("a", "claimable"), item("b", "claimable")},
				entered: make(chan struct{}, 1),
				release: make(chan struct{}),
			}
			s := NewScanner(gate, quietLogger())

			close(gate.release)
			_, err := s.Scan(context.Background(), "R")
			require.NoError(t, err)
			<-gate.entered

			gate.release = make(chan struct{})
			done := make(chan []types.InboxEntry)
			go func() {
				entries, err := s.Scan(context.Background(), "R")
				assert.NoError(t, err)
				done <- entries
			}()
			<-gate.entered

			require.Len(t, s.BeginClaim("R"), 2)
			if tt.settleEarly {
				require.True(t, s.Settle("a", types.InboxClaimed, ""))
				require.True(t, s.Settle("b", types.InboxClaimed, ""))
			}
			close(gate.release)

			for _, e := range <-done {
				assert.Equal(t, tt.wantDuringIO, e.Status)
			}

			s.Settle("a", types.InboxClaimed, "")
			s.Settle("b", types.InboxClaimed, "")
			for _, e := range s.Entries() {
				assert.Equal(t, types.InboxClaimed, e.Status, e.ID)
			}
		})
	}
}

func TestScanner_EntriesAreCopies(t *testing.T) {
	api := &fakeLister{items: []backend.InboxItem{item("a", "claimable")}}
	s := NewScanner(api, quietLogger())
	_, err := s.Scan(context.Background(), "R")
	require.NoError(t, err)

	got := s.Entries()
	got[0].Status = types.InboxClaimed
	assert.Equal(t, types.InboxClaimable, s.Entries()[0].Status)
}

func TestScanner_AutoRefresh(t *testing.T) {
	api := &fakeLister{items: []backend.InboxItem{item("a", "claimable")}}
	s := NewScanner(api, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.AutoRefresh(ctx, "R", 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.calls >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("auto refresh did not stop")
	}
	assert.Equal(t, "R", s.Recipient())
}

func TestFilter(t *testing.T) {
	entries := []types.InboxEntry{
		{ID: "1", Status: types.InboxClaimable},
		{ID: "2", Status: types.InboxClaimed},
		{ID: "3", Status: types.InboxFailed},
	}
	assert.Len(t, Filter(entries, FilterAll), 3)
	assert.Equal(t, "1", Filter(entries, FilterClaimable)[0].ID)
	assert.Equal(t, "2", Filter(entries, FilterClaimed)[0].ID)
	assert.Len(t, Filter(entries, FilterClaimed), 1)
}

func TestBind(t *testing.T) {
	entries := []types.InboxEntry{{ID: "a"}, {ID: "b"}}

	assert.Equal(t, map[string][]string{"a": {"S1"}, "b": {"S2"}}, Bind(entries, []string{"S1", "S2"}))
	assert.Equal(t, map[string][]string{"a": {"BATCH"}, "b": {"BATCH"}}, Bind(entries, []string{"BATCH"}))
	assert.Empty(t, Bind(entries, nil))
}

type fakeClaimAPI struct {
	res backend.ClaimResponse
	err error
}

func (f fakeClaimAPI) Claim(context.Context, string) (backend.ClaimResponse, error) {
	return f.res, f.err
}

func TestClaimer_Claim(t *testing.T) {
	tests := []struct {
		name     string
		api      fakeClaimAPI
		status   ClaimStatus
		sigs     []string
		wantKind types.ErrorKind
	}{
		{
			name:   "success with two signatures",
			api:    fakeClaimAPI{res: backend.ClaimResponse{Status: "success", Signatures: []string{"SIGA", "SIGB"}}},
			status: ClaimSubmitted,
			sigs:   []string{"SIGA", "SIGB"},
		},
		{
			name:   "success with nothing to settle",
			api:    fakeClaimAPI{res: backend.ClaimResponse{Status: "success"}},
			status: ClaimSubmitted,
			sigs:   []string{},
		},
		{
			name:     "success with error text is partial",
			api:      fakeClaimAPI{res: backend.ClaimResponse{Status: "success", Signatures: []string{"SIGA", ""}, Error: "1 of 2 failed"}},
			status:   ClaimPartial,
			sigs:     []string{"SIGA"},
			wantKind: types.KindBuild,
		},
		{
			name:     "failed status with signatures is partial",
			api:      fakeClaimAPI{res: backend.ClaimResponse{Status: "failed", Signatures: []string{"SIGA"}}},
			status:   ClaimPartial,
			sigs:     []string{"SIGA"},
			wantKind: types.KindBuild,
		},
		{
			name:     "backend rejection",
			api:      fakeClaimAPI{res: backend.ClaimResponse{Status: "failed", Error: "no funds"}, err: errors.New("claim rejected: HTTP 409")},
			status:   ClaimFailed,
			wantKind: types.KindBuild,
		},
		{
			name:     "transport failure",
			api:      fakeClaimAPI{err: fmt.Errorf("%w: dial tcp", types.ErrNetworkFailed)},
			status:   ClaimFailed,
			wantKind: types.KindNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewClaimer(tt.api, quietLogger()).Claim(context.Background(), "R")
			assert.Equal(t, tt.status, res.Status)
			if tt.sigs != nil {
				assert.Equal(t, tt.sigs, res.Signatures)
			}
			if tt.wantKind == "" {
				assert.NoError(t, res.Err)
			} else {
				assert.Equal(t, tt.wantKind, types.KindOf(res.Err))
			}
		})
	}
}
