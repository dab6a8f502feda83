package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umbra-research/umbra-interface/internal/backend"
	"github.com/umbra-research/umbra-interface/internal/lifecycle"
	"github.com/umbra-research/umbra-interface/internal/solana"
	"github.com/umbra-research/umbra-interface/internal/types"
	"github.com/umbra-research/umbra-interface/internal/validate"
	"github.com/umbra-research/umbra-interface/internal/wallet"
)

const identity = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

type fakeLifecycle struct {
	state      lifecycle.State
	submitErr  error
	confirmErr error
	cancelErr  error
	scanErr    error
	claimErr   error

	gotSend    lifecycle.SendRequest
	gotScan    string
	gotClaim   string
	gotCluster types.Cluster
}

func (f *fakeLifecycle) State() lifecycle.State { return f.state }

func (f *fakeLifecycle) SubmitSendIntent(_ context.Context, req lifecycle.SendRequest) (lifecycle.State, error) {
	f.gotSend = req
	return f.state, f.submitErr
}

func (f *fakeLifecycle) ConfirmSend() error { return f.confirmErr }
func (f *fakeLifecycle) Cancel() error      { return f.cancelErr }

func (f *fakeLifecycle) ScanInbox(_ context.Context, recipient string) ([]types.InboxEntry, error) {
	f.gotScan = recipient
	if f.scanErr != nil {
		return []types.InboxEntry{}, f.scanErr
	}
	return []types.InboxEntry{{ID: "e1", Status: types.InboxClaimable}}, nil
}

func (f *fakeLifecycle) ClaimAll(cluster types.Cluster, recipient string) error {
	f.gotCluster, f.gotClaim = cluster, recipient
	return f.claimErr
}

type fakeInbox []types.InboxEntry

func (f fakeInbox) Entries() []types.InboxEntry { return f }

type fakeActivity []types.SubmissionRecord

func (f fakeActivity) List(_ context.Context, limit int) ([]types.SubmissionRecord, error) {
	if limit > 0 && limit < len(f) {
		return f[:limit], nil
	}
	return f, nil
}

type fakeLedger struct {
	airdrops int
}

func (f *fakeLedger) Activity(context.Context, types.Cluster, string, int) ([]solana.ActivityItem, error) {
	return []solana.ActivityItem{{Signature: "S", Status: "confirmed"}}, nil
}

func (f *fakeLedger) RequestAirdrop(context.Context, types.Cluster, string, decimal.Decimal) (string, error) {
	f.airdrops++
	return "AIRDROP", nil
}

type fakeStatus struct{}

func (fakeStatus) Status(context.Context) backend.SystemStatus {
	return backend.SystemStatus{System: "umbra", Connected: true, Version: "1.2.0"}
}

type fakeBalance struct{}

func (fakeBalance) Snapshot() wallet.BalanceSnapshot {
	return wallet.BalanceSnapshot{Owner: identity, Token: "SOL", Amount: decimal.RequireFromString("1.5")}
}

func newTestServer(lc *fakeLifecycle, cluster types.Cluster) (*Server, *fakeLedger) {
	ledger := &fakeLedger{}
	s := NewServer(Config{}, Deps{
		Cluster:   cluster,
		Identity:  identity,
		Lifecycle: lc,
		Inbox: fakeInbox{
			{ID: "e1", Status: types.InboxClaimable},
			{ID: "e2", Status: types.InboxClaimed},
		},
		Activity: fakeActivity{{ReceiptID: "rcpt-1"}, {ReceiptID: "rcpt-2"}},
		Ledger:   ledger,
		Status:   fakeStatus{},
		Balance:  fakeBalance{},
	}, nil, quietLogger())
	return s, ledger
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestPostSend(t *testing.T) {
	lc := &fakeLifecycle{state: lifecycle.State{Step: lifecycle.StepReviewing}}
	s, _ := newTestServer(lc, types.ClusterDevnet)

	rec := do(t, s, http.MethodPost, "/send", `{"recipient":"`+identity+`","amount":"0.5"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.ClusterDevnet, lc.gotSend.Cluster)
	assert.Equal(t, "0.5", lc.gotSend.Amount)
	assert.Contains(t, rec.Body.String(), `"step":"reviewing"`)
}

func TestPostSend_ValidationFailure(t *testing.T) {
	errs := validate.Errors{validate.FieldDestination: {Field: validate.FieldDestination, Code: validate.CodeInvalidAddress, Message: "invalid Solana address"}}
	lc := &fakeLifecycle{
		state:     lifecycle.State{Step: lifecycle.StepFormEditing, FieldErrors: errs},
		submitErr: errs.Err(),
	}
	s, _ := newTestServer(lc, types.ClusterDevnet)

	rec := do(t, s, http.MethodPost, "/send", `{"recipient":"nope","amount":"1"}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body struct {
		Error       types.FlowError `json:"error"`
		FieldErrors validate.Errors `json:"fieldErrors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, types.KindValidation, body.Error.Kind)
	assert.Equal(t, validate.CodeInvalidAddress, body.FieldErrors[validate.FieldDestination].Code)
}

func TestErrorStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		lc   *fakeLifecycle
		path string
		want int
	}{
		{"confirm while busy", &fakeLifecycle{confirmErr: fmt.Errorf("%w: tracking", types.ErrBusy)}, "/send/confirm", http.StatusConflict},
		{"cancel after signing", &fakeLifecycle{cancelErr: fmt.Errorf("%w: tracking", types.ErrInvalidStep)}, "/send/cancel", http.StatusConflict},
		{"scan failure", &fakeLifecycle{scanErr: fmt.Errorf("%w: 502", types.ErrNetworkFailed)}, "/inbox/scan", http.StatusBadGateway},
		{"claim accepted", &fakeLifecycle{}, "/inbox/claim", http.StatusAccepted},
		{"confirm accepted", &fakeLifecycle{}, "/send/confirm", http.StatusAccepted},
		{"unknown failure", &fakeLifecycle{claimErr: fmt.Errorf("boom")}, "/inbox/claim", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(tt.lc, types.ClusterDevnet)
			rec := do(t, s, http.MethodPost, tt.path, "")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestInboxDefaultsToServerIdentity(t *testing.T) {
	lc := &fakeLifecycle{}
	s, _ := newTestServer(lc, types.ClusterLocalnet)

	rec := do(t, s, http.MethodPost, "/inbox/scan", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, identity, lc.gotScan)

	rec = do(t, s, http.MethodPost, "/inbox/claim", `{"recipient":"R","cluster":"devnet"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "R", lc.gotClaim)
	assert.Equal(t, types.ClusterDevnet, lc.gotCluster)
}

func TestGetInbox_Filter(t *testing.T) {
	s, _ := newTestServer(&fakeLifecycle{}, types.ClusterDevnet)

	var entries []types.InboxEntry
	rec := do(t, s, http.MethodGet, "/inbox?filter=claimed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "e2", entries[0].ID)

	rec = do(t, s, http.MethodGet, "/inbox", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 2)

	rec = do(t, s, http.MethodGet, "/inbox?filter=pending", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadEndpoints(t *testing.T) {
	s, _ := newTestServer(&fakeLifecycle{state: lifecycle.State{Step: lifecycle.StepBrowsing}}, types.ClusterDevnet)

	rec := do(t, s, http.MethodGet, "/activity?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var recs []types.SubmissionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	assert.Len(t, recs, 1)

	rec = do(t, s, http.MethodGet, "/activity?limit=-3", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/activity/chain", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"signature":"S"`)

	rec = do(t, s, http.MethodGet, "/status", "")
	assert.JSONEq(t, `{"system":"umbra","connected":true,"version":"1.2.0"}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/balance", "")
	assert.Contains(t, rec.Body.String(), `"amount":"1.5"`)

	rec = do(t, s, http.MethodGet, "/lifecycle", "")
	assert.Contains(t, rec.Body.String(), `"step":"browsing"`)
}

func TestPostAirdrop(t *testing.T) {
	s, ledger := newTestServer(&fakeLifecycle{}, types.ClusterDevnet)
	rec := do(t, s, http.MethodPost, "/airdrop", `{"amount":"2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"signature":"AIRDROP"}`, rec.Body.String())
	assert.Equal(t, 1, ledger.airdrops)

	rec = do(t, s, http.MethodPost, "/airdrop", `{"amount":"-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s, ledger = newTestServer(&fakeLifecycle{}, types.ClusterMainnetBeta)
	rec = do(t, s, http.MethodPost, "/airdrop", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, ledger.airdrops)
}

func TestStart_StopsOnCancel(t *testing.T) {
	s, _ := newTestServer(&fakeLifecycle{}, types.ClusterDevnet)
	s.cfg = Config{Host: "127.0.0.1", Port: "0"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
