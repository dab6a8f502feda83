package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/umbra-research/umbra-interface/internal/inbox"
	"github.com/umbra-research/umbra-interface/internal/lifecycle"
	"github.com/umbra-research/umbra-interface/internal/solana"
	"github.com/umbra-research/umbra-interface/internal/types"
)

type errorResponse struct {
	Error       *types.FlowError `json:"error"`
	FieldErrors any              `json:"fieldErrors,omitempty"`
}

type recipientRequest struct {
	Recipient string        `json:"recipient"`
	Cluster   types.Cluster `json:"cluster"`
}

type airdropRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) getLifecycle(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Lifecycle.State())
}

func (s *Server) postSend(c echo.Context) error {
	var req lifecycle.SendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Cluster == "" {
		req.Cluster = s.deps.Cluster
	}

	st, err := s.deps.Lifecycle.SubmitSendIntent(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			return c.JSON(http.StatusUnprocessableEntity, errorResponse{
				Error:       types.NewFlowError(err),
				FieldErrors: st.FieldErrors,
			})
		}
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) postConfirm(c echo.Context) error {
	if err := s.deps.Lifecycle.ConfirmSend(); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusAccepted, s.deps.Lifecycle.State())
}

func (s *Server) postCancel(c echo.Context) error {
	if err := s.deps.Lifecycle.Cancel(); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, s.deps.Lifecycle.State())
}

func (s *Server) recipientOf(c echo.Context) (recipientRequest, error) {
	var req recipientRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return req, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}
	if req.Recipient == "" {
		req.Recipient = s.deps.Identity
	}
	if req.Cluster == "" {
		req.Cluster = s.deps.Cluster
	}
	return req, nil
}

func (s *Server) postScan(c echo.Context) error {
	req, err := s.recipientOf(c)
	if err != nil {
		return err
	}
	entries, err := s.deps.Lifecycle.ScanInbox(c.Request().Context(), req.Recipient)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, entries)
}

func (s *Server) getInbox(c echo.Context) error {
	kind := inbox.FilterKind(c.QueryParam("filter"))
	switch kind {
	case "":
		kind = inbox.FilterAll
	case inbox.FilterAll, inbox.FilterClaimable, inbox.FilterClaimed:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "filter must be one of all, claimable, claimed")
	}
	return c.JSON(http.StatusOK, inbox.Filter(s.deps.Inbox.Entries(), kind))
}

func (s *Server) postClaim(c echo.Context) error {
	req, err := s.recipientOf(c)
	if err != nil {
		return err
	}
	if err := s.deps.Lifecycle.ClaimAll(req.Cluster, req.Recipient); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusAccepted, s.deps.Lifecycle.State())
}

func (s *Server) getActivity(c echo.Context) error {
	limit, err := limitParam(c, 0)
	if err != nil {
		return err
	}
	recs, err := s.deps.Activity.List(c.Request().Context(), limit)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, recs)
}

func (s *Server) getChainActivity(c echo.Context) error {
	limit, err := limitParam(c, solana.DefaultActivityLimit)
	if err != nil {
		return err
	}
	items, err := s.deps.Ledger.Activity(c.Request().Context(), s.deps.Cluster, s.deps.Identity, limit)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) postAirdrop(c echo.Context) error {
	req := airdropRequest{Amount: "1"}
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return echo.NewHTTPError(http.StatusBadRequest, "amount must be a positive number")
	}
	if !s.deps.Cluster.AirdropAllowed() {
		return echo.NewHTTPError(http.StatusForbidden, "airdrops are only available on devnet and localnet")
	}

	sig, err := s.deps.Ledger.RequestAirdrop(c.Request().Context(), s.deps.Cluster, s.deps.Identity, amount)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"signature": sig})
}

func (s *Server) getStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Status.Status(c.Request().Context()))
}

func (s *Server) getBalance(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Balance.Snapshot())
}

// fail maps the error taxonomy onto a status code. Busy and wrong-step errors
// are conflicts so the client knows to wait rather than retry blindly.
func (s *Server) fail(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrBusy), errors.Is(err, types.ErrInvalidStep):
		code = http.StatusConflict
	case errors.Is(err, types.ErrValidation):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrNetworkFailed):
		code = http.StatusBadGateway
	}
	if code >= http.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", c.Path()).Error("request failed")
	}
	return c.JSON(code, errorResponse{Error: types.NewFlowError(err)})
}

func limitParam(c echo.Context, def int) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
	}
	return n, nil
}
