package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/umbra-research/umbra-interface/internal/backend"
	"github.com/umbra-research/umbra-interface/internal/lifecycle"
	"github.com/umbra-research/umbra-interface/internal/solana"
	"github.com/umbra-research/umbra-interface/internal/types"
	"github.com/umbra-research/umbra-interface/internal/wallet"
)

type Config struct {
	Host string `envconfig:"SERVER_HOST" default:"127.0.0.1"`
	Port string `envconfig:"SERVER_PORT" default:"8090"`
}

type Lifecycle interface {
	State() lifecycle.State
	SubmitSendIntent(ctx context.Context, req lifecycle.SendRequest) (lifecycle.State, error)
	ConfirmSend() error
	Cancel() error
	ScanInbox(ctx context.Context, recipient string) ([]types.InboxEntry, error)
	ClaimAll(cluster types.Cluster, recipient string) error
}

type InboxView interface {
	Entries() []types.InboxEntry
}

type ActivityLister interface {
	List(ctx context.Context, limit int) ([]types.SubmissionRecord, error)
}

type Ledger interface {
	Activity(ctx context.Context, cluster types.Cluster, owner string, limit int) ([]solana.ActivityItem, error)
	RequestAirdrop(ctx context.Context, cluster types.Cluster, owner string, amount decimal.Decimal) (string, error)
}

type StatusProbe interface {
	Status(ctx context.Context) backend.SystemStatus
}

type BalanceView interface {
	Snapshot() wallet.BalanceSnapshot
}

// Deps are the pieces the API reads from or drives. Cluster and Identity are
// the wallet the server was started with; requests may override the cluster.
type Deps struct {
	Cluster   types.Cluster
	Identity  string
	Lifecycle Lifecycle
	Inbox     InboxView
	Activity  ActivityLister
	Ledger    Ledger
	Status    StatusProbe
	Balance   BalanceView
}

type Server struct {
	cfg    Config
	deps   Deps
	echo   *echo.Echo
	logger logrus.FieldLogger
}

func NewServer(cfg Config, deps Deps, middlewares []echo.MiddlewareFunc, logger logrus.FieldLogger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middlewares...)

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		echo:   e,
		logger: logger.WithField("pkg", "api.Server"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/lifecycle", s.getLifecycle)
	s.echo.POST("/send", s.postSend)
	s.echo.POST("/send/confirm", s.postConfirm)
	s.echo.POST("/send/cancel", s.postCancel)
	s.echo.POST("/inbox/scan", s.postScan)
	s.echo.GET("/inbox", s.getInbox)
	s.echo.POST("/inbox/claim", s.postClaim)
	s.echo.GET("/activity", s.getActivity)
	s.echo.GET("/activity/chain", s.getChainActivity)
	s.echo.POST("/airdrop", s.postAirdrop)
	s.echo.GET("/status", s.getStatus)
	s.echo.GET("/balance", s.getBalance)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("api listening on %s", addr)
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}
