package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Shvan11/ShwNodApp-sub005/internal/bridge"
	"github.com/Shvan11/ShwNodApp-sub005/internal/config"
	"github.com/Shvan11/ShwNodApp-sub005/internal/domain"
	"github.com/Shvan11/ShwNodApp-sub005/internal/errors"
	"github.com/Shvan11/ShwNodApp-sub005/internal/hub"
	"github.com/Shvan11/ShwNodApp-sub005/internal/router"
)

const maxConnections = 1024

type Server struct {
	echo         *echo.Echo
	config       *config.Config
	hub          *hub.Hub
	router       *router.Router
	bridge       *bridge.Bridge
	appointments domain.AppointmentDirectory
	viewers      domain.QRViewerRegistry
	clock        clockwork.Clock
	limiter      *GlobalConnectionLimiter
	db           *pgxpool.Pool
	redisClient  *goredis.Client
	startTime    time.Time
}

func NewServer(
	cfg *config.Config,
	h *hub.Hub,
	rt *router.Router,
	b *bridge.Bridge,
	appointments domain.AppointmentDirectory,
	viewers domain.QRViewerRegistry,
	clock clockwork.Clock,
	db *pgxpool.Pool,
	redisClient *goredis.Client,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(errors.Middleware())

	srv := &Server{
		echo:         e,
		config:       cfg,
		hub:          h,
		router:       rt,
		bridge:       b,
		appointments: appointments,
		viewers:      viewers,
		clock:        clock,
		limiter:      NewGlobalConnectionLimiter(maxConnections),
		db:           db,
		redisClient:  redisClient,
		startTime:    time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying engine for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
