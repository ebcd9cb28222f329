// Package app assembles the service from config and runs it until the
// process is asked to stop.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/planbox/internal/auth"
	"github.com/iliyamo/planbox/internal/config"
	"github.com/iliyamo/planbox/internal/database"
	"github.com/iliyamo/planbox/internal/handler"
	"github.com/iliyamo/planbox/internal/logging"
	"github.com/iliyamo/planbox/internal/middleware"
	"github.com/iliyamo/planbox/internal/queue"
	"github.com/iliyamo/planbox/internal/repository"
	"github.com/iliyamo/planbox/internal/router"
	"github.com/iliyamo/planbox/internal/session"
	"github.com/iliyamo/planbox/internal/validation"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	cfg  config.Config
	log  logging.Logger
	db   *sqlx.DB
	rdb  *redis.Client
	pub  queue.Publisher
	echo *echo.Echo
}

// New opens the database, the optional Redis and RabbitMQ connections and
// builds the HTTP server. Redis and RabbitMQ being unreachable is not fatal.
func New(ctx context.Context, cfg config.Config, log logging.Logger) (*App, error) {
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("db init: %w", err)
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil && (cfg.RateLimit.Enabled || cfg.Cache.Enabled) {
		log.Warn(ctx, "redis unavailable; rate limiting and response cache disabled", "addr", cfg.Redis.RedisAddr())
	}

	var pub queue.Publisher = queue.Nop{}
	if cfg.Events.Enabled {
		pub = queue.NewAMQPPublisher(cfg.Events.URL, cfg.Events.Queue)
	}

	a := &App{cfg: cfg, log: log, db: db, rdb: rdb, pub: pub}
	a.echo = NewServer(cfg, log, Deps{
		Users: repository.NewUserRepo(db),
		Boxes: repository.NewBoxRepo(db),
		Todos: repository.NewTodoRepo(db),
		Notes: repository.NewNoteRepo(db),
		DB:    db,
		Redis: rdb,
		Pub:   pub,
	})
	return a, nil
}

// Deps are the stores and clients the HTTP server is built from.
type Deps struct {
	Users interface {
		handler.UserStore
		auth.CredentialStore
	}
	Boxes handler.BoxStore
	Todos handler.TodoStore
	Notes handler.NoteStore
	DB    handler.Pinger
	Redis *redis.Client
	Pub   queue.Publisher
}

// NewServer builds the echo instance with every route and middleware.
func NewServer(cfg config.Config, log logging.Logger, d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()
	e.HTTPErrorHandler = handler.ErrorHandler(log)

	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit("2M"))

	hasher := auth.NewHasher(cfg.BcryptCost)
	issuer := session.NewIssuer(cfg.JWTSecret, cfg.SessionTTL)
	base := handler.Base{Log: log, Events: d.Pub}

	authH := handler.NewAuthHandler(base, d.Users, auth.NewAuthenticator(d.Users, hasher), hasher, issuer, cfg.CookieSecure)
	router.Register(e, router.Handlers{
		Auth: authH,
		User: handler.NewUserHandler(authH),
		Box:  handler.NewBoxHandler(base, d.Boxes),
		Todo: handler.NewTodoHandler(base, d.Todos),
		Note: handler.NewNoteHandler(base, d.Notes, validation.NewSanitizer()),
		DB:   d.DB,
	}, router.Middleware{
		Session:   middleware.RequireSession(issuer),
		RateLimit: middleware.RateLimit(cfg.RateLimit, d.Redis, log),
		Cache:     middleware.ResponseCache(cfg.Cache, d.Redis, log),
	})
	return e
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then drains
// in-flight requests.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer a.close()

	var wg sync.WaitGroup
	if a.cfg.Events.Enabled && a.cfg.Events.Consumer {
		c := &queue.Consumer{URL: a.cfg.Events.URL, Queue: a.cfg.Events.Queue, LogDir: a.cfg.Events.LogDir, Log: a.log}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Run(ctx)
		}()
	}

	errc := make(chan error, 1)
	addr := ":" + a.cfg.Port
	go func() {
		a.log.Info(ctx, "listening", "addr", addr, "env", a.cfg.Env)
		if err := a.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
		stop()
	}

	a.log.Info(ctx, "shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.echo.Shutdown(sctx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutdown: %w", err)
	}
	wg.Wait()
	return runErr
}

func (a *App) close() {
	if c, ok := a.pub.(*queue.AMQPPublisher); ok {
		_ = c.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	_ = a.db.Close()
}

// DB exposes the underlying pool, e.g. for running migrations at startup.
func (a *App) DB() *sql.DB { return a.db.DB }
