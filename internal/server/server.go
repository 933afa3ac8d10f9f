package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/vimaru/luyenthi/internal/analytics"
	"github.com/vimaru/luyenthi/internal/api"
	"github.com/vimaru/luyenthi/internal/auth"
	"github.com/vimaru/luyenthi/internal/catalog"
	"github.com/vimaru/luyenthi/internal/chat"
	"github.com/vimaru/luyenthi/internal/domain"
	"github.com/vimaru/luyenthi/internal/event"
	"github.com/vimaru/luyenthi/internal/examroom"
	"github.com/vimaru/luyenthi/internal/notification"
	"github.com/vimaru/luyenthi/internal/quiz"
	"github.com/vimaru/luyenthi/internal/relay"
	"github.com/vimaru/luyenthi/internal/telemetry"
	"github.com/vimaru/luyenthi/internal/usage"
	"github.com/vimaru/luyenthi/internal/users"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Redis struct {
		State struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Addr string
		User string
		Pass string
		Name string
	}

	Auth struct {
		Secret string
	}

	Relay struct {
		AllowAnonymous bool
	}

	Analytics struct {
		BaseURL string
	}

	Exam struct {
		Size int
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			state  redis.UniversalClient
			pubsub redis.UniversalClient
		}

		postgres *pgxpool.Pool
	}

	service struct {
		auth         *auth.Service
		catalog      *catalog.Service
		examRoom     *examroom.Service
		roster       *examroom.Roster
		notification *notification.Service
		usage        *usage.Service
		users        *users.Service
		chat         *chat.Service
		snapshots    *quiz.SnapshotStore
		analytics    *analytics.Service
	}

	hub  *relay.Hub
	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.state, err = connect(s.c.Redis.State.Addrs, s.c.Redis.State.Pass)
	if err != nil {
		return fmt.Errorf("state: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s",
		s.c.Postgres.User, s.c.Postgres.Pass, s.c.Postgres.Addr, s.c.Postgres.Name))
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		return err
	}

	s.infra.postgres = db
	return nil
}

func (s *Server) initService() {
	db := s.infra.postgres
	prefix := s.c.Redis.State.Prefix

	s.service.auth = auth.NewService(auth.Config{Secret: s.c.Auth.Secret})
	s.service.catalog = catalog.NewService(catalog.Config{DB: db})
	s.service.users = users.NewService(users.Config{DB: db})
	s.service.chat = chat.NewService(chat.Config{DB: db})

	s.service.roster = examroom.NewRoster(examroom.RosterConfig{
		EventBus: s.eb,
		Redis:    s.infra.redis.state,
		Prefix:   prefix,
	})

	s.service.examRoom = examroom.NewService(examroom.Config{
		DB:       db,
		EventBus: s.eb,
		Catalog:  s.service.catalog,
		Roster:   s.service.roster,
		ExamSize: s.c.Exam.Size,
	})

	s.service.notification = notification.NewService(notification.Config{
		Store:     notification.NewPGStore(db),
		Directory: notification.NewPGDirectory(db),
		EventBus:  s.eb,
	})

	s.service.usage = usage.NewService(usage.Config{
		Redis:  s.infra.redis.state,
		Prefix: prefix,
	})

	s.service.snapshots = quiz.NewSnapshotStore(s.infra.redis.state, prefix)

	s.service.analytics = analytics.NewService(analytics.Config{
		BaseURL: s.c.Analytics.BaseURL,
	})

	s.hub = relay.NewHub(relay.Config{
		Redis:          s.infra.redis.pubsub,
		EventBus:       s.eb,
		Messages:       s.service.chat,
		Tokens:         tokenParser{s.service.auth},
		Prefix:         s.c.Redis.Pubsub.Prefix,
		AllowAnonymous: s.c.Relay.AllowAnonymous,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery(), telemetry.HTTPMiddleware())

	api.New(api.Config{
		Router:   e,
		EventBus: s.eb,
		Hub:      s.hub,

		Auth:         s.service.auth,
		Catalog:      s.service.catalog,
		ExamRoom:     s.service.examRoom,
		Roster:       s.service.roster,
		Notification: s.service.notification,
		Usage:        s.service.usage,
		Users:        s.service.users,
		Chat:         s.service.chat,
		Snapshots:    s.service.snapshots,
		Analytics:    s.service.analytics,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	s.hub.Start(ctx)

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.hub.Close()
	s.eb.Stop()

	slog.InfoContext(ctx, "server: shutdown completed")
}

// tokenParser adapts auth.Service to the relay's handshake interface.
type tokenParser struct {
	auth *auth.Service
}

func (p tokenParser) ParseToken(token string) (string, string, domain.Role, error) {
	claims, err := p.auth.ParseToken(token)
	if err != nil {
		return "", "", "", err
	}

	return claims.UserID, claims.Name, claims.Role, nil
}
