package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/victornm/quizforge/internal/api"
	"github.com/victornm/quizforge/internal/contextstore"
	"github.com/victornm/quizforge/internal/event"
	"github.com/victornm/quizforge/internal/generation"
	"github.com/victornm/quizforge/internal/grading"
	"github.com/victornm/quizforge/internal/leaderboard"
	"github.com/victornm/quizforge/internal/llm"
	"github.com/victornm/quizforge/internal/score"
	"github.com/victornm/quizforge/internal/session"
	"github.com/victornm/quizforge/internal/store"
	"github.com/victornm/quizforge/internal/telemetry"
	"github.com/victornm/quizforge/internal/validation"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Log telemetry.LogConfig

	Database struct {
		// Driver is postgres or sqlite.
		Driver string
		DSN    string
	}

	Redis struct {
		Leaderboard RedisConfig
		Pubsub      RedisConfig
	}

	LLM struct {
		BaseURL           string
		APIKey            string
		Model             string
		Timeout           time.Duration
		RequestsPerSecond float64
		Burst             int
	}

	Generation struct {
		MinStemLength         int
		MaxQuoteLength        int
		MinLanguageConfidence float64
		CallTimeout           time.Duration
		MaxChunkRunes         int
	}

	Grading struct {
		ShortAnswerThreshold float64
		RevealAnswers        bool
	}
}

type RedisConfig struct {
	Addrs  []string
	Pass   string
	Prefix string
}

func (c *Config) SetDefaults() {
	c.HTTP.Port = 8080
	c.GRPC.Port = 9090
	c.Log.Level = "info"
	c.Log.MaxSizeMB = 100
	c.Log.MaxBackups = 5
	c.Database.Driver = string(store.DriverSQLite)
	c.Redis.Leaderboard = RedisConfig{Addrs: []string{"localhost:6379"}, Prefix: "quizforge"}
	c.Redis.Pubsub = RedisConfig{Addrs: []string{"localhost:6379"}, Prefix: "quizforge"}
	c.LLM.BaseURL = "https://api.openai.com/v1"
	c.LLM.Model = "gpt-4o-mini"
	c.LLM.Timeout = 60 * time.Second
	c.LLM.RequestsPerSecond = 2
	c.LLM.Burst = 4

	v := validation.DefaultConfig()
	c.Generation.MinStemLength = v.MinStemLength
	c.Generation.MaxQuoteLength = v.MaxQuoteLength
	c.Generation.MinLanguageConfidence = v.MinLanguageConfidence
	c.Generation.CallTimeout = 60 * time.Second
	c.Generation.MaxChunkRunes = 800

	c.Grading.ShortAnswerThreshold = 0.6
	c.Grading.RevealAnswers = true
}

type Server struct {
	c Config

	eb  *event.Bus
	log io.Closer

	infra struct {
		redis struct {
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		store *store.Store
		docs  *contextstore.Store
		llm   *llm.Client
	}

	service struct {
		generation  *generation.Service
		session     *session.Service
		score       *score.Service
		leaderboard *leaderboard.Service
	}

	http *http.Server
	grpc *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	var err error
	if s.log, err = telemetry.SetupLogger(c.Log); err != nil {
		return nil, fmt.Errorf("server: setup logger: %w", err)
	}

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

	if err := s.initStore(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	s.infra.llm = llm.NewClient(llm.Config{
		BaseURL:           s.c.LLM.BaseURL,
		APIKey:            s.c.LLM.APIKey,
		Model:             s.c.LLM.Model,
		Timeout:           s.c.LLM.Timeout,
		RequestsPerSecond: s.c.LLM.RequestsPerSecond,
		Burst:             s.c.LLM.Burst,
	})

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
	s.infra.redis.leaderboard, err = connect(s.c.Redis.Leaderboard.Addrs, s.c.Redis.Leaderboard.Pass)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initStore() (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.infra.store, err = store.Open(ctx, store.Driver(s.c.Database.Driver), s.c.Database.DSN)
	if err != nil {
		return err
	}

	s.infra.docs = contextstore.New(contextstore.Config{
		DB:            s.infra.store.DB(),
		MaxChunkRunes: s.c.Generation.MaxChunkRunes,
	})

	return nil
}

func (s *Server) initService() {
	s.service.generation = generation.NewService(generation.Config{
		Generator: s.infra.llm,
		Blocks:    s.infra.docs,
		Store:     s.infra.store,
		EventBus:  s.eb,
		Detector:  validation.WhatlangDetector{},
		Validation: validation.Config{
			MinStemLength:         s.c.Generation.MinStemLength,
			MaxQuoteLength:        s.c.Generation.MaxQuoteLength,
			MinLanguageConfidence: s.c.Generation.MinLanguageConfidence,
		},
		Model:       s.infra.llm.Model(),
		CallTimeout: s.c.Generation.CallTimeout,
	})

	s.service.session = session.NewService(session.Config{
		Store:    s.infra.store,
		EventBus: s.eb,
	})

	s.service.score = score.NewService(score.Config{
		Store:    s.infra.store,
		EventBus: s.eb,
		Engine: grading.NewEngine(
			grading.WithShortAnswerThreshold(s.c.Grading.ShortAnswerThreshold),
			grading.WithRevealAnswers(s.c.Grading.RevealAnswers),
		),
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())

	api.New(api.Config{
		HTTP:         e,
		GRPC:         s.grpc,
		EventBus:     s.eb,
		Generation:   s.service.generation,
		Quizzes:      s.infra.store,
		Documents:    s.infra.docs,
		Session:      s.service.session,
		Score:        s.service.score,
		Leaderboard:  s.service.leaderboard,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	for name, c := range map[string]io.Closer{
		"store":             s.infra.store,
		"redis leaderboard": s.infra.redis.leaderboard,
		"redis pubsub":      s.infra.redis.pubsub,
	} {
		if err := c.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close failed", "resource", name, "error", err)
		}
	}

	slog.InfoContext(ctx, "server: shutdown completed")
	_ = s.log.Close()
}
