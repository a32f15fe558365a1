package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	natsgo "github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quiz-ledger-service/internal/app"
	"quiz-ledger-service/internal/config"
	"quiz-ledger-service/internal/domain"
	"quiz-ledger-service/internal/infra/memory"
	infranats "quiz-ledger-service/internal/infra/nats"
	pgstore "quiz-ledger-service/internal/infra/postgres"
	infraredis "quiz-ledger-service/internal/infra/redis"
	"quiz-ledger-service/internal/ingest"
	transport "quiz-ledger-service/internal/transport/http"
)

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil || cfg.Log.Level == "" {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.Log.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Str("service", "quiz-ledger").Logger()
}

// runtime holds the wired services plus everything that must be closed on exit.
type runtime struct {
	services transport.Services
	redis    *redis.Client
	nats     *natsgo.Conn
	pool     *pgxpool.Pool
	db       *bun.DB

	redisFeed *infraredis.Feed
	natsFeed  *infranats.Feed
}

func (rt *runtime) Close() {
	if rt.nats != nil {
		_ = rt.nats.Drain()
	}
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	if rt.db != nil {
		_ = rt.db.Close()
	}
	if rt.pool != nil {
		rt.pool.Close()
	}
}

// consumeRemote feeds facts from other instances into the live leaderboards.
func (rt *runtime) consumeRemote(ctx context.Context, logger zerolog.Logger) {
	board := rt.services.Leaderboards
	if rt.redisFeed != nil {
		go rt.redisFeed.Consume(ctx, board.Notify)
	}
	if rt.natsFeed != nil {
		if err := rt.natsFeed.Consume(ctx, board.Notify); err != nil {
			logger.Error().Err(err).Msg("nats attempt feed unavailable")
		}
	}
}

// wire picks Postgres, Redis and NATS when configured and falls back to
// in-process stores otherwise.
func wire(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*runtime, error) {
	rt := &runtime{}
	fail := func(err error) (*runtime, error) {
		rt.Close()
		return nil, err
	}

	if cfg.Redis.URL != "" || cfg.Redis.Addr != "" {
		client, err := connectRedis(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		rt.redis = client
	}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fail(fmt.Errorf("connect postgres: %w", err))
		}
		rt.pool = pool
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		rt.db = bun.NewDB(sqldb, pgdialect.New())
	}

	if cfg.Feed.NATSURL != "" {
		conn, err := infranats.Connect(cfg.Feed.NATSURL, logger)
		if err != nil {
			return fail(err)
		}
		rt.nats = conn
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	var profiles app.ProfileResolver = memory.NewProfileDirectory(sampleProfiles())
	if rt.pool != nil {
		loader = pgstore.NewQuizLoader(rt.pool)
		profiles = pgstore.NewProfileResolver(rt.pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	lockTTL := config.TTLDuration(cfg.Attempts.LockTTL, 10*time.Second)
	sessionTTL := config.TTLDuration(cfg.Attempts.SessionTTL, 6*time.Hour)

	var (
		quizzes  app.QuizRepository
		ledgers  app.LedgerStore
		guard    app.SubmissionGuard
		sessions app.SessionRepository
	)
	switch {
	case rt.redis != nil:
		quizzes = infraredis.NewQuizRepository(rt.redis, loader, quizTTL)
		ledgers = infraredis.NewLedgerStore(rt.redis)
		guard = infraredis.NewGuard(rt.redis, lockTTL)
		sessions = infraredis.NewSessionStore(rt.redis, sessionTTL)
	default:
		quizzes = memory.NewQuizRepository(loader, quizTTL)
		ledgers = memory.NewLedgerStore()
		guard = memory.NewGuard()
		sessions = memory.NewSessionStore()
	}
	// Postgres is the system of record for ledgers whenever it is configured.
	if rt.db != nil {
		ledgers = pgstore.NewLedgerStore(rt.db)
	}

	board := app.NewLeaderboardService(quizzes, ledgers, profiles, logger)
	feed := app.FanoutFeed{board}
	if rt.redis != nil && cfg.Feed.RedisChannel != "" {
		rt.redisFeed = infraredis.NewFeed(rt.redis, cfg.Feed.RedisChannel, logger)
		feed = append(feed, rt.redisFeed)
	}
	if rt.nats != nil && cfg.Feed.NATSSubject != "" {
		rt.natsFeed = infranats.NewFeed(rt.nats, cfg.Feed.NATSSubject, logger)
		feed = append(feed, rt.natsFeed)
	}

	submissions := app.NewSubmissionService(quizzes, ledgers, guard, feed, logger)
	attempts := app.NewAttemptService(quizzes, ledgers, sessions, submissions, logger)
	rt.services = transport.Services{Submissions: submissions, Attempts: attempts, Leaderboards: board}
	return rt, nil
}

func connectRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	opts := &redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	if cfg.Redis.URL != "" {
		parsed, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// sampleQuizzes seeds the in-process loader when no database is configured.
func sampleQuizzes() map[string]domain.QuizSpec {
	return map[string]domain.QuizSpec{
		"quiz-1": {
			ID:                      "quiz-1",
			MentorID:                "mentor-1",
			Subject:                 "Arithmetic",
			PointsPerQuestion:       1,
			AllowedAttempts:         2,
			PerQuestionTimerMinutes: 5,
			Published:               true,
			Questions: []domain.Question{
				{ID: "q1", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectOption: 1},
				{ID: "q2", Prompt: "What is 3 * 3?", Options: []string{"6", "9", "12"}, CorrectOption: 1},
				{ID: "q3", Prompt: "What is 10 / 2?", Options: []string{"5", "2", "20"}, CorrectOption: 0},
			},
		},
	}
}

func sampleProfiles() map[string]ingest.Profile {
	return map[string]ingest.Profile{
		"student-1": {FirstName: "Ada", LastName: "Lovelace"},
		"student-2": {DisplayName: "Alan Turing"},
	}
}
