// Package leaderboard ranks the users of a quiz by their best graded percentage.
package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizforge/internal/domain"
	"github.com/victornm/quizforge/internal/errors"
	"github.com/victornm/quizforge/internal/event"
)

const (
	defaultPublishInterval = 200 * time.Millisecond
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
	// PublishInterval is the minimum gap between two leaderboard.updated events of a quiz.
	// Defaults to 200ms.
	PublishInterval time.Duration
}

type Service struct {
	eb       *event.Bus
	redis    redis.UniversalClient
	prefix   string
	interval time.Duration
}

func NewService(c Config) *Service {
	s := &Service{
		eb:       c.EventBus,
		redis:    c.Redis,
		prefix:   c.Prefix,
		interval: c.PublishInterval,
	}
	if s.interval <= 0 {
		s.interval = defaultPublishInterval
	}

	s.eb.Subscribe(domain.EventNameSessionGraded, func(ctx context.Context, e event.Event) error {
		return s.RecordResult(ctx, e.(domain.EventSessionGraded))
	})

	return s
}

type GetLeaderboardRequest struct {
	QuizID string
}

// GetLeaderboard returns every user who has submitted a session of the quiz, best percentage first.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.getLeaderboardKey(req.QuizID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("leaderboard not found: quiz=%s", req.QuizID))
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:     z.Member.(string),
			Percentage: z.Score,
		})
	}

	return &domain.Leaderboard{
		QuizID:  req.QuizID,
		Entries: entries,
	}, nil
}

// RecordResult keeps the better of the user's stored and newly graded percentage.
func (s *Service) RecordResult(ctx context.Context, e domain.EventSessionGraded) error {
	quizID := e.Session.QuizID

	if err := s.redis.ZAddGT(ctx, s.getLeaderboardKey(quizID), redis.Z{
		Score:  e.Result.ScorePercentage,
		Member: e.Session.UserID,
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, quizID, e.Result.GradedAt)
}

// schedulePublishLeaderboard publishes at most one leaderboard.updated per quiz and publish interval.
// The SETNX guard is shared through Redis, so it also holds across service instances. An update
// that lands inside the window leaves a pending marker, flushed by the instance that opened it.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, quizID string, at time.Time) error {
	ok, err := s.redis.SetNX(ctx, s.getLeaderboardTimeKey(quizID), at.UnixMilli(), s.interval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		if err := s.redis.Set(ctx, s.getLeaderboardPendingKey(quizID), at.UnixMilli(), 2*s.interval).Err(); err != nil {
			return fmt.Errorf("mark pending: %w", err)
		}
		return nil
	}

	return s.publishLeaderboard(ctx, quizID)
}

func (s *Service) publishLeaderboard(ctx context.Context, quizID string) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{QuizID: quizID})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: quiz=%s: %w", quizID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	time.AfterFunc(s.interval, func() { s.publishPending(quizID) })
	return nil
}

// publishPending runs at the end of a window and publishes once more if updates were throttled
// during it.
func (s *Service) publishPending(quizID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := func() error {
		n, err := s.redis.Del(ctx, s.getLeaderboardPendingKey(quizID)).Result()
		if err != nil || n == 0 {
			return err
		}

		if err := s.redis.Set(ctx, s.getLeaderboardTimeKey(quizID), time.Now().UnixMilli(), s.interval).Err(); err != nil {
			return fmt.Errorf("reopen window: %w", err)
		}

		return s.publishLeaderboard(ctx, quizID)
	}()
	if err != nil {
		slog.ErrorContext(ctx, "leaderboard: publish pending update failed", "quiz_id", quizID, "error", err)
	}
}

func (s *Service) getLeaderboardKey(quizID string) string {
	return fmt.Sprintf("%s:quiz:%s:leaderboard", s.prefix, quizID)
}

func (s *Service) getLeaderboardTimeKey(quizID string) string {
	return fmt.Sprintf("%s:quiz:%s:time", s.prefix, quizID)
}

func (s *Service) getLeaderboardPendingKey(quizID string) string {
	return fmt.Sprintf("%s:quiz:%s:pending", s.prefix, quizID)
}
