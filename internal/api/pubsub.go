package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizforge/internal/domain"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	SessionGraded struct {
		SessionID       string       `json:"session_id"`
		QuizID          string       `json:"quiz_id"`
		TotalScore      float64      `json:"total_score"`
		MaxScore        float64      `json:"max_score"`
		ScorePercentage float64      `json:"score_percentage"`
		Grade           domain.Grade `json:"grade"`
	}
)

// PublishSessionGraded notifies the owner of a session about its grade.
func (a *API) PublishSessionGraded(ctx context.Context, e domain.EventSessionGraded) error {
	r := e.Result

	return a.publishNotification(ctx, e.Session.UserID, e.Name(), SessionGraded{
		SessionID:       r.SessionID,
		QuizID:          r.QuizID,
		TotalScore:      r.TotalScore,
		MaxScore:        r.MaxScore,
		ScorePercentage: r.ScorePercentage,
		Grade:           r.Grade,
	})
}

// PublishLeaderboardUpdated sends the new leaderboard to every user listed on it.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	l := e.Leaderboard

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, entry := range l.Entries {
		eg.Go(func() error {
			return a.publishNotification(ctx, entry.UserID, e.Name(), l)
		})
	}

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, user, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, fmt.Sprintf("%s:user:%s", a.prefix, user), b).Err()
}
