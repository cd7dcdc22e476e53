package domain

const (
	EventNameQuizGenerated      = "quiz.generated"
	EventNameSessionCreated     = "session.created"
	EventNameSessionGraded      = "session.graded"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventQuizGenerated struct {
	Quiz Quiz
}

func (EventQuizGenerated) Name() string { return EventNameQuizGenerated }

type EventSessionCreated struct {
	Session Session
}

func (EventSessionCreated) Name() string { return EventNameSessionCreated }

type EventSessionGraded struct {
	Session Session
	Result  GradeResult
}

func (EventSessionGraded) Name() string { return EventNameSessionGraded }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
