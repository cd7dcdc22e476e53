package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/victornm/quizforge/internal/api"
	"github.com/victornm/quizforge/internal/contextstore"
	"github.com/victornm/quizforge/internal/domain"
	"github.com/victornm/quizforge/internal/event"
	"github.com/victornm/quizforge/internal/generation"
	"github.com/victornm/quizforge/internal/leaderboard"
	"github.com/victornm/quizforge/internal/score"
	"github.com/victornm/quizforge/internal/session"
	"github.com/victornm/quizforge/internal/store"
)

const document = "Paris is the capital of France.\n\nThe Seine flows through Paris."

type staticGenerator string

func (g staticGenerator) GenerateJSON(context.Context, string, string) (string, error) {
	return string(g), nil
}

type englishDetector struct{}

func (englishDetector) Detect(string) (string, string, float64) { return "en", "English", 0.99 }

func quizJSON(t *testing.T) string {
	t.Helper()

	b, err := json.Marshal(map[string]any{
		"output_language": "en",
		"questions": []any{
			map[string]any{
				"type":          "MCQ",
				"stem":          "What is the capital of France?",
				"options":       []any{"Lyon", "Paris", "Nice", "Lille"},
				"correct_index": 1,
				"metadata": map[string]any{"sources": []any{
					map[string]any{"context_id": "c1", "quote": "Paris is the capital of France"},
				}},
			},
			map[string]any{
				"type":   "TF",
				"stem":   "The Seine flows through Paris.",
				"answer": true,
				"metadata": map[string]any{"sources": []any{
					map[string]any{"context_id": "c1", "quote": "The Seine flows through Paris"},
				}},
			},
		},
	})
	require.NoError(t, err)
	return string(b)
}

type fixture struct {
	http   http.Handler
	grpc   *grpc.Server
	eb     *event.Bus
	pubsub *redis.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	rs := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: rs.Addr(), Protocol: 2})
	t.Cleanup(func() { _ = rc.Close() })

	eb := event.NewBus()
	docs := contextstore.New(contextstore.Config{DB: st.DB()})

	gin.SetMode(gin.TestMode)
	e := gin.New()
	gs := grpc.NewServer()

	api.New(api.Config{
		HTTP:     e,
		GRPC:     gs,
		EventBus: eb,
		Generation: generation.NewService(generation.Config{
			Generator: staticGenerator(quizJSON(t)),
			Blocks:    docs,
			Store:     st,
			EventBus:  eb,
			Detector:  englishDetector{},
			Model:     "test-model",
		}),
		Quizzes:   st,
		Documents: docs,
		Session:   session.NewService(session.Config{Store: st, EventBus: eb}),
		Score:     score.NewService(score.Config{Store: st, EventBus: eb}),
		Leaderboard: leaderboard.NewService(leaderboard.Config{
			EventBus: eb,
			Redis:    rc,
			Prefix:   "test",
		}),
		Redis:        rc,
		PubsubPrefix: "test",
	})

	return &fixture{http: e, grpc: gs, eb: eb, pubsub: rc}
}

func (f *fixture) do(t *testing.T, method, path, user string, body any) (int, []byte) {
	t.Helper()

	var r *http.Request
	if body == nil {
		r = httptest.NewRequest(method, path, nil)
	} else {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		r.Header.Set("X-User-ID", user)
	}

	w := httptest.NewRecorder()
	f.http.ServeHTTP(w, r)
	return w.Code, w.Body.Bytes()
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(b, &v), string(b))
	return v
}

func (f *fixture) createQuiz(t *testing.T) domain.QuizSummary {
	t.Helper()

	code, body := f.do(t, http.MethodPut, "/v1/documents/d1", "", map[string]any{"text": document})
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, api.PutDocumentResponse{DocumentID: "d1", Chunks: 1}, decode[api.PutDocumentResponse](t, body))

	code, body = f.do(t, http.MethodPost, "/v1/quizzes", "owner", map[string]any{
		"title":         "Paris",
		"document_ids":  []string{"d1"},
		"num_questions": 2,
		"allowed_types": []string{"MCQ", "TF"},
	})
	require.Equal(t, http.StatusCreated, code, string(body))

	return decode[domain.QuizSummary](t, body)
}

func TestAPI_HTTP_QuizLifecycle(t *testing.T) {
	f := newFixture(t)

	msgs := f.subscribe(t, "test:user:u1")

	quiz := f.createQuiz(t)
	assert.Equal(t, "Paris", quiz.Title)
	assert.Equal(t, 2, quiz.QuestionCount)
	assert.Equal(t, domain.QuizStatusReady, quiz.Status)

	code, body := f.do(t, http.MethodGet, "/v1/quizzes/"+quiz.ID, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(body), "correct")

	code, body = f.do(t, http.MethodPost, "/v1/quizzes/"+quiz.ID+"/sessions", "u1", map[string]any{"shuffle": false})
	require.Equal(t, http.StatusCreated, code, string(body))
	assert.NotContains(t, string(body), "correct")
	view := decode[domain.SessionView](t, body)
	require.Len(t, view.Questions, 2)

	sessionPath := "/v1/sessions/" + view.SessionID

	code, _ = f.do(t, http.MethodGet, sessionPath, "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = f.do(t, http.MethodGet, sessionPath, "u2", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = f.do(t, http.MethodGet, sessionPath+"?user_id=u1", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, http.MethodGet, sessionPath+"/result", "u1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	var paris string
	for _, o := range view.Questions[0].Options {
		if o.Text == "Paris" {
			paris = o.ID
		}
	}

	code, body = f.do(t, http.MethodPost, sessionPath+"/submit", "u1", map[string]any{
		"answers": map[string]any{
			view.Questions[0].SessionQuestionID: paris,
			view.Questions[1].SessionQuestionID: "true",
		},
	})
	require.Equal(t, http.StatusOK, code, string(body))
	res := decode[domain.GradeResult](t, body)
	assert.Equal(t, 100.0, res.ScorePercentage)
	assert.Equal(t, "A", res.Grade.Letter)
	assert.Equal(t, 2, res.CorrectCount)

	code, body = f.do(t, http.MethodGet, sessionPath+"/result", "u1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 100.0, decode[domain.GradeResult](t, body).ScorePercentage)

	require.Eventually(t, func() bool {
		code, _ := f.do(t, http.MethodGet, "/v1/quizzes/"+quiz.ID+"/leaderboard", "", nil)
		return code == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	_, body = f.do(t, http.MethodGet, "/v1/quizzes/"+quiz.ID+"/leaderboard", "", nil)
	assert.Equal(t, domain.Leaderboard{
		QuizID:  quiz.ID,
		Entries: []domain.LeaderboardEntry{{UserID: "u1", Percentage: 100}},
	}, decode[domain.Leaderboard](t, body))

	events := map[string]bool{}
	deadline := time.After(2 * time.Second)
	for len(events) < 2 {
		select {
		case m := <-msgs:
			events[decode[api.Notification](t, []byte(m.Payload)).Event] = true
		case <-deadline:
			t.Fatalf("missing notifications, got %v", events)
		}
	}
	assert.True(t, events[domain.EventNameSessionGraded])
	assert.True(t, events[domain.EventNameLeaderboardUpdated])
}

func TestAPI_HTTP_Errors(t *testing.T) {
	f := newFixture(t)

	tests := map[string]struct {
		method string
		path   string
		user   string
		body   any
		want   int
	}{
		"unknown quiz": {
			method: http.MethodGet, path: "/v1/quizzes/missing", want: http.StatusNotFound,
		},
		"generate without documents": {
			method: http.MethodPost, path: "/v1/quizzes", user: "u1", body: map[string]any{}, want: http.StatusBadRequest,
		},
		"generate with unknown type": {
			method: http.MethodPost, path: "/v1/quizzes", user: "u1",
			body: map[string]any{"document_ids": []string{"d1"}, "allowed_types": []string{"essay"}},
			want: http.StatusBadRequest,
		},
		"generate from unknown document": {
			method: http.MethodPost, path: "/v1/quizzes", user: "u1",
			body: map[string]any{"document_ids": []string{"nope"}},
			want: http.StatusNotFound,
		},
		"empty document": {
			method: http.MethodPut, path: "/v1/documents/d1", body: map[string]any{"text": " "}, want: http.StatusBadRequest,
		},
		"session without user": {
			method: http.MethodPost, path: "/v1/quizzes/q1/sessions", body: map[string]any{}, want: http.StatusUnauthorized,
		},
		"submit to unknown session": {
			method: http.MethodPost, path: "/v1/sessions/missing/submit", user: "u1",
			body: map[string]any{"answers": map[string]any{}}, want: http.StatusNotFound,
		},
		"empty leaderboard": {
			method: http.MethodGet, path: "/v1/quizzes/q1/leaderboard", want: http.StatusNotFound,
		},
		"healthz": {
			method: http.MethodGet, path: "/healthz", want: http.StatusOK,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			code, body := f.do(t, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.want, code, string(body))
		})
	}
}

func TestAPI_HTTP_RequestRules(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/v1/quizzes", "u1", map[string]any{
		"document_ids":  []string{"d1", ""},
		"num_questions": 51,
	})
	require.Equal(t, http.StatusBadRequest, code)

	var e struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "document_ids[1] is required; num_questions must be at most 50", e.Message)

	code, body = f.do(t, http.MethodPost, "/v1/sessions/s1/submit", "", map[string]any{"answers": map[string]any{}})
	assert.Equal(t, http.StatusUnauthorized, code, string(body))
}

func TestAPI_HTTP_MalformedBody(t *testing.T) {
	f := newFixture(t)

	r := httptest.NewRequest(http.MethodPost, "/v1/quizzes", strings.NewReader("{not json"))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.http.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "malformed request body")
}

func TestAPI_GRPC(t *testing.T) {
	f := newFixture(t)
	quiz := f.createQuiz(t)

	conn := f.dialGRPC(t)
	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-user-id", "u1")

	invoke := func(ctx context.Context, method string, in map[string]any) (map[string]any, error) {
		req, err := structpb.NewStruct(in)
		require.NoError(t, err)

		out := new(structpb.Struct)
		if err := conn.Invoke(ctx, "/quizforge.v1.QuizService/"+method, req, out); err != nil {
			return nil, err
		}
		return out.AsMap(), nil
	}

	got, err := invoke(ctx, "GetQuiz", map[string]any{"quiz_id": quiz.ID})
	require.NoError(t, err)
	assert.Equal(t, quiz.ID, got["id"])

	view, err := invoke(ctx, "CreateSession", map[string]any{"quiz_id": quiz.ID})
	require.NoError(t, err)
	sessionID, _ := view["session_id"].(string)
	require.NotEmpty(t, sessionID)
	assert.Len(t, view["questions"], 2)

	_, err = invoke(context.Background(), "GetSession", map[string]any{"session_id": sessionID, "user_id": "u2"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	res, err := invoke(ctx, "SubmitAnswers", map[string]any{"session_id": sessionID, "answers": map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res["score_percentage"])
	assert.Equal(t, "F", res["grade"].(map[string]any)["letter"])

	_, err = invoke(ctx, "GetLeaderboard", map[string]any{"quiz_id": "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = invoke(ctx, "GenerateQuiz", map[string]any{"num_questions": 1.5, "document_ids": []any{"d1"}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = invoke(ctx, "GetQuiz", map[string]any{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = invoke(context.Background(), "CreateSession", map[string]any{"quiz_id": quiz.ID})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func (f *fixture) dialGRPC(t *testing.T) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	go func() { _ = f.grpc.Serve(lis) }()
	t.Cleanup(f.grpc.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func (f *fixture) subscribe(t *testing.T, channel string) <-chan *redis.Message {
	t.Helper()

	ps := f.pubsub.Subscribe(context.Background(), channel)
	_, err := ps.Receive(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ps.Close() })

	return ps.Channel()
}
