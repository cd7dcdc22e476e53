package contextstore_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizforge/internal/contextstore"
	"github.com/victornm/quizforge/internal/domain"
	"github.com/victornm/quizforge/internal/errors"
	"github.com/victornm/quizforge/internal/store"
)

func newStore(t *testing.T, maxRunes int) *contextstore.Store {
	t.Helper()

	st, err := store.Open(context.Background(), store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return contextstore.New(contextstore.Config{DB: st.DB(), MaxChunkRunes: maxRunes})
}

func TestChunk(t *testing.T) {
	tests := map[string]struct {
		text     string
		maxRunes int
		want     []string
	}{
		"empty text": {
			text:     " \n\n  ",
			maxRunes: 100,
			want:     nil,
		},
		"short paragraphs are packed together": {
			text:     "First   paragraph.\n\nSecond\nparagraph.",
			maxRunes: 100,
			want:     []string{"First paragraph.\nSecond paragraph."},
		},
		"paragraphs that do not fit start a new chunk": {
			text:     "aaaa bbbb\n\ncccc dddd",
			maxRunes: 12,
			want:     []string{"aaaa bbbb", "cccc dddd"},
		},
		"long paragraph is split at words": {
			text:     "one two three four five",
			maxRunes: 9,
			want:     []string{"one two", "three", "four five"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, contextstore.Chunk(tt.text, tt.maxRunes))
		})
	}
}

func TestStore_Blocks(t *testing.T) {
	t.Parallel()

	s := newStore(t, 40)
	ctx := context.Background()

	n, err := s.PutDocument(ctx, "d1", "Paris is the capital of France.\n\nThe Seine flows through Paris.")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.PutDocument(ctx, "d2", "Photosynthesis makes glucose.")
	require.NoError(t, err)

	blocks, err := s.Blocks(ctx, []string{"d2", "missing", "d1", "d2"})
	require.NoError(t, err)
	assert.Equal(t, []domain.ContextBlock{
		{ID: "c1", Text: "Photosynthesis makes glucose."},
		{ID: "c2", Text: "Paris is the capital of France."},
		{ID: "c3", Text: "The Seine flows through Paris."},
	}, blocks)
}

func TestStore_PutDocumentReplaces(t *testing.T) {
	t.Parallel()

	s := newStore(t, 0)
	ctx := context.Background()

	_, err := s.PutDocument(ctx, "d1", strings.Repeat("old text. ", 3))
	require.NoError(t, err)
	_, err = s.PutDocument(ctx, "d1", "new text")
	require.NoError(t, err)

	blocks, err := s.Blocks(ctx, []string{"d1"})
	require.NoError(t, err)
	assert.Equal(t, []domain.ContextBlock{{ID: "c1", Text: "new text"}}, blocks)

	_, err = s.PutDocument(ctx, "d1", "   ")
	assert.True(t, errors.HasCode(err, errors.CodeInvalidArgument))

	_, err = s.PutDocument(ctx, " ", "text")
	assert.True(t, errors.HasCode(err, errors.CodeInvalidArgument))
}
