// Package contextstore keeps document text as ordered chunks and serves them as numbered,
// citeable context blocks.
package contextstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/victornm/quizforge/internal/domain"
	"github.com/victornm/quizforge/internal/errors"
)

const (
	defaultMaxChunkRunes = 800
	// maxBlocks bounds the context handed to one generation request.
	maxBlocks = 64
)

type Config struct {
	DB *sql.DB
	// MaxChunkRunes is the soft size limit of one chunk.
	MaxChunkRunes int
}

type Store struct {
	db       *sql.DB
	maxRunes int
}

func New(c Config) *Store {
	if c.MaxChunkRunes <= 0 {
		c.MaxChunkRunes = defaultMaxChunkRunes
	}

	return &Store{db: c.DB, maxRunes: c.MaxChunkRunes}
}

// PutDocument replaces the chunks of a document with the chunks of text. It returns the number of
// chunks stored.
func (s *Store) PutDocument(ctx context.Context, documentID, text string) (n int, err error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return 0, errors.InvalidArgument("document id is required")
	}

	chunks := Chunk(text, s.maxRunes)
	if len(chunks) == 0 {
		return 0, errors.InvalidArgument("document %s has no text", documentID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback())
		}
	}()

	const (
		delStmt = `DELETE FROM context_chunks WHERE document_id = $1;`
		insStmt = `INSERT INTO context_chunks (document_id, position, text, created_at) VALUES ($1, $2, $3, $4);`
	)

	if _, err = tx.ExecContext(ctx, delStmt, documentID); err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}

	now := time.Now().UnixMilli()
	for i, c := range chunks {
		if _, err = tx.ExecContext(ctx, insStmt, documentID, i, c, now); err != nil {
			return 0, fmt.Errorf("insert chunk: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	return len(chunks), nil
}

// Blocks returns the chunks of the documents, in the order the documents are given, numbered
// c1..cn. Unknown documents contribute nothing.
func (s *Store) Blocks(ctx context.Context, documentIDs []string) ([]domain.ContextBlock, error) {
	const stmt = `SELECT text FROM context_chunks WHERE document_id = $1 ORDER BY position;`

	var blocks []domain.ContextBlock
	seen := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		texts, err := s.chunks(ctx, stmt, id)
		if err != nil {
			return nil, err
		}

		for _, t := range texts {
			if len(blocks) == maxBlocks {
				return blocks, nil
			}
			blocks = append(blocks, domain.ContextBlock{
				ID:   fmt.Sprintf("c%d", len(blocks)+1),
				Text: t,
			})
		}
	}

	return blocks, nil
}

func (s *Store) chunks(ctx context.Context, stmt, documentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, stmt, documentID)
	if err != nil {
		return nil, fmt.Errorf("select chunks: %w", err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		texts = append(texts, t)
	}

	return texts, rows.Err()
}

// Chunk splits text into paragraphs and packs consecutive paragraphs into chunks of at most
// maxRunes runes. A paragraph longer than maxRunes is split at word boundaries.
func Chunk(text string, maxRunes int) []string {
	var (
		chunks []string
		cur    strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}

	for _, para := range paragraphs(text) {
		for _, piece := range splitLong(para, maxRunes) {
			if cur.Len() > 0 && utf8.RuneCountInString(cur.String())+1+utf8.RuneCountInString(piece) > maxRunes {
				flush()
			}
			if cur.Len() > 0 {
				cur.WriteString("\n")
			}
			cur.WriteString(piece)
		}
	}
	flush()

	return chunks
}

func paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			out = append(out, p)
		}
	}

	return out
}

func splitLong(para string, maxRunes int) []string {
	if utf8.RuneCountInString(para) <= maxRunes {
		return []string{para}
	}

	var (
		out []string
		cur []string
		n   int
	)
	for _, w := range strings.Fields(para) {
		l := utf8.RuneCountInString(w)
		if n > 0 && n+1+l > maxRunes {
			out = append(out, strings.Join(cur, " "))
			cur, n = nil, 0
		}
		if n > 0 {
			n++
		}
		cur = append(cur, w)
		n += l
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}

	return out
}
