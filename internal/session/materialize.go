package session

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/victornm/quizforge/internal/domain"
	"github.com/victornm/quizforge/internal/shuffle"
)

var tfOptions = []domain.PublicOption{
	{ID: "true", Text: "True"},
	{ID: "false", Text: "False"},
}

// Materialize builds the questions of a session from a canonical quiz. The seed is derived from
// the session id, so the same id always yields the same question and option order. With
// shuffleOn, the question order is permuted first, then the options of each MCQ in display order.
func Materialize(quiz *domain.Quiz, sessionID string, shuffleOn bool) (int64, []domain.SessionQuestion, error) {
	seed := shuffle.SeedFromID(sessionID)
	rnd := shuffle.New(seed)

	n := len(quiz.Batch.Questions)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if shuffleOn {
		order = rnd.Perm(n)
	}

	qs := make([]domain.SessionQuestion, 0, n)
	for display, src := range order {
		q := quiz.Batch.Questions[src]

		sq := domain.SessionQuestion{
			ID:           questionID(sessionID, display),
			SessionID:    sessionID,
			DisplayIndex: display,
			Type:         q.Type,
			Stem:         q.Stem,
			Citations:    append([]domain.Source(nil), q.Metadata.Sources...),
			Points:       q.MaxPoints(),
			SourceIndex:  src,
		}

		var err error
		switch q.Type {
		case domain.QuestionTypeMCQ:
			sq.Options, sq.Private, err = materializeChoice(q, rnd, shuffleOn)
		case domain.QuestionTypeTF:
			if q.Answer == nil {
				err = fmt.Errorf("missing answer")
				break
			}
			sq.Options = append([]domain.PublicOption(nil), tfOptions...)
			sq.Private = domain.TFKey{Answer: *q.Answer}
		case domain.QuestionTypeFIB:
			accepted := make([][]string, 0, len(q.Blanks))
			for _, b := range q.Blanks {
				accepted = append(accepted, append([]string(nil), b.Accepted...))
			}
			sq.BlankCount = len(q.Blanks)
			sq.Private = domain.FIBKey{Accepted: accepted}
		case domain.QuestionTypeSA:
			if q.Rubric == nil {
				err = fmt.Errorf("missing rubric")
				break
			}
			sq.Private = domain.SARubric{
				KeyPoints: append([]domain.KeyPoint(nil), q.Rubric.KeyPoints...),
				Threshold: q.Rubric.Threshold,
				MinWords:  q.Rubric.MinWords,
			}
		default:
			err = fmt.Errorf("unknown type %q", q.Type)
		}
		if err != nil {
			return 0, nil, fmt.Errorf("materialize question %d: %w", src+1, err)
		}

		qs = append(qs, sq)
	}

	return seed, qs, nil
}

// materializeChoice returns the public options and the private key of an MCQ. Unshuffled options
// keep their canonical ids; shuffled ones get anonymous ids drawn from rnd.
func materializeChoice(q domain.Question, rnd *shuffle.Rand, shuffleOn bool) ([]domain.PublicOption, domain.PrivatePayload, error) {
	if len(q.Options) == 0 {
		return nil, nil, fmt.Errorf("no options")
	}

	correct := CorrectOptionIDs(q)

	opts := append([]domain.Option(nil), q.Options...)
	ids := make(map[string]string, len(opts))
	if shuffleOn {
		rnd.Shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })

		used := make(map[string]bool, len(opts))
		for _, o := range opts {
			id := mintOptionID(rnd)
			for used[id] {
				id = mintOptionID(rnd)
			}
			used[id] = true
			ids[o.ID] = id
		}
	} else {
		for _, o := range opts {
			ids[o.ID] = o.ID
		}
	}

	public := make([]domain.PublicOption, 0, len(opts))
	key := domain.MCQKey{OptionText: make(map[string]string, len(opts))}
	for _, o := range opts {
		public = append(public, domain.PublicOption{ID: ids[o.ID], Text: o.Text})
		key.OptionText[ids[o.ID]] = o.Text
	}
	for _, id := range correct {
		key.CorrectIDs = append(key.CorrectIDs, ids[id])
	}

	return public, key, nil
}

// CorrectOptionIDs resolves the correct options of an MCQ: options flagged correct and the
// explicit id list first, then CorrectIndex, then the first option.
func CorrectOptionIDs(q domain.Question) []string {
	known := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		known[o.ID] = true
	}

	var ids []string
	seen := make(map[string]bool)
	add := func(id string) {
		if known[id] && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, o := range q.Options {
		if o.Correct {
			add(o.ID)
		}
	}
	for _, id := range q.CorrectOptionIDs {
		add(id)
	}
	if len(ids) > 0 {
		return ids
	}

	if q.CorrectIndex != nil && *q.CorrectIndex >= 0 && *q.CorrectIndex < len(q.Options) {
		return []string{q.Options[*q.CorrectIndex].ID}
	}

	if len(q.Options) > 0 {
		return []string{q.Options[0].ID}
	}
	return nil
}

func mintOptionID(rnd *shuffle.Rand) string {
	return fmt.Sprintf("o_%08x", uint32(rnd.Uint64()))
}

func questionID(sessionID string, display int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("quizforge:"+sessionID+":"+strconv.Itoa(display))).String()
}
