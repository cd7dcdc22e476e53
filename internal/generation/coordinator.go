package generation

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/victornm/quizforge/internal/domain"
	"github.com/victornm/quizforge/internal/errors"
	"github.com/victornm/quizforge/internal/telemetry"
	"github.com/victornm/quizforge/internal/validation"
)

const defaultCallTimeout = 60 * time.Second

// Generator returns text containing a JSON object for a pair of prompts.
type Generator interface {
	GenerateJSON(ctx context.Context, system, user string) (string, error)
}

// Request carries everything needed to validate a raw batch and, when needed, ask for a
// corrected one.
type Request struct {
	AllowedTypes []domain.QuestionType
	Blocks       []domain.ContextBlock
	SystemPrompt string
	UserPrompt   string
}

// Coordinator validates generated batches and repairs them by re-prompting. Every failure class
// gets at most one repair call, so a request issues at most three of them.
type Coordinator struct {
	v           *validation.Validator
	gen         Generator
	callTimeout time.Duration
}

func NewCoordinator(v *validation.Validator, gen Generator, callTimeout time.Duration) *Coordinator {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}

	return &Coordinator{
		v:           v,
		gen:         gen,
		callTimeout: callTimeout,
	}
}

// ValidateAndRepair returns the first batch passing every check together with the repairs it
// took to get there. A class failing again after its repair is fatal.
func (c *Coordinator) ValidateAndRepair(ctx context.Context, raw string, req Request) (*domain.QuestionBatch, []domain.RepairAttempt, error) {
	var (
		repairs  []domain.RepairAttempt
		repaired = make(map[validation.Class]bool, 3)
	)

	for {
		batch, err := c.v.Validate(raw, req.AllowedTypes, req.Blocks)
		if err == nil {
			return batch, repairs, nil
		}

		var f validation.Failure
		if !stderrors.As(err, &f) {
			return nil, repairs, errors.Internal(err)
		}

		if repaired[f.Class()] {
			slog.WarnContext(ctx, "generation: repair did not help",
				"class", f.Class(),
				"reason", f.Reason(),
			)
			return nil, repairs, errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("could not produce a valid quiz: %s", f.Reason()),
				errors.WithCause(err),
			)
		}
		repaired[f.Class()] = true

		attempt := domain.RepairAttempt{Class: string(f.Class()), Reason: validation.Summary(f)}
		repairs = append(repairs, attempt)
		telemetry.GenerationRepairs.WithLabelValues(attempt.Class).Inc()

		slog.InfoContext(ctx, "generation: repair attempt",
			"class", attempt.Class,
			"reason", f.Reason(),
			"attempt", len(repairs),
		)

		raw, err = c.Call(ctx, req.SystemPrompt, repairPrompt(req.UserPrompt, f))
		if err != nil {
			return nil, repairs, err
		}
	}
}

// Call invokes the model once under its own timeout. Transport failures are reported as
// unavailable; a cancelled parent context is returned as is.
func (c *Coordinator) Call(ctx context.Context, system, user string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	start := time.Now()
	out, err := c.gen.GenerateJSON(callCtx, system, user)
	telemetry.ModelCallDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", errors.New(errors.CodeUnavailable,
			errors.WithMessagef("language model call failed"),
			errors.WithCause(err),
		)
	}

	return out, nil
}

func repairPrompt(user string, f validation.Failure) string {
	var sb strings.Builder
	sb.WriteString(user)
	sb.WriteString("\n\nYour previous answer was rejected by the ")
	sb.WriteString(string(f.Class()))
	sb.WriteString(" check:\n")
	for _, p := range f.Problems() {
		fmt.Fprintf(&sb, "- %s\n", p)
	}
	sb.WriteString("Return the complete corrected JSON object and nothing else.")

	return sb.String()
}
