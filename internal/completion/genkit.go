package completion

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/taurimind/server/internal/log"
	"github.com/taurimind/server/internal/model"
)

// errStreamStopped signals that the consumer stopped iterating; it aborts
// the underlying generation without being reported as a failure.
var errStreamStopped = errors.New("stream consumer stopped")

// Genkit is the production Streamer backed by a Genkit instance with the
// Ollama (local) and Google AI (hosted) plugins registered.
type Genkit struct {
	g       *genkit.Genkit
	limiter *rate.Limiter // optional, proactive upstream rate limiting
	logger  log.Logger
}

// NewGenkit creates a Genkit-backed streamer. limiter may be nil to disable
// rate limiting.
func NewGenkit(g *genkit.Genkit, limiter *rate.Limiter, logger log.Logger) *Genkit {
	return &Genkit{g: g, limiter: limiter, logger: logger.With("component", "completion")}
}

// QualifiedName maps a model ref to the provider-qualified Genkit model name.
func QualifiedName(ref model.Ref) string {
	switch ref.Provider {
	case model.ProviderLocal:
		return "ollama/" + ref.Name
	default:
		return "googleai/" + ref.Name
	}
}

// Stream implements Streamer. Fragments are yielded from the model's
// streaming callback; the iterator owns the Generate call, so dropping the
// iterator aborts generation.
func (s *Genkit) Stream(ctx context.Context, ref model.Ref, history []Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				yield("", fmt.Errorf("rate limiter: %w", err))
				return
			}
		}

		_, err := genkit.Generate(ctx, s.g,
			ai.WithModelName(QualifiedName(ref)),
			ai.WithMessages(toGenkitMessages(history)...),
			ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
				for _, part := range chunk.Content {
					if part.Text == "" {
						continue
					}
					if err := ctx.Err(); err != nil {
						return err
					}
					if !yield(part.Text, nil) {
						return errStreamStopped
					}
				}
				return nil
			}),
		)
		if err != nil && !errors.Is(err, errStreamStopped) {
			s.logger.Error("generation failed", "model", ref.Name, "error", err)
			yield("", fmt.Errorf("generate: %w", err))
		}
	}
}

func toGenkitMessages(history []Message) []*ai.Message {
	msgs := make([]*ai.Message, 0, len(history))
	for _, m := range history {
		part := ai.NewTextPart(m.Content)
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, ai.NewSystemMessage(part))
		case RoleAssistant:
			msgs = append(msgs, ai.NewModelMessage(part))
		default:
			msgs = append(msgs, ai.NewUserMessage(part))
		}
	}
	return msgs
}
