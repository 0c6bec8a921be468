// Package sparse turns free text into weighted sparse term vectors using a
// masked-language-model scorer: log1p(relu(activation)) per position and
// vocabulary term, padding positions zeroed by the attention mask, then max
// aggregation across positions.
package sparse

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/kxddry/wikirag/internal/domain"
)

// DefaultMaxTokens bounds scorer input length; text beyond it is truncated
// by the backend tokenizer.
const DefaultMaxTokens = 512

// weightPrecision is the number of decimal places kept per weight. Rounding
// bounds index size and suppresses floating-point noise.
const weightPrecision = 1e4

// TermScores is the raw scorer output for one input text: one row per input
// position, holding the raw activation for every vocabulary term the model
// scored at that position, keyed by surface token.
type TermScores struct {
	Rows []PositionScores
}

// PositionScores holds the activations produced at a single input position.
// Attention is the attention-mask value for the position; rows with
// Attention == 0 are padding and contribute nothing.
type PositionScores struct {
	Attention int
	Scores    map[string]float64
}

// Scorer produces per-position vocabulary activations for a text. The input
// is truncated to maxTokens by the backend tokenizer.
type Scorer interface {
	Score(ctx context.Context, text string, maxTokens int) (*TermScores, error)
}

// Encoder aggregates scorer activations into a sparse term vector.
type Encoder struct {
	scorer    Scorer
	maxTokens int
}

// NewEncoder creates an Encoder over the given scorer backend.
func NewEncoder(scorer Scorer, maxTokens int) *Encoder {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Encoder{scorer: scorer, maxTokens: maxTokens}
}

// Encode converts text to a sparse vector. For every vocabulary term the
// weight is max over positions of log1p(relu(activation)); only strictly
// positive weights survive. Token keys are sanitized for the index
// field-naming scheme and weights rounded to four decimal places.
// Encoding the same text twice yields an identical vector.
func (e *Encoder) Encode(ctx context.Context, text string) (domain.SparseVector, error) {
	scores, err := e.scorer.Score(ctx, text, e.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("score text: %w", err)
	}

	agg := make(map[string]float64)
	for _, row := range scores.Rows {
		if row.Attention == 0 {
			continue
		}
		for token, raw := range row.Scores {
			w := math.Log1p(math.Max(raw, 0))
			if w > agg[token] {
				agg[token] = w
			}
		}
	}

	vec := make(domain.SparseVector, len(agg))
	for token, w := range agg {
		r := math.Round(w*weightPrecision) / weightPrecision
		if r <= 0 {
			continue
		}
		safe := SanitizeToken(token)
		// Sanitization can collapse distinct tokens onto one key; keep the max.
		if r > vec[safe] {
			vec[safe] = r
		}
	}
	return vec, nil
}

// SanitizeToken rewrites characters the index reserves in rank-feature field
// names. Elasticsearch rank_features keys cannot contain dots.
func SanitizeToken(token string) string {
	return strings.ReplaceAll(token, ".", "_")
}
