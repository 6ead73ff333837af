package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/baodantech/design-review-backend/internal/types"
)

var (
	ErrNoUsableReferences = errors.New("no usable reference images")
	ErrNoUsableCandidates = errors.New("no usable candidates")
)

// SubmittedCandidate ties a scorer-visible candidate back to its 0-based
// position in the full candidate sequence.
type SubmittedCandidate struct {
	Position int
	URL      string
}

// Submission is the ordered image set sent to the scorer: references
// first, then candidates. The scorer addresses candidates by 1-based
// position within the candidate subsequence only.
type Submission struct {
	References []string
	Candidates []SubmittedCandidate
}

// BuildSubmission filters out excluded references, then keeps candidates
// that are not excluded and either have no recorded check result or passed
// it. An uploaded-URL override (keyed by 1-based position) wins over the
// candidate's original URL.
func BuildSubmission(
	refs []string,
	excludedRefs []int,
	candidates []types.DesignCandidate,
	excludedCandidates []int,
	checks map[int]types.CheckResult,
	overrides map[int]string,
) (Submission, error) {
	var sub Submission
	for i, url := range refs {
		if ContainsIndex(excludedRefs, i) {
			continue
		}
		if strings.TrimSpace(url) == "" {
			continue
		}
		sub.References = append(sub.References, url)
	}
	if len(sub.References) == 0 {
		return Submission{}, ErrNoUsableReferences
	}
	for i, cand := range candidates {
		if ContainsIndex(excludedCandidates, i) {
			continue
		}
		if res, ok := checks[i]; ok && !res.Pass {
			continue
		}
		url := cand.URL
		if override, ok := overrides[i+1]; ok && strings.TrimSpace(override) != "" {
			url = override
		}
		if strings.TrimSpace(url) == "" {
			continue
		}
		sub.Candidates = append(sub.Candidates, SubmittedCandidate{Position: i, URL: url})
	}
	if len(sub.Candidates) == 0 {
		return Submission{}, ErrNoUsableCandidates
	}
	return sub, nil
}

// ImageURLs returns references followed by candidates, the exact order the
// scorer sees.
func (s Submission) ImageURLs() []string {
	out := make([]string, 0, len(s.References)+len(s.Candidates))
	out = append(out, s.References...)
	for _, c := range s.Candidates {
		out = append(out, c.URL)
	}
	return out
}

const promptTemplate = `You are reviewing AI-generated product design candidates against the original product images.
The first %d image(s) are the original reference images. The following %d image(s) are design candidates, numbered 1 to %d in order.
Score each candidate from 0.0 to 1.0 on how faithfully it preserves the product's structure, pattern and proportions from the references while improving presentation quality.
Respond with JSON only, in this exact shape:
{"scores":[{"index":1,"score":0.0,"reason":""}],"best_index":1,"overall_reason":"","need_regenerate":false,"prompt_suggestion":""}
Set need_regenerate to true and fill prompt_suggestion only if no candidate is usable.`

// RenderPrompt tells the scorer how many references and candidates it is
// looking at and pins the structured output shape.
func RenderPrompt(refCount, candCount int) string {
	return fmt.Sprintf(promptTemplate, refCount, candCount, candCount)
}

type ScoreEntry struct {
	Index  int     `json:"index"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// ScorerOutcome is the parsed structured response.
type ScorerOutcome struct {
	Scores           []ScoreEntry `json:"scores"`
	BestIndex        int          `json:"best_index"`
	OverallReason    string       `json:"overall_reason"`
	NeedRegenerate   bool         `json:"need_regenerate"`
	PromptSuggestion string       `json:"prompt_suggestion"`
}

// wire mirrors ScorerOutcome with float fields because vision models
// frequently emit indices as 1.0.
type scorerWire struct {
	Scores []struct {
		Index  float64 `json:"index"`
		Score  float64 `json:"score"`
		Reason string  `json:"reason"`
	} `json:"scores"`
	BestIndex        float64 `json:"best_index"`
	OverallReason    string  `json:"overall_reason"`
	NeedRegenerate   bool    `json:"need_regenerate"`
	PromptSuggestion string  `json:"prompt_suggestion"`
}

// ParseScorerOutcome extracts the JSON object from a possibly fenced or
// chatty model reply.
func ParseScorerOutcome(raw string) (*ScorerOutcome, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("scorer response has no JSON object: %q", truncate(raw, 200))
	}
	var wire scorerWire
	if err := json.Unmarshal([]byte(raw[start:end+1]), &wire); err != nil {
		return nil, fmt.Errorf("parse scorer response: %w", err)
	}
	out := &ScorerOutcome{
		BestIndex:        int(wire.BestIndex),
		OverallReason:    wire.OverallReason,
		NeedRegenerate:   wire.NeedRegenerate,
		PromptSuggestion: wire.PromptSuggestion,
	}
	for _, s := range wire.Scores {
		out.Scores = append(out.Scores, ScoreEntry{Index: int(s.Index), Score: s.Score, Reason: s.Reason})
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// MaxScore returns the highest reported score, or 0 when none were
// reported.
func MaxScore(scores []ScoreEntry) float64 {
	max := 0.0
	for _, s := range scores {
		if s.Score > max {
			max = s.Score
		}
	}
	return max
}

// ApplyThreshold forces regeneration when the best reported score falls
// below the threshold, regardless of the scorer's own flag, and
// synthesizes a prompt suggestion if the scorer did not supply one.
func ApplyThreshold(outcome *ScorerOutcome, threshold float64) {
	max := MaxScore(outcome.Scores)
	if max >= threshold {
		return
	}
	outcome.NeedRegenerate = true
	if strings.TrimSpace(outcome.PromptSuggestion) == "" {
		outcome.PromptSuggestion = fmt.Sprintf(
			"Highest candidate score %.2f is below the %.2f threshold; regenerate with closer adherence to the reference images' product structure and pattern.",
			max, threshold)
	}
}

// ResolveBest maps the scorer's 1-based best index back to a submitted
// candidate, falling back to the first submitted candidate when the index
// is out of range.
func ResolveBest(sub Submission, bestIndex int) SubmittedCandidate {
	if bestIndex >= 1 && bestIndex <= len(sub.Candidates) {
		return sub.Candidates[bestIndex-1]
	}
	return sub.Candidates[0]
}
