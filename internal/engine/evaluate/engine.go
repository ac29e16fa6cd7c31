package evaluate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/engage-agent/internal/models"
	"github.com/engage-agent/internal/oracle"
	"github.com/engage-agent/pkg/logger"
)

// Profile is everything about the tenant the engine folds into a prompt
type Profile struct {
	Description  string
	CustomPrompt string
	Competitors  []string
	Tones        []string
	ToneHints    []string
}

// Result is the engine's structured verdict for one piece of content
type Result struct {
	Relevant                   bool
	Score                      int
	SuggestedReply             string
	Tone                       string
	Reasoning                  string
	CompetitorMentioned        string
	CompetitorSentiment        string
	CompetitorOpportunityScore int
	Variations                 []models.ReplyVariation
}

// Engine turns raw content into a scored, toned reply candidate via the
// AI oracle
type Engine struct {
	oracle *oracle.Oracle
	log    *logger.Logger
}

// New creates an evaluation engine
func New(o *oracle.Oracle, log *logger.Logger) *Engine {
	return &Engine{
		oracle: o,
		log:    log.WithComponent("evaluate"),
	}
}

// Evaluate builds the prompt, runs the oracle, and parses the verdict.
// Unparseable output fails soft: relevant=false, score=0, raw snippet
// preserved in Reasoning. Only transport failure returns an error.
func (e *Engine) Evaluate(ctx context.Context, content string, profile Profile) (*Result, error) {
	prompt := BuildPrompt(content, profile)

	response, err := e.oracle.Run(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	return e.parse(response), nil
}

// BuildPrompt assembles the evaluation prompt. A custom prompt fully
// replaces the structured one and forces single-reply mode.
func BuildPrompt(content string, profile Profile) string {
	if profile.CustomPrompt != "" {
		return profile.CustomPrompt + fmt.Sprintf(customPromptContent, content, singleReplyFormat)
	}

	var b strings.Builder
	fmt.Fprintf(&b, evaluationPromptHeader, profile.Description, content)

	if len(profile.Competitors) > 0 {
		fmt.Fprintf(&b, competitorSection, strings.Join(profile.Competitors, ", "))
	}

	if len(profile.ToneHints) > 0 {
		b.WriteString(toneHintsHeader)
		for _, hint := range profile.ToneHints {
			b.WriteString("\n- " + hint)
		}
		b.WriteString("\n")
	}

	if len(profile.Tones) > 0 {
		fmt.Fprintf(&b, variationsFormat, strings.Join(profile.Tones, ", "))
	} else {
		b.WriteString(singleReplyFormat)
	}

	return b.String()
}

// rawVerdict mirrors the oracle's JSON contract. Pointer fields detect
// which required keys were actually present.
type rawVerdict struct {
	Relevant                   *bool                   `json:"relevant"`
	Score                      *float64                `json:"score"`
	SuggestedReply             string                  `json:"suggestedReply"`
	Tone                       string                  `json:"tone"`
	Reasoning                  string                  `json:"reasoning"`
	CompetitorMentioned        string                  `json:"competitorMentioned"`
	CompetitorSentiment        string                  `json:"competitorSentiment"`
	CompetitorOpportunityScore float64                 `json:"competitorOpportunityScore"`
	Variations                 []models.ReplyVariation `json:"variations"`
}

// parse tolerates direct JSON and JSON embedded in prose or markdown
// fencing. It never fails: malformed output yields the soft verdict.
func (e *Engine) parse(response string) *Result {
	extracted := extractJSON(response)

	var raw rawVerdict
	if err := json.Unmarshal([]byte(extracted), &raw); err != nil || raw.Relevant == nil || raw.Score == nil {
		e.log.Warn().
			Str("snippet", snippet(response)).
			Msg("Oracle response not parseable, treating as not relevant")
		return &Result{
			Relevant:  false,
			Score:     0,
			Reasoning: "unparseable oracle output: " + snippet(response),
		}
	}

	score := clampScore(*raw.Score)
	return &Result{
		Relevant:                   *raw.Relevant,
		Score:                      score,
		SuggestedReply:             raw.SuggestedReply,
		Tone:                       raw.Tone,
		Reasoning:                  raw.Reasoning,
		CompetitorMentioned:        raw.CompetitorMentioned,
		CompetitorSentiment:        raw.CompetitorSentiment,
		CompetitorOpportunityScore: clampScore(raw.CompetitorOpportunityScore),
		Variations:                 raw.Variations,
	}
}

// extractJSON slices out the first well-formed JSON object from a
// response that may wrap it in prose or markdown fencing
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	startIdx := strings.Index(response, "{")
	if startIdx == -1 {
		return response
	}
	endIdx := strings.LastIndex(response, "}")
	if endIdx == -1 || endIdx < startIdx {
		return response
	}
	return response[startIdx : endIdx+1]
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200]
	}
	return s
}

func clampScore(score float64) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(score)
}

// ShouldAutoApprove decides approval from the verdict and the platform's
// configured threshold. Deterministic: relevant and score at or above
// the threshold.
func ShouldAutoApprove(result *Result, threshold int) bool {
	return result.Relevant && result.Score >= threshold
}

// IsOpportunity flags a competitor-opportunity: a negative mention whose
// opportunity score clears the tenant's alert threshold.
func IsOpportunity(result *Result, alertThreshold int) bool {
	return result.CompetitorOpportunityScore >= alertThreshold &&
		result.CompetitorSentiment == "negative"
}
