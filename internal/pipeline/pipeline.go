package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/engage-agent/internal/engine/autopost"
	"github.com/engage-agent/internal/engine/evaluate"
	"github.com/engage-agent/internal/engine/scrape"
	"github.com/engage-agent/internal/models"
	"github.com/engage-agent/pkg/logger"
)

// CycleResult aggregates one full scrape/evaluate/post cycle
type CycleResult struct {
	StartedAt  time.Time
	FinishedAt time.Time

	Discovered int
	NewItems   int
	Evaluated  int
	Approved   int
	Posted     int
	Skipped    int

	Errors []string
}

// Runner executes one full cycle for a workspace. The scheduler depends
// on this interface so tests can substitute a fake.
type Runner interface {
	RunCycle(ctx context.Context, settings *models.WorkspaceSettings) (*CycleResult, error)
}

// Pipeline chains the scrape orchestrator, evaluation runner, and
// auto-post engine. A stage's failure is collected and the remaining
// stages still run; partial progress is always kept.
type Pipeline struct {
	scraper   *scrape.Orchestrator
	evaluator *evaluate.Runner
	poster    *autopost.Engine
	log       *logger.Logger
}

// New creates a pipeline
func New(scraper *scrape.Orchestrator, evaluator *evaluate.Runner, poster *autopost.Engine, log *logger.Logger) *Pipeline {
	return &Pipeline{
		scraper:   scraper,
		evaluator: evaluator,
		poster:    poster,
		log:       log.WithComponent("pipeline"),
	}
}

// RunCycle runs scrape, evaluate, and auto-post in order
func (p *Pipeline) RunCycle(ctx context.Context, settings *models.WorkspaceSettings) (*CycleResult, error) {
	result := &CycleResult{StartedAt: time.Now()}
	log := p.log.WithWorkspace(settings.WorkspaceID)

	if scrapeResult, err := p.scraper.Run(ctx, settings); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("scrape: %v", err))
	} else {
		result.Discovered = scrapeResult.Discovered
		result.NewItems = scrapeResult.New
		result.Errors = append(result.Errors, scrapeResult.Errors...)
	}

	if evalResult, err := p.evaluator.Run(ctx, settings); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("evaluate: %v", err))
	} else {
		result.Evaluated = evalResult.Evaluated
		result.Approved = evalResult.Approved
		result.Errors = append(result.Errors, evalResult.Errors...)
	}

	if postResult, err := p.poster.Run(ctx, settings); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("autopost: %v", err))
	} else {
		result.Posted = postResult.Posted
		result.Skipped = postResult.Skipped
		result.Errors = append(result.Errors, postResult.Errors...)
	}

	result.FinishedAt = time.Now()

	log.Info().
		Int("discovered", result.Discovered).
		Int("new_items", result.NewItems).
		Int("evaluated", result.Evaluated).
		Int("approved", result.Approved).
		Int("posted", result.Posted).
		Int("errors", len(result.Errors)).
		Dur("duration", result.FinishedAt.Sub(result.StartedAt)).
		Msg("Cycle complete")

	return result, nil
}

var _ Runner = (*Pipeline)(nil)
