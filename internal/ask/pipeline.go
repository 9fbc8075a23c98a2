package ask

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"notebook-ai/internal/assembler"
	"notebook-ai/internal/contextutil"
	"notebook-ai/internal/llm"
	"notebook-ai/internal/search"
	"notebook-ai/internal/storage"
)

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_provider.go -package=mocks notebook-ai/internal/ask Provider

// Provider is the model-call surface the pipeline depends on.
// Satisfied by llm.Client.
type Provider interface {
	ChatWithMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error)
}

const (
	subQuerySearchLimit = 5
	summaryMaxItems     = 10
	summaryMaxChars     = 160
)

// Pipeline orchestrates the three-stage ask flow: a strategy model decomposes
// the question into sub-queries, an answer model answers each over retrieved
// excerpts, and a final model synthesizes one grounded answer.
type Pipeline struct {
	provider      Provider
	engine        search.Engine
	assembler     *assembler.Assembler
	notebooks     storage.NotebookStore
	bindings      storage.BindingStore
	maxSubQueries int
	maxModelCalls int
}

// NewPipeline creates an ask pipeline. maxSubQueries caps the strategy stage's
// fan-out; maxModelCalls bounds concurrent model calls in the sub-answer stage.
func NewPipeline(
	provider Provider,
	engine search.Engine,
	ctxAssembler *assembler.Assembler,
	notebooks storage.NotebookStore,
	bindings storage.BindingStore,
	maxSubQueries int,
	maxModelCalls int,
) *Pipeline {
	if maxSubQueries < 1 {
		maxSubQueries = 1
	}
	if maxModelCalls < 1 {
		maxModelCalls = 1
	}
	return &Pipeline{
		provider:      provider,
		engine:        engine,
		assembler:     ctxAssembler,
		notebooks:     notebooks,
		bindings:      bindings,
		maxSubQueries: maxSubQueries,
		maxModelCalls: maxModelCalls,
	}
}

// Ask runs the full pipeline for one question.
// Returns storage.ErrNotFound for a missing notebook, ErrStrategy or
// ErrFinalization for stage-fatal model failures, and ErrTimeout when the
// caller-supplied timeout expires. A zero timeout fails immediately.
func (p *Pipeline) Ask(ctx context.Context, req Request) (*Response, error) {
	logger := contextutil.LoggerFromContext(ctx)

	resp := &Response{Question: req.Question, State: StateReceived}

	if req.Timeout <= 0 {
		resp.State = StateFailed
		return resp, fmt.Errorf("%w: no time budget", ErrTimeout)
	}
	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	if strings.TrimSpace(req.Question) == "" {
		resp.State = StateFailed
		return resp, fmt.Errorf("%w: empty question", ErrStrategy)
	}

	models, err := p.resolveModels(ctx)
	if err != nil {
		resp.State = StateFailed
		return resp, err
	}

	notebook, err := p.notebooks.GetByID(ctx, req.NotebookID)
	if err != nil {
		resp.State = StateFailed
		return resp, err
	}

	// Stage 1: strategy.
	queries, err := p.planStrategy(ctx, req.Question, notebook, models.strategy)
	if err != nil {
		resp.State = StateFailed
		if ctx.Err() != nil {
			return resp, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		}
		return resp, err
	}
	resp.State = StateStrategyPlanned
	logger.InfoContext(ctx, "strategy planned", "question", req.Question, "sub_queries", len(queries))

	// Stage 2: concurrent sub-answers, recorded in submission order.
	resp.SubAnswers = p.answerSubQueries(ctx, queries, models.answer)
	if ctx.Err() != nil {
		// partial sub-answers are discarded on timeout
		return &Response{Question: req.Question, State: StateFailed},
			fmt.Errorf("%w: sub-answer stage exceeded budget", ErrTimeout)
	}
	resp.State = StateSubQueriesAnswered

	// Stage 3: final synthesis.
	answer, err := p.finalize(ctx, req.Question, resp.SubAnswers, models.final)
	if err != nil {
		resp.State = StateFailed
		resp.Citations = mergeCitations(resp.SubAnswers)
		if ctx.Err() != nil {
			return &Response{Question: req.Question, State: StateFailed},
				fmt.Errorf("%w: final stage exceeded budget", ErrTimeout)
		}
		return resp, fmt.Errorf("%w: %v", ErrFinalization, err)
	}

	resp.Answer = answer
	resp.Citations = mergeCitations(resp.SubAnswers)
	resp.State = StateFinalized
	logger.InfoContext(ctx, "ask finalized",
		"question", req.Question, "sub_answers", len(resp.SubAnswers), "citations", len(resp.Citations))
	return resp, nil
}

type roleModels struct {
	strategy string
	answer   string
	final    string
}

func (p *Pipeline) resolveModels(ctx context.Context) (roleModels, error) {
	var models roleModels
	for _, role := range []struct {
		name   string
		target *string
	}{
		{storage.RoleStrategy, &models.strategy},
		{storage.RoleAnswer, &models.answer},
		{storage.RoleFinalAnswer, &models.final},
	} {
		binding, err := p.bindings.Get(ctx, role.name)
		if errors.Is(err, storage.ErrNotFound) {
			return models, fmt.Errorf("%w: no %s model configured", llm.ErrModelUnavailable, role.name)
		}
		if err != nil {
			return models, fmt.Errorf("failed to look up %s binding: %w", role.name, err)
		}
		*role.target = binding.Model
	}
	return models, nil
}

// planStrategy asks the strategy model to decompose the question and parses
// one sub-query per line, capped at maxSubQueries.
func (p *Pipeline) planStrategy(ctx context.Context, question string, notebook *storage.Notebook, model string) ([]string, error) {
	summary, err := p.notebookSummary(ctx, notebook)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStrategy, err)
	}

	prompt := fmt.Sprintf(
		"You are planning a search over a personal knowledge base.\n\n%s\nQuestion: %s\n\nDecompose the question into at most %d search queries that together cover it. Reply with one query per line and nothing else.",
		summary, question, p.maxSubQueries,
	)

	out, err := p.provider.ChatWithMessages(ctx, []llm.Message{
		{Role: "user", Content: prompt},
	}, llm.ChatParams{Model: model, Temperature: 0.2})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStrategy, err)
	}

	queries := parseQueries(out, p.maxSubQueries)
	if len(queries) == 0 {
		return nil, fmt.Errorf("%w: model returned no usable queries", ErrStrategy)
	}
	return queries, nil
}

func (p *Pipeline) notebookSummary(ctx context.Context, notebook *storage.Notebook) (string, error) {
	bundle, err := p.assembler.Assemble(ctx, notebook.ID, assembler.Config{
		MaxItems:        summaryMaxItems,
		MaxCharsPerItem: summaryMaxChars,
		IncludeSources:  true,
		IncludeNotes:    true,
		RecencyBias:     true,
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Notebook: %s\n", notebook.Name)
	if notebook.Description != "" {
		fmt.Fprintf(&b, "%s\n", notebook.Description)
	}
	if len(bundle.Excerpts) > 0 {
		b.WriteString("Contents:\n")
		for _, ex := range bundle.Excerpts {
			fmt.Fprintf(&b, "- [%s] %s\n", ex.Kind, ex.Title)
		}
	}
	return b.String(), nil
}

// answerSubQueries fans sub-queries out over a fixed worker pool and records
// results by submission index, so the final prompt sees them in submission
// order regardless of completion order.
func (p *Pipeline) answerSubQueries(ctx context.Context, queries []string, model string) []SubAnswer {
	results := make([]SubAnswer, len(queries))

	type task struct {
		idx   int
		query string
	}
	tasks := make(chan task)

	workers := p.maxModelCalls
	if workers > len(queries) {
		workers = len(queries)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				results[t.idx] = p.answerOne(ctx, t.query, model)
			}
		}()
	}
	for i, q := range queries {
		tasks <- task{idx: i, query: q}
	}
	close(tasks)
	wg.Wait()

	return results
}

// answerOne retrieves excerpts for one sub-query and asks the answer model.
// Empty retrieval, search failure, expired context, or a model failure after
// one transient retry all degrade the sub-answer instead of failing the call.
func (p *Pipeline) answerOne(ctx context.Context, query string, model string) SubAnswer {
	logger := contextutil.LoggerFromContext(ctx)
	sub := SubAnswer{Query: query}

	if ctx.Err() != nil {
		sub.Degraded = true
		return sub
	}

	results, err := p.engine.Search(ctx, query, search.ModeVector, subQuerySearchLimit,
		search.Scope{Sources: true, Notes: true})
	if err != nil || len(results) == 0 {
		if err != nil {
			logger.WarnContext(ctx, "sub-query retrieval failed", "query", query, "error", err)
		}
		sub.Degraded = true
		return sub
	}

	var b strings.Builder
	b.WriteString("Answer the question using only the excerpts below. Be concise.\n\n")
	for _, r := range results {
		fmt.Fprintf(&b, "[%s] %s\n%s\n\n", r.ItemID, r.Title, r.Excerpt)
		sub.Citations = append(sub.Citations, r.ItemID)
	}
	fmt.Fprintf(&b, "Question: %s", query)

	answer, err := p.chatWithRetry(ctx, b.String(), model)
	if err != nil {
		logger.WarnContext(ctx, "sub-answer model call failed", "query", query, "error", err)
		return SubAnswer{Query: query, Degraded: true}
	}

	sub.Answer = answer
	return sub
}

func (p *Pipeline) finalize(ctx context.Context, question string, subs []SubAnswer, model string) (string, error) {
	var b strings.Builder
	b.WriteString("Synthesize one grounded answer to the question from the intermediate answers below. Intermediate answers marked degraded had no usable material; do not invent content for them.\n\n")
	for i, sub := range subs {
		if sub.Degraded {
			fmt.Fprintf(&b, "%d. %s\n(degraded: no answer)\n\n", i+1, sub.Query)
			continue
		}
		fmt.Fprintf(&b, "%d. %s\n%s\n\n", i+1, sub.Query, sub.Answer)
	}
	fmt.Fprintf(&b, "Question: %s", question)

	return p.chatWithRetry(ctx, b.String(), model)
}

// chatWithRetry calls the provider, retrying once on a transient failure.
func (p *Pipeline) chatWithRetry(ctx context.Context, prompt string, model string) (string, error) {
	messages := []llm.Message{{Role: "user", Content: prompt}}
	params := llm.ChatParams{Model: model, Temperature: 0.2}

	out, err := p.provider.ChatWithMessages(ctx, messages, params)
	if err != nil && errors.Is(err, llm.ErrTransient) && ctx.Err() == nil {
		out, err = p.provider.ChatWithMessages(ctx, messages, params)
	}
	return out, err
}

// parseQueries extracts sub-queries from strategy output, one per line,
// stripping list markers and numbering.
func parseQueries(out string, limit int) []string {
	var queries []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• \t")
		line = strings.TrimLeftFunc(line, func(r rune) bool {
			return unicode.IsDigit(r) || r == '.' || r == ')' || r == ' '
		})
		if line == "" {
			continue
		}
		queries = append(queries, line)
		if len(queries) == limit {
			break
		}
	}
	return queries
}

// mergeCitations deduplicates citations across sub-answers by item ID,
// preserving first-appearance order.
func mergeCitations(subs []SubAnswer) []string {
	seen := make(map[string]bool)
	var merged []string
	for _, sub := range subs {
		for _, id := range sub.Citations {
			if seen[id] {
				continue
			}
			seen[id] = true
			merged = append(merged, id)
		}
	}
	return merged
}
