package analysis

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nykw2002/elements/config"
	"github.com/nykw2002/elements/internal/cache"
	"github.com/nykw2002/elements/internal/llm"
)

// Method selects the analysis strategy for a query.
type Method string

const (
	// MethodExtraction runs the generate-execute-decide script loop. Suited
	// to counting, filtering and per-record listing over the raw document.
	MethodExtraction Method = "extraction"
	// MethodReasoning retrieves the most similar chunks and answers with a
	// single grounded completion. Suited to interpretation and comparison.
	MethodReasoning Method = "reasoning"
)

// exhaustedAnswer is returned when the extraction loop runs out of attempts
// or receives an ambiguous decision.
const exhaustedAnswer = "Analysis completed after maximum iterations"

// retryHint is appended to the working prompt after each CONTINUE so the
// next generated script takes a different approach.
const retryHint = " (Previous attempt had issues, try a different approach)"

// Query is one analysis request.
type Query struct {
	Prompt  string
	Method  Method
	Content string
}

// Engine orchestrates analysis runs. It owns no I/O of its own; the model
// gateway, script executor and embeddings cache are all injected.
type Engine struct {
	provider llm.Provider
	executor Executor
	cache    cache.Cache
	cfg      config.AnalysisConfig
	llmCfg   config.LLMConfig
	logger   *log.Logger
}

// New creates an analysis engine. cache may be nil to disable embedding
// reuse.
func New(provider llm.Provider, executor Executor, c cache.Cache, cfg config.AnalysisConfig, llmCfg config.LLMConfig, logger *log.Logger) *Engine {
	return &Engine{
		provider: provider,
		executor: executor,
		cache:    c,
		cfg:      cfg,
		llmCfg:   llmCfg,
		logger:   logger,
	}
}

// Analyze runs a query to completion and returns the answer text. The
// method selects the strategy; anything but extraction or reasoning is
// rejected.
func (e *Engine) Analyze(ctx context.Context, q Query) (string, error) {
	if strings.TrimSpace(q.Prompt) == "" {
		return "", fmt.Errorf("analysis: empty prompt")
	}
	switch q.Method {
	case MethodExtraction:
		answer, err := e.runExtraction(ctx, q)
		e.count(q.Method, err)
		return answer, err
	case MethodReasoning:
		answer, err := e.runReasoning(ctx, q)
		e.count(q.Method, err)
		return answer, err
	default:
		return "", fmt.Errorf("analysis: unknown method %q", q.Method)
	}
}

func (e *Engine) count(m Method, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	analysesTotal.WithLabelValues(string(m), outcome).Inc()
}

// runExtraction is the bounded generate-execute-decide loop. Each iteration
// asks the model for a script, executes it against the document and asks the
// model to classify the result. DONE returns an answer, CONTINUE retries
// with a nudged prompt, anything else stops the loop.
func (e *Engine) runExtraction(ctx context.Context, q Query) (string, error) {
	prompt := q.Prompt
	for iter := 1; iter <= e.cfg.MaxIterations; iter++ {
		e.logger.Printf("[ORCH] extraction iteration %d/%d", iter, e.cfg.MaxIterations)

		system, user := buildScriptMessages(prompt)
		raw, err := e.provider.CompleteChat(ctx, []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		}, e.llmCfg.Temperature, e.llmCfg.MaxTokens)
		if err != nil {
			return "", fmt.Errorf("generating script (iteration %d): %w", iter, err)
		}
		script := stripCodeFences(raw)

		res := e.executor.Execute(ctx, script, q.Content)
		if res.Success {
			e.logger.Printf("[ORCH] script succeeded, %d bytes of output", len(res.Stdout))
		} else {
			e.logger.Printf("[ORCH] script failed: %s", firstLine(res.Stderr))
		}

		reply, err := e.provider.CompleteChat(ctx, []llm.Message{
			{Role: "user", Content: buildDecisionPrompt(prompt, res)},
		}, e.llmCfg.Temperature, e.llmCfg.MaxTokens)
		if err != nil {
			return "", fmt.Errorf("classifying result (iteration %d): %w", iter, err)
		}

		decision := parseDecision(reply)
		switch decision.Kind {
		case DecisionDone:
			iterationsPerRun.Observe(float64(iter))
			if res.Success && looksDetailed(res.Stdout) {
				// Raw structured output carries more than the one-line
				// summary the classifier produced.
				return res.Stdout, nil
			}
			return decision.Text, nil
		case DecisionContinue:
			e.logger.Printf("[ORCH] continuing: %s", firstLine(decision.Text))
			prompt = prompt + retryHint
		default:
			e.logger.Printf("[ORCH] unclear decision, stopping: %s", firstLine(decision.Text))
			iterationsPerRun.Observe(float64(iter))
			return exhaustedAnswer, nil
		}
	}
	iterationsPerRun.Observe(float64(e.cfg.MaxIterations))
	return exhaustedAnswer, nil
}

// looksDetailed reports whether script output is itemized or multi-line
// enough that returning it beats returning the classifier's summary.
func looksDetailed(output string) bool {
	lower := strings.ToLower(output)
	if strings.Contains(lower, "list") && strings.Contains(lower, "detailed") {
		return true
	}
	if strings.Count(output, "\n") > 5 {
		return true
	}
	return strings.Count(output, "-") > 3
}

// runReasoning retrieves the chunks most similar to the prompt and answers
// with one grounded completion over them.
func (e *Engine) runReasoning(ctx context.Context, q Query) (string, error) {
	chunks := ChunkWords(q.Content, e.cfg.ChunkSize, e.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return "", fmt.Errorf("reasoning: document is empty")
	}

	chunkVecs, err := e.chunkEmbeddings(ctx, q.Content, chunks)
	if err != nil {
		e.logger.Printf("[ORCH] embedding chunks failed, degrading to document order: %v", err)
		chunkVecs = nil
	}

	var queryVec []float32
	if chunkVecs != nil {
		vecs, err := e.provider.Embed(ctx, []string{q.Prompt})
		if err != nil || len(vecs) == 0 {
			e.logger.Printf("[ORCH] embedding query failed, degrading to document order: %v", err)
		} else {
			queryVec = vecs[0]
		}
	}

	selected := Rank(queryVec, chunkVecs, chunks, e.cfg.TopK, e.cfg.SimilarityThreshold)
	chunksRetrieved.Observe(float64(len(selected)))

	parts := make([]string, len(selected))
	for i, c := range selected {
		parts[i] = c.Text
	}
	contextBlock := strings.Join(parts, "\n\n")

	answer, err := e.provider.CompleteChat(ctx, []llm.Message{
		{Role: "system", Content: "You are an expert analyst. Provide detailed, accurate analysis based on the provided context."},
		{Role: "user", Content: buildGroundedPrompt(q.Prompt, contextBlock)},
	}, e.llmCfg.Temperature, e.llmCfg.MaxTokens)
	if err != nil {
		return "", fmt.Errorf("grounded completion: %w", err)
	}
	return answer, nil
}

// chunkEmbeddings returns one vector per chunk, consulting the cache first.
// A hit must match the current chunking configuration or it is re-embedded.
func (e *Engine) chunkEmbeddings(ctx context.Context, content string, chunks []Chunk) ([][]float32, error) {
	key := cache.Key(content)
	if e.cache != nil {
		entry, err := e.cache.Get(ctx, key, e.cfg.ChunkSize)
		if err != nil {
			e.logger.Printf("[ORCH] cache read failed: %v", err)
		} else if entry != nil && len(entry.Embeddings) == len(chunks) {
			e.logger.Printf("[ORCH] embeddings cache hit (%d chunks)", len(chunks))
			return entry.Embeddings, nil
		}
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := e.provider.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d chunks", len(vecs), len(chunks))
	}

	if e.cache != nil {
		entry := &cache.Entry{
			Chunks:     texts,
			Embeddings: vecs,
			ChunkSize:  e.cfg.ChunkSize,
			CreatedAt:  timeNow(),
		}
		if err := e.cache.Put(ctx, key, entry); err != nil {
			e.logger.Printf("[ORCH] cache write failed: %v", err)
		}
	}
	return vecs, nil
}

var timeNow = time.Now

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
