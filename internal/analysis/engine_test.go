package analysis

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/nykw2002/elements/config"
	"github.com/nykw2002/elements/internal/cache"
	"github.com/nykw2002/elements/internal/llm"
)

// fakeProvider replays canned chat replies and produces keyword-based
// embeddings so similarity is deterministic.
type fakeProvider struct {
	replies    []string
	chatCalls  [][]llm.Message
	embedCalls int
	embedFn    func(text string) []float32
}

func (p *fakeProvider) CompleteChat(_ context.Context, messages []llm.Message, _ float64, _ int) (string, error) {
	p.chatCalls = append(p.chatCalls, messages)
	if len(p.replies) == 0 {
		return "", io.ErrUnexpectedEOF
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]
	return reply, nil
}

func (p *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.embedCalls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if p.embedFn != nil {
			out[i] = p.embedFn(t)
		} else {
			out[i] = []float32{1, 0}
		}
	}
	return out, nil
}

// fakeExecutor returns canned results and records the scripts it was given.
type fakeExecutor struct {
	results []ExecutionResult
	scripts []string
}

func (e *fakeExecutor) Execute(_ context.Context, script, _ string) ExecutionResult {
	e.scripts = append(e.scripts, script)
	if len(e.results) == 0 {
		return ExecutionResult{Success: true}
	}
	res := e.results[0]
	e.results = e.results[1:]
	return res
}

func testEngine(p *fakeProvider, ex *fakeExecutor) *Engine {
	cfg := config.AnalysisConfig{}.Normalize()
	llmCfg := config.LLMConfig{}.Normalize()
	return New(p, ex, nil, cfg, llmCfg, log.New(io.Discard, "", 0))
}

func TestAnalyzeUnknownMethod(t *testing.T) {
	eng := testEngine(&fakeProvider{}, &fakeExecutor{})
	if _, err := eng.Analyze(context.Background(), Query{Prompt: "count things", Method: "direct", Content: "x"}); err == nil {
		t.Fatal("expected error for unrunnable method")
	}
	if _, err := eng.Analyze(context.Background(), Query{Method: MethodExtraction, Content: "x"}); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}

func TestExtractionDoneFirstIteration(t *testing.T) {
	p := &fakeProvider{replies: []string{
		"```python\nprint(3)\n```",
		"DONE: There are 3 complaints from Israel",
	}}
	ex := &fakeExecutor{results: []ExecutionResult{{Success: true, Stdout: "3\n"}}}
	eng := testEngine(p, ex)

	answer, err := eng.Analyze(context.Background(), Query{
		Prompt:  "How many complaints are from Israel?",
		Method:  MethodExtraction,
		Content: "complaint Israel\ncomplaint Israel\ncomplaint Israel\ncomplaint Germany",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !strings.Contains(answer, "3") {
		t.Fatalf("expected answer to contain the count, got %q", answer)
	}
	if len(ex.scripts) != 1 {
		t.Fatalf("expected 1 script execution got %d", len(ex.scripts))
	}
	if strings.Contains(ex.scripts[0], "```") {
		t.Fatalf("code fences reached the executor: %q", ex.scripts[0])
	}
}

func TestExtractionContinueRetriesWithHint(t *testing.T) {
	p := &fakeProvider{replies: []string{
		"print(broken",
		"CONTINUE: syntax error, regenerate",
		"print('ok')",
		"DONE: fixed on retry",
	}}
	ex := &fakeExecutor{results: []ExecutionResult{
		{Success: false, Stderr: "SyntaxError"},
		{Success: true, Stdout: "ok\n"},
	}}
	eng := testEngine(p, ex)

	answer, err := eng.Analyze(context.Background(), Query{Prompt: "count", Method: MethodExtraction, Content: "data"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if answer != "fixed on retry" {
		t.Fatalf("unexpected answer %q", answer)
	}
	// Second generation prompt must carry the retry hint.
	secondGen := p.chatCalls[2]
	if !strings.Contains(secondGen[0].Content, "different approach") {
		t.Fatalf("expected retry hint in regenerated prompt, got %q", secondGen[0].Content)
	}
	// The classifier on the retry iteration sees the same nudged prompt.
	secondDecision := p.chatCalls[3]
	if !strings.Contains(secondDecision[0].Content, "different approach") {
		t.Fatalf("expected retry hint in decision prompt, got %q", secondDecision[0].Content)
	}
}

func TestExtractionExhaustsIterations(t *testing.T) {
	p := &fakeProvider{replies: []string{
		"s1", "CONTINUE: more",
		"s2", "CONTINUE: more",
		"s3", "CONTINUE: more",
	}}
	ex := &fakeExecutor{}
	eng := testEngine(p, ex)

	answer, err := eng.Analyze(context.Background(), Query{Prompt: "count", Method: MethodExtraction, Content: "data"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if answer != "Analysis completed after maximum iterations" {
		t.Fatalf("unexpected answer %q", answer)
	}
	if len(ex.scripts) != 3 {
		t.Fatalf("expected exactly 3 script generations got %d", len(ex.scripts))
	}
}

func TestExtractionUnclearStopsImmediately(t *testing.T) {
	p := &fakeProvider{replies: []string{
		"s1", "hmm, not sure what happened",
	}}
	ex := &fakeExecutor{}
	eng := testEngine(p, ex)

	answer, err := eng.Analyze(context.Background(), Query{Prompt: "count", Method: MethodExtraction, Content: "data"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if answer != "Analysis completed after maximum iterations" {
		t.Fatalf("unexpected answer %q", answer)
	}
	if len(ex.scripts) != 1 {
		t.Fatalf("expected loop to stop after 1 iteration, ran %d", len(ex.scripts))
	}
}

func TestExtractionPrefersDetailedOutput(t *testing.T) {
	stdout := "record 1\nrecord 2\nrecord 3\nrecord 4\nrecord 5\nrecord 6\nrecord 7\n"
	p := &fakeProvider{replies: []string{
		"script",
		"DONE: seven records found",
	}}
	ex := &fakeExecutor{results: []ExecutionResult{{Success: true, Stdout: stdout}}}
	eng := testEngine(p, ex)

	answer, err := eng.Analyze(context.Background(), Query{Prompt: "list records", Method: MethodExtraction, Content: "data"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if answer != stdout {
		t.Fatalf("expected raw itemized output, got %q", answer)
	}
}

func TestLooksDetailed(t *testing.T) {
	if looksDetailed("short answer") {
		t.Fatal("plain sentence should not be detailed")
	}
	if !looksDetailed("Detailed list of complaints: none") {
		t.Fatal("list+detailed keywords should be detailed")
	}
	if !looksDetailed("- a\n- b\n- c\n- d") {
		t.Fatal("bulleted output should be detailed")
	}
}

func TestReasoningGroundsAnswerInRetrievedChunks(t *testing.T) {
	// Two topical regions; the query embedding matches the second.
	israel := strings.Repeat("israel complaint record ", 100)
	germany := strings.Repeat("germany shipment record ", 100)
	p := &fakeProvider{
		replies: []string{"Based on the context, there are 3 complaints."},
		embedFn: func(text string) []float32 {
			if strings.Contains(strings.ToLower(text), "israel") {
				return []float32{1, 0}
			}
			return []float32{0, 1}
		},
	}
	eng := testEngine(p, &fakeExecutor{})

	answer, err := eng.Analyze(context.Background(), Query{
		Prompt:  "How many complaints are from Israel?",
		Method:  MethodReasoning,
		Content: israel + "\n" + germany,
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if answer == "" {
		t.Fatal("expected an answer")
	}
	if p.embedCalls != 2 {
		t.Fatalf("expected chunk + query embedding calls, got %d", p.embedCalls)
	}
	// Grounded prompt must carry retrieved context ahead of the question.
	final := p.chatCalls[len(p.chatCalls)-1]
	user := final[len(final)-1].Content
	if !strings.Contains(user, "CONTEXT:") || !strings.Contains(user, "israel") {
		t.Fatalf("expected matching context in grounded prompt, got %q", user)
	}
}

func TestReasoningCacheHitSkipsChunkEmbedding(t *testing.T) {
	content := strings.Repeat("complaint record line ", 50)
	p := &fakeProvider{replies: []string{"answer one", "answer two"}}
	c, err := cache.NewDisk(t.TempDir(), log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	eng := New(p, &fakeExecutor{}, c, config.AnalysisConfig{}.Normalize(), config.LLMConfig{}.Normalize(), log.New(io.Discard, "", 0))

	q := Query{Prompt: "summarize", Method: MethodReasoning, Content: content}
	if _, err := eng.Analyze(context.Background(), q); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if p.embedCalls != 2 {
		t.Fatalf("first run: expected 2 embed calls got %d", p.embedCalls)
	}

	if _, err := eng.Analyze(context.Background(), q); err != nil {
		t.Fatalf("second run: %v", err)
	}
	// Chunk vectors come from the cache; only the query is re-embedded.
	if p.embedCalls != 3 {
		t.Fatalf("second run: expected 1 additional embed call, total %d", p.embedCalls)
	}
}

func TestReasoningEmptyDocument(t *testing.T) {
	eng := testEngine(&fakeProvider{}, &fakeExecutor{})
	if _, err := eng.Analyze(context.Background(), Query{Prompt: "q", Method: MethodReasoning, Content: "   "}); err == nil {
		t.Fatal("expected error for empty document")
	}
}
