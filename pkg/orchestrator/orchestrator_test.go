package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/pranav/chatterbox/pkg/completion"
	"github.com/pranav/chatterbox/pkg/session"
	"github.com/pranav/chatterbox/pkg/toolexecutor"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedCompletion replays a fixed sequence of responses.
type scriptedCompletion struct {
	script []func() (session.Message, error)
	calls  int
}

func (c *scriptedCompletion) Complete(_ context.Context, _ []session.Message, _ bool) (session.Message, error) {
	if c.calls >= len(c.script) {
		return session.Message{}, fmt.Errorf("unscripted completion call %d", c.calls)
	}
	step := c.script[c.calls]
	c.calls++
	return step()
}

func text(content string) func() (session.Message, error) {
	return func() (session.Message, error) {
		return session.Message{Role: session.RoleAssistant, Content: content}, nil
	}
}

func toolCalls(calls ...session.ToolCall) func() (session.Message, error) {
	return func() (session.Message, error) {
		return session.Message{Role: session.RoleAssistant, ToolCalls: calls}, nil
	}
}

func failWith(err error) func() (session.Message, error) {
	return func() (session.Message, error) {
		return session.Message{}, err
	}
}

func searchCall(id, query string) session.ToolCall {
	return session.ToolCall{
		ID:        id,
		Name:      "webSearch",
		Arguments: json.RawMessage(fmt.Sprintf(`{"query":%q}`, query)),
	}
}

// countingTools records every Run invocation.
type countingTools struct {
	known   map[string]bool
	outputs map[string]string
	err     error
	runs    []string
}

func newCountingTools() *countingTools {
	return &countingTools{
		known:   map[string]bool{"webSearch": true},
		outputs: map[string]string{},
	}
}

func (t *countingTools) Has(name string) bool {
	return t.known[name]
}

func (t *countingTools) Run(_ context.Context, name string, rawArgs json.RawMessage) (string, error) {
	t.runs = append(t.runs, string(rawArgs))
	if t.err != nil {
		return "", t.err
	}
	if out, ok := t.outputs[name]; ok {
		return out, nil
	}
	return "search results", nil
}

// savingStore wraps a real store and counts saves.
type savingStore struct {
	*session.Store
	saves int
}

func (s *savingStore) Save(threadID string, msgs []session.Message) error {
	s.saves++
	return s.Store.Save(threadID, msgs)
}

func setupOrchestrator(t *testing.T, client CompletionClient, tools ToolRunner) (*Orchestrator, *savingStore) {
	t.Helper()
	store := &savingStore{Store: session.New(session.Config{SystemPrompt: "be helpful"})}
	o, err := New(Config{
		Store:      store,
		Completion: client,
		Tools:      tools,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	return o, store
}

func TestNew_Validation(t *testing.T) {
	client := &scriptedCompletion{}
	tools := newCountingTools()
	store := session.New(session.Config{SystemPrompt: "x"})

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing store", Config{Completion: client, Tools: tools}},
		{"missing completion", Config{Store: store, Tools: tools}},
		{"missing tools", Config{Store: store, Completion: client}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestGenerate_RoundTrip(t *testing.T) {
	client := &scriptedCompletion{script: []func() (session.Message, error){
		text("Hello! How can I help?"),
	}}
	o, store := setupOrchestrator(t, client, newCountingTools())

	reply, err := o.Generate(context.Background(), "t1", "hi", false)

	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", reply)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, 1, store.saves)

	history := store.Load("t1")
	require.Len(t, history, 3)
	assert.Equal(t, session.RoleSystem, history[0].Role)
	assert.Equal(t, session.RoleUser, history[1].Role)
	assert.Equal(t, session.RoleAssistant, history[2].Role)
	assert.Equal(t, reply, history[2].Content)
}

func TestGenerate_ToolCallThenAnswer(t *testing.T) {
	client := &scriptedCompletion{script: []func() (session.Message, error){
		toolCalls(searchCall("call_1", "current weather Mumbai")),
		text("It is 32 degrees in Mumbai."),
	}}
	tools := newCountingTools()
	tools.outputs["webSearch"] = "32 degrees clear skies"

	o, store := setupOrchestrator(t, client, tools)

	reply, err := o.Generate(context.Background(), "t1", "weather in mumbai", true)

	require.NoError(t, err)
	assert.Equal(t, "It is 32 degrees in Mumbai.", reply)
	assert.Equal(t, 2, client.calls)
	require.Len(t, tools.runs, 1)
	assert.JSONEq(t, `{"query":"current weather Mumbai"}`, tools.runs[0])

	// The persisted turn includes the full tool exchange.
	history := store.Load("t1")
	require.Len(t, history, 5)
	assert.Equal(t, session.RoleAssistant, history[2].Role)
	require.Len(t, history[2].ToolCalls, 1)
	assert.Equal(t, session.RoleTool, history[3].Role)
	assert.Equal(t, "call_1", history[3].ToolCallID)
	assert.Equal(t, "32 degrees clear skies", history[3].Content)
}

func TestGenerate_SingleToolPerTurn(t *testing.T) {
	client := &scriptedCompletion{script: []func() (session.Message, error){
		toolCalls(
			searchCall("call_1", "first query"),
			searchCall("call_2", "second query"),
		),
		text("done"),
	}}
	tools := newCountingTools()

	o, _ := setupOrchestrator(t, client, tools)

	reply, err := o.Generate(context.Background(), "t1", "hi", true)

	require.NoError(t, err)
	assert.Equal(t, "done", reply)
	require.Len(t, tools.runs, 1)
	assert.JSONEq(t, `{"query":"first query"}`, tools.runs[0])
}

func TestGenerate_UnknownTool(t *testing.T) {
	client := &scriptedCompletion{script: []func() (session.Message, error){
		toolCalls(session.ToolCall{ID: "call_1", Name: "calculator", Arguments: json.RawMessage(`{}`)}),
	}}
	tools := newCountingTools()

	o, store := setupOrchestrator(t, client, tools)

	reply, err := o.Generate(context.Background(), "t1", "add 2+2", true)

	require.NoError(t, err)
	assert.Equal(t, "No tool access for calculator", reply)
	assert.Empty(t, tools.runs)
	assert.Equal(t, 0, store.saves)

	// The unanswered tool request is not retained.
	history := store.Load("t1")
	require.Len(t, history, 1)
	assert.Equal(t, session.RoleSystem, history[0].Role)
}

func TestGenerate_UnknownToolPreservesPriorTurns(t *testing.T) {
	client := &scriptedCompletion{script: []func() (session.Message, error){
		text("first answer"),
		toolCalls(session.ToolCall{ID: "call_1", Name: "imageGen", Arguments: json.RawMessage(`{}`)}),
	}}

	o, store := setupOrchestrator(t, client, newCountingTools())

	_, err := o.Generate(context.Background(), "t1", "hello", false)
	require.NoError(t, err)

	reply, err := o.Generate(context.Background(), "t1", "draw a cat", true)
	require.NoError(t, err)
	assert.Equal(t, "No tool access for imageGen", reply)

	// The store still holds the first completed turn only.
	history := store.Load("t1")
	require.Len(t, history, 3)
	assert.Equal(t, "first answer", history[2].Content)
}

func TestGenerate_LoopExceeded(t *testing.T) {
	script := make([]func() (session.Message, error), DefaultMaxTurns+1)
	for i := range script {
		script[i] = toolCalls(searchCall(fmt.Sprintf("call_%d", i), "again"))
	}
	client := &scriptedCompletion{script: script}

	o, store := setupOrchestrator(t, client, newCountingTools())

	_, err := o.Generate(context.Background(), "t1", "hi", true)

	assert.ErrorIs(t, err, ErrLoopExceeded)
	assert.Equal(t, DefaultMaxTurns, client.calls)
	assert.Equal(t, 0, store.saves)
}

func TestGenerate_ToolUseFailedDegrades(t *testing.T) {
	client := &scriptedCompletion{script: []func() (session.Message, error){
		failWith(fmt.Errorf("%w: 400 from provider", completion.ErrToolUseFailed)),
	}}

	o, store := setupOrchestrator(t, client, newCountingTools())

	reply, err := o.Generate(context.Background(), "t1", "hi", true)

	require.NoError(t, err)
	assert.Equal(t, DegradedReply, reply)
	assert.Equal(t, 0, store.saves)
}

func TestGenerate_OtherProviderErrorFatal(t *testing.T) {
	client := &scriptedCompletion{script: []func() (session.Message, error){
		failWith(fmt.Errorf("connection refused")),
	}}

	o, store := setupOrchestrator(t, client, newCountingTools())

	_, err := o.Generate(context.Background(), "t1", "hi", false)

	assert.Error(t, err)
	assert.Equal(t, 0, store.saves)
}

func TestGenerate_EmptyCandidateFatal(t *testing.T) {
	client := &scriptedCompletion{script: []func() (session.Message, error){
		func() (session.Message, error) {
			return session.Message{Role: session.RoleAssistant}, nil
		},
	}}

	o, store := setupOrchestrator(t, client, newCountingTools())

	_, err := o.Generate(context.Background(), "t1", "hi", false)

	assert.ErrorIs(t, err, ErrInvalidProviderResponse)
	assert.Equal(t, 0, store.saves)
}

func TestGenerate_ToolFailureFatal(t *testing.T) {
	client := &scriptedCompletion{script: []func() (session.Message, error){
		toolCalls(searchCall("call_1", "anything")),
	}}
	tools := newCountingTools()
	tools.err = fmt.Errorf("%w: webSearch: network down", toolexecutor.ErrExecutionFailed)

	o, store := setupOrchestrator(t, client, tools)

	_, err := o.Generate(context.Background(), "t1", "hi", true)

	assert.ErrorIs(t, err, toolexecutor.ErrExecutionFailed)
	assert.Equal(t, 0, store.saves)
}

func TestGenerate_MultiTurnConversation(t *testing.T) {
	client := &scriptedCompletion{script: []func() (session.Message, error){
		text("nice to meet you"),
		text("you said hello"),
	}}

	o, store := setupOrchestrator(t, client, newCountingTools())

	_, err := o.Generate(context.Background(), "t1", "hello", false)
	require.NoError(t, err)

	reply, err := o.Generate(context.Background(), "t1", "what did I say?", false)
	require.NoError(t, err)
	assert.Equal(t, "you said hello", reply)

	history := store.Load("t1")
	assert.Len(t, history, 5)
	assert.Equal(t, 2, store.saves)
}
