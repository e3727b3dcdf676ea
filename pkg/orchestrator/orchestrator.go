// Package orchestrator drives the tool-calling completion loop: it
// repeatedly invokes the completion client, dispatches at most one
// tool call per iteration, feeds the result back into context, and
// persists the thread only once a terminal text answer is reached.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pranav/chatterbox/internal/observability"
	"github.com/pranav/chatterbox/pkg/completion"
	"github.com/pranav/chatterbox/pkg/session"
	"github.com/rs/zerolog"
)

// DefaultMaxTurns bounds the completion loop when the provider keeps
// requesting tools without ever producing a text answer.
const DefaultMaxTurns = 10

// DegradedReply is returned when the provider rejects a malformed tool
// call. The turn is not persisted.
const DegradedReply = "I'm having trouble processing your request. Please try rephrasing."

var (
	// ErrLoopExceeded means the iteration bound was reached without a
	// terminal text response.
	ErrLoopExceeded = errors.New("completion loop exceeded maximum iterations")

	// ErrInvalidProviderResponse means a candidate message carried
	// neither content nor tool calls.
	ErrInvalidProviderResponse = errors.New("candidate message has neither content nor tool calls")
)

// Store is the session store surface the orchestrator needs.
type Store interface {
	Load(threadID string) []session.Message
	Save(threadID string, msgs []session.Message) error
}

// CompletionClient produces one candidate message for a history.
type CompletionClient interface {
	Complete(ctx context.Context, history []session.Message, toolsEnabled bool) (session.Message, error)
}

// ToolRunner executes named tools with raw JSON arguments.
type ToolRunner interface {
	Has(name string) bool
	Run(ctx context.Context, name string, rawArgs json.RawMessage) (string, error)
}

// Config holds orchestrator dependencies.
type Config struct {
	Store      Store
	Completion CompletionClient
	Tools      ToolRunner
	MaxTurns   int
	Logger     zerolog.Logger
}

// Orchestrator runs the per-turn completion loop.
type Orchestrator struct {
	store      Store
	completion CompletionClient
	tools      ToolRunner
	maxTurns   int
	logger     zerolog.Logger

	// Per-thread locks serialize concurrent Generate calls for the
	// same thread so load/save cannot interleave.
	threadLocks map[string]*sync.Mutex
	locksMu     sync.Mutex
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	observability.EnsureRegistered()

	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Completion == nil {
		return nil, fmt.Errorf("completion client is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tool runner is required")
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	return &Orchestrator{
		store:       cfg.Store,
		completion:  cfg.Completion,
		tools:       cfg.Tools,
		maxTurns:    maxTurns,
		logger:      cfg.Logger,
		threadLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Generate runs one caller turn: it loads the thread, appends the user
// message, loops until the model produces a text answer, and persists
// the completed turn. At most one Save happens per call, and only on
// the terminal text path; every other outcome leaves the stored thread
// at its pre-turn state.
func (o *Orchestrator) Generate(ctx context.Context, threadID, userMessage string, toolsEnabled bool) (string, error) {
	start := time.Now()
	logger := o.logger.With().Str("threadId", threadID).Logger()

	lock := o.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	history := o.store.Load(threadID)
	history = append(history, session.UserMessage(userMessage))

	turns := 0
	reply, err := o.runLoop(ctx, logger, threadID, history, toolsEnabled, &turns)

	observability.RecordGenerate(time.Since(start), turns, err == nil)
	if err != nil {
		logger.Error().Err(err).Int("turns", turns).Msg("Generate failed")
		return "", err
	}

	logger.Info().Int("turns", turns).Dur("duration", time.Since(start)).Msg("Generate completed")

	return reply, nil
}

func (o *Orchestrator) runLoop(ctx context.Context, logger zerolog.Logger, threadID string, history []session.Message, toolsEnabled bool, turns *int) (string, error) {
	for turn := 0; turn < o.maxTurns; turn++ {
		*turns = turn + 1

		candidate, err := o.completion.Complete(ctx, history, toolsEnabled)
		if err != nil {
			if errors.Is(err, completion.ErrToolUseFailed) {
				// Recover locally: the caller gets a fixed apology and
				// the half-built turn is discarded.
				logger.Warn().Err(err).Msg("Provider rejected tool call shaping, degrading")
				observability.RecordDegradedReply("tool_use_failed")
				return DegradedReply, nil
			}
			return "", err
		}

		history = append(history, candidate)

		if len(candidate.ToolCalls) > 0 {
			// One tool per turn. Anything past the first is dropped.
			call := candidate.ToolCalls[0]
			if ignored := len(candidate.ToolCalls) - 1; ignored > 0 {
				logger.Warn().Int("ignored", ignored).Msg("Ignoring extra tool calls in candidate")
			}

			if !o.tools.Has(call.Name) {
				logger.Warn().Str("tool", call.Name).Msg("Unknown tool requested, discarding turn")
				observability.RecordDegradedReply("unknown_tool")
				return fmt.Sprintf("No tool access for %s", call.Name), nil
			}

			output, err := o.tools.Run(ctx, call.Name, call.Arguments)
			if err != nil {
				return "", err
			}

			history = append(history, session.ToolMessage(call.ID, call.Name, output))
			continue
		}

		if candidate.Content != "" {
			if err := o.store.Save(threadID, history); err != nil {
				return "", fmt.Errorf("failed to persist thread: %w", err)
			}
			return candidate.Content, nil
		}

		return "", ErrInvalidProviderResponse
	}

	return "", fmt.Errorf("%w (%d)", ErrLoopExceeded, o.maxTurns)
}

func (o *Orchestrator) threadLock(threadID string) *sync.Mutex {
	o.locksMu.Lock()
	defer o.locksMu.Unlock()

	if lock, exists := o.threadLocks[threadID]; exists {
		return lock
	}

	lock := &sync.Mutex{}
	o.threadLocks[threadID] = lock
	return lock
}
