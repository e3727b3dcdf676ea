package toolexecutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pranav/chatterbox/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// Sentinel errors for the failure modes a caller must tell apart.
var (
	// ErrUnknownTool means the requested tool name is not registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments means the call's arguments failed to parse
	// or did not satisfy the tool's schema.
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrExecutionFailed means the tool's handler itself failed.
	ErrExecutionFailed = errors.New("tool execution failed")
)

// ToolParameter defines a parameter for a tool.
type ToolParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ToolHandler is the function signature for tool execution. The
// returned string is the normalized result text fed back to the model.
type ToolHandler func(ctx context.Context, params map[string]interface{}) (string, error)

// ToolDefinition defines a tool's metadata and handler.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
	Handler     ToolHandler     `json:"-"`
}

// Executor holds the tool registry and runs tool calls.
type Executor struct {
	mu      sync.RWMutex
	tools   map[string]*ToolDefinition
	schemas map[string]*gojsonschema.Schema
}

// New creates an empty Executor.
func New() *Executor {
	observability.EnsureRegistered()

	return &Executor{
		tools:   make(map[string]*ToolDefinition),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register adds a tool to the registry.
func (e *Executor) Register(def ToolDefinition) error {
	if err := validateDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := compileSchema(def)
	if err != nil {
		return fmt.Errorf("failed to compile schema for %s: %w", def.Name, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.tools[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}

	e.tools[def.Name] = &def
	e.schemas[def.Name] = schema

	log.Info().Str("tool", def.Name).Msg("Tool registered")

	return nil
}

// Has reports whether a tool name is registered.
func (e *Executor) Has(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, ok := e.tools[name]
	return ok
}

// Definitions returns the registered tools in name order, for
// declaring them to the completion provider.
func (e *Executor) Definitions() []ToolDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(e.tools))
	for _, def := range e.tools {
		defs = append(defs, *def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

	return defs
}

// Run executes one tool call. rawArgs is the provider's JSON-encoded
// argument payload; it is decoded and validated against the tool's
// schema before dispatch.
func (e *Executor) Run(ctx context.Context, name string, rawArgs json.RawMessage) (string, error) {
	start := time.Now()

	e.mu.RLock()
	tool := e.tools[name]
	schema := e.schemas[name]
	e.mu.RUnlock()

	if tool == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	params, err := decodeArguments(schema, rawArgs)
	if err != nil {
		observability.RecordToolExecution(name, time.Since(start), false)
		log.Error().Str("tool", name).Err(err).Msg("Tool argument validation failed")
		return "", err
	}

	log.Debug().Str("tool", name).Msg("Executing tool")

	output, err := tool.Handler(ctx, params)
	duration := time.Since(start)
	observability.RecordToolExecution(name, duration, err == nil)

	if err != nil {
		log.Error().Str("tool", name).Dur("duration", duration).Err(err).Msg("Tool execution failed")
		return "", fmt.Errorf("%w: %s: %v", ErrExecutionFailed, name, err)
	}

	log.Debug().Str("tool", name).Dur("duration", duration).Msg("Tool execution completed")

	return output, nil
}

// decodeArguments parses and schema-validates a raw argument payload,
// producing the typed map handlers receive. It never hands an
// unvalidated structure onward.
func decodeArguments(schema *gojsonschema.Schema, rawArgs json.RawMessage) (map[string]interface{}, error) {
	if len(rawArgs) == 0 {
		rawArgs = json.RawMessage(`{}`)
	}

	var params map[string]interface{}
	if err := json.Unmarshal(rawArgs, &params); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidArguments, strings.Join(details, "; "))
	}

	return params, nil
}

func validateDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}
	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		switch param.Type {
		case "string", "number", "integer", "boolean", "array", "object":
		default:
			return fmt.Errorf("parameter %s has unsupported type %q", param.Name, param.Type)
		}
	}
	return nil
}

func compileSchema(def ToolDefinition) (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(SchemaObject(def)))
}

// SchemaObject renders a tool's parameters as a JSON-schema object,
// shared by argument validation and the provider tool declaration.
func SchemaObject(def ToolDefinition) map[string]interface{} {
	properties := make(map[string]interface{}, len(def.Parameters))
	required := []string{}

	for _, param := range def.Parameters {
		properties[param.Name] = map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Required {
			required = append(required, param.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}
