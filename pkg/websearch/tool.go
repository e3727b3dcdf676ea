package websearch

import (
	"context"
	"fmt"

	"github.com/pranav/chatterbox/pkg/toolexecutor"
)

// ToolName is the name the model requests the search tool by.
const ToolName = "webSearch"

// Searcher is the client surface the tool needs; satisfied by *Client.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Tool builds the webSearch tool definition around a search client.
func Tool(client Searcher) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        ToolName,
		Description: "Get or Search the latest and realtime data",
		Parameters: []toolexecutor.ToolParameter{
			{
				Name:        "query",
				Type:        "string",
				Description: "query which user is searching on",
				Required:    true,
			},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (string, error) {
			query, ok := params["query"].(string)
			if !ok {
				return "", fmt.Errorf("query must be a string")
			}

			results, err := client.Search(ctx, query)
			if err != nil {
				return "", err
			}

			return Normalize(results), nil
		},
	}
}
