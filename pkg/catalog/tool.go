package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/axonworks/advisor-go/pkg/core"
	"github.com/axonworks/advisor-go/pkg/llm"
)

// ToolName is the name the model uses to call the search.
const ToolName = "searchModels"

const toolDescription = "Search the Hugging Face model catalog for pre-trained models. " +
	"Use it once the user's use case is understood to recommend concrete models, " +
	"optionally filtered by ML task. Results are sorted by downloads."

// ToolResult is what the model sees after calling the search tool. Failures
// are reported in Error so the model can explain them instead of the stream
// aborting.
type ToolResult struct {
	Models         []Model `json:"models,omitempty"`
	Recommendation string  `json:"recommendation,omitempty"`
	Summary        string  `json:"summary"`
	Error          string  `json:"error,omitempty"`
}

// Schema returns the JSON schema of the tool arguments.
func Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Free-text search, e.g. \"fraud detection\" or \"sentiment\".",
			},
			"task": map[string]interface{}{
				"type":        "string",
				"enum":        Tasks,
				"description": "Optional ML task filter.",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"minimum":     1,
				"maximum":     MaxLimit,
				"description": fmt.Sprintf("Number of models to return (default %d).", DefaultLimit),
			},
		},
		"required": []string{"query"},
	}
	data, _ := json.Marshal(schema)
	return data
}

// Tool returns the tool definition backed by c.
func (c *Client) Tool() llm.Tool {
	return llm.Tool{
		Name:        ToolName,
		Description: toolDescription,
		Parameters:  Schema(),
		Execute:     c.Handle,
	}
}

// Handle decodes the model's arguments and runs the search. It never returns
// an error; failures become a ToolResult with Error set.
func (c *Client) Handle(ctx context.Context, arguments json.RawMessage) (interface{}, error) {
	var in SearchInput
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &in); err != nil {
			return ToolResult{
				Error:   fmt.Sprintf("invalid arguments: %v", err),
				Summary: "The search arguments could not be read. Provide a JSON object with a \"query\" string.",
			}, nil
		}
	}

	result, err := c.Search(ctx, in)
	if err != nil {
		return failure(err), nil
	}

	return ToolResult{
		Models:         result.Models,
		Recommendation: result.Recommendation,
		Summary:        summarize(in, result),
	}, nil
}

func failure(err error) ToolResult {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		return ToolResult{
			Error:   err.Error(),
			Summary: "The search request was invalid. Fix the arguments and try again.",
		}
	case errors.Is(err, core.ErrTransport):
		log.Printf("Warning: model search failed: %v", err)
		return ToolResult{
			Error:   "model catalog unavailable",
			Summary: "The model catalog could not be reached. Recommend models from general knowledge instead.",
		}
	default:
		log.Printf("Warning: model search failed: %v", err)
		return ToolResult{
			Error:   "model search failed",
			Summary: "The model search failed unexpectedly.",
		}
	}
}

func summarize(in SearchInput, result *SearchResult) string {
	if len(result.Models) == 0 {
		return result.Recommendation
	}
	ids := make([]string, 0, len(result.Models))
	for _, m := range result.Models {
		ids = append(ids, m.ID)
	}
	return fmt.Sprintf("Found %d models for %q: %s. %s",
		len(result.Models), in.Query, strings.Join(ids, ", "), result.Recommendation)
}
