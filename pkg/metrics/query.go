package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// UsageSummary is aggregated oracle usage, optionally scoped to one task.
type UsageSummary struct {
	Task             string `json:"task,omitempty"`
	Requests         int64  `json:"requests"`
	Fallbacks        int64  `json:"fallbacks"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	TotalTokens      int64  `json:"total_tokens"`
}

// QueryService queries aggregated usage from a Prometheus server scraping
// this bot's /metrics endpoint.
type QueryService struct {
	client   api.Client
	queryAPI v1.API
}

// NewQueryService creates a usage query service against the given Prometheus URL.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		client:   client,
		queryAPI: v1.NewAPI(client),
	}, nil
}

// GetUsage returns total oracle usage across all tasks.
func (q *QueryService) GetUsage(ctx context.Context) (*UsageSummary, error) {
	summary := &UsageSummary{}

	requests, err := q.scalar(ctx, `sum(oracle_requests_total)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query oracle requests: %w", err)
	}
	summary.Requests = requests

	fallbacks, err := q.scalar(ctx, `sum(oracle_fallbacks_total)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fallbacks: %w", err)
	}
	summary.Fallbacks = fallbacks

	prompt, err := q.scalar(ctx, `sum(oracle_tokens_total{type="prompt"})`)
	if err != nil {
		return nil, fmt.Errorf("failed to query prompt tokens: %w", err)
	}
	summary.PromptTokens = prompt

	completion, err := q.scalar(ctx, `sum(oracle_tokens_total{type="completion"})`)
	if err != nil {
		return nil, fmt.Errorf("failed to query completion tokens: %w", err)
	}
	summary.CompletionTokens = completion
	summary.TotalTokens = summary.PromptTokens + summary.CompletionTokens

	return summary, nil
}

// GetUsageByTask returns usage broken down per oracle task (readiness,
// proposal, feedback, next_question).
func (q *QueryService) GetUsageByTask(ctx context.Context) (map[string]*UsageSummary, error) {
	result := make(map[string]*UsageSummary)

	tasksResult, _, err := q.queryAPI.Query(ctx, `group by (task) (oracle_requests_total)`, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	var tasks []string
	if vector, ok := tasksResult.(model.Vector); ok {
		for _, sample := range vector {
			if task, ok := sample.Metric["task"]; ok {
				tasks = append(tasks, string(task))
			}
		}
	}

	for _, task := range tasks {
		summary := &UsageSummary{Task: task}

		requests, err := q.scalar(ctx, fmt.Sprintf(`sum(oracle_requests_total{task=%q})`, task))
		if err != nil {
			return nil, fmt.Errorf("failed to query requests for task %s: %w", task, err)
		}
		summary.Requests = requests

		fallbacks, err := q.scalar(ctx, fmt.Sprintf(`sum(oracle_fallbacks_total{task=%q})`, task))
		if err != nil {
			return nil, fmt.Errorf("failed to query fallbacks for task %s: %w", task, err)
		}
		summary.Fallbacks = fallbacks

		prompt, err := q.scalar(ctx, fmt.Sprintf(`sum(oracle_tokens_total{task=%q, type="prompt"})`, task))
		if err != nil {
			return nil, fmt.Errorf("failed to query prompt tokens for task %s: %w", task, err)
		}
		summary.PromptTokens = prompt

		completion, err := q.scalar(ctx, fmt.Sprintf(`sum(oracle_tokens_total{task=%q, type="completion"})`, task))
		if err != nil {
			return nil, fmt.Errorf("failed to query completion tokens for task %s: %w", task, err)
		}
		summary.CompletionTokens = completion
		summary.TotalTokens = summary.PromptTokens + summary.CompletionTokens

		result[task] = summary
	}

	return result, nil
}

func (q *QueryService) scalar(ctx context.Context, query string) (int64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return 0, err
	}
	if vector, ok := result.(model.Vector); ok && len(vector) > 0 {
		return int64(vector[0].Value), nil
	}
	return 0, nil
}
