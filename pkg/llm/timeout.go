package llm

import (
	"context"
	"time"
)

// TimeoutMiddleware returns a middleware that applies a per-request timeout.
// Oracle calls are the only suspension points in a turn; a bounded timeout
// guarantees a turn degrades to its fallback instead of blocking the user.
func TimeoutMiddleware(duration time.Duration) Middleware {
	return func(next Client) Client {
		return WrapClient(
			func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
				timeoutCtx, cancel := context.WithTimeout(ctx, duration)
				defer cancel()
				return next.Complete(timeoutCtx, req)
			},
			func() string {
				return next.ModelName()
			},
		)
	}
}

// LoggingMiddleware returns a middleware that debug-logs request shape and
// outcome. Content is logged only at debug level to keep transcripts out of
// normal logs.
func LoggingMiddleware(logger interface {
	Debug(format string, args ...any)
	Warn(format string, args ...any)
},
) Middleware {
	return func(next Client) Client {
		return WrapClient(
			func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
				start := time.Now()
				resp, err := next.Complete(ctx, req)
				if err != nil {
					logger.Warn("completion failed after %v (model=%s): %v", time.Since(start), next.ModelName(), err)
					return resp, err
				}
				logger.Debug("completion ok in %v (model=%s, messages=%d, reply_chars=%d)",
					time.Since(start), next.ModelName(), len(req.Messages), len(resp.Content))
				return resp, nil
			},
			func() string {
				return next.ModelName()
			},
		)
	}
}
