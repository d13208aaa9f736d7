// Package ticket submits confirmed proposals to the downstream ticket system.
package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"intakebot/pkg/conversation"
	"intakebot/pkg/logx"
	"intakebot/pkg/proposal"
)

// Receipt identifies a filed ticket.
type Receipt struct {
	TicketID  string `json:"ticket_id"`
	TicketURL string `json:"ticket_url,omitempty"`
}

// Sink files a confirmed proposal. Submit returns an error when the ticket
// could not be created; callers treat that as retryable by the user.
type Sink interface {
	Submit(ctx context.Context, rec *conversation.Record, prop *proposal.Proposal) (*Receipt, error)
	Name() string
}

// submission is the wire payload sent to the ticket system: the full
// conversation travels with the proposal so the ticket is reviewable on its
// own.
type submission struct {
	ConversationID string                   `json:"conversation_id"`
	Reporter       conversation.Participant `json:"reporter"`
	Transcript     []conversation.Message   `json:"transcript"`
	Proposal       *proposal.Proposal       `json:"proposal"`
	CreatedAt      time.Time                `json:"created_at"`
}

// HTTPSink posts proposals as JSON to a ticket system endpoint.
type HTTPSink struct {
	endpoint string
	token    string
	client   *http.Client
	logger   *logx.Logger
}

// NewHTTPSink creates a sink for the given endpoint. token may be empty.
func NewHTTPSink(endpoint, token string) *HTTPSink {
	return &HTTPSink{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logx.NewLogger("ticket"),
	}
}

// Name identifies the sink in logs and metrics.
func (s *HTTPSink) Name() string { return "http" }

// Submit posts the proposal. Non-2xx responses and malformed reply bodies are
// errors; the caller keeps the conversation open so the user can retry.
func (s *HTTPSink) Submit(ctx context.Context, rec *conversation.Record, prop *proposal.Proposal) (*Receipt, error) {
	payload, err := json.Marshal(submission{
		ConversationID: rec.ID,
		Reporter:       rec.Participant,
		Transcript:     rec.Messages(),
		Proposal:       prop,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("ticket submission failed: %v", err)
		return nil, fmt.Errorf("ticket submission failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error("ticket system returned %d: %s", resp.StatusCode, truncate(string(body), 200))
		return nil, fmt.Errorf("ticket system returned status %d", resp.StatusCode)
	}

	var receipt Receipt
	if err := json.Unmarshal(body, &receipt); err != nil || receipt.TicketID == "" {
		s.logger.Error("ticket system returned malformed receipt: %s", truncate(string(body), 200))
		return nil, fmt.Errorf("ticket system returned malformed receipt")
	}

	s.logger.Info("filed ticket %s for %s", receipt.TicketID, rec.ID)
	return &receipt, nil
}

// MockSink fabricates receipts without touching any external system. Used in
// mock mode and the chat CLI.
type MockSink struct {
	logger *logx.Logger
}

// NewMockSink creates a mock sink.
func NewMockSink() *MockSink {
	return &MockSink{logger: logx.NewLogger("ticket")}
}

// Name identifies the sink in logs and metrics.
func (s *MockSink) Name() string { return "mock" }

// Submit returns a fabricated receipt. It never fails.
func (s *MockSink) Submit(_ context.Context, rec *conversation.Record, _ *proposal.Proposal) (*Receipt, error) {
	id := fmt.Sprintf("TICK-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	s.logger.Info("mock ticket %s for %s", id, rec.ID)
	return &Receipt{TicketID: id}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
