package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intakebot/pkg/controller"
	"intakebot/pkg/conversation"
	"intakebot/pkg/llm"
	"intakebot/pkg/oracle"
	"intakebot/pkg/persistence"
	"intakebot/pkg/proposal"
	"intakebot/pkg/ticket"
)

func newTestServer(t *testing.T) (*Server, *persistence.Archive) {
	t.Helper()
	archive, err := persistence.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = archive.Close() })

	client := llm.NewMockClient(nil, nil) // all oracle calls fall back
	o := oracle.New(client, nil, oracle.Thresholds{MinMessages: 6, FallbackMessages: 8})
	reg := conversation.NewRegistry(time.Hour, nil)
	t.Cleanup(reg.Stop)
	ctrl := controller.New(reg, o, ticket.NewMockSink(), archive, nil)
	return NewServer(ctrl, archive, nil), archive
}

func TestHandleMessagesTurn(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	body := `{"conversation_id": "c1", "user_id": "u1", "display_name": "Ana", "text": "hola"}`
	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp messageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp.Reply, "Ana")
}

func TestHandleMessagesValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	tests := []struct {
		name   string
		method string
		body   string
		code   int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"bad json", http.MethodPost, "{not json", http.StatusBadRequest},
		{"missing ids", http.MethodPost, `{"text": "hola"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/messages", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)
			assert.Equal(t, tt.code, rr.Code)
		})
	}
}

func TestHandleIntakes(t *testing.T) {
	srv, archive := newTestServer(t)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	// Empty archive answers an empty list, not null.
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/intakes", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rr.Body.String()))

	rec := conversation.NewRecord("c1:u1", conversation.Participant{UserID: "u1", DisplayName: "Ana"})
	rec.AppendMessage("hola", conversation.SenderUser)
	prop := &proposal.Proposal{Title: "Automatizar algo"}
	prop.Normalize()
	require.NoError(t, archive.ArchiveConversation(context.Background(), rec, prop, &ticket.Receipt{TicketID: "INTK-1"}))

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/intakes", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var intakes []persistence.IntakeSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &intakes))
	require.Len(t, intakes, 1)
	assert.Equal(t, "INTK-1", intakes[0].TicketID)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/intakes/c1:u1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Automatizar algo")

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/intakes/missing", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleUsageUnconfigured(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/usage", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}
