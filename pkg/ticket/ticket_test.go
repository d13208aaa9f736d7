package ticket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intakebot/pkg/conversation"
	"intakebot/pkg/proposal"
)

func testRecord() *conversation.Record {
	rec := conversation.NewRecord("conv:user", conversation.Participant{
		UserID:      "user",
		DisplayName: "Ana García",
		Email:       "ana@example.com",
	})
	rec.AppendMessage("quiero automatizar la facturación", conversation.SenderUser)
	return rec
}

func TestHTTPSinkSubmit(t *testing.T) {
	var gotAuth string
	var gotBody submission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ticket_id":"INTK-42","ticket_url":"https://tickets/INTK-42"}`))
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, "secret-token")
	receipt, err := sink.Submit(context.Background(), testRecord(), &proposal.Proposal{Title: "Automate invoicing"})
	require.NoError(t, err)

	assert.Equal(t, "INTK-42", receipt.TicketID)
	assert.Equal(t, "https://tickets/INTK-42", receipt.TicketURL)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "Automate invoicing", gotBody.Proposal.Title)
	assert.Equal(t, "Ana García", gotBody.Reporter.DisplayName)
	assert.Equal(t, "conv:user", gotBody.ConversationID)
	require.Len(t, gotBody.Transcript, 1)
	assert.Equal(t, "quiero automatizar la facturación", gotBody.Transcript[0].Content)
	assert.Equal(t, conversation.SenderUser, gotBody.Transcript[0].Sender)
}

func TestHTTPSinkNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, "")
	receipt, err := sink.Submit(context.Background(), testRecord(), &proposal.Proposal{})
	assert.Error(t, err)
	assert.Nil(t, receipt)
}

func TestHTTPSinkMalformedReceiptIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected":"shape"}`))
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, "")
	_, err := sink.Submit(context.Background(), testRecord(), &proposal.Proposal{})
	assert.Error(t, err)
}

func TestMockSinkNeverFails(t *testing.T) {
	sink := NewMockSink()
	receipt, err := sink.Submit(context.Background(), testRecord(), &proposal.Proposal{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(receipt.TicketID, "TICK-"))

	other, err := sink.Submit(context.Background(), testRecord(), &proposal.Proposal{})
	require.NoError(t, err)
	assert.NotEqual(t, receipt.TicketID, other.TicketID)
}
