package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intakebot/pkg/conversation"
	"intakebot/pkg/proposal"
	"intakebot/pkg/ticket"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func completedRecord(id string) *conversation.Record {
	rec := conversation.NewRecord(id, conversation.Participant{
		UserID:      "user1",
		DisplayName: "Ana",
	})
	rec.AppendMessage("hola", conversation.SenderUser)
	rec.AppendMessage("cuéntame más", conversation.SenderBot)
	rec.SetState(conversation.StateCompleted)
	return rec
}

func TestArchiveAndGet(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	prop := &proposal.Proposal{Title: "Automate reporting", Difficulty: 2, ImpactScore: 3}
	prop.Normalize()
	receipt := &ticket.Receipt{TicketID: "INTK-7", TicketURL: "https://tickets/INTK-7"}

	require.NoError(t, a.ArchiveConversation(ctx, completedRecord("c:u"), prop, receipt))

	summary, msgs, err := a.GetIntake(ctx, "c:u")
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, "c:u", summary.ID)
	assert.Equal(t, "Ana", summary.DisplayName)
	assert.Equal(t, 2, summary.MessageCount)
	assert.Equal(t, "INTK-7", summary.TicketID)
	assert.Contains(t, summary.ProposalJSON, "Automate reporting")

	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Sender)
	assert.Equal(t, "hola", msgs[0].Content)
	assert.Equal(t, "bot", msgs[1].Sender)
}

func TestArchiveWithoutTicket(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	require.NoError(t, a.ArchiveConversation(ctx, completedRecord("abandoned:u"), nil, nil))

	summary, _, err := a.GetIntake(ctx, "abandoned:u")
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Empty(t, summary.TicketID)
	assert.Empty(t, summary.ProposalJSON)
}

func TestReArchiveReplacesTranscript(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	rec := completedRecord("c:u")
	require.NoError(t, a.ArchiveConversation(ctx, rec, nil, nil))

	rec.AppendMessage("una cosa más", conversation.SenderUser)
	require.NoError(t, a.ArchiveConversation(ctx, rec, nil, nil))

	summary, msgs, err := a.GetIntake(ctx, "c:u")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.MessageCount)
	assert.Len(t, msgs, 3)
}

func TestListIntakesNewestFirst(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	require.NoError(t, a.ArchiveConversation(ctx, completedRecord("first:u"), nil, nil))
	require.NoError(t, a.ArchiveConversation(ctx, completedRecord("second:u"), nil, nil))

	intakes, err := a.ListIntakes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, intakes, 2)
	assert.Equal(t, "second:u", intakes[0].ID)
	assert.Equal(t, "first:u", intakes[1].ID)
}

func TestGetIntakeMissing(t *testing.T) {
	a := openTestArchive(t)

	summary, msgs, err := a.GetIntake(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, summary)
	assert.Nil(t, msgs)
}
