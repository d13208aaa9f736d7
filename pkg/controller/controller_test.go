package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intakebot/pkg/conversation"
	"intakebot/pkg/llm"
	"intakebot/pkg/oracle"
	"intakebot/pkg/proposal"
	"intakebot/pkg/ticket"
)

var testParticipant = conversation.Participant{UserID: "user1", DisplayName: "Ana"}

const readyJSON = `{"ready": true, "reason": "enough substance"}`
const notReadyJSON = `{"ready": false, "reason": "too vague"}`
const confirmJSON = `{"kind": "confirm", "guidance": ""}`
const rejectJSON = `{"kind": "reject", "guidance": ""}`
const modifyJSON = `{"kind": "modify", "guidance": "raise the impact"}`
const unclearJSON = `{"kind": "unclear", "guidance": ""}`

const draftJSON = `{
	"title": "Automatizar informes de ventas",
	"short_description": "Generación automática del informe semanal.",
	"description": "El informe semanal de ventas se monta a mano cada lunes.",
	"impact": "Libera medio día a la persona que lo prepara.",
	"difficulty": 2,
	"impact_score": 3,
	"confidence": "high"
}`

func resp(content string) llm.CompletionResponse {
	return llm.CompletionResponse{Content: content, StopReason: "end_turn"}
}

// recordingSink wraps MockSink and counts submissions.
type recordingSink struct {
	inner   ticket.Sink
	submits int
	fail    bool
}

func (s *recordingSink) Name() string { return "test" }

func (s *recordingSink) Submit(ctx context.Context, rec *conversation.Record, prop *proposal.Proposal) (*ticket.Receipt, error) {
	s.submits++
	if s.fail {
		return nil, errors.New("ticket system unavailable")
	}
	return s.inner.Submit(ctx, rec, prop)
}

type memArchiver struct {
	archived []string
}

func (a *memArchiver) ArchiveConversation(_ context.Context, rec *conversation.Record, _ *proposal.Proposal, _ *ticket.Receipt) error {
	a.archived = append(a.archived, rec.ID)
	return nil
}

func newTestController(responses []llm.CompletionResponse, sink ticket.Sink) (*Controller, *conversation.Registry, *memArchiver) {
	client := llm.NewMockClient(responses, nil)
	o := oracle.New(client, nil, oracle.Thresholds{MinMessages: 6, FallbackMessages: 8})
	reg := conversation.NewRegistry(time.Hour, nil)
	arch := &memArchiver{}
	if sink == nil {
		sink = &recordingSink{inner: ticket.NewMockSink()}
	}
	return New(reg, o, sink, arch, nil), reg, arch
}

func stateOf(t *testing.T, reg *conversation.Registry, convID string) conversation.State {
	t.Helper()
	var state conversation.State
	found := reg.Peek(conversation.Key(convID, testParticipant.UserID), func(rec *conversation.Record) {
		require.NotNil(t, rec)
		state = rec.State()
	})
	require.True(t, found)
	return state
}

func TestHappyPathToTicket(t *testing.T) {
	sink := &recordingSink{inner: ticket.NewMockSink()}
	ctrl, reg, arch := newTestController([]llm.CompletionResponse{
		resp("¿Qué problema quieres resolver?"), // turn 2: not yet at min, next question
		resp("¿A quién afecta?"),                // turn 3
		resp(readyJSON),                         // turn 4: readiness
		resp(draftJSON),                         // turn 4: draft
		resp(confirmJSON),                       // turn 5: classification
	}, sink)
	ctx := context.Background()

	r1 := ctrl.Turn(ctx, "conv", testParticipant, "hola")
	assert.Contains(t, r1, "Ana")
	assert.Equal(t, conversation.StateActive, stateOf(t, reg, "conv"))

	r2 := ctrl.Turn(ctx, "conv", testParticipant, "quiero automatizar un informe")
	assert.Equal(t, "¿Qué problema quieres resolver?", r2)

	r3 := ctrl.Turn(ctx, "conv", testParticipant, "el informe semanal de ventas se hace a mano")
	assert.Equal(t, "¿A quién afecta?", r3)

	r4 := ctrl.Turn(ctx, "conv", testParticipant, "al equipo comercial, pierden medio día")
	assert.Contains(t, r4, "Automatizar informes de ventas")
	assert.Contains(t, r4, "P1") // difficulty 2 + impact 3 = 5
	assert.Equal(t, conversation.StateAwaitingConfirmation, stateOf(t, reg, "conv"))

	r5 := ctrl.Turn(ctx, "conv", testParticipant, "sí, adelante")
	assert.Contains(t, r5, "TICK-")
	assert.Equal(t, conversation.StateCompleted, stateOf(t, reg, "conv"))
	assert.Equal(t, 1, sink.submits)
	assert.Equal(t, []string{"conv:user1"}, arch.archived)
}

func TestSubstantiveOpenerSkipsGreeting(t *testing.T) {
	// A user who opens with their whole idea gets a tailored follow-up, not
	// a canned welcome that ignores what they just said.
	ctrl, reg, _ := newTestController([]llm.CompletionResponse{
		resp("¿A quién afecta ese informe?"),
	}, nil)

	reply := ctrl.Turn(context.Background(), "conv", testParticipant,
		"quiero automatizar el informe semanal de ventas que se monta a mano")
	assert.Equal(t, "¿A quién afecta ese informe?", reply)
	assert.NotContains(t, reply, "Ana")
	assert.Equal(t, conversation.StateActive, stateOf(t, reg, "conv"))
}

func TestBareGreetingVariantsGetGreeting(t *testing.T) {
	for _, opener := range []string{"hola", "¡Hola!", "buenas tardes", "Hey"} {
		ctrl, _, _ := newTestController(nil, nil)
		reply := ctrl.Turn(context.Background(), "conv", testParticipant, opener)
		assert.Contains(t, reply, "Ana", "opener %q should be greeted", opener)
	}
}

func TestOracleDownStillReachesTicket(t *testing.T) {
	// No mock responses at all: every oracle call fails, so the flow runs
	// entirely on fallbacks (message-count readiness, generic draft,
	// keyword classification).
	sink := &recordingSink{inner: ticket.NewMockSink()}
	ctrl, reg, _ := newTestController(nil, sink)
	ctx := context.Background()

	ctrl.Turn(ctx, "conv", testParticipant, "hola")
	for i := 0; i < 5; i++ {
		reply := ctrl.Turn(ctx, "conv", testParticipant, fmt.Sprintf("más contexto %d", i))
		if stateOf(t, reg, "conv") == conversation.StateAwaitingConfirmation {
			assert.Contains(t, reply, "Ana", "fallback draft carries the reporter's name")
			break
		}
		assert.Contains(t, reply, "Cuéntame más detalles")
	}
	require.Equal(t, conversation.StateAwaitingConfirmation, stateOf(t, reg, "conv"))

	reply := ctrl.Turn(ctx, "conv", testParticipant, "sí")
	assert.Contains(t, reply, "TICK-")
	assert.Equal(t, conversation.StateCompleted, stateOf(t, reg, "conv"))
	assert.Equal(t, 1, sink.submits)
}

func TestRejectDiscardsProposal(t *testing.T) {
	sink := &recordingSink{inner: ticket.NewMockSink()}
	ctrl, reg, arch := newTestController([]llm.CompletionResponse{
		resp("¿me cuentas más?"),
		resp("¿algo más?"),
		resp(readyJSON),
		resp(draftJSON),
		resp(rejectJSON),
	}, sink)
	ctx := context.Background()

	ctrl.Turn(ctx, "conv", testParticipant, "hola")
	ctrl.Turn(ctx, "conv", testParticipant, "una idea")
	ctrl.Turn(ctx, "conv", testParticipant, "más detalle")
	ctrl.Turn(ctx, "conv", testParticipant, "y más detalle")
	require.Equal(t, conversation.StateAwaitingConfirmation, stateOf(t, reg, "conv"))

	reply := ctrl.Turn(ctx, "conv", testParticipant, "no, olvídalo")
	assert.Contains(t, reply, "descarto")
	assert.Equal(t, conversation.StateCompleted, stateOf(t, reg, "conv"))
	assert.Equal(t, 0, sink.submits, "rejected proposals never reach the sink")
	assert.Len(t, arch.archived, 1, "abandoned conversations are still archived")

	reg.Peek(conversation.Key("conv", "user1"), func(rec *conversation.Record) {
		assert.Nil(t, rec.Proposal())
	})
}

func TestModifyRegeneratesProposal(t *testing.T) {
	secondDraft := strings.Replace(draftJSON, "Automatizar informes de ventas", "Automatizar informes de ventas (v2)", 1)
	ctrl, reg, _ := newTestController([]llm.CompletionResponse{
		resp("¿me cuentas más?"),
		resp("¿algo más?"),
		resp(readyJSON),
		resp(draftJSON),
		resp(modifyJSON),   // classification of the change request
		resp(readyJSON),    // immediate recheck
		resp(secondDraft),  // regenerated draft
		resp(confirmJSON),
	}, nil)
	ctx := context.Background()

	ctrl.Turn(ctx, "conv", testParticipant, "hola")
	ctrl.Turn(ctx, "conv", testParticipant, "una idea")
	ctrl.Turn(ctx, "conv", testParticipant, "más detalle")
	first := ctrl.Turn(ctx, "conv", testParticipant, "y más detalle")
	assert.Contains(t, first, "Automatizar informes de ventas")

	second := ctrl.Turn(ctx, "conv", testParticipant, "súbele el impacto y menciona al equipo")
	assert.Contains(t, second, "(v2)", "modify feedback produces a fresh draft in the same turn")
	assert.Equal(t, conversation.StateAwaitingConfirmation, stateOf(t, reg, "conv"))

	final := ctrl.Turn(ctx, "conv", testParticipant, "sí")
	assert.Contains(t, final, "TICK-")
}

func TestUnclearKeepsProposalPending(t *testing.T) {
	ctrl, reg, _ := newTestController([]llm.CompletionResponse{
		resp("¿me cuentas más?"),
		resp("¿algo más?"),
		resp(readyJSON),
		resp(draftJSON),
		resp(unclearJSON),
	}, nil)
	ctx := context.Background()

	ctrl.Turn(ctx, "conv", testParticipant, "hola")
	ctrl.Turn(ctx, "conv", testParticipant, "una idea")
	ctrl.Turn(ctx, "conv", testParticipant, "más detalle")
	ctrl.Turn(ctx, "conv", testParticipant, "y más detalle")

	reply := ctrl.Turn(ctx, "conv", testParticipant, "¿qué hora es?")
	assert.Contains(t, reply, "Confirmas")
	assert.Equal(t, conversation.StateAwaitingConfirmation, stateOf(t, reg, "conv"))

	reg.Peek(conversation.Key("conv", "user1"), func(rec *conversation.Record) {
		require.NotNil(t, rec.Proposal())
	})
}

func TestSubmissionFailureKeepsAwaiting(t *testing.T) {
	sink := &recordingSink{inner: ticket.NewMockSink(), fail: true}
	ctrl, reg, arch := newTestController([]llm.CompletionResponse{
		resp("¿me cuentas más?"),
		resp("¿algo más?"),
		resp(readyJSON),
		resp(draftJSON),
		resp(confirmJSON), // first confirm: sink fails
		resp(confirmJSON), // retry: sink healthy again
	}, sink)
	ctx := context.Background()

	ctrl.Turn(ctx, "conv", testParticipant, "hola")
	ctrl.Turn(ctx, "conv", testParticipant, "una idea")
	ctrl.Turn(ctx, "conv", testParticipant, "más detalle")
	ctrl.Turn(ctx, "conv", testParticipant, "y más detalle")

	reply := ctrl.Turn(ctx, "conv", testParticipant, "sí")
	assert.Contains(t, reply, "sigue pendiente")
	assert.Equal(t, conversation.StateAwaitingConfirmation, stateOf(t, reg, "conv"))
	assert.Empty(t, arch.archived)
	reg.Peek(conversation.Key("conv", "user1"), func(rec *conversation.Record) {
		require.NotNil(t, rec.Proposal(), "proposal survives a failed submission")
	})

	sink.fail = false
	retry := ctrl.Turn(ctx, "conv", testParticipant, "sí, confirma")
	assert.Contains(t, retry, "TICK-")
	assert.Equal(t, conversation.StateCompleted, stateOf(t, reg, "conv"))
	assert.Equal(t, 2, sink.submits)
}

func TestCompletedConversationNeverResubmits(t *testing.T) {
	sink := &recordingSink{inner: ticket.NewMockSink()}
	ctrl, reg, _ := newTestController([]llm.CompletionResponse{
		resp("¿me cuentas más?"),
		resp("¿algo más?"),
		resp(readyJSON),
		resp(draftJSON),
		resp(confirmJSON),
	}, sink)
	ctx := context.Background()

	ctrl.Turn(ctx, "conv", testParticipant, "hola")
	ctrl.Turn(ctx, "conv", testParticipant, "una idea")
	ctrl.Turn(ctx, "conv", testParticipant, "más detalle")
	ctrl.Turn(ctx, "conv", testParticipant, "y más detalle")
	ctrl.Turn(ctx, "conv", testParticipant, "sí")
	require.Equal(t, conversation.StateCompleted, stateOf(t, reg, "conv"))

	reply := ctrl.Turn(ctx, "conv", testParticipant, "sí")
	assert.Contains(t, reply, "cerrada")
	assert.Equal(t, 1, sink.submits, "a confirm after completion must not file twice")
}

func TestNewTopicResetsCompletedConversation(t *testing.T) {
	ctrl, reg, _ := newTestController([]llm.CompletionResponse{
		resp("¿me cuentas más?"),
		resp("¿algo más?"),
		resp(readyJSON),
		resp(draftJSON),
		resp(confirmJSON),
	}, nil)
	ctx := context.Background()

	ctrl.Turn(ctx, "conv", testParticipant, "hola")
	ctrl.Turn(ctx, "conv", testParticipant, "una idea")
	ctrl.Turn(ctx, "conv", testParticipant, "más detalle")
	ctrl.Turn(ctx, "conv", testParticipant, "y más detalle")
	ctrl.Turn(ctx, "conv", testParticipant, "sí")

	reply := ctrl.Turn(ctx, "conv", testParticipant, "tengo una nueva iniciativa")
	assert.Contains(t, reply, "Ana")
	assert.Equal(t, conversation.StateActive, stateOf(t, reg, "conv"))

	reg.Peek(conversation.Key("conv", "user1"), func(rec *conversation.Record) {
		// Reset transcript: the reopening message plus the fresh greeting.
		assert.Equal(t, 2, rec.MessageCount())
	})
}

func TestEmptyInputDoesNotTouchRecord(t *testing.T) {
	ctrl, reg, _ := newTestController(nil, nil)

	reply := ctrl.Turn(context.Background(), "conv", testParticipant, "   ")
	assert.Equal(t, replyEmptyInput, reply)
	assert.Equal(t, 0, reg.Len())
}

type panickingSink struct{}

func (panickingSink) Name() string { return "panic" }
func (panickingSink) Submit(context.Context, *conversation.Record, *proposal.Proposal) (*ticket.Receipt, error) {
	panic("sink exploded")
}

func TestPanicRecoveryRestoresRecord(t *testing.T) {
	ctrl, reg, _ := newTestController([]llm.CompletionResponse{
		resp("¿me cuentas más?"),
		resp("¿algo más?"),
		resp(readyJSON),
		resp(draftJSON),
		resp(confirmJSON),
	}, panickingSink{})
	ctx := context.Background()

	ctrl.Turn(ctx, "conv", testParticipant, "hola")
	ctrl.Turn(ctx, "conv", testParticipant, "una idea")
	ctrl.Turn(ctx, "conv", testParticipant, "más detalle")
	ctrl.Turn(ctx, "conv", testParticipant, "y más detalle")
	require.Equal(t, conversation.StateAwaitingConfirmation, stateOf(t, reg, "conv"))

	var before int
	reg.Peek(conversation.Key("conv", "user1"), func(rec *conversation.Record) {
		before = rec.MessageCount()
	})

	reply := ctrl.Turn(ctx, "conv", testParticipant, "sí")
	assert.Equal(t, replyInternalError, reply)
	assert.Equal(t, conversation.StateAwaitingConfirmation, stateOf(t, reg, "conv"))

	reg.Peek(conversation.Key("conv", "user1"), func(rec *conversation.Record) {
		require.NotNil(t, rec.Proposal(), "proposal survives the panic")
		assert.Equal(t, before, rec.MessageCount(), "crashed turn leaves no trace in the transcript")
	})
}
