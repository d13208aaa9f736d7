// Package conversation holds the stateful transcript and lifecycle of one
// user/thread pair, plus the registry that owns all records.
package conversation

import (
	"fmt"
	"strings"
	"time"

	"intakebot/pkg/proposal"
)

// State is the lifecycle state of a conversation.
type State string

const (
	// StateActive means the bot is still gathering context.
	StateActive State = "active"
	// StateAwaitingConfirmation means a proposal was presented and the bot is
	// waiting on confirm/reject/modify feedback.
	StateAwaitingConfirmation State = "awaiting_confirmation"
	// StateCompleted is terminal: the ticket was filed or the conversation abandoned.
	StateCompleted State = "completed"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one transcript entry. Messages are append-only; insertion order
// is the canonical transcript order.
type Message struct {
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Participant is the immutable identity of the human in the conversation.
type Participant struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

// Record is the transcript+lifecycle object for one user/thread pair.
//
// Records carry no internal locking: all access goes through the registry's
// per-key serialization (see Registry.WithRecord), which guarantees at most
// one in-flight mutation per conversation key.
type Record struct {
	ID          string
	Participant Participant

	messages  []Message
	state     State
	pending   *proposal.Proposal
	createdAt time.Time
	updatedAt time.Time
}

// NewRecord creates a record in the active state with an empty history.
func NewRecord(id string, participant Participant) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:          id,
		Participant: participant,
		state:       StateActive,
		createdAt:   now,
		updatedAt:   now,
	}
}

// AppendMessage appends a message and touches updatedAt. Content is not
// validated; callers filter empty turns upstream.
func (r *Record) AppendMessage(content string, sender Sender) {
	r.messages = append(r.messages, Message{
		Content:   content,
		Sender:    sender,
		Timestamp: time.Now().UTC(),
	})
	r.updatedAt = time.Now().UTC()
}

// Messages returns a copy of the transcript in insertion order.
func (r *Record) Messages() []Message {
	return append([]Message{}, r.messages...)
}

// MessageCount returns the number of transcript entries.
func (r *Record) MessageCount() int {
	return len(r.messages)
}

// TruncateMessages drops messages appended after the first n. Used to roll a
// record back to a pre-turn snapshot.
func (r *Record) TruncateMessages(n int) {
	if n < 0 || n >= len(r.messages) {
		return
	}
	r.messages = r.messages[:n]
	r.updatedAt = time.Now().UTC()
}

// History renders the transcript as sender-tagged lines. It is regenerated on
// every call so it always reflects the latest append.
func (r *Record) History() string {
	var b strings.Builder
	for i := range r.messages {
		msg := &r.messages[i]
		fmt.Fprintf(&b, "%s: %s\n", msg.Sender, msg.Content)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// State returns the current lifecycle state.
func (r *Record) State() State {
	return r.state
}

// SetState transitions to the given state. Leaving awaiting_confirmation
// clears the pending proposal so the state/proposal invariant holds.
func (r *Record) SetState(state State) {
	r.state = state
	if state != StateAwaitingConfirmation {
		r.pending = nil
	}
	r.updatedAt = time.Now().UTC()
}

// SetProposal stores a pending proposal and implicitly transitions to
// awaiting_confirmation. A prior proposal is superseded wholesale.
func (r *Record) SetProposal(p *proposal.Proposal) {
	r.pending = p
	r.state = StateAwaitingConfirmation
	r.updatedAt = time.Now().UTC()
}

// Proposal returns the pending proposal, or nil outside awaiting_confirmation.
func (r *Record) Proposal() *proposal.Proposal {
	return r.pending
}

// IsAwaitingConfirmation reports whether a proposal is pending user feedback.
func (r *Record) IsAwaitingConfirmation() bool {
	return r.state == StateAwaitingConfirmation
}

// ClearForNewTopic resets messages, state, and proposal while preserving the
// record identity and participant. Used when a completed conversation is
// explicitly reopened.
func (r *Record) ClearForNewTopic() {
	r.messages = nil
	r.pending = nil
	r.state = StateActive
	r.updatedAt = time.Now().UTC()
}

// CreatedAt returns the record creation time.
func (r *Record) CreatedAt() time.Time {
	return r.createdAt
}

// UpdatedAt returns the time of the last mutation.
func (r *Record) UpdatedAt() time.Time {
	return r.updatedAt
}
