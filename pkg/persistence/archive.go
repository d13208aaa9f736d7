// Package persistence provides SQLite-based archival of completed intake
// conversations and the tickets they produced.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"intakebot/pkg/conversation"
	"intakebot/pkg/logx"
	"intakebot/pkg/proposal"
	"intakebot/pkg/ticket"
)

// Archive stores completed conversations. Safe for concurrent use; SQLite is
// opened with a single writer connection.
type Archive struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open opens (or creates) the archive database at dbPath and brings the
// schema to the current version.
func Open(dbPath string) (*Archive, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initializeSchemaWithMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	logger := logx.NewLogger("archive")
	logger.Info("archive initialized: %s", dbPath)
	return &Archive{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// IntakeSummary is one archived conversation as listed by the API.
type IntakeSummary struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	MessageCount int       `json:"message_count"`
	TicketID     string    `json:"ticket_id,omitempty"`
	TicketURL    string    `json:"ticket_url,omitempty"`
	ProposalJSON string    `json:"proposal,omitempty"`
	ArchivedAt   time.Time `json:"archived_at"`
}

// ArchivedMessage is one transcript entry of an archived conversation.
type ArchivedMessage struct {
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ArchiveConversation persists a completed conversation, its transcript, and
// the ticket receipt if one was filed. Re-archiving the same conversation ID
// replaces the previous row and transcript.
func (a *Archive) ArchiveConversation(ctx context.Context, rec *conversation.Record, prop *proposal.Proposal, receipt *ticket.Receipt) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var proposalJSON string
	if prop != nil {
		proposalJSON = prop.JSON()
	}
	var ticketID, ticketURL string
	if receipt != nil {
		ticketID = receipt.TicketID
		ticketURL = receipt.TicketURL
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, display_name, email, message_count, proposal_json, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			message_count = excluded.message_count,
			proposal_json = excluded.proposal_json,
			archived_at = excluded.archived_at`,
		rec.ID, rec.Participant.UserID, rec.Participant.DisplayName, rec.Participant.Email,
		rec.MessageCount(), proposalJSON, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("failed to clear old transcript: %w", err)
	}
	for i, msg := range rec.Messages() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (conversation_id, seq, sender, content, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			rec.ID, i, string(msg.Sender), msg.Content, msg.Timestamp.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to insert message %d: %w", i, err)
		}
	}

	if ticketID != "" {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tickets (ticket_id, conversation_id, ticket_url, filed_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(ticket_id) DO NOTHING`,
			ticketID, rec.ID, ticketURL, time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to insert ticket: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive: %w", err)
	}
	a.logger.Debug("archived conversation %s (%d messages)", rec.ID, rec.MessageCount())
	return nil
}

// ListIntakes returns archived conversations, newest first.
func (a *Archive) ListIntakes(ctx context.Context, limit int) ([]*IntakeSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT c.id, c.user_id, c.display_name, c.message_count, c.proposal_json, c.archived_at,
		       COALESCE(t.ticket_id, ''), COALESCE(t.ticket_url, '')
		FROM conversations c
		LEFT JOIN tickets t ON t.conversation_id = c.id
		ORDER BY c.archived_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query intakes: %w", err)
	}
	defer rows.Close()

	var result []*IntakeSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate intakes: %w", err)
	}
	return result, nil
}

// GetIntake returns one archived conversation by ID, or nil if not archived.
func (a *Archive) GetIntake(ctx context.Context, id string) (*IntakeSummary, []ArchivedMessage, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT c.id, c.user_id, c.display_name, c.message_count, c.proposal_json, c.archived_at,
		       COALESCE(t.ticket_id, ''), COALESCE(t.ticket_url, '')
		FROM conversations c
		LEFT JOIN tickets t ON t.conversation_id = c.id
		WHERE c.id = ?`, id)

	summary, err := scanSummary(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT sender, content, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY seq`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	var msgs []ArchivedMessage
	for rows.Next() {
		var m ArchivedMessage
		var ts string
		if err := rows.Scan(&m.Sender, &m.Content, &ts); err != nil {
			return nil, nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate transcript: %w", err)
	}
	return summary, msgs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*IntakeSummary, error) {
	var s IntakeSummary
	var archivedAt string
	err := row.Scan(&s.ID, &s.UserID, &s.DisplayName, &s.MessageCount,
		&s.ProposalJSON, &archivedAt, &s.TicketID, &s.TicketURL)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan intake: %w", err)
	}
	s.ArchivedAt, _ = time.Parse(time.RFC3339Nano, archivedAt)
	return &s, nil
}
