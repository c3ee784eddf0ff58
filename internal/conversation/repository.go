package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kopainglay2025/relay/internal/channel"
)

// Repository is the PostgreSQL implementation of Store.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const chatColumns = "id, channel, external_user_id, display_name, last_message_text, last_message_time, unread_count, created_at"

func scanChat(row interface{ Scan(...any) error }) (*Chat, error) {
	c := &Chat{}
	err := row.Scan(&c.ID, &c.Channel, &c.ExternalUserID, &c.DisplayName,
		&c.LastMessageText, &c.LastMessageTime, &c.UnreadCount, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// IngestUserMessage upserts the chat and appends the message in one
// transaction. The unread increment and the display-name merge happen
// inside the upsert statement itself, so two rapid inbound messages can
// never lose an increment.
func (r *Repository) IngestUserMessage(ctx context.Context, up ChatUpsert, msg NewMessage) (*Chat, *Message, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO chats (id, channel, external_user_id, display_name, last_message_text, last_message_time, unread_count)
		VALUES ($1, $2, $3, $4, $5, $6, 1)
		ON CONFLICT (id) DO UPDATE SET
			display_name = CASE WHEN EXCLUDED.display_name <> '' THEN EXCLUDED.display_name ELSE chats.display_name END,
			last_message_text = EXCLUDED.last_message_text,
			last_message_time = EXCLUDED.last_message_time,
			unread_count = chats.unread_count + 1
		RETURNING ` + chatColumns
	chat, err := scanChat(tx.QueryRowContext(ctx, query,
		up.ChatID, up.Channel, up.ExternalUserID, up.DisplayName,
		up.LastMessageText, up.LastMessageTime))
	if err != nil {
		return nil, nil, fmt.Errorf("upsert chat: %w", err)
	}

	message, err := insertMessage(ctx, tx, up.ChatID, msg)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return chat, message, nil
}

// AppendAdminMessage records a delivered outbound message: last-message
// fields refreshed, unread reset to zero and the append, atomically.
func (r *Repository) AppendAdminMessage(ctx context.Context, chatID string, msg NewMessage) (*Chat, *Message, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	query := `
		UPDATE chats
		SET last_message_text = $2, last_message_time = now(), unread_count = 0
		WHERE id = $1
		RETURNING ` + chatColumns
	chat, err := scanChat(tx.QueryRowContext(ctx, query, chatID, previewText(msg)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrUnknownChat
		}
		return nil, nil, fmt.Errorf("update chat: %w", err)
	}

	message, err := insertMessage(ctx, tx, chatID, msg)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return chat, message, nil
}

func insertMessage(ctx context.Context, tx *sql.Tx, chatID string, msg NewMessage) (*Message, error) {
	mediaKind, mediaRef, filename := "", "", ""
	if msg.Media != nil {
		mediaKind, mediaRef, filename = string(msg.Media.Kind), msg.Media.Ref, msg.Media.Filename
	}

	message := &Message{ChatID: chatID, Sender: msg.Sender, Text: msg.Text, Media: msg.Media}
	query := `
		INSERT INTO messages (chat_id, sender, body, media_kind, media_ref, filename)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	err := tx.QueryRowContext(ctx, query, chatID, msg.Sender, msg.Text, mediaKind, mediaRef, filename).
		Scan(&message.ID, &message.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return message, nil
}

// previewText mirrors what the chat list shows for the most recent message.
func previewText(msg NewMessage) string {
	if msg.Text != "" || msg.Media == nil {
		return msg.Text
	}
	return "[" + string(msg.Media.Kind) + "]"
}

func (r *Repository) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	query := "SELECT " + chatColumns + " FROM chats WHERE id = $1"
	chat, err := scanChat(r.db.QueryRowContext(ctx, query, chatID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnknownChat
		}
		return nil, err
	}
	return chat, nil
}

// ListChats returns chats ordered by last activity, optionally filtered to
// one channel (empty means all).
func (r *Repository) ListChats(ctx context.Context, ch channel.Channel) ([]*Chat, error) {
	query := "SELECT " + chatColumns + " FROM chats"
	args := []any{}
	if ch != "" {
		query += " WHERE channel = $1"
		args = append(args, ch)
	}
	query += " ORDER BY last_message_time DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []*Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// ListMessages pages through a chat's history in (timestamp, id) order.
// The returned cursor is empty once the page was not full.
func (r *Repository) ListMessages(ctx context.Context, chatID string, limit int, cursor string) ([]*Message, string, error) {
	query := `
		SELECT id, sender, body, media_kind, media_ref, filename, created_at
		FROM messages
		WHERE chat_id = $1`
	args := []any{chatID}

	if cursor != "" {
		afterTime, afterID, err := DecodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		query += " AND (created_at, id) > ($2, $3)"
		args = append(args, afterTime, afterID)
	}
	query += fmt.Sprintf(" ORDER BY created_at ASC, id ASC LIMIT %d", limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m := &Message{ChatID: chatID}
		var mediaKind, mediaRef, filename string
		if err := rows.Scan(&m.ID, &m.Sender, &m.Text, &mediaKind, &mediaRef, &filename, &m.Timestamp); err != nil {
			return nil, "", err
		}
		if mediaKind != "" {
			m.Media = &channel.Media{Kind: channel.MediaKind(mediaKind), Ref: mediaRef, Filename: filename}
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	next := ""
	if len(messages) == limit {
		last := messages[len(messages)-1]
		next = EncodeCursor(last.Timestamp, last.ID)
	}
	return messages, next, nil
}

func (r *Repository) ResetUnread(ctx context.Context, chatID string) (*Chat, error) {
	query := "UPDATE chats SET unread_count = 0 WHERE id = $1 RETURNING " + chatColumns
	chat, err := scanChat(r.db.QueryRowContext(ctx, query, chatID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnknownChat
		}
		return nil, err
	}
	return chat, nil
}
