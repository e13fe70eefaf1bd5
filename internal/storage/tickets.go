package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const (
	TicketOpen   = "open"
	TicketClosed = "closed"
)

type Ticket struct {
	ID         int64
	TicketID   string
	GuildID    string
	ChannelID  string
	UserID     string
	Status     string
	Category   string
	CreatedAt  time.Time
	ClosedAt   *time.Time
	ClosedBy   string
	Transcript string
}

func (s *Store) CreateTicket(ctx context.Context, ticket Ticket) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (ticket_id, guild_id, channel_id, user_id, status, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ticket.TicketID, ticket.GuildID, ticket.ChannelID, ticket.UserID, TicketOpen, ticket.Category, ticket.CreatedAt.Unix())
	return err
}

// OpenTicketForUser returns the user's open ticket in the guild, if any.
func (s *Store) OpenTicketForUser(ctx context.Context, guildID, userID string) (Ticket, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ticket_id, guild_id, channel_id, user_id, status, category, created_at
		FROM tickets
		WHERE guild_id = ? AND user_id = ? AND status = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, guildID, userID, TicketOpen)
	return scanOpenTicket(row)
}

// TicketByChannel resolves the open ticket living in the given channel.
func (s *Store) TicketByChannel(ctx context.Context, guildID, channelID string) (Ticket, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ticket_id, guild_id, channel_id, user_id, status, category, created_at
		FROM tickets
		WHERE guild_id = ? AND channel_id = ? AND status = ?
		LIMIT 1
	`, guildID, channelID, TicketOpen)
	return scanOpenTicket(row)
}

func (s *Store) CloseTicket(ctx context.Context, ticketID, closedBy, transcript string, closedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tickets
		SET status = ?, closed_at = ?, closed_by = ?, transcript = ?
		WHERE ticket_id = ? AND status = ?
	`, TicketClosed, closedAt.Unix(), closedBy, transcript, ticketID, TicketOpen)
	return err
}

func scanOpenTicket(row *sql.Row) (Ticket, bool, error) {
	var ticket Ticket
	var created int64
	err := row.Scan(&ticket.ID, &ticket.TicketID, &ticket.GuildID, &ticket.ChannelID, &ticket.UserID, &ticket.Status, &ticket.Category, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Ticket{}, false, nil
		}
		return Ticket{}, false, err
	}
	ticket.CreatedAt = time.Unix(created, 0)
	return ticket, true, nil
}
