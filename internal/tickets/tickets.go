// Package tickets provisions support-ticket channels and their lifecycle.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrAlreadyOpen = errors.New("user already has an open ticket")
	ErrNotATicket  = errors.New("channel is not an open ticket")
)

// Gateway is the slice of the discord session ticket provisioning needs.
type Gateway interface {
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Service struct {
	gateway Gateway
	store   *storage.Store
	logger  *zap.Logger
	botID   func() string
}

// NewService takes the bot id as a resolver rather than a value: the service
// is built before the gateway session opens, so the id is not known yet.
func NewService(gateway Gateway, store *storage.Store, logger *zap.Logger, botID func() string) *Service {
	return &Service{gateway: gateway, store: store, logger: logger, botID: botID}
}

// Open creates the ticket channel with overwrites granting the author and the
// support role visibility, then persists the ticket row. One open ticket per
// (guild, user) at a time.
func (s *Service) Open(ctx context.Context, guildID, userID, category string, settings storage.GuildSettings) (storage.Ticket, error) {
	if _, exists, err := s.store.OpenTicketForUser(ctx, guildID, userID); err != nil {
		return storage.Ticket{}, err
	} else if exists {
		return storage.Ticket{}, ErrAlreadyOpen
	}

	ticketID := uuid.NewString()
	overwrites := []*discordgo.PermissionOverwrite{
		{
			ID:   guildID, // @everyone
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:    userID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory,
		},
	}
	if botID := s.botID(); botID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    botID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionManageChannels,
		})
	}
	if settings.SupportRoleID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    settings.SupportRoleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory,
		})
	}

	channel, err := s.gateway.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 ChannelName(ticketID),
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             settings.TicketCategoryID,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		return storage.Ticket{}, err
	}

	ticket := storage.Ticket{
		TicketID:  ticketID,
		GuildID:   guildID,
		ChannelID: channel.ID,
		UserID:    userID,
		Status:    storage.TicketOpen,
		Category:  category,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateTicket(ctx, ticket); err != nil {
		// Channel exists but the row does not; remove the channel rather
		// than leaving an untracked ticket behind.
		_, _ = s.gateway.ChannelDelete(channel.ID)
		return storage.Ticket{}, err
	}

	_, _ = s.gateway.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
		Content: fmt.Sprintf("<@%s> your ticket `%s` is open. A member of the support team will be with you shortly.", userID, ShortID(ticketID)),
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Close ticket",
					Style:    discordgo.DangerButton,
					CustomID: "ticket_close",
				},
			}},
		},
	})
	return ticket, nil
}

// Close captures a transcript, marks the row closed and deletes the channel.
func (s *Service) Close(ctx context.Context, guildID, channelID, closedBy string) (storage.Ticket, error) {
	ticket, exists, err := s.store.TicketByChannel(ctx, guildID, channelID)
	if err != nil {
		return storage.Ticket{}, err
	}
	if !exists {
		return storage.Ticket{}, ErrNotATicket
	}

	transcript := s.buildTranscript(channelID)
	if err := s.store.CloseTicket(ctx, ticket.TicketID, closedBy, transcript, time.Now()); err != nil {
		return storage.Ticket{}, err
	}
	if _, err := s.gateway.ChannelDelete(channelID); err != nil {
		s.logger.Warn("ticket channel delete failed", zap.String("channel_id", channelID), zap.Error(err))
	}
	return ticket, nil
}

func (s *Service) buildTranscript(channelID string) string {
	messages, err := s.gateway.ChannelMessages(channelID, 100, "", "", "")
	if err != nil {
		s.logger.Warn("transcript fetch failed", zap.String("channel_id", channelID), zap.Error(err))
		return ""
	}

	// ChannelMessages returns newest first.
	var b strings.Builder
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg == nil || msg.Author == nil {
			continue
		}
		ts := msg.Timestamp.UTC().Format(time.RFC3339)
		fmt.Fprintf(&b, "[%s] %s: %s\n", ts, msg.Author.Username, msg.Content)
	}
	return b.String()
}

// ShortID is the human-facing slice of a ticket uuid.
func ShortID(ticketID string) string {
	if len(ticketID) > 8 {
		return ticketID[:8]
	}
	return ticketID
}

func ChannelName(ticketID string) string {
	return "ticket-" + ShortID(ticketID)
}
