package bot

import (
	"context"
	"strings"
	"time"

	"warden/internal/audit"
	"warden/internal/automod"
	"warden/internal/config"
	"warden/internal/metrics"
	"warden/internal/moderation"
	"warden/internal/stats"
	"warden/internal/storage"
	"warden/internal/tickets"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	colorAction  = 0x5865F2
	colorWarning = 0xF59E0B
	colorError   = 0xEF4444
)

type Bot struct {
	cfg        config.Config
	logger     *zap.Logger
	store      *storage.Store
	audit      *audit.Logger
	metrics    *metrics.Metrics
	stats      *stats.Service
	session    *discordgo.Session
	tracker    *automod.Tracker
	detector   *automod.Detector
	actions    *moderation.Actions
	reconciler *moderation.Reconciler
	tickets    *tickets.Service
	commands   map[string]command

	reconCancel context.CancelFunc
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, auditLogger *audit.Logger, m *metrics.Metrics, statsSvc *stats.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	b := &Bot{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		audit:   auditLogger,
		metrics: m,
		stats:   statsSvc,
		session: session,
	}

	b.tracker = automod.NewTracker()
	b.detector = automod.NewDetector(b.tracker)
	b.actions = moderation.NewActions(
		session, store, auditLogger, logger, m,
		time.Duration(cfg.Notices.DeleteAfterSeconds)*time.Second,
		time.Duration(cfg.Mutes.DefaultDays)*24*time.Hour,
	)
	b.reconciler = moderation.NewReconciler(store, b.actions, logger, m, time.Duration(cfg.Mutes.ReconcileSeconds)*time.Second)
	// Built before any handler is registered; the bot id only becomes known
	// once the session opens, hence the resolver.
	b.tickets = tickets.NewService(session, store, logger, func() string {
		if session.State != nil && session.State.User != nil {
			return session.State.User.ID
		}
		return ""
	})
	b.commands = b.commandTable()

	auditLogger.SetNotifier(b.notifyModLog)

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.reconCancel = cancel
	go b.reconciler.Run(ctx)

	return nil
}

func (b *Bot) Close() {
	if b.reconCancel != nil {
		b.reconCancel()
	}
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}

	ctx := context.Background()
	settings := b.guildSettings(ctx, msg.GuildID)

	if strings.HasPrefix(msg.Content, settings.Prefix) {
		if b.dispatchCommand(ctx, session, msg, settings) {
			return
		}
	}

	b.metrics.MessagesScanned.Inc()
	exempt := b.isExempt(msg.GuildID, msg.Author.ID, msg.Member, settings)
	policy := automod.PolicyFromSettings(settings, time.Duration(b.cfg.AutoMod.SpamWindowMS)*time.Millisecond)
	kind := b.detector.Classify(msg.GuildID, msg.Author.ID, msg.Content, exempt, policy, time.Now())
	if kind == automod.ViolationNone {
		return
	}

	b.metrics.Violations.WithLabelValues(string(kind)).Inc()
	b.actions.SuppressMessage(ctx, msg.GuildID, msg.ChannelID, msg.ID, msg.Author.ID, kind, violationNotice(kind))
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.GuildID == "" || event.User == nil {
		return
	}
	ctx := context.Background()
	settings := b.guildSettings(ctx, event.GuildID)
	if settings.WelcomeChannelID == "" || settings.WelcomeMessage == "" {
		return
	}
	message := strings.ReplaceAll(settings.WelcomeMessage, "{user}", "<@"+event.User.ID+">")
	_, _ = session.ChannelMessageSend(settings.WelcomeChannelID, message)
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionMessageComponent {
		return
	}
	if interaction.GuildID == "" || interaction.Member == nil || interaction.Member.User == nil {
		return
	}

	ctx := context.Background()
	userID := interaction.Member.User.ID

	switch interaction.MessageComponentData().CustomID {
	case "ticket_open":
		b.handleTicketOpen(ctx, session, interaction, userID)
	case "ticket_close":
		b.handleTicketClose(ctx, session, interaction, userID)
	}
}

func (b *Bot) handleTicketOpen(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, userID string) {
	settings := b.guildSettings(ctx, interaction.GuildID)
	ticket, err := b.tickets.Open(ctx, interaction.GuildID, userID, "general", settings)
	if err != nil {
		if err == tickets.ErrAlreadyOpen {
			b.respondInteraction(session, interaction, "You already have an open ticket.")
			return
		}
		b.logger.Warn("ticket open failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respondInteraction(session, interaction, "Could not open a ticket, please try again later.")
		return
	}

	b.respondInteraction(session, interaction, "Your ticket is ready: <#"+ticket.ChannelID+">")
	b.logTicket(ctx, settings, "Ticket opened", ticket, userID)
}

func (b *Bot) handleTicketClose(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, userID string) {
	settings := b.guildSettings(ctx, interaction.GuildID)
	ticket, err := b.tickets.Close(ctx, interaction.GuildID, interaction.ChannelID, userID)
	if err != nil {
		if err == tickets.ErrNotATicket {
			b.respondInteraction(session, interaction, "This channel is not an open ticket.")
			return
		}
		b.logger.Warn("ticket close failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respondInteraction(session, interaction, "Could not close the ticket, please try again later.")
		return
	}
	b.logTicket(ctx, settings, "Ticket closed", ticket, userID)
}

func (b *Bot) logTicket(ctx context.Context, settings storage.GuildSettings, title string, ticket storage.Ticket, actorID string) {
	_ = ctx
	if settings.TicketLogChannelID == "" {
		return
	}
	embed := &discordgo.MessageEmbed{
		Title: title,
		Color: colorAction,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Ticket", Value: tickets.ShortID(ticket.TicketID), Inline: true},
			{Name: "User", Value: "<@" + ticket.UserID + ">", Inline: true},
			{Name: "By", Value: "<@" + actorID + ">", Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	_, _ = b.session.ChannelMessageSendEmbed(settings.TicketLogChannelID, embed)
}

func (b *Bot) respondInteraction(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string) {
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// guildSettings fetches the guild's policy row, creating it with defaults on
// the first observed event from that guild.
func (b *Bot) guildSettings(ctx context.Context, guildID string) storage.GuildSettings {
	defaults := storage.GuildSettings{
		GuildID:             guildID,
		Prefix:              b.cfg.DefaultPrefix,
		AutoModEnabled:      b.cfg.AutoMod.Enabled,
		AutoModSpamLimit:    b.cfg.AutoMod.SpamLimit,
		AutoModCapsPercent:  b.cfg.AutoMod.CapsPercent,
		AutoModLinksEnabled: b.cfg.AutoMod.LinksEnabled,
	}

	settings, found, err := b.store.GetGuildSettings(ctx, guildID, defaults)
	if err != nil {
		b.logger.Warn("guild settings fallback", zap.Error(err))
		return defaults
	}
	if !found {
		if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
			b.logger.Warn("guild settings create failed", zap.Error(err))
		}
	}
	return settings
}

// isExempt reports whether the author bypasses auto-moderation: guild owner,
// administrator permission, or the configured moderator role.
func (b *Bot) isExempt(guildID, userID string, member *discordgo.Member, settings storage.GuildSettings) bool {
	if settings.ModeratorRoleID != "" && member != nil {
		for _, roleID := range member.Roles {
			if roleID == settings.ModeratorRoleID {
				return true
			}
		}
	}
	return b.memberHasPermission(guildID, userID, member, discordgo.PermissionAdministrator)
}

func (b *Bot) memberHasPermission(guildID, userID string, member *discordgo.Member, permission int64) bool {
	guild, err := b.session.State.Guild(guildID)
	if err != nil || guild == nil {
		guild, _ = b.session.Guild(guildID)
	}
	if guild == nil {
		return false
	}
	if guild.OwnerID == userID {
		return true
	}
	if member == nil {
		member = b.memberForUser(guildID, userID)
	}
	if member == nil {
		return false
	}

	perms := int64(0)
	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
		if role.ID == guild.ID {
			perms |= role.Permissions
		}
	}
	for _, roleID := range member.Roles {
		if role := roleMap[roleID]; role != nil {
			perms |= role.Permissions
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return perms&permission != 0
}

func (b *Bot) memberForUser(guildID, userID string) *discordgo.Member {
	member, err := b.session.State.Member(guildID, userID)
	if err == nil && member != nil {
		return member
	}
	member, _ = b.session.GuildMember(guildID, userID)
	return member
}

// notifyModLog mirrors ledger entries into the guild's mod-log channel.
func (b *Bot) notifyModLog(ctx context.Context, entry storage.AutoModLog) {
	settings := b.guildSettings(ctx, entry.GuildID)
	if settings.ModLogChannelID == "" {
		return
	}

	embed := &discordgo.MessageEmbed{
		Title: "Moderation action",
		Color: colorWarning,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Action", Value: entry.Action, Inline: true},
			{Name: "User", Value: "<@" + entry.UserID + ">", Inline: true},
			{Name: "Reason", Value: entry.Reason, Inline: false},
		},
		Timestamp: entry.CreatedAt.Format(time.RFC3339),
	}
	_, _ = b.session.ChannelMessageSendEmbed(settings.ModLogChannelID, embed)
}

func violationNotice(kind automod.Violation) string {
	switch kind {
	case automod.ViolationSpam:
		return "please slow down, you are sending messages too fast."
	case automod.ViolationCaps:
		return "please avoid writing in all caps."
	case automod.ViolationLink:
		return "links are not allowed in this server."
	default:
		return "your message violated the server rules."
	}
}
