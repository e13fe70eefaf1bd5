package bot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"warden/internal/audit"
	"warden/internal/moderation"
	"warden/internal/storage"
	"warden/internal/tickets"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const denialReply = "You do not have permission to use this command."

type commandHandler func(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, settings storage.GuildSettings, args []string)

// command pairs a handler with the single permission it requires. Permission
// 0 means everyone may invoke it.
type command struct {
	permission  int64
	description string
	handler     commandHandler
}

func (b *Bot) commandTable() map[string]command {
	return map[string]command{
		"warn":          {discordgo.PermissionModerateMembers, "warn @user <reason>", b.cmdWarn},
		"warnings":      {discordgo.PermissionModerateMembers, "warnings [@user]", b.cmdWarnings},
		"clearwarnings": {discordgo.PermissionModerateMembers, "clearwarnings @user", b.cmdClearWarnings},
		"mute":          {discordgo.PermissionModerateMembers, "mute @user <duration> <reason>", b.cmdMute},
		"unmute":        {discordgo.PermissionModerateMembers, "unmute @user", b.cmdUnmute},
		"kick":          {discordgo.PermissionKickMembers, "kick @user [reason]", b.cmdKick},
		"ban":           {discordgo.PermissionBanMembers, "ban @user [reason]", b.cmdBan},
		"unban":         {discordgo.PermissionBanMembers, "unban <user id>", b.cmdUnban},
		"purge":         {discordgo.PermissionManageMessages, "purge <1-100>", b.cmdPurge},
		"setprefix":     {discordgo.PermissionAdministrator, "setprefix <prefix>", b.cmdSetPrefix},
		"automod":       {discordgo.PermissionAdministrator, "automod <on|off|spam N|caps N|links on|off>", b.cmdAutoMod},
		"config":        {discordgo.PermissionAdministrator, "config <modlog|ticketlog|welcome|modrole|supportrole> ...", b.cmdConfig},
		"setup":         {discordgo.PermissionAdministrator, "setup", b.cmdSetup},
		"close":         {0, "close", b.cmdClose},
		"modstats":      {discordgo.PermissionModerateMembers, "modstats", b.cmdModStats},
		"help":          {0, "help", b.cmdHelp},
	}
}

// dispatchCommand returns true when the message was handled as a command.
// Unknown names fall through to auto-moderation.
func (b *Bot) dispatchCommand(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, settings storage.GuildSettings) bool {
	fields := strings.Fields(strings.TrimPrefix(msg.Content, settings.Prefix))
	if len(fields) == 0 {
		return false
	}

	name := strings.ToLower(fields[0])
	cmd, ok := b.commands[name]
	if !ok {
		return false
	}

	if cmd.permission != 0 && !b.memberHasPermission(msg.GuildID, msg.Author.ID, msg.Member, cmd.permission) {
		b.reply(session, msg, denialReply)
		return true
	}

	cmd.handler(ctx, session, msg, settings, fields[1:])
	return true
}

func (b *Bot) cmdWarn(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, settings storage.GuildSettings, args []string) {
	if len(args) < 2 {
		b.reply(session, msg, "Usage: "+settings.Prefix+"warn @user <reason>")
		return
	}
	userID, ok := parseUserMention(args[0])
	if !ok {
		b.reply(session, msg, "Please mention the user to warn.")
		return
	}
	reason := strings.Join(args[1:], " ")

	warning := storage.Warning{
		GuildID:     msg.GuildID,
		UserID:      userID,
		ModeratorID: msg.Author.ID,
		Reason:      reason,
		CreatedAt:   time.Now(),
	}
	if err := b.store.AddWarning(ctx, warning); err != nil {
		b.reply(session, msg, "Could not record the warning.")
		return
	}
	b.audit.Log(ctx, msg.GuildID, userID, audit.ActionWarn, reason)
	b.reply(session, msg, fmt.Sprintf("<@%s> has been warned: %s", userID, reason))
}

func (b *Bot) cmdWarnings(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, settings storage.GuildSettings, args []string) {
	userID := msg.Author.ID
	if len(args) > 0 {
		if id, ok := parseUserMention(args[0]); ok {
			userID = id
		}
	}

	warnings, err := b.store.ListWarnings(ctx, msg.GuildID, userID)
	if err != nil {
		b.reply(session, msg, "Could not fetch warnings.")
		return
	}
	if len(warnings) == 0 {
		b.reply(session, msg, "No warnings found for <@"+userID+">.")
		return
	}

	lines := make([]string, 0, len(warnings))
	for i, w := range warnings {
		lines = append(lines, fmt.Sprintf("%d. %s (by <@%s>, %s)", i+1, w.Reason, w.ModeratorID, w.CreatedAt.Format("2006-01-02")))
	}
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Warnings for %s", userLabel(session, userID)),
		Description: strings.Join(lines, "\n"),
		Color:       colorWarning,
	}
	_, _ = session.ChannelMessageSendEmbed(msg.ChannelID, embed)
}

func (b *Bot) cmdClearWarnings(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, settings storage.GuildSettings, args []string) {
	if len(args) < 1 {
		b.reply(session, msg, "Usage: "+settings.Prefix+"clearwarnings @user")
		return
	}
	userID, ok := parseUserMention(args[0])
	if !ok {
		b.reply(session, msg, "Please mention the user.")
		return
	}

	cleared, err := b.store.ClearWarnings(ctx, msg.GuildID, userID)
	if err != nil {
		b.reply(session, msg, "Could not clear warnings.")
		return
	}
	b.audit.Log(ctx, msg.GuildID, userID, audit.ActionClearWarns, fmt.Sprintf("%d warnings cleared", cleared))
	b.reply(session, msg, fmt.Sprintf("Cleared %d warnings for <@%s>.", cleared, userID))
}

func (b *Bot) cmdMute(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, settings storage.GuildSettings, args []string) {
	if len(args) < 1 {
		b.reply(session, msg, "Usage: "+settings.Prefix+"mute @user <duration> <reason>")
		return
	}
	userID, ok := parseUserMention(args[0])
	if !ok {
		b.reply(session, msg, "Please mention the user to mute.")
		return
	}

	intent, ok := parseMuteIntent(args[1:])
	if !ok {
		b.reply(session, msg, "The duration must be between 1m and 28d.")
		return
	}

	if err := b.actions.ApplyTimeout(ctx, msg.GuildID, userID, msg.Author.ID, intent.reason, intent.duration, intent.permanent); err != nil {
		b.reply(session, msg, "Could not mute <@"+userID+">.")
		return
	}
	if intent.permanent {
		b.reply(session, msg, fmt.Sprintf("<@%s> has been muted: %s", userID, intent.reason))
	} else {
		b.reply(session, msg, fmt.Sprintf("<@%s> has been muted for %s: %s", userID, args[1], intent.reason))
	}
}

type muteIntent struct {
	duration  time.Duration
	permanent bool
	reason    string
}

// parseMuteIntent splits the arguments after the mention into an optional
// duration and the reason. A missing duration means the permanent default;
// an argument that is duration-shaped but out of range reports ok=false and
// the command is rejected before any gateway call.
func parseMuteIntent(args []string) (muteIntent, bool) {
	intent := muteIntent{permanent: true}
	rest := args
	if len(args) > 0 {
		if parsed, ok := moderation.ParseDuration(args[0]); ok {
			intent.duration = parsed
			intent.permanent = false
			rest = args[1:]
		} else if moderation.DurationShaped(args[0]) {
			return muteIntent{}, false
		}
	}
	intent.reason = strings.Join(rest, " ")
	if intent.reason == "" {
		intent.reason = "rule violation"
	}
	return intent, true
}

func (b *Bot) cmdUnmute(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, settings storage.GuildSettings, args []string) {
	if len(args) < 1 {
		b.reply(session, msg, "Usage: "+settings.Prefix+"unmute @user")
		return
	}
	userID, ok := parseUserMention(args[0])
	if !ok {
		b.reply(session, msg, "Please mention the user to unmute.")
		return
	}

	if err := b.actions.LiftTimeout(ctx, msg.GuildID, userID, msg.Author.ID); err != nil {
		b.reply(session, msg, "Could not unmute <@"+userID+">.")
		return
	}
	b.reply(session, msg, "<@"+userID+"> has been unmuted.")
}

func (b *Bot) cmdKick(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, settings storage.GuildSettings, args []string) {
	if len(args) < 1 {
		b.reply(session, msg, "Usage: "+settings.Prefix+"kick @user [reason]")
		return
	}
	userID, ok := parseUserMention(args[0])
	if !ok {
		b.reply(session, msg, "Please mention the user to kick.")
		return
	}
	reason := strings.Join(args[1:], " ")
	if reason == "" {
		reason = "no reason given"
	}

	if err := session.GuildMemberDeleteWithReason(msg.GuildID, userID, reason); err != nil {
		b.reply(session, msg, "Could not kick <@"+userID+">.")
		return
	}
	b.audit.Log(ctx, msg.GuildID, userID, audit.ActionKick, reason)
	b.reply(session, msg, fmt.Sprintf("<@%s> has been kicked: %s", userID, reason))
}

func (b *Bot) cmdBan(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, settings storage.GuildSettings, args []string) {
	if len(args) < 1 {
		b.reply(session, msg, "Usage: "+settings.Prefix+"ban @user [reason]")
		return
	}
	userID, ok := parseUserMention(args[0])
	if !ok {
		b.reply(session, msg, "Please mention the user to ban.")
		return
	}
	reason := strings.Join(args[1:], " ")
	if reason == "" {
		reason = "no reason given"
	}

	if err := session.GuildBanCreateWithReason(msg.GuildID, userID, reason, 0); err != nil {
		b.reply(session, msg, "Could not ban <@"+userID+">.")
		return
	}
	ban := storage.Ban{
		GuildID:     msg.GuildID,
		UserID:      userID,
		ModeratorID: msg.Author.ID,
		Reason:      reason,
		CreatedAt:   time.Now(),
	}
	if err := b.store.AddBan(ctx, ban); err != nil {
		b.logger.Warn("ban write failed", zap.String("guild_id", msg.GuildID), zap.Error(err))
	}
	b.audit.Log(ctx, msg.GuildID, userID, audit.ActionBan, reason)
	b.reply(session, msg, fmt.Sprintf("<@%s> has been banned: %s", userID, reason))
}

func (b *Bot) cmdUnban(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, settings storage.GuildSettings, args []string) {
	if len(args) < 1 {
		b.reply(session, msg, "Usage: "+settings.Prefix+"unban <user id>")
		return
	}
	userID := args[0]
	if id, ok := parseUserMention(userID); ok {
		userID = id
	}
	if !isSnowflake(userID) {
		b.reply(session, msg, "Please give a valid user id.")
		return
	}

	if err := session.GuildBanDelete(msg.GuildID, userID); err != nil {
		b.reply(session, msg, "Could not unban that user.")
		return
	}
	b.audit.Log(ctx, msg.GuildID, userID, audit.ActionUnban, "unbanned by <@"+msg.Author.ID+">")
	b.reply(session, msg, "<@"+userID+"> has been unbanned.")
}

func (b *Bot) cmdPurge(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, settings storage.GuildSettings, args []string) {
	if len(args) < 1 {
		b.reply(session, msg, "Usage: "+settings.Prefix+"purge <1-100>")
		return
	}
	count, err := strconv.Atoi(args[0])
	if err != nil || count < 1 || count > 100 {
		b.reply(session, msg, "The amount must be between 1 and 100.")
		return
	}

	messages, err := session.ChannelMessages(msg.ChannelID, count, msg.ID, "", "")
	if err != nil {
		b.reply(session, msg, "Could not fetch messages to delete.")
		return
	}
	ids := make([]string, 0, len(messages)+1)
	ids = append(ids, msg.ID)
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	if err := session.ChannelMessagesBulkDelete(msg.ChannelID, ids); err != nil {
		b.reply(session, msg, "Could not delete messages.")
		return
	}
	b.audit.Log(ctx, msg.GuildID, msg.Author.ID, audit.ActionPurge, fmt.Sprintf("%d messages purged in <#%s>", len(ids)-1, msg.ChannelID))
}

func (b *Bot) cmdSetPrefix(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, settings storage.GuildSettings, args []string) {
	if len(args) < 1 || len(args[0]) > 5 {
		b.reply(session, msg, "Usage: "+settings.Prefix+"setprefix <prefix> (5 characters max)")
		return
	}

	settings.Prefix = args[0]
	if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
		b.reply(session, msg, "Could not update the prefix.")
		return
	}
	b.reply(session, msg, "Prefix updated to `"+args[0]+"`.")
}

func (b *Bot) cmdAutoMod(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, settings storage.GuildSettings, args []string) {
	usage := "Usage: " + settings.Prefix + "automod <on|off|spam N|caps N|links on|off>"
	if len(args) < 1 {
		b.reply(session, msg, usage)
		return
	}

	switch strings.ToLower(args[0]) {
	case "on":
		settings.AutoModEnabled = true
	case "off":
		settings.AutoModEnabled = false
	case "spam":
		if len(args) < 2 {
			b.reply(session, msg, usage)
			return
		}
		limit, err := strconv.Atoi(args[1])
		if err != nil || limit < 2 || limit > 50 {
			b.reply(session, msg, "The spam limit must be between 2 and 50.")
			return
		}
		settings.AutoModSpamLimit = limit
	case "caps":
		if len(args) < 2 {
			b.reply(session, msg, usage)
			return
		}
		percent, err := strconv.Atoi(args[1])
		if err != nil || percent < 1 || percent > 100 {
			b.reply(session, msg, "The caps percentage must be between 1 and 100.")
			return
		}
		settings.AutoModCapsPercent = percent
	case "links":
		if len(args) < 2 {
			b.reply(session, msg, usage)
			return
		}
		settings.AutoModLinksEnabled = strings.ToLower(args[1]) == "on"
	default:
		b.reply(session, msg, usage)
		return
	}

	if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
		b.reply(session, msg, "Could not update auto-moderation settings.")
		return
	}
	b.reply(session, msg, fmt.Sprintf("Auto-moderation updated: enabled=%t spam=%d caps=%d%% links=%t",
		settings.AutoModEnabled, settings.AutoModSpamLimit, settings.AutoModCapsPercent, settings.AutoModLinksEnabled))
}

func (b *Bot) cmdConfig(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, settings storage.GuildSettings, args []string) {
	usage := "Usage: " + settings.Prefix + "config <modlog #channel|ticketlog #channel|welcome #channel <message>|modrole @role|supportrole @role>"
	if len(args) < 2 {
		b.reply(session, msg, usage)
		return
	}

	switch strings.ToLower(args[0]) {
	case "modlog":
		channelID, ok := parseChannelMention(args[1])
		if !ok {
			b.reply(session, msg, "Please mention a channel.")
			return
		}
		settings.ModLogChannelID = channelID
	case "ticketlog":
		channelID, ok := parseChannelMention(args[1])
		if !ok {
			b.reply(session, msg, "Please mention a channel.")
			return
		}
		settings.TicketLogChannelID = channelID
	case "welcome":
		channelID, ok := parseChannelMention(args[1])
		if !ok {
			b.reply(session, msg, "Please mention a channel.")
			return
		}
		if len(args) < 3 {
			b.reply(session, msg, "Please give a welcome message, e.g. `config welcome #general Welcome {user}!`")
			return
		}
		settings.WelcomeChannelID = channelID
		settings.WelcomeMessage = strings.Join(args[2:], " ")
	case "modrole":
		roleID, ok := parseRoleMention(args[1])
		if !ok {
			b.reply(session, msg, "Please mention a role.")
			return
		}
		settings.ModeratorRoleID = roleID
	case "supportrole":
		roleID, ok := parseRoleMention(args[1])
		if !ok {
			b.reply(session, msg, "Please mention a role.")
			return
		}
		settings.SupportRoleID = roleID
	default:
		b.reply(session, msg, usage)
		return
	}

	if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
		b.reply(session, msg, "Could not save the configuration.")
		return
	}
	b.reply(session, msg, "Configuration updated.")
}

func (b *Bot) cmdSetup(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, settings storage.GuildSettings, args []string) {
	if settings.TicketCategoryID == "" {
		category, err := session.GuildChannelCreateComplex(msg.GuildID, discordgo.GuildChannelCreateData{
			Name: "Support Tickets",
			Type: discordgo.ChannelTypeGuildCategory,
		})
		if err != nil {
			b.reply(session, msg, "Could not create the ticket category.")
			return
		}
		settings.TicketCategoryID = category.ID
	}
	if settings.TicketLogChannelID == "" {
		settings.TicketLogChannelID = msg.ChannelID
	}
	if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
		b.reply(session, msg, "Could not save the ticket configuration.")
		return
	}

	_, err := session.ChannelMessageSendComplex(msg.ChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Support",
			Description: "Need help? Press the button below to open a private ticket with the support team.",
			Color:       colorAction,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Open a ticket",
					Style:    discordgo.PrimaryButton,
					CustomID: "ticket_open",
				},
			}},
		},
	})
	if err != nil {
		b.reply(session, msg, "Could not post the ticket panel.")
	}
}

func (b *Bot) cmdClose(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, settings storage.GuildSettings, args []string) {
	ticket, err := b.tickets.Close(ctx, msg.GuildID, msg.ChannelID, msg.Author.ID)
	if err != nil {
		if err == tickets.ErrNotATicket {
			b.reply(session, msg, "This channel is not an open ticket.")
			return
		}
		b.reply(session, msg, "Could not close the ticket.")
		return
	}
	b.logTicket(ctx, settings, "Ticket closed", ticket, msg.Author.ID)
}

func (b *Bot) cmdModStats(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, settings storage.GuildSettings, args []string) {
	report, err := b.stats.Report(ctx, msg.GuildID, time.Now().Add(-7*24*time.Hour))
	if err != nil {
		b.reply(session, msg, "Could not build the report.")
		return
	}
	if report.Total == 0 {
		b.reply(session, msg, "No moderation activity in the last 7 days.")
		return
	}

	actions := make([]string, 0, len(report.ByAction))
	for action := range report.ByAction {
		actions = append(actions, action)
	}
	sort.Strings(actions)

	lines := make([]string, 0, len(actions)+1)
	lines = append(lines, fmt.Sprintf("Total: %d", report.Total))
	for _, action := range actions {
		lines = append(lines, fmt.Sprintf("%s: %d", action, report.ByAction[action]))
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Moderation activity (7 days)",
		Description: strings.Join(lines, "\n"),
		Color:       colorAction,
	}
	_, _ = session.ChannelMessageSendEmbed(msg.ChannelID, embed)
}

func (b *Bot) cmdHelp(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, settings storage.GuildSettings, args []string) {
	names := make([]string, 0, len(b.commands))
	for name := range b.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, "`"+settings.Prefix+b.commands[name].description+"`")
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Commands",
		Description: strings.Join(lines, "\n"),
		Color:       colorAction,
	}
	_, _ = session.ChannelMessageSendEmbed(msg.ChannelID, embed)
}

func (b *Bot) reply(session *discordgo.Session, msg *discordgo.MessageCreate, content string) {
	_, _ = session.ChannelMessageSend(msg.ChannelID, content)
}

func userLabel(session *discordgo.Session, userID string) string {
	if user, err := session.User(userID); err == nil && user != nil {
		return user.Username
	}
	return userID
}

// parseUserMention accepts <@id> and <@!id> forms.
func parseUserMention(arg string) (string, bool) {
	if !strings.HasPrefix(arg, "<@") || !strings.HasSuffix(arg, ">") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(arg, "<@"), ">")
	id = strings.TrimPrefix(id, "!")
	if !isSnowflake(id) {
		return "", false
	}
	return id, true
}

func parseChannelMention(arg string) (string, bool) {
	if !strings.HasPrefix(arg, "<#") || !strings.HasSuffix(arg, ">") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(arg, "<#"), ">")
	if !isSnowflake(id) {
		return "", false
	}
	return id, true
}

func parseRoleMention(arg string) (string, bool) {
	if !strings.HasPrefix(arg, "<@&") || !strings.HasSuffix(arg, ">") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(arg, "<@&"), ">")
	if !isSnowflake(id) {
		return "", false
	}
	return id, true
}

func isSnowflake(id string) bool {
	if id == "" {
		return false
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
