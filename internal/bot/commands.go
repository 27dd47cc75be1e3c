// Package bot implements the Telegram command surface: recipient
// registration, subscription toggles and admin-originated broadcasts.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bissquit/soc-relay/internal/alerts"
	"github.com/bissquit/soc-relay/internal/domain"
	"github.com/bissquit/soc-relay/internal/registry"
	"github.com/bissquit/soc-relay/internal/telegram"
)

const helpText = `🛡️ SOC Relay commands:

/start - Register yourself as an alert recipient.
/stop - Unregister.
/admins - List all registered recipients.
/receive_alert - Enable forwarding of incoming alerts to you.
/stop_receive - Disable forwarding.
/testalert - Send a test alert to all registered recipients.
/broadcast <msg> - Send a custom message to all other recipients.
/show_state - Show per-recipient forwarding state.
/help - Show this message.`

// Commands routes chat commands to registry and dispatcher operations
// and formats human-readable replies. It never sends a raw internal
// error back to the chat.
type Commands struct {
	store       registry.Store
	dispatcher  *alerts.Dispatcher
	replies     alerts.Sender
	superAdmins map[int64]struct{}
	botUsername string
}

// NewCommands creates the command router. superAdminIDs lists chat ids
// that may use privileged commands without being registered.
func NewCommands(store registry.Store, dispatcher *alerts.Dispatcher, replies alerts.Sender, superAdminIDs []int64) *Commands {
	super := make(map[int64]struct{}, len(superAdminIDs))
	for _, id := range superAdminIDs {
		super[id] = struct{}{}
	}
	return &Commands{
		store:       store,
		dispatcher:  dispatcher,
		replies:     replies,
		superAdmins: super,
	}
}

// SetBotUsername records the bot's own username so that /cmd@botname
// mentions addressed to other bots are ignored.
func (c *Commands) SetBotUsername(name string) {
	c.botUsername = name
}

// Handle processes one inbound message. Non-command chatter is ignored.
func (c *Commands) Handle(ctx context.Context, msg *telegram.Message) {
	if msg == nil || msg.Text == "" {
		return
	}

	cmd, args := splitCommand(msg.Text)
	if cmd == "" {
		return
	}

	cmd, mention, hasMention := strings.Cut(cmd, "@")
	if hasMention && !strings.EqualFold(mention, c.botUsername) {
		return
	}

	slog.Debug("handling command", "command", cmd, "chat_id", msg.Chat.ID)

	switch cmd {
	case "/start":
		c.handleStart(ctx, msg)
	case "/stop":
		c.handleStop(ctx, msg)
	case "/admins":
		c.handleAdmins(ctx, msg)
	case "/receive_alert":
		c.handleToggle(ctx, msg, true)
	case "/stop_receive":
		c.handleToggle(ctx, msg, false)
	case "/testalert":
		c.handleTestAlert(ctx, msg)
	case "/broadcast":
		c.handleBroadcast(ctx, msg, args)
	case "/show_state":
		c.handleShowState(ctx, msg)
	case "/help":
		c.reply(ctx, msg.Chat.ID, esc(helpText))
	default:
		c.reply(ctx, msg.Chat.ID, esc("Unknown command. Use /help."))
	}
}

func (c *Commands) handleStart(ctx context.Context, msg *telegram.Message) {
	name := displayName(msg)
	created, err := c.store.Add(ctx, msg.Chat.ID, name)
	if err != nil {
		slog.Error("register recipient failed", "chat_id", msg.Chat.ID, "error", err)
		c.reply(ctx, msg.Chat.ID, esc("⚠️ Registration failed, try again later."))
		return
	}

	if !created {
		c.reply(ctx, msg.Chat.ID, esc("ℹ️ Already registered."))
		return
	}

	c.reply(ctx, msg.Chat.ID, esc("✅ Registered "+nameOrUnknown(name)+"."))
	c.reply(ctx, msg.Chat.ID, esc(helpText))
}

func (c *Commands) handleStop(ctx context.Context, msg *telegram.Message) {
	removed, err := c.store.Remove(ctx, msg.Chat.ID)
	if err != nil {
		slog.Error("unregister recipient failed", "chat_id", msg.Chat.ID, "error", err)
		c.reply(ctx, msg.Chat.ID, esc("⚠️ Unregistration failed, try again later."))
		return
	}

	if removed {
		c.reply(ctx, msg.Chat.ID, esc("🛑 Removed."))
	} else {
		c.reply(ctx, msg.Chat.ID, esc("ℹ️ You were not registered."))
	}
}

func (c *Commands) handleAdmins(ctx context.Context, msg *telegram.Message) {
	recipients, err := c.store.List(ctx)
	if err != nil {
		slog.Error("list recipients failed", "error", err)
		c.reply(ctx, msg.Chat.ID, esc("⚠️ Could not read the registry."))
		return
	}

	if len(recipients) == 0 {
		c.reply(ctx, msg.Chat.ID, esc("No recipients registered yet."))
		return
	}

	var b strings.Builder
	b.WriteString("👥 *Registered recipients:*\n")
	for _, r := range recipients {
		fmt.Fprintf(&b, "• %s — `%d`\n", esc(nameOrUnknown(r.DisplayName)), r.ChatID)
	}
	c.reply(ctx, msg.Chat.ID, strings.TrimRight(b.String(), "\n"))
}

func (c *Commands) handleToggle(ctx context.Context, msg *telegram.Message, enable bool) {
	verb := "enable"
	if !enable {
		verb = "disable"
	}

	if !c.isAuthorized(ctx, msg.Chat.ID) {
		c.reply(ctx, msg.Chat.ID, esc("❌ Only registered recipients can "+verb+" alert forwarding."))
		return
	}

	if current, known := c.subscriptionState(ctx, msg.Chat.ID); known && current == enable {
		state := "DISABLED"
		if enable {
			state = "ENABLED"
		}
		c.reply(ctx, msg.Chat.ID, esc("⚠️ Alert forwarding already "+state+"."))
		return
	}

	found, err := c.store.SetSubscribed(ctx, msg.Chat.ID, enable)
	if err != nil {
		slog.Error("toggle subscription failed", "chat_id", msg.Chat.ID, "error", err)
		c.reply(ctx, msg.Chat.ID, esc("⚠️ Could not update your subscription, try again later."))
		return
	}
	if !found {
		c.reply(ctx, msg.Chat.ID, esc("⚠️ Register with /start first."))
		return
	}

	if enable {
		c.reply(ctx, msg.Chat.ID, esc("✅ You will now receive incoming alerts.\nUse /stop_receive to disable."))
	} else {
		c.reply(ctx, msg.Chat.ID, esc("🛑 You will no longer receive alerts."))
	}
}

func (c *Commands) handleTestAlert(ctx context.Context, msg *telegram.Message) {
	if !c.isAuthorized(ctx, msg.Chat.ID) {
		c.reply(ctx, msg.Chat.ID, esc("❌ Only registered recipients can send a test alert."))
		return
	}

	ids, err := c.registeredIDs(ctx, 0)
	if err != nil {
		c.reply(ctx, msg.Chat.ID, esc("⚠️ Could not read the registry."))
		return
	}
	if len(ids) == 0 {
		c.reply(ctx, msg.Chat.ID, esc("No recipients registered yet."))
		return
	}

	text := alerts.RenderAlert(domain.Alert{
		Summary:  "Test alert from SOC Relay",
		Severity: 6,
		Details:  map[string]any{"demo": true},
		Tags:     []string{"TEST"},
	})

	results := c.dispatcher.Dispatch(ctx, text, ids)
	sent, failed := countOutcomes(results)
	c.reply(ctx, msg.Chat.ID, esc(fmt.Sprintf("✅ Test alert sent to %d recipient(s), %d failed.", sent, failed)))
}

func (c *Commands) handleBroadcast(ctx context.Context, msg *telegram.Message, args string) {
	if !c.isAuthorized(ctx, msg.Chat.ID) {
		c.reply(ctx, msg.Chat.ID, esc("❌ Only registered recipients can broadcast."))
		return
	}

	if args == "" {
		c.reply(ctx, msg.Chat.ID, esc("⚠️ Usage: /broadcast <message>"))
		return
	}

	// Everyone registered except the issuer.
	ids, err := c.registeredIDs(ctx, msg.Chat.ID)
	if err != nil {
		c.reply(ctx, msg.Chat.ID, esc("⚠️ Could not read the registry."))
		return
	}
	if len(ids) == 0 {
		c.reply(ctx, msg.Chat.ID, esc("Nobody else is registered."))
		return
	}

	results := c.dispatcher.Dispatch(ctx, esc(args), ids)
	sent, failed := countOutcomes(results)
	c.reply(ctx, msg.Chat.ID, esc(fmt.Sprintf("✅ Broadcast sent to %d recipient(s), %d failed.", sent, failed)))
}

func (c *Commands) handleShowState(ctx context.Context, msg *telegram.Message) {
	recipients, err := c.store.List(ctx)
	if err != nil {
		slog.Error("list recipients failed", "error", err)
		c.reply(ctx, msg.Chat.ID, esc("⚠️ Could not read the registry."))
		return
	}

	if len(recipients) == 0 {
		c.reply(ctx, msg.Chat.ID, esc("No recipients registered yet."))
		return
	}

	var b strings.Builder
	b.WriteString("📊 *Current state:*\n\n")
	for _, r := range recipients {
		status := "❌ OFF"
		if r.Subscribed {
			status = "✅ ON"
		}
		fmt.Fprintf(&b, "• %s — `%d` — %s\n", esc(nameOrUnknown(r.DisplayName)), r.ChatID, status)
	}
	c.reply(ctx, msg.Chat.ID, strings.TrimRight(b.String(), "\n"))
}

// reply sends an already MarkdownV2-safe text back to the issuer.
// Reply failures are logged, never surfaced.
func (c *Commands) reply(ctx context.Context, chatID int64, text string) {
	if err := c.replies.SendMessage(ctx, chatID, text); err != nil {
		slog.Warn("reply failed", "chat_id", chatID, "error", err)
	}
}

func (c *Commands) isAuthorized(ctx context.Context, chatID int64) bool {
	if _, ok := c.superAdmins[chatID]; ok {
		return true
	}

	recipients, err := c.store.List(ctx)
	if err != nil {
		return false
	}
	for _, r := range recipients {
		if r.ChatID == chatID {
			return true
		}
	}
	return false
}

// subscriptionState reports the issuer's current flag; known is false
// when the issuer has no record.
func (c *Commands) subscriptionState(ctx context.Context, chatID int64) (current, known bool) {
	recipients, err := c.store.List(ctx)
	if err != nil {
		return false, false
	}
	for _, r := range recipients {
		if r.ChatID == chatID {
			return r.Subscribed, true
		}
	}
	return false, false
}

func (c *Commands) registeredIDs(ctx context.Context, exclude int64) ([]int64, error) {
	recipients, err := c.store.List(ctx)
	if err != nil {
		slog.Error("list recipients failed", "error", err)
		return nil, err
	}

	var ids []int64
	for _, r := range recipients {
		if r.ChatID != exclude {
			ids = append(ids, r.ChatID)
		}
	}
	return ids, nil
}

func countOutcomes(results []alerts.DeliveryResult) (sent, failed int) {
	for _, r := range results {
		if r.Status == alerts.DeliverySent {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed
}

func esc(text string) string {
	return alerts.EscapeMarkdownV2(text)
}

func splitCommand(text string) (cmd, args string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	cmd, args, _ = strings.Cut(text, " ")
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

func displayName(msg *telegram.Message) string {
	if msg.From != nil && msg.From.Username != "" {
		return msg.From.Username
	}
	return msg.Chat.Username
}

func nameOrUnknown(name string) string {
	if name == "" {
		return "unknown"
	}
	return name
}
