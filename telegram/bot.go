package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/personabot/personabot/character"
	"github.com/personabot/personabot/conversation"
	"github.com/personabot/personabot/session"
	"github.com/personabot/personabot/types"
)

// UpdateRecorder receives inbound update counts. Satisfied by
// internal/metrics.Collector.
type UpdateRecorder interface {
	RecordUpdate(kind string)
}

// BotConfig tunes the bot's behaviour.
type BotConfig struct {
	// AdminChatIDs may run operator commands.
	AdminChatIDs []int64
	// PollTimeout is the long-polling timeout.
	PollTimeout time.Duration
	// SendInterval is the minimum delay between sends to one chat.
	SendInterval time.Duration
	// DefaultRounds for /conversation runs.
	DefaultRounds int
}

// Bot dispatches inbound updates to the session registry and the
// conversation orchestrator and relays replies back. All dispatch
// happens on the single Run goroutine.
type Bot struct {
	client       *Client
	registry     *session.Registry
	orchestrator *conversation.Orchestrator
	catalog      *character.Catalog
	cfg          BotConfig
	metrics      UpdateRecorder
	logger       *zap.Logger

	admins map[int64]struct{}

	limMu    sync.Mutex
	limiters map[int64]*rate.Limiter

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewBot wires the transport to the registry and orchestrator.
func NewBot(client *Client, registry *session.Registry, orchestrator *conversation.Orchestrator, catalog *character.Catalog, cfg BotConfig, metrics UpdateRecorder, logger *zap.Logger) *Bot {
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.DefaultRounds <= 0 {
		cfg.DefaultRounds = conversation.DefaultRounds
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	admins := make(map[int64]struct{}, len(cfg.AdminChatIDs))
	for _, id := range cfg.AdminChatIDs {
		admins[id] = struct{}{}
	}
	return &Bot{
		client:       client,
		registry:     registry,
		orchestrator: orchestrator,
		catalog:      catalog,
		cfg:          cfg,
		metrics:      metrics,
		logger:       logger.With(zap.String("component", "bot")),
		admins:       admins,
		limiters:     make(map[int64]*rate.Limiter),
		stopped:      make(chan struct{}),
	}
}

// Stop requests a graceful shutdown: the poll loop stops accepting new
// updates and any in-flight handler finishes naturally.
func (b *Bot) Stop() {
	b.stopOnce.Do(func() { close(b.stopped) })
}

// Run polls for updates until the context is cancelled or Stop is
// called. Updates are handled strictly sequentially.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("bot started", zap.Duration("poll_timeout", b.cfg.PollTimeout))
	var offset int64

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.stopped:
			b.logger.Info("bot stopped")
			return nil
		default:
		}

		updates, err := b.client.GetUpdates(ctx, offset, b.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn("getUpdates failed, backing off", zap.Error(err))
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			case <-b.stopped:
				return nil
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			b.dispatch(ctx, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update Update) {
	switch {
	case update.CallbackQuery != nil:
		if b.metrics != nil {
			b.metrics.RecordUpdate("callback")
		}
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && strings.HasPrefix(update.Message.Text, "/"):
		if b.metrics != nil {
			b.metrics.RecordUpdate("command")
		}
		b.handleCommand(ctx, update.Message)
	case update.Message != nil:
		if b.metrics != nil {
			b.metrics.RecordUpdate("text")
		}
		b.handleText(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *Message) {
	fields := strings.Fields(msg.Text)
	// Strip the bot-name suffix Telegram appends in group chats.
	command := strings.SplitN(fields[0], "@", 2)[0]
	args := fields[1:]
	chatID := msg.Chat.ID

	switch command {
	case "/start":
		b.registry.Begin(chatID, displayName(msg.From))
		b.send(ctx, chatID, "Hi! This is a bot for chatting with characters.", nil)
		b.offerCharacters(ctx, chatID)

	case "/characters":
		b.offerCharacters(ctx, chatID)

	case "/history":
		agent := b.registry.Agent(chatID)
		if agent == nil {
			b.send(ctx, chatID, "No character selected; restart selection with /start.", nil)
			return
		}
		b.send(ctx, chatID, strings.Join(agent.Render(), "\n"), nil)

	case "/export":
		agent := b.registry.Agent(chatID)
		if agent == nil {
			b.send(ctx, chatID, "No character selected; restart selection with /start.", nil)
			return
		}
		data, err := agent.ExportTranscript()
		if err != nil {
			b.logger.Error("transcript export failed", zap.Int64("chat_id", chatID), zap.Error(err))
			b.send(ctx, chatID, "Could not export the transcript.", nil)
			return
		}
		b.send(ctx, chatID, string(data), nil)

	case "/fight":
		b.handleFight(ctx, chatID, args)

	case "/conversation":
		b.handleConversation(ctx, chatID, args)

	case "/broadcast":
		if !b.isAdmin(chatID) {
			b.send(ctx, chatID, "You are not allowed to do that.", nil)
			return
		}
		text := strings.TrimSpace(strings.TrimPrefix(msg.Text, "/broadcast"))
		if text == "" {
			b.send(ctx, chatID, "Usage: /broadcast <message>", nil)
			return
		}
		b.broadcast(ctx, text)

	case "/shutdown":
		if !b.isAdmin(chatID) {
			b.send(ctx, chatID, "You are not allowed to do that.", nil)
			return
		}
		b.send(ctx, chatID, "Shutting down.", nil)
		b.Stop()

	default:
		b.send(ctx, chatID, "Commands: /start, /characters, /history, /export, /fight <character>, /conversation <character> <character> ...", nil)
	}
}

func (b *Bot) handleText(ctx context.Context, msg *Message) {
	chatID := msg.Chat.ID
	reply, err := b.registry.Route(ctx, chatID, msg.Text)
	if err != nil {
		b.send(ctx, chatID, b.userMessage(err), nil)
		return
	}
	b.send(ctx, chatID, reply, nil)
}

func (b *Bot) handleCallback(ctx context.Context, query *CallbackQuery) {
	if err := b.client.AnswerCallbackQuery(ctx, query.ID); err != nil {
		b.logger.Debug("answerCallbackQuery failed", zap.Error(err))
	}
	if query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID

	res, err := b.registry.ResolveSelection(ctx, chatID, query.Data)
	if err != nil {
		b.send(ctx, chatID, b.userMessage(err), nil)
		return
	}
	switch res.Outcome {
	case session.ResolutionSelected:
		b.send(ctx, chatID, fmt.Sprintf("You picked: %s", query.Data), nil)
		b.send(ctx, chatID, res.Greeting, nil)
	case session.ResolutionNoop:
		// Stray press after a reset; deliberately silent.
	}
}

func (b *Bot) handleFight(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		b.send(ctx, chatID, "Usage: /fight <opponent> [instructions]", nil)
		return
	}
	agent := b.registry.Agent(chatID)
	if agent == nil {
		b.send(ctx, chatID, "No character selected; restart selection with /start.", nil)
		return
	}

	opponent := args[0]
	instructions := "Fight with honour."
	if len(args) > 1 {
		instructions = strings.Join(args[1:], " ")
	}

	outcome, err := agent.Challenge(ctx, opponent, instructions)
	if err != nil {
		b.send(ctx, chatID, b.userMessage(err), nil)
		return
	}
	b.send(ctx, chatID, outcome, nil)
}

func (b *Bot) handleConversation(ctx context.Context, chatID int64, labels []string) {
	events, err := b.orchestrator.Run(ctx, labels, b.cfg.DefaultRounds)
	if err != nil {
		b.send(ctx, chatID, b.userMessage(err), nil)
		return
	}

	for event := range events {
		if event.Err != nil {
			b.logger.Warn("conversation turn failed",
				zap.Int64("chat_id", chatID),
				zap.String("speaker", event.Speaker),
				zap.Error(event.Err),
			)
			b.send(ctx, chatID, fmt.Sprintf("%s fell silent. The conversation is over.", event.Speaker), nil)
			return
		}
		b.send(ctx, chatID, fmt.Sprintf("%s: %s", event.Speaker, event.Text), nil)
	}
	b.send(ctx, chatID, "The conversation has ended.", nil)
}

func (b *Bot) offerCharacters(ctx context.Context, chatID int64) {
	labels, err := b.catalog.Labels()
	if err != nil {
		b.logger.Error("catalog unavailable", zap.Int64("chat_id", chatID), zap.Error(err))
		b.send(ctx, chatID, "The character list is unavailable right now. Try again later.", nil)
		return
	}
	b.registry.OfferSelection(chatID, labels, session.ActionChooseCharacter)
	b.send(ctx, chatID, "Pick a character:", SingleColumnKeyboard(labels))
}

func (b *Bot) broadcast(ctx context.Context, text string) {
	ids := b.registry.ChatIDs()
	b.logger.Info("broadcasting", zap.Int("recipients", len(ids)))
	for _, id := range ids {
		b.send(ctx, id, text, nil)
	}
}

// userMessage converts a taxonomy error into user-facing text.
// Upstream and config detail stays in the logs.
func (b *Bot) userMessage(err error) string {
	switch types.GetErrorCode(err) {
	case types.ErrInvalidInput:
		var te *types.Error
		if errors.As(err, &te) {
			return te.Message
		}
		return "That input doesn't look right."
	case types.ErrUnknownCharacter:
		var te *types.Error
		if errors.As(err, &te) {
			return te.Message
		}
		return "I don't know that character."
	case types.ErrNoActiveCharacter:
		return "No character selected; restart selection with /start."
	case types.ErrConfigUnavailable:
		b.logger.Error("catalog failure", zap.Error(err))
		return "The character list is unavailable right now. Try again later."
	case types.ErrUpstreamFailure:
		b.logger.Error("upstream failure", zap.Error(err))
		return "The character is lost in thought and cannot answer right now."
	default:
		b.logger.Error("unexpected failure", zap.Error(err))
		return "Something went wrong. Try again."
	}
}

// send delivers text to a chat, pacing per-chat sends.
func (b *Bot) send(ctx context.Context, chatID int64, text string, keyboard *InlineKeyboardMarkup) {
	if limiter := b.limiter(chatID); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
	}
	if err := b.client.SendMessage(ctx, chatID, text, keyboard); err != nil {
		b.logger.Warn("sendMessage failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) limiter(chatID int64) *rate.Limiter {
	if b.cfg.SendInterval <= 0 {
		return nil
	}
	b.limMu.Lock()
	defer b.limMu.Unlock()
	limiter, ok := b.limiters[chatID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(b.cfg.SendInterval), 1)
		b.limiters[chatID] = limiter
	}
	return limiter
}

func (b *Bot) isAdmin(chatID int64) bool {
	_, ok := b.admins[chatID]
	return ok
}

func displayName(u *User) string {
	if u == nil {
		return "User"
	}
	if u.Username != "" {
		return u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "User"
}
