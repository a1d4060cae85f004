package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/linkrelay/linkrelay/internal/relay"
)

const inboundDedupTTL = time.Minute

// Intents needed to see guild messages, their content and thread metadata.
const Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

var ErrAlreadyConnected = errors.New("discord session already connected")

// EventHandler receives gateway message events. Implementations must return
// quickly; the adapter does not wait for background work.
type EventHandler interface {
	HandleMessageCreate(ctx context.Context, msg *discordgo.Message)
	HandleMessageUpdate(ctx context.Context, msg *discordgo.Message)
}

type Adapter struct {
	logger   *slog.Logger
	session  *discordgo.Session
	channels *ChannelCache

	mu              sync.Mutex
	handlerRemovers []func()
	seenMessages    map[string]time.Time
	conn            *Connection
}

// NewAdapter creates a session for token without connecting it.
func NewAdapter(log *slog.Logger, token string) (*Adapter, error) {
	if log == nil {
		log = slog.Default()
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("discord token is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = Intents

	logger := log.With(slog.String("adapter", "discord"))
	return &Adapter{
		logger:       logger,
		session:      session,
		channels:     NewChannelCache(logger, session.State, session),
		seenMessages: make(map[string]time.Time),
		conn:         newConnection(),
	}, nil
}

// Session exposes the REST client for the relay.
func (a *Adapter) Session() *discordgo.Session {
	return a.session
}

// Channels is the read-through channel directory backed by gateway state.
func (a *Adapter) Channels() *ChannelCache {
	return a.channels
}

// Connection reports gateway status.
func (a *Adapter) Connection() *Connection {
	return a.conn
}

// Connect registers handler for message events and opens the gateway.
func (a *Adapter) Connect(ctx context.Context, handler EventHandler) (*Connection, error) {
	a.mu.Lock()
	if len(a.handlerRemovers) > 0 {
		a.mu.Unlock()
		return nil, ErrAlreadyConnected
	}
	a.handlerRemovers = []func(){
		a.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
			a.conn.markRunning(true, nil)
			a.logger.Info("connected to gateway",
				slog.String("user", r.User.Username),
				slog.Int("guilds", len(r.Guilds)),
			)
		}),
		a.session.AddHandler(func(s *discordgo.Session, r *discordgo.Resumed) {
			a.conn.markRunning(true, nil)
			a.logger.Info("gateway session resumed")
		}),
		a.session.AddHandler(func(s *discordgo.Session, d *discordgo.Disconnect) {
			a.conn.markRunning(false, errors.New("gateway disconnected"))
			a.logger.Warn("gateway disconnected")
		}),
		a.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
			if m.Message == nil || ctx.Err() != nil {
				return
			}
			if a.isSelf(s, m.Author) || a.isDuplicateInbound(m.ID) {
				return
			}
			eventID := uuid.NewString()
			a.logger.Debug("message create",
				slog.String("event_id", eventID),
				slog.String("channel_id", m.ChannelID),
				slog.String("message_id", m.ID),
				slog.String("webhook_id", m.WebhookID),
			)
			handler.HandleMessageCreate(relay.WithEventID(ctx, eventID), m.Message)
		}),
		a.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageUpdate) {
			if m.Message == nil || ctx.Err() != nil {
				return
			}
			eventID := uuid.NewString()
			a.logger.Debug("message update",
				slog.String("event_id", eventID),
				slog.String("channel_id", m.ChannelID),
				slog.String("message_id", m.ID),
				slog.Bool("edited", m.EditedTimestamp != nil),
			)
			handler.HandleMessageUpdate(relay.WithEventID(ctx, eventID), m.Message)
		}),
	}
	a.mu.Unlock()

	if err := a.session.Open(); err != nil {
		a.removeHandlers()
		a.conn.markRunning(false, err)
		return nil, fmt.Errorf("discord open connection: %w", err)
	}
	a.conn.markRunning(true, nil)

	a.conn.setStop(func(stopCtx context.Context) error {
		a.logger.Info("stop")
		a.removeHandlers()
		err := a.session.Close()
		a.conn.markRunning(false, err)
		return err
	})
	return a.conn, nil
}

func (a *Adapter) removeHandlers() {
	a.mu.Lock()
	removers := a.handlerRemovers
	a.handlerRemovers = nil
	a.mu.Unlock()
	for _, remove := range removers {
		remove()
	}
}

func (a *Adapter) isSelf(s *discordgo.Session, author *discordgo.User) bool {
	if author == nil || s == nil || s.State == nil || s.State.User == nil {
		return false
	}
	return author.ID == s.State.User.ID
}

// isDuplicateInbound drops message ids seen within inboundDedupTTL. The
// gateway can replay MESSAGE_CREATE after a resume, and relaying twice would
// post a duplicate copy.
func (a *Adapter) isDuplicateInbound(messageID string) bool {
	if strings.TrimSpace(messageID) == "" {
		return false
	}

	now := time.Now().UTC()
	expireBefore := now.Add(-inboundDedupTTL)

	a.mu.Lock()
	defer a.mu.Unlock()

	for key, seenAt := range a.seenMessages {
		if seenAt.Before(expireBefore) {
			delete(a.seenMessages, key)
		}
	}

	if _, ok := a.seenMessages[messageID]; ok {
		return true
	}
	a.seenMessages[messageID] = now
	return false
}
