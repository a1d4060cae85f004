package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
)

var (
	ErrNotThread      = errors.New("channel is not a thread")
	ErrNoWebhookToken = errors.New("webhook has no token")
)

// Resolver finds or creates the webhook used to repost messages in a channel.
// It keeps no state between calls.
type Resolver struct {
	logger   *slog.Logger
	session  Session
	channels ChannelDirectory
	name     string
}

func NewResolver(log *slog.Logger, session Session, channels ChannelDirectory, webhookName string) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		logger:   log.With(slog.String("component", "relay_resolver")),
		session:  session,
		channels: channels,
		name:     webhookName,
	}
}

// Resolve returns a usable webhook for channelID. When the channel itself
// cannot host one and it is a thread, the parent channel's webhook is used
// and the thread id is returned alongside it.
func (r *Resolver) Resolve(ctx context.Context, channelID string) (Target, error) {
	hook, err := r.ensureWebhook(ctx, channelID)
	if err == nil {
		return Target{Webhook: hook}, nil
	}
	r.logger.Debug("direct webhook resolution failed, trying thread parent",
		slog.String("channel_id", channelID),
		slog.Any("error", err),
	)

	parentID, parentErr := r.threadParent(ctx, channelID)
	if parentErr != nil {
		return Target{}, errors.Join(err, parentErr)
	}
	hook, parentErr = r.ensureWebhook(ctx, parentID)
	if parentErr != nil {
		return Target{}, errors.Join(err, fmt.Errorf("parent %s: %w", parentID, parentErr))
	}
	return Target{Webhook: hook, ThreadID: channelID}, nil
}

func (r *Resolver) ensureWebhook(ctx context.Context, channelID string) (*discordgo.Webhook, error) {
	hooks, err := r.session.ChannelWebhooks(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	for _, hook := range hooks {
		if hook != nil && hook.Token != "" {
			return hook, nil
		}
	}

	hook, err := r.session.WebhookCreate(channelID, r.name, "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}
	if hook == nil || hook.Token == "" {
		return nil, ErrNoWebhookToken
	}
	r.logger.Info("webhook created",
		slog.String("channel_id", channelID),
		slog.String("webhook_id", hook.ID),
	)
	return hook, nil
}

func (r *Resolver) threadParent(ctx context.Context, channelID string) (string, error) {
	if r.channels == nil {
		return "", fmt.Errorf("channel %s: no channel directory", channelID)
	}
	ch, ok := r.channels.Lookup(channelID)
	if !ok {
		var err error
		ch, err = r.channels.Refresh(ctx, channelID)
		if err != nil {
			return "", fmt.Errorf("fetch channel %s: %w", channelID, err)
		}
	}
	if ch == nil || !ch.IsThread() || strings.TrimSpace(ch.ParentID) == "" {
		return "", fmt.Errorf("channel %s: %w", channelID, ErrNotThread)
	}
	return ch.ParentID, nil
}
