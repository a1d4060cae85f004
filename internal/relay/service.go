package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/linkrelay/linkrelay/internal/links"
	"github.com/linkrelay/linkrelay/internal/preview"
	"github.com/linkrelay/linkrelay/internal/prune"
)

const (
	deleteReasonShopping = "Shortening Amazon URL"
	deleteReasonSocial   = "Shortening Twitter URL"

	avatarCDN = "https://cdn.discordapp.com/avatars/"
)

// ErrContentTooLong is returned when the rewritten text no longer fits in a
// message. The original is left in place.
var ErrContentTooLong = errors.New("rewritten content exceeds message limit")

// Service reposts messages with shortened links and enriches shopping
// previews on the reposted copies. Handlers return immediately; the network
// work runs on detached tasks whose errors are only logged.
type Service struct {
	logger   *slog.Logger
	session  Session
	resolver *Resolver
	fetcher  PreviewFetcher
	labels   preview.Labels
	metrics  *Metrics

	mu     sync.Mutex
	closed bool
	tasks  sync.WaitGroup
}

func NewService(log *slog.Logger, session Session, resolver *Resolver, fetcher PreviewFetcher, labels preview.Labels, metrics *Metrics) *Service {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Service{
		logger:   log.With(slog.String("component", "relay")),
		session:  session,
		resolver: resolver,
		fetcher:  fetcher,
		labels:   labels,
		metrics:  metrics,
	}
}

// HandleMessageCreate reacts to a newly posted message.
func (s *Service) HandleMessageCreate(ctx context.Context, msg *discordgo.Message) {
	if msg == nil {
		return
	}

	var kind links.Kind
	switch {
	case links.HasShopping(msg.Content):
		kind = links.KindShopping
	case links.HasSocial(msg.Content):
		kind = links.KindSocial
	default:
		return
	}

	state := StateOf(msg)
	if state != StateOriginal {
		// Already ours. Only shopping previews attached at creation time need work.
		if kind == links.KindShopping && len(msg.Embeds) > 0 {
			s.spawn(ctx, "enrich", msg, func(ctx context.Context) error {
				return s.enrich(ctx, msg)
			})
		}
		return
	}

	s.spawn(ctx, "relay", msg, func(ctx context.Context) error {
		return s.relay(ctx, msg, kind)
	})
}

// HandleMessageUpdate reacts to a message update. Platform-attached previews
// arrive as updates without an edit timestamp; real edits are ignored.
func (s *Service) HandleMessageUpdate(ctx context.Context, update *discordgo.Message) {
	if update == nil || update.EditedTimestamp != nil {
		return
	}
	s.spawn(ctx, "enrich", update, func(ctx context.Context) error {
		msg, err := s.session.ChannelMessage(update.ChannelID, update.ID, discordgo.WithContext(ctx))
		if err != nil {
			s.metrics.fail(stageMessage)
			return fmt.Errorf("fetch message: %w", err)
		}
		if StateOf(msg) == StateOriginal || len(msg.Embeds) == 0 {
			return nil
		}
		return s.enrich(ctx, msg)
	})
}

// Wait blocks until all detached tasks have finished.
func (s *Service) Wait() {
	s.tasks.Wait()
}

// Close stops accepting new tasks and waits for the running ones. Events
// delivered after Close are dropped.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.tasks.Wait()
}

func (s *Service) relay(ctx context.Context, msg *discordgo.Message, kind links.Kind) error {
	target, err := s.resolver.Resolve(ctx, msg.ChannelID)
	if err != nil {
		s.metrics.fail(stageResolve)
		return fmt.Errorf("resolve relay webhook: %w", err)
	}

	content := links.Rewrite(msg.Content)
	if prune.Exceeds(content, prune.MessageContent) {
		s.metrics.fail(stagePost)
		return fmt.Errorf("relay %s: %w", msg.ID, ErrContentTooLong)
	}

	params := &discordgo.WebhookParams{
		Content:   content,
		Username:  DisplayName(msg.Author),
		AvatarURL: AvatarURL(msg.Author),
	}
	posted, err := s.post(ctx, target, params)
	if err != nil {
		s.metrics.fail(stagePost)
		return fmt.Errorf("post via webhook %s: %w", target.Webhook.ID, err)
	}

	reason := deleteReasonShopping
	if kind == links.KindSocial {
		reason = deleteReasonSocial
	}
	if err := s.session.ChannelMessageDelete(msg.ChannelID, msg.ID, discordgo.WithAuditLogReason(reason), discordgo.WithContext(ctx)); err != nil {
		s.metrics.fail(stageDelete)
		return fmt.Errorf("delete original: %w", err)
	}

	s.metrics.Relayed.WithLabelValues(string(kind)).Inc()
	attrs := []any{
		slog.String("event_id", eventIDFrom(ctx)),
		slog.String("channel_id", msg.ChannelID),
		slog.String("message_id", msg.ID),
		slog.String("kind", string(kind)),
	}
	if posted != nil {
		attrs = append(attrs, slog.String("relayed_id", posted.ID))
	}
	s.logger.Info("message relayed", attrs...)
	return nil
}

func (s *Service) post(ctx context.Context, target Target, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	hook := target.Webhook
	if target.ThreadID != "" {
		return s.session.WebhookThreadExecute(hook.ID, hook.Token, true, target.ThreadID, params, discordgo.WithContext(ctx))
	}
	return s.session.WebhookExecute(hook.ID, hook.Token, true, params, discordgo.WithContext(ctx))
}

// enrich rebuilds the embed list of a relayed message and writes it back
// through the webhook that posted it. Nothing is written when no embed changed.
func (s *Service) enrich(ctx context.Context, msg *discordgo.Message) error {
	embeds, changed := s.enrichEmbeds(ctx, msg.Embeds)
	if changed == 0 {
		return nil
	}

	hook, err := s.session.Webhook(msg.WebhookID, discordgo.WithContext(ctx))
	if err != nil {
		s.metrics.fail(stageEdit)
		return fmt.Errorf("get webhook %s: %w", msg.WebhookID, err)
	}
	if hook == nil || hook.Token == "" {
		s.metrics.fail(stageEdit)
		return fmt.Errorf("webhook %s: %w", msg.WebhookID, ErrNoWebhookToken)
	}

	if err := s.editEmbeds(ctx, hook, msg, embeds); err != nil {
		s.metrics.fail(stageEdit)
		return fmt.Errorf("edit message %s: %w", msg.ID, err)
	}

	s.metrics.CardsEnriched.Add(float64(changed))
	s.logger.Info("previews enriched",
		slog.String("event_id", eventIDFrom(ctx)),
		slog.String("channel_id", msg.ChannelID),
		slog.String("message_id", msg.ID),
		slog.Int("cards", changed),
	)
	return nil
}

// editEmbeds replaces the embeds of a webhook message. A message the webhook
// posted into a thread of its channel must be addressed with the thread id.
func (s *Service) editEmbeds(ctx context.Context, hook *discordgo.Webhook, msg *discordgo.Message, embeds []*discordgo.MessageEmbed) error {
	data := &discordgo.WebhookEdit{Embeds: &embeds}
	if hook.ChannelID == "" || hook.ChannelID == msg.ChannelID {
		_, err := s.session.WebhookMessageEdit(hook.ID, hook.Token, msg.ID, data, discordgo.WithContext(ctx))
		return err
	}
	uri := discordgo.EndpointWebhookMessage(hook.ID, hook.Token, msg.ID) + "?thread_id=" + url.QueryEscape(msg.ChannelID)
	_, err := s.session.RequestWithBucketID(http.MethodPatch, uri, data, discordgo.EndpointWebhookToken("", ""), discordgo.WithContext(ctx))
	return err
}

// enrichEmbeds returns the full embed list with every unprocessed shopping
// embed merged, plus how many embeds were changed. A failed fetch leaves that
// embed untouched so a later update can retry it.
func (s *Service) enrichEmbeds(ctx context.Context, embeds []*discordgo.MessageEmbed) ([]*discordgo.MessageEmbed, int) {
	out := make([]*discordgo.MessageEmbed, 0, len(embeds))
	changed := 0
	for _, embed := range embeds {
		if embed == nil || preview.Processed(embed) || !links.IsShoppingURL(embed.URL) {
			out = append(out, embed)
			continue
		}
		rec, err := s.fetcher.Fetch(ctx, embed.URL)
		if err != nil {
			s.metrics.fail(stageFetch)
			s.logger.Warn("preview fetch failed",
				slog.String("event_id", eventIDFrom(ctx)),
				slog.String("url", embed.URL),
				slog.Any("error", err),
			)
			out = append(out, embed)
			continue
		}
		out = append(out, preview.Apply(embed, rec, s.labels))
		changed++
	}
	return out, changed
}

// spawn runs fn detached from the caller. The task outlives cancellation of
// ctx; its error is routed to the log.
func (s *Service) spawn(ctx context.Context, name string, msg *discordgo.Message, fn func(context.Context) error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("service closed, dropping task",
			slog.String("task", name),
			slog.String("event_id", eventIDFrom(ctx)),
		)
		return
	}
	s.tasks.Add(1)
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer s.tasks.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("task panicked",
					slog.String("task", name),
					slog.String("event_id", eventIDFrom(ctx)),
					slog.Any("panic", r),
				)
			}
		}()
		if err := fn(ctx); err != nil {
			s.logger.Error(name+" failed",
				slog.String("event_id", eventIDFrom(ctx)),
				slog.String("channel_id", msg.ChannelID),
				slog.String("message_id", msg.ID),
				slog.Any("error", err),
			)
		}
	}()
}

// DisplayName renders the name a relayed message is posted under.
// Accounts migrated off discriminators report "0" and get the bare username.
func DisplayName(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	d := strings.TrimSpace(u.Discriminator)
	if d == "" || d == "0" {
		return u.Username
	}
	return u.Username + "#" + d
}

// AvatarURL builds the CDN URL for the user's avatar. Users without a custom
// avatar get an empty string so the webhook default is used.
func AvatarURL(u *discordgo.User) string {
	if u == nil || u.ID == "" || u.Avatar == "" {
		return ""
	}
	return avatarCDN + u.ID + "/" + u.Avatar + ".png"
}
