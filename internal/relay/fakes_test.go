package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/linkrelay/linkrelay/internal/preview"
)

var errForbidden = errors.New("HTTP 403 Forbidden, Missing Permissions")

type executeCall struct {
	WebhookID string
	ThreadID  string
	Params    discordgo.WebhookParams
}

type editCall struct {
	WebhookID string
	MessageID string
	ThreadID  string
	Embeds    []*discordgo.MessageEmbed
}

type deleteCall struct {
	ChannelID string
	MessageID string
	Reason    string
}

type fakeSession struct {
	mu sync.Mutex

	hooks      map[string][]*discordgo.Webhook
	listErr    map[string]error
	createErr  map[string]error
	webhooks   map[string]*discordgo.Webhook
	messages   map[string]*discordgo.Message
	executeErr error
	editErr    error
	deleteErr  error

	created  []string
	executes []executeCall
	edits    []editCall
	deletes  []deleteCall
	fetched  []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		hooks:     map[string][]*discordgo.Webhook{},
		listErr:   map[string]error{},
		createErr: map[string]error{},
		webhooks:  map[string]*discordgo.Webhook{},
		messages:  map[string]*discordgo.Message{},
	}
}

func (f *fakeSession) ChannelWebhooks(channelID string, options ...discordgo.RequestOption) ([]*discordgo.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErr[channelID]; err != nil {
		return nil, err
	}
	return f.hooks[channelID], nil
}

func (f *fakeSession) WebhookCreate(channelID, name, avatar string, options ...discordgo.RequestOption) (*discordgo.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErr[channelID]; err != nil {
		return nil, err
	}
	f.created = append(f.created, channelID+":"+name)
	hook := &discordgo.Webhook{ID: "created-" + channelID, ChannelID: channelID, Name: name, Token: "created-token"}
	f.hooks[channelID] = append(f.hooks[channelID], hook)
	f.webhooks[hook.ID] = hook
	return hook, nil
}

func (f *fakeSession) Webhook(webhookID string, options ...discordgo.RequestOption) (*discordgo.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hook, ok := f.webhooks[webhookID]
	if !ok {
		return nil, errors.New("unknown webhook")
	}
	return hook, nil
}

func (f *fakeSession) WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return f.WebhookThreadExecute(webhookID, token, wait, "", data, options...)
}

func (f *fakeSession) WebhookThreadExecute(webhookID, token string, wait bool, threadID string, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.executeErr != nil {
		return nil, f.executeErr
	}
	f.executes = append(f.executes, executeCall{WebhookID: webhookID, ThreadID: threadID, Params: *data})
	return &discordgo.Message{ID: "relayed-1", WebhookID: webhookID, Content: data.Content}, nil
}

func (f *fakeSession) WebhookMessageEdit(webhookID, token, messageID string, data *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return nil, f.editErr
	}
	var embeds []*discordgo.MessageEmbed
	if data.Embeds != nil {
		embeds = *data.Embeds
	}
	f.edits = append(f.edits, editCall{WebhookID: webhookID, MessageID: messageID, Embeds: embeds})
	return &discordgo.Message{ID: messageID, Embeds: embeds}, nil
}

// RequestWithBucketID only understands webhook message edits, which is the
// one raw request the relay issues.
func (f *fakeSession) RequestWithBucketID(method, urlStr string, data interface{}, bucketID string, options ...discordgo.RequestOption) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return nil, f.editErr
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}
	edit, ok := data.(*discordgo.WebhookEdit)
	if method != http.MethodPatch || !ok {
		return nil, fmt.Errorf("unexpected request %s %s", method, urlStr)
	}
	// .../webhooks/{id}/{token}/messages/{message}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 5 || parts[len(parts)-2] != "messages" {
		return nil, fmt.Errorf("unexpected path %s", u.Path)
	}
	var embeds []*discordgo.MessageEmbed
	if edit.Embeds != nil {
		embeds = *edit.Embeds
	}
	f.edits = append(f.edits, editCall{
		WebhookID: parts[len(parts)-4],
		MessageID: parts[len(parts)-1],
		ThreadID:  u.Query().Get("thread_id"),
		Embeds:    embeds,
	})
	return []byte(`{}`), nil
}

func (f *fakeSession) ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, messageID)
	msg, ok := f.messages[messageID]
	if !ok {
		return nil, errors.New("unknown message")
	}
	return msg, nil
}

func (f *fakeSession) ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, deleteCall{ChannelID: channelID, MessageID: messageID, Reason: auditReason(options)})
	return nil
}

type fakeDirectory struct {
	mu        sync.Mutex
	cached    map[string]*discordgo.Channel
	remote    map[string]*discordgo.Channel
	refreshes int
}

func (d *fakeDirectory) Lookup(channelID string) (*discordgo.Channel, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.cached[channelID]
	return ch, ok
}

func (d *fakeDirectory) Refresh(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refreshes++
	ch, ok := d.remote[channelID]
	if !ok {
		return nil, errors.New("unknown channel")
	}
	if d.cached == nil {
		d.cached = map[string]*discordgo.Channel{}
	}
	d.cached[channelID] = ch
	return ch, nil
}

type fakeFetcher struct {
	mu      sync.Mutex
	records map[string]preview.Record
	errs    map[string]error
	calls   []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (preview.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return preview.Record{}, err
	}
	return f.records[url], nil
}

// auditReason applies options to a throwaway request and reads back the
// audit log header they set.
func auditReason(options []discordgo.RequestOption) string {
	req, err := http.NewRequest(http.MethodDelete, "https://discord.invalid/", nil)
	if err != nil {
		return ""
	}
	cfg := &discordgo.RequestConfig{Request: req}
	for _, opt := range options {
		opt(cfg)
	}
	reason := cfg.Request.Header.Get("X-Audit-Log-Reason")
	if unescaped, err := url.PathUnescape(reason); err == nil {
		return unescaped
	}
	return reason
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }
