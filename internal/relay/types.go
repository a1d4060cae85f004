package relay

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/linkrelay/linkrelay/internal/preview"
)

// Session is the subset of the Discord REST API the relay needs.
// *discordgo.Session satisfies it.
type Session interface {
	ChannelWebhooks(channelID string, options ...discordgo.RequestOption) ([]*discordgo.Webhook, error)
	WebhookCreate(channelID, name, avatar string, options ...discordgo.RequestOption) (*discordgo.Webhook, error)
	Webhook(webhookID string, options ...discordgo.RequestOption) (*discordgo.Webhook, error)
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	WebhookThreadExecute(webhookID, token string, wait bool, threadID string, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	WebhookMessageEdit(webhookID, token, messageID string, data *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	RequestWithBucketID(method, urlStr string, data interface{}, bucketID string, options ...discordgo.RequestOption) ([]byte, error)
}

// ChannelDirectory is a read-through view of channel metadata. Lookup only
// consults local state; Refresh goes to the network and updates that state.
type ChannelDirectory interface {
	Lookup(channelID string) (*discordgo.Channel, bool)
	Refresh(ctx context.Context, channelID string) (*discordgo.Channel, error)
}

// PreviewFetcher retrieves product data for a shopping URL.
type PreviewFetcher interface {
	Fetch(ctx context.Context, url string) (preview.Record, error)
}

// Target is where a relayed message is posted. ThreadID is set when the
// webhook belongs to the thread's parent channel.
type Target struct {
	Webhook  *discordgo.Webhook
	ThreadID string
}

type eventIDKey struct{}

// WithEventID tags ctx with the id of the gateway event being handled.
func WithEventID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, eventIDKey{}, id)
}

func eventIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(eventIDKey{}).(string)
	return id
}
