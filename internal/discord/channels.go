package discord

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
)

type channelFetcher interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// ChannelCache answers channel lookups from gateway state and its own map,
// and falls back to the REST API on Refresh. Concurrent writers may race on
// the same id; the last write wins.
type ChannelCache struct {
	logger  *slog.Logger
	state   *discordgo.State
	fetcher channelFetcher

	mu    sync.RWMutex
	items map[string]*discordgo.Channel
}

func NewChannelCache(log *slog.Logger, state *discordgo.State, fetcher channelFetcher) *ChannelCache {
	if log == nil {
		log = slog.Default()
	}
	return &ChannelCache{
		logger:  log.With(slog.String("component", "channel_cache")),
		state:   state,
		fetcher: fetcher,
		items:   make(map[string]*discordgo.Channel),
	}
}

func (c *ChannelCache) Lookup(channelID string) (*discordgo.Channel, bool) {
	c.mu.RLock()
	ch, ok := c.items[channelID]
	c.mu.RUnlock()
	if ok {
		return ch, true
	}
	if c.state == nil {
		return nil, false
	}
	ch, err := c.state.Channel(channelID)
	if err != nil || ch == nil {
		return nil, false
	}
	return ch, true
}

func (c *ChannelCache) Refresh(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	ch, err := c.fetcher.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.items[channelID] = ch
	c.mu.Unlock()
	c.logger.Debug("channel cached",
		slog.String("channel_id", channelID),
		slog.String("parent_id", ch.ParentID),
	)
	return ch, nil
}
