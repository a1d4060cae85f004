package relay

import (
	"github.com/bwmarrin/discordgo"

	"github.com/linkrelay/linkrelay/internal/preview"
)

// State is where a message is in the relay lifecycle. It is derived from the
// message itself, never stored.
type State int

const (
	// StateOriginal is a message as its author posted it.
	StateOriginal State = iota
	// StateRelayed is a copy posted through a webhook.
	StateRelayed
	// StateEnriched is a relayed copy with at least one processed embed.
	StateEnriched
)

func (s State) String() string {
	switch s {
	case StateOriginal:
		return "original"
	case StateRelayed:
		return "relayed"
	case StateEnriched:
		return "enriched"
	default:
		return "unknown"
	}
}

func StateOf(msg *discordgo.Message) State {
	if msg == nil || msg.WebhookID == "" {
		return StateOriginal
	}
	for _, embed := range msg.Embeds {
		if preview.Processed(embed) {
			return StateEnriched
		}
	}
	return StateRelayed
}
