package preview

import (
	"github.com/bwmarrin/discordgo"

	"github.com/linkrelay/linkrelay/internal/prune"
)

// Footer marks an embed as already enriched.
const Footer = "Powered by Amazon URL Shortener (@aiotter)"

// Labels are the field names used for the price and rating fields.
type Labels struct {
	Price  string
	Rating string
}

func Processed(embed *discordgo.MessageEmbed) bool {
	return embed != nil && embed.Footer != nil && embed.Footer.Text == Footer
}

// Apply merges rec into a copy of embed and stamps the footer. A processed
// embed is returned as is without looking at rec. The description is replaced
// by the title and existing fields are dropped.
func Apply(embed *discordgo.MessageEmbed, rec Record, labels Labels) *discordgo.MessageEmbed {
	if embed == nil || Processed(embed) {
		return embed
	}

	out := *embed
	if rec.ImageURL != nil {
		out.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: *rec.ImageURL}
	}
	if rec.Title != nil {
		out.Description = prune.Fit(*rec.Title, prune.EmbedDescription)
	}

	out.Fields = []*discordgo.MessageEmbedField{}
	if rec.Price != nil {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: labels.Price, Value: prune.Fit(*rec.Price, prune.EmbedFieldValue), Inline: true})
	}
	if rec.Rating != nil {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: labels.Rating, Value: prune.Fit(*rec.Rating, prune.EmbedFieldValue), Inline: true})
	}

	out.Footer = &discordgo.MessageEmbedFooter{Text: Footer}
	return &out
}
