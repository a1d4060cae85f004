// Package links recognises shopping and social links in message text and
// rewrites them to their short canonical forms. It never touches the network.
package links

import (
	"regexp"
	"strings"
)

const (
	ShoppingHost = "www.amazon.co.jp"
	SocialHost   = "twitter.com"
	MirrorHost   = "vxtwitter.com"

	defaultCategory = "product"
)

type Kind string

const (
	KindShopping Kind = "shopping"
	KindSocial   Kind = "social"
)

var (
	// The optional path prefix is greedy so the last kind/id pair in the path wins.
	// The id and the dropped tail stop at <>(), so a link wrapped in angle
	// brackets or parentheses keeps its delimiters, and a comma-joined link
	// after it survives.
	shoppingPattern = regexp.MustCompile(
		`https?://[^\s/?#]*amazon\.co\.jp(?:/\S*)?/(?:gp(?:/product)?|(dp|ASIN|customer-reviews|product-reviews))/([^/?\s<>(),]{10,})[^\s<>(),]*`,
	)
	socialPattern = regexp.MustCompile(
		`https://twitter\.com/([a-zA-Z0-9_]{1,15})/status/([0-9]+)`,
	)
)

// Match is one recognised link occurrence. Start and End are byte offsets
// into the scanned text.
type Match struct {
	Kind  Kind
	Start int
	End   int
	Raw   string

	// Shopping links. Category is empty when the path used gp or gp/product.
	ItemID   string
	Category string

	// Social links.
	Account string
	PostID  string
}

// Canonical renders the short form of the match.
func (m Match) Canonical() string {
	switch m.Kind {
	case KindShopping:
		category := m.Category
		if category == "" {
			category = defaultCategory
		}
		return "https://" + ShoppingHost + "/gp/" + category + "/" + m.ItemID + "/"
	case KindSocial:
		return "https://" + MirrorHost + "/" + m.Account + "/status/" + m.PostID
	default:
		return m.Raw
	}
}

// Find returns every shopping and social link in text ordered by position.
func Find(text string) []Match {
	matches := findShopping(text)
	social := findSocial(text)
	if len(social) == 0 {
		return matches
	}
	merged := make([]Match, 0, len(matches)+len(social))
	i, j := 0, 0
	for i < len(matches) || j < len(social) {
		switch {
		case j >= len(social):
			merged = append(merged, matches[i])
			i++
		case i >= len(matches):
			merged = append(merged, social[j])
			j++
		case matches[i].Start <= social[j].Start:
			merged = append(merged, matches[i])
			i++
		default:
			merged = append(merged, social[j])
			j++
		}
	}
	return merged
}

func findShopping(text string) []Match {
	locs := shoppingPattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	out := make([]Match, 0, len(locs))
	for _, loc := range locs {
		m := Match{
			Kind:   KindShopping,
			Start:  loc[0],
			End:    loc[1],
			Raw:    text[loc[0]:loc[1]],
			ItemID: text[loc[4]:loc[5]],
		}
		if loc[2] >= 0 {
			m.Category = text[loc[2]:loc[3]]
		}
		out = append(out, m)
	}
	return out
}

func findSocial(text string) []Match {
	locs := socialPattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	out := make([]Match, 0, len(locs))
	for _, loc := range locs {
		out = append(out, Match{
			Kind:    KindSocial,
			Start:   loc[0],
			End:     loc[1],
			Raw:     text[loc[0]:loc[1]],
			Account: text[loc[2]:loc[3]],
			PostID:  text[loc[4]:loc[5]],
		})
	}
	return out
}

func HasShopping(text string) bool { return shoppingPattern.MatchString(text) }

func HasSocial(text string) bool { return socialPattern.MatchString(text) }

// IsShoppingURL reports whether url contains a shopping link.
func IsShoppingURL(url string) bool {
	return url != "" && shoppingPattern.MatchString(url)
}

// Rewrite replaces every shopping and social link in text with its canonical
// form. Text outside the links is kept byte for byte.
func Rewrite(text string) string {
	return RewriteSocial(RewriteShopping(text))
}

func RewriteShopping(text string) string {
	return replace(text, findShopping(text))
}

func RewriteSocial(text string) string {
	return replace(text, findSocial(text))
}

func replace(text string, matches []Match) string {
	if len(matches) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m.Start])
		b.WriteString(m.Canonical())
		last = m.End
	}
	b.WriteString(text[last:])
	return b.String()
}
