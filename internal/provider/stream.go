package provider

import (
	"strings"

	"github.com/aphrodite747/app-m3u-generator/internal/catalog"
	"github.com/aphrodite747/app-m3u-generator/internal/channel"
)

// StreamBuilder turns a selected upstream entry into a playable stream URL.
type StreamBuilder interface {
	Build(e catalog.Entry, env *Env) string
}

// IDTemplate substitutes {id} with the upstream channel id.
type IDTemplate string

func (t IDTemplate) Build(e catalog.Entry, _ *Env) string {
	return strings.ReplaceAll(string(t), "{id}", e.OriginalID)
}

// SlugTemplate substitutes {slug} with the upstream slug, or one derived from
// the channel name when the upstream value is missing or longer than MaxLen.
type SlugTemplate struct {
	Template string
	MaxLen   int
}

func (t SlugTemplate) Build(e catalog.Entry, _ *Env) string {
	slug := channel.ResolveSlug(e.Channel.Slug, e.Channel.Name, t.MaxLen)
	if slug == "" {
		slug = e.OriginalID
	}
	r := strings.NewReplacer("{slug}", slug, "{id}", e.OriginalID)
	return r.Replace(t.Template)
}

// SessionTemplate substitutes {id} plus fresh {sid} and {deviceId} values on
// every call. The stitcher rejects URLs without them.
type SessionTemplate string

func (t SessionTemplate) Build(e catalog.Entry, env *Env) string {
	r := strings.NewReplacer("{id}", e.OriginalID, "{sid}", env.newID(), "{deviceId}", env.newID())
	return r.Replace(string(t))
}
