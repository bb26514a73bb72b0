// Package link defines the link-in-bio entry types shared by the store, the enrichment
// coordinator and the HTTP API.
package link

// Platform tags the destination of a link entry.
type Platform string

// Platform tags known to the page.
const (
	Instagram Platform = "instagram"
	TikTok    Platform = "tiktok"
	YouTube   Platform = "youtube"
	Discord   Platform = "discord"
	Twitter   Platform = "twitter"
	Download  Platform = "download"
	Generic   Platform = "generic"
)

var knownPlatforms = map[Platform]bool{
	Instagram: true,
	TikTok:    true,
	YouTube:   true,
	Discord:   true,
	Twitter:   true,
	Download:  true,
	Generic:   true,
}

// ParsePlatform converts an icon tag to a Platform.
// Unknown or empty tags map to Generic and ok is false.
func ParsePlatform(tag string) (p Platform, ok bool) {
	p = Platform(tag)
	if knownPlatforms[p] {
		return p, true
	}
	return Generic, false
}

// State is the enrichment state of a single entry during one page load.
type State string

// Enrichment states. Enriched and Unenriched are terminal once a run finishes.
const (
	Unenriched State = "unenriched"
	Enriching  State = "enriching"
	Enriched   State = "enriched"
)

// Entry is a social or contact destination shown on the page.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Entry struct {
	ID       string   `json:"id" yaml:"id"`
	Title    string   `json:"title" yaml:"title"`
	URL      string   `json:"url" yaml:"url"`
	Platform Platform `json:"icon" yaml:"icon"`
	Accent   string   `json:"colorClass,omitempty" yaml:"color_class"`

	// Subtitle starts as the static call-to-action and may be replaced once per load
	// with an enriched string such as "12.3K Seguidores".
	Subtitle string `json:"cta,omitempty" yaml:"cta"`

	State State `json:"state,omitempty" yaml:"-"`
}
