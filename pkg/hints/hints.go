// Package hints asks a local vision model for the things pixel heuristics
// cannot know, such as the font family of a heading.
package hints

import (
	"context"
	"strings"

	"github.com/menta2k/design-extractor/pkg/client"
	"github.com/menta2k/design-extractor/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt is the default prompt for design suggestions
const DefaultPrompt = `You are a visual design assistant looking at a UI mockup, poster or graphic.

Return JSON only:
{
  "font_families": ["Family Name", "Family Name"],
  "style": "one or two words",
  "description": "short neutral sentence (≤ 20 words)",
  "tags": ["tag1", "tag2", "tag3", "tag4", "tag5"]
}

HARD RULES
- font_families: the closest widely available font families for the visible text, largest text first. At most 3. Empty list if there is no text.
- style: e.g. "minimal", "flat", "material", "retro", "corporate", "playful".
- Description must be brief and factual.
- Tags: lowercase, concise, no punctuation or duplicates.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

const (
	maxFamilies = 3
	maxTags     = 5
)

// Advisor requests design hints from a vision model
type Advisor struct {
	client client.VisionClient
	model  string
	prompt string
}

// NewAdvisor creates a new advisor for the given model
func NewAdvisor(c client.VisionClient, model string) *Advisor {
	return &Advisor{client: c, model: model, prompt: DefaultPrompt}
}

// WithPrompt replaces the default prompt
func (a *Advisor) WithPrompt(prompt string) *Advisor {
	a.prompt = prompt
	return a
}

// Suggest returns cleaned up hints for a base64 encoded image
func (a *Advisor) Suggest(ctx context.Context, imageB64 string) (*types.DesignHints, error) {
	h, err := a.client.SuggestDesign(ctx, a.model, a.prompt, imageB64)
	if err != nil {
		return nil, err
	}
	return Normalize(h), nil
}

// TestVision tests if the model can actually see the image
func (a *Advisor) TestVision(ctx context.Context, imageB64 string) (string, error) {
	return a.client.SimpleQuery(ctx, a.model, SimpleTestPrompt, imageB64)
}

// Normalize trims, deduplicates and limits model output
func Normalize(h *types.DesignHints) *types.DesignHints {
	if h == nil {
		return &types.DesignHints{FontFamilies: []string{}, Tags: []string{}}
	}
	return &types.DesignHints{
		FontFamilies: normalizeFamilies(h.FontFamilies),
		Style:        strings.ToLower(strings.TrimSpace(h.Style)),
		Description:  strings.TrimSpace(h.Description),
		Tags:         normalizeTags(h.Tags),
	}
}

// Apply returns a copy of elements with the suggested families assigned to
// font elements in order. Extra font styles reuse the last family.
func Apply(elements []types.Element, h *types.DesignHints) []types.Element {
	out := make([]types.Element, len(elements))
	copy(out, elements)
	if h == nil || len(h.FontFamilies) == 0 {
		return out
	}

	i := 0
	for j, e := range out {
		if e.Kind != types.KindFont {
			continue
		}
		font := *e.Font
		font.Family = h.FontFamilies[min(i, len(h.FontFamilies)-1)]
		out[j].Font = &font
		i++
	}
	return out
}

func normalizeFamilies(families []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, maxFamilies)
	for _, f := range families {
		f = strings.Join(strings.Fields(f), " ")
		key := strings.ToLower(f)
		if f == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
		if len(out) == maxFamilies {
			break
		}
	}
	return out
}

// normalizeTags ensures tags are cleaned and limited to 5 entries
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, maxTags)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	return out
}
