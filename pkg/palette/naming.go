package palette

import (
	"strings"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type namedColor struct {
	name  string
	color colorful.Color
}

var (
	namesOnce sync.Once
	named     []namedColor
)

// modifiers are split off SVG color keywords so "darkslateblue" reads as
// "Dark Slateblue"
var modifiers = []string{"dark", "light", "medium", "pale", "deep"}

func loadNames() {
	named = make([]namedColor, 0, len(colornames.Names))
	for _, name := range colornames.Names {
		rgba := colornames.Map[name]
		col, ok := colorful.MakeColor(rgba)
		if !ok {
			continue
		}
		named = append(named, namedColor{name: name, color: col})
	}
}

// NearestName returns the title-cased SVG color keyword closest to c by
// CIEDE2000. Keywords sharing a value resolve to the alphabetically first.
func NearestName(c colorful.Color) string {
	namesOnce.Do(loadNames)

	best := ""
	bestDist := -1.0
	for _, n := range named {
		d := c.DistanceCIEDE2000(n.color)
		if bestDist < 0 || d < bestDist {
			best = n.name
			bestDist = d
		}
	}
	return displayName(best)
}

func displayName(keyword string) string {
	var words []string
	rest := keyword
	for {
		matched := false
		for _, m := range modifiers {
			if strings.HasPrefix(rest, m) && len(rest) > len(m) {
				words = append(words, m)
				rest = rest[len(m):]
				matched = true
				break
			}
		}
		if !matched {
			break
		}
	}
	words = append(words, rest)
	return cases.Title(language.English).String(strings.Join(words, " "))
}
