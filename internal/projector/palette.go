package projector

import (
	"math/rand"
	"strings"
	"time"
)

// DefaultPalette holds the colors class sessions are drawn in.
var DefaultPalette = []string{
	"#FF5733", "#33FF57", "#3357FF", "#FFC300", "#C70039", "#900C3F", "#581845",
	"#DAF7A6", "#FF33FF", "#33FFFF", "#FFA07A", "#20B2AA", "#9370DB", "#3CB371",
	"#7B68EE", "#6A5ACD", "#FF69B4", "#FF6347", "#4682B4", "#D2B48C", "#6495ED",
	"#40E0D0", "#8A2BE2", "#FF4500", "#2E8B57", "#F08080", "#FF1493", "#FFD700",
	"#ADFF2F", "#87CEEB", "#FFB6C1", "#32CD32", "#7FFFD4", "#8B0000", "#BA55D3",
}

// ColorCache assigns each course a color on first sight and keeps it for
// the lifetime of the cache. Distinct courses may share a color.
//
// ColorCache is not safe for concurrent use; the owning session serializes
// access.
type ColorCache struct {
	palette []string
	rnd     *rand.Rand
	colors  map[string]string
}

// NewColorCache returns a cache drawing from palette (DefaultPalette when
// empty) with the given random source. A nil rnd is seeded from the clock.
func NewColorCache(palette []string, rnd *rand.Rand) *ColorCache {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &ColorCache{
		palette: palette,
		rnd:     rnd,
		colors:  make(map[string]string),
	}
}

// Color returns the color for the course an event title belongs to.
func (c *ColorCache) Color(title string) string {
	key := CourseKey(title)
	if color, ok := c.colors[key]; ok {
		return color
	}
	color := c.palette[c.rnd.Intn(len(c.palette))]
	c.colors[key] = color
	return color
}

// Len reports how many courses have a color assigned.
func (c *ColorCache) Len() int {
	return len(c.colors)
}

// CourseKey is the first whitespace-delimited token of an event title.
func CourseKey(title string) string {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
