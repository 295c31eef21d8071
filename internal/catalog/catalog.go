// Package catalog holds the static lesson list served by the dashboard.
package catalog

import (
	"errors"
	"fmt"
	"regexp"
)

// Lesson describes one embeddable video unit. Lessons are defined at process
// start and never change while the service runs.
type Lesson struct {
	ID        string `mapstructure:"id" json:"id"`
	SourceURL string `mapstructure:"source_url" json:"source_url"`
}

// Catalog is an ordered, immutable set of lessons.
type Catalog struct {
	lessons []Lesson
	byID    map[string]Lesson
}

var videoIDPattern = regexp.MustCompile(`[?&]v=([^&#]+)`)

// New validates the lesson list and builds the lookup index. Lesson IDs must
// be unique and non-empty.
func New(lessons []Lesson) (*Catalog, error) {
	if len(lessons) == 0 {
		return nil, errors.New("catalog requires at least one lesson")
	}
	byID := make(map[string]Lesson, len(lessons))
	for _, l := range lessons {
		if l.ID == "" {
			return nil, errors.New("lesson id must not be empty")
		}
		if _, dup := byID[l.ID]; dup {
			return nil, fmt.Errorf("duplicate lesson id %q", l.ID)
		}
		byID[l.ID] = l
	}
	return &Catalog{
		lessons: append([]Lesson(nil), lessons...),
		byID:    byID,
	}, nil
}

// Lessons returns the ordered lesson list as a copy.
func (c *Catalog) Lessons() []Lesson {
	return append([]Lesson(nil), c.lessons...)
}

// Lookup returns the lesson for the given id.
func (c *Catalog) Lookup(id string) (Lesson, bool) {
	l, ok := c.byID[id]
	return l, ok
}

// VideoID extracts the video identifier from a watch URL via the v= query
// parameter. It returns "" when the URL carries no identifier.
func VideoID(sourceURL string) string {
	m := videoIDPattern.FindStringSubmatch(sourceURL)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// EmbedURL derives the embeddable player URL for a lesson.
func EmbedURL(l Lesson) string {
	id := VideoID(l.SourceURL)
	if id == "" {
		return ""
	}
	return "https://www.youtube.com/embed/" + id + "?enablejsapi=1"
}

// ElementID derives the DOM-level embed id bound to a lesson's player.
func ElementID(lessonID string) string {
	return "yt-player-" + lessonID
}
