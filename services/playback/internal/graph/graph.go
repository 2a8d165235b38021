// Package graph flattens the catalog's Series -> Courses -> videos tree into
// one ordered sequence of playable items and answers adjacency/unlock queries
// over it.
package graph

// Kind discriminates the three playable item types within a course.
type Kind string

const (
	KindIntro  Kind = "intro"
	KindLesson Kind = "lesson"
	KindEnd    Kind = "end"
)

// Item is one playable entry in the flattened curriculum sequence.
// Items are built fresh on every catalog fetch and never mutated in place.
type Item struct {
	ID            string
	Kind          Kind
	Title         string
	DurationLabel string
	CourseID      string
	SeriesID      string
	Position      int
	Unlocked      bool

	// Progress snapshot as reported by the catalog at build time.
	CompletionPercentage int
	LastPositionSeconds  float64

	// PlaybackURL is the direct URL for intro/end videos. Lessons resolve
	// their URL through the credential-bearing playback endpoint instead.
	PlaybackURL string
}

// Graph is an immutable flattened sequence of playable items.
type Graph struct {
	Items []Item
	index map[string]int
}

// Len reports the number of playable items.
func (g Graph) Len() int { return len(g.Items) }

// IndexOf returns the sequence position of id, or -1 if absent.
func (g Graph) IndexOf(id string) int {
	if i, ok := g.index[id]; ok {
		return i
	}
	return -1
}

// ItemByID looks up an item by id.
func (g Graph) ItemByID(id string) (Item, bool) {
	i := g.IndexOf(id)
	if i < 0 {
		return Item{}, false
	}
	return g.Items[i], true
}
