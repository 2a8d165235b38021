package graph

// The unlock gate decides whether previous/next navigation from the current
// selection is permitted. Navigation to an adjacent item requires that the
// item exists and is unlocked; out-of-bounds indices and an empty graph
// always deny.

// CanGoPrevious reports whether the item immediately before currentID exists
// and is unlocked.
func CanGoPrevious(g Graph, currentID string) bool {
	i := g.IndexOf(currentID)
	if i <= 0 {
		return false
	}
	return g.Items[i-1].Unlocked
}

// CanGoNext reports whether the item immediately after currentID exists and
// is unlocked.
func CanGoNext(g Graph, currentID string) bool {
	i := g.IndexOf(currentID)
	if i < 0 || i >= len(g.Items)-1 {
		return false
	}
	return g.Items[i+1].Unlocked
}

// Previous returns the id of the preceding item when navigation is allowed.
// Callers must not change selection when ok is false.
func Previous(g Graph, currentID string) (string, bool) {
	if !CanGoPrevious(g, currentID) {
		return "", false
	}
	return g.Items[g.IndexOf(currentID)-1].ID, true
}

// Next returns the id of the following item when navigation is allowed.
func Next(g Graph, currentID string) (string, bool) {
	if !CanGoNext(g, currentID) {
		return "", false
	}
	return g.Items[g.IndexOf(currentID)+1].ID, true
}
