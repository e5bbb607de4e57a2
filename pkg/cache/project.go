package cache

// Project flattens an entry's cached pages into the single list the caller
// renders. Pages concatenate in fetch order; duplicate items (by id) keep
// their first occurrence, so an unstable remote ordering that repeats an item
// on a later page never visually reorders content already on screen.
//
// Pure with respect to the entry and linear in the total accumulated items;
// it is recomputed on every relevant mutation.
func Project[T any](entry *Entry[T], id func(T) string) []T {
	if entry == nil {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	total := 0
	for _, p := range entry.pages {
		total += len(p.Items)
	}

	out := make([]T, 0, total)
	seen := make(map[string]struct{}, total)
	for _, p := range entry.pages {
		for _, item := range p.Items {
			itemID := id(item)
			if _, dup := seen[itemID]; dup {
				continue
			}
			seen[itemID] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}
