package stage

// The queue keeps a canonical shape at all times: zero or more played items,
// at most one playing item, then the waiting items. The first
// priorityRegionSize non-played items form the priority region.

func findItem(queue []*QueueItem, id string) *QueueItem {
	for _, item := range queue {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// priorityItems returns the leading non-played items, at most
// priorityRegionSize of them.
func priorityItems(queue []*QueueItem) []*QueueItem {
	out := make([]*QueueItem, 0, priorityRegionSize)
	for _, item := range queue {
		if item.Status == ItemPlayed {
			continue
		}
		out = append(out, item)
		if len(out) == priorityRegionSize {
			break
		}
	}
	return out
}

// protectedPrefixLen returns the length of the queue prefix that reordering
// must not disturb: everything up to and including the last item of the
// priority region.
func protectedPrefixLen(queue []*QueueItem) int {
	seen := 0
	for i, item := range queue {
		if item.Status == ItemPlayed {
			continue
		}
		seen++
		if seen == priorityRegionSize {
			return i + 1
		}
	}
	return len(queue)
}

// reorderQueue applies the host's desired ordering to the reorderable tail.
// IDs that name protected or unknown items are ignored; tail items the host
// did not mention keep their relative order and follow the mentioned ones.
func reorderQueue(queue []*QueueItem, ids []string) []*QueueItem {
	prefix := protectedPrefixLen(queue)
	if prefix >= len(queue) {
		return queue
	}

	tail := queue[prefix:]
	inTail := make(map[string]*QueueItem, len(tail))
	for _, item := range tail {
		inTail[item.ID] = item
	}

	reordered := make([]*QueueItem, 0, len(tail))
	taken := make(map[string]bool, len(tail))
	for _, id := range ids {
		if item, ok := inTail[id]; ok && !taken[id] {
			reordered = append(reordered, item)
			taken[id] = true
		}
	}
	for _, item := range tail {
		if !taken[item.ID] {
			reordered = append(reordered, item)
		}
	}

	out := make([]*QueueItem, 0, len(queue))
	out = append(out, queue[:prefix]...)
	return append(out, reordered...)
}

// advanceQueue marks the playing item played and promotes the first waiting
// ready or pending item. It returns the promoted item, or nil when nothing
// was waiting.
func advanceQueue(queue []*QueueItem) *QueueItem {
	for _, item := range queue {
		if item.Status == ItemPlaying {
			item.Status = ItemPlayed
			break
		}
	}
	for _, item := range queue {
		if item.Status == ItemReady || item.Status == ItemPending {
			item.Status = ItemPlaying
			return item
		}
	}
	return nil
}

// removeQueueItem deletes the identified item unless it is currently playing.
// It reports whether the queue changed.
func removeQueueItem(queue []*QueueItem, id string) ([]*QueueItem, bool) {
	for i, item := range queue {
		if item.ID != id {
			continue
		}
		if item.Status == ItemPlaying {
			return queue, false
		}
		return append(queue[:i:i], queue[i+1:]...), true
	}
	return queue, false
}
