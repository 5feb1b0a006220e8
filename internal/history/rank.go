package history

import "sort"

// Rank deduplicates and orders retrieved messages. The dedup key is the role
// plus the first 100 characters of content; the first occurrence wins, so
// forced-priority sources placed earlier in the slice keep their tag and
// score. Output is ordered by relevance score descending with recency as the
// tiebreak, truncated to limit. Pure function, no side effects.
func Rank(messages []RetrievedMessage, limit int) []RetrievedMessage {
	if limit <= 0 {
		limit = DefaultMaxMessages
	}

	seen := make(map[string]struct{}, len(messages))
	deduped := make([]RetrievedMessage, 0, len(messages))
	for _, rm := range messages {
		if rm.Message == nil {
			continue
		}
		key := dedupKey(rm.Message.Role, rm.Message.Content)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, rm)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		if deduped[i].RelevanceScore != deduped[j].RelevanceScore {
			return deduped[i].RelevanceScore > deduped[j].RelevanceScore
		}
		return deduped[i].Message.CreatedAt.After(deduped[j].Message.CreatedAt)
	})

	if len(deduped) > limit {
		deduped = deduped[:limit]
	}
	return deduped
}

// dedupKey builds the role + content-prefix identity used to collapse
// near-duplicate retrievals of the same message.
func dedupKey(role, content string) string {
	runes := []rune(content)
	if len(runes) > 100 {
		runes = runes[:100]
	}
	return role + ":" + string(runes)
}
