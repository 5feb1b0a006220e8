package history

import (
	"context"
	"log"
	"strings"
)

// Retriever orchestrates the three retrieval strategies and the
// last-interaction lookup. Every step is best-effort and independently
// failable: a failed source contributes nothing instead of aborting the call,
// and Retrieve as a whole never returns an error.
type Retriever struct {
	store               MessageStore
	vectors             VectorSearcher
	embedder            Embedder
	similarityThreshold float64
}

// NewRetriever creates the retrieval engine. vectors and embedder may be nil;
// semantic search then degrades to the textual fallback.
func NewRetriever(store MessageStore, vectors VectorSearcher, embedder Embedder, similarityThreshold float64) *Retriever {
	if similarityThreshold <= 0 || similarityThreshold >= 1 {
		similarityThreshold = DefaultSimilarityThreshold
	}
	return &Retriever{
		store:               store,
		vectors:             vectors,
		embedder:            embedder,
		similarityThreshold: similarityThreshold,
	}
}

// Retrieve gathers candidate messages for a new question. The result is
// ordered so that forced-priority entries come first and survive the
// first-occurrence-wins deduplication in Rank; the configured limit is applied
// there, not here.
func (r *Retriever) Retrieve(ctx context.Context, userID, agentID, queryText, sessionID string) []RetrievedMessage {
	var results []RetrievedMessage

	if sessionID != "" {
		results = append(results, r.lastInteraction(sessionID)...)
		results = append(results, r.recentMessages(sessionID)...)
	}

	semantic, ok := r.semanticSearch(ctx, userID, agentID, queryText, sessionID)
	if ok {
		results = append(results, semantic...)
	} else {
		results = append(results, r.textSearch(userID, agentID, queryText, sessionID)...)
	}

	return results
}

// recentMessages fetches the newest messages of the session, maximum score.
func (r *Retriever) recentMessages(sessionID string) []RetrievedMessage {
	messages, err := r.store.GetRecentMessages(sessionID, recentMessageCount)
	if err != nil {
		log.Printf("Warning: recent message lookup failed for session %s: %v", sessionID, err)
		return nil
	}

	tagged := make([]RetrievedMessage, 0, len(messages))
	for _, msg := range messages {
		tagged = append(tagged, RetrievedMessage{
			Message:        msg,
			Source:         SourceRecentSession,
			RelevanceScore: scoreRecentSession,
		})
	}
	return tagged
}

// semanticSearch embeds the question and queries the vector index. The second
// return value reports whether the semantic path ran to completion; on any
// failure the caller switches to the textual fallback.
func (r *Retriever) semanticSearch(ctx context.Context, userID, agentID, queryText, sessionID string) ([]RetrievedMessage, bool) {
	if r.embedder == nil || r.vectors == nil {
		return nil, false
	}

	vec, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		log.Printf("Warning: query embedding failed: %v", err)
		return nil, false
	}

	maxDistance := 1.0 - r.similarityThreshold
	hits, err := r.vectors.SearchNearest(userID, agentID, sessionID, vec, maxDistance, semanticSearchLimit)
	if err != nil {
		log.Printf("Warning: semantic search failed: %v", err)
		return nil, false
	}

	tagged := make([]RetrievedMessage, 0, len(hits))
	for _, hit := range hits {
		tagged = append(tagged, RetrievedMessage{
			Message:        hit.Message,
			Source:         SourceSemanticSearch,
			RelevanceScore: 1.0 - hit.Distance,
		})
	}
	return tagged, true
}

// textSearch is the keyword fallback: match user messages containing any of
// the question's first three lowercase words.
func (r *Retriever) textSearch(userID, agentID, queryText, sessionID string) []RetrievedMessage {
	words := queryKeywords(queryText)
	if len(words) == 0 {
		return nil
	}

	messages, err := r.store.SearchMessagesByKeywords(userID, agentID, sessionID, words, textSearchLimit)
	if err != nil {
		log.Printf("Warning: text search failed: %v", err)
		return nil
	}

	tagged := make([]RetrievedMessage, 0, len(messages))
	for _, msg := range messages {
		tagged = append(tagged, RetrievedMessage{
			Message:        msg,
			Source:         SourceTextSearch,
			RelevanceScore: scoreTextSearch,
		})
	}
	return tagged
}

// lastInteraction fetches the session's most recent exchange: the last user
// message plus the assistant reply at sequence_order+1, falling back to the
// earliest assistant created at or after the user message when the exact
// offset is missing.
func (r *Retriever) lastInteraction(sessionID string) []RetrievedMessage {
	user, err := r.store.GetLastUserMessage(sessionID)
	if err != nil {
		log.Printf("Warning: last interaction lookup failed for session %s: %v", sessionID, err)
		return nil
	}
	if user == nil {
		return nil
	}

	assistant, err := r.store.GetAssistantAt(sessionID, user.SequenceOrder+1)
	if err != nil {
		log.Printf("Warning: last interaction answer lookup failed: %v", err)
		return nil
	}
	if assistant == nil {
		assistant, err = r.store.GetAssistantAfter(sessionID, user.CreatedAt)
		if err != nil {
			log.Printf("Warning: last interaction answer fallback failed: %v", err)
			return nil
		}
	}
	if assistant == nil {
		return nil
	}

	return []RetrievedMessage{
		{Message: user, Source: SourceLastInteraction, RelevanceScore: scoreLastInteractionUser},
		{Message: assistant, Source: SourceLastInteraction, RelevanceScore: scoreLastInteractionAssistant},
	}
}

// queryKeywords lowercases the question and keeps at most its first three
// words for substring matching.
func queryKeywords(queryText string) []string {
	words := strings.Fields(strings.ToLower(queryText))
	if len(words) > textSearchMaxWords {
		words = words[:textSearchMaxWords]
	}
	return words
}
