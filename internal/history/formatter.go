package history

import (
	"regexp"
	"sort"
	"strings"

	"github.com/raki39/FRONTGraph-sub001/internal/model"
)

// Section headers of the formatted context block.
const (
	sectionLastInteraction = "ULTIMA_INTERACAO:"
	sectionRelevant        = "HISTORICO_RELEVANTE:"
)

var (
	fencedBlockRe   = regexp.MustCompile("(?s)```.*?```")
	fencedSQLRe     = regexp.MustCompile("(?is)```sql\\s+(.+?)```")
	fencedQueryRe   = regexp.MustCompile("(?is)```\\s*((?:select|with)\\b.+?)```")
	terminatedSQLRe = regexp.MustCompile(`(?is)\b((?:select|with)\b.*?;)`)
	trailingSQLRe   = regexp.MustCompile(`(?i)\b(?:select|with)\b`)
)

// exchangePair groups one question with its answer.
type exchangePair struct {
	user      RetrievedMessage
	assistant RetrievedMessage
}

func (p exchangePair) score() float64 {
	if p.user.RelevanceScore > p.assistant.RelevanceScore {
		return p.user.RelevanceScore
	}
	return p.assistant.RelevanceScore
}

// FormatContext renders ranked messages into the two-section prompt block the
// answering agent consumes. Deterministic: given the same input it always
// produces byte-identical output, with no dependence on wall-clock time.
func FormatContext(messages []RetrievedMessage) string {
	if len(messages) == 0 {
		return ""
	}

	sorted := make([]RetrievedMessage, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Message, sorted[j].Message
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.SequenceOrder < b.SequenceOrder
	})

	pairs := buildPairs(sorted)
	lastIdx := lastInteractionIndex(pairs)

	var lastLine string
	if lastIdx >= 0 {
		lastLine = renderPair(pairs[lastIdx])
	}

	relevant := make([]exchangePair, 0, len(pairs))
	for i, p := range pairs {
		if i != lastIdx {
			relevant = append(relevant, p)
		}
	}
	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].score() > relevant[j].score()
	})

	var lines []string
	if len(relevant) > 0 {
		for _, p := range relevant {
			if line := renderPair(p); line != "" {
				lines = append(lines, line)
			}
		}
	} else {
		var last *exchangePair
		if lastIdx >= 0 {
			last = &pairs[lastIdx]
		}
		lines = renderSingles(sorted, last)
	}

	var sections []string
	if lastLine != "" {
		sections = append(sections, sectionLastInteraction+"\n"+lastLine)
	}
	if len(lines) > 0 {
		sections = append(sections, sectionRelevant+"\n"+strings.Join(lines, "\n"))
	}
	return strings.Join(sections, "\n\n")
}

// buildPairs walks the chronologically sorted messages building
// (user, assistant) exchanges. A user message is held pending until an
// assistant message closes it; a later user message replaces the pending one.
func buildPairs(sorted []RetrievedMessage) []exchangePair {
	var pairs []exchangePair
	var pending *RetrievedMessage
	for i := range sorted {
		switch sorted[i].Message.Role {
		case model.RoleUser:
			pending = &sorted[i]
		case model.RoleAssistant:
			if pending != nil {
				pairs = append(pairs, exchangePair{user: *pending, assistant: sorted[i]})
				pending = nil
			}
		}
	}
	return pairs
}

// lastInteractionIndex picks the pair for the ULTIMA_INTERACAO section:
// explicitly tagged messages win, otherwise the chronologically last pair.
// Returns -1 when there are no pairs.
func lastInteractionIndex(pairs []exchangePair) int {
	for i := len(pairs) - 1; i >= 0; i-- {
		if pairs[i].user.Source == SourceLastInteraction || pairs[i].assistant.Source == SourceLastInteraction {
			return i
		}
	}
	return len(pairs) - 1
}

// renderSingles emits unpaired messages when no relevant pairs were built.
// An assistant message borrows the nearest prior user message as its
// question; a user message with no later answer renders question-only.
func renderSingles(sorted []RetrievedMessage, last *exchangePair) []string {
	inLast := func(m *model.ChatMessage) bool {
		if last == nil {
			return false
		}
		return m.ID == last.user.Message.ID || m.ID == last.assistant.Message.ID
	}

	var lines []string
	for i := range sorted {
		msg := sorted[i].Message
		if inLast(msg) {
			continue
		}
		switch msg.Role {
		case model.RoleAssistant:
			var question string
			for j := i - 1; j >= 0; j-- {
				if sorted[j].Message.Role == model.RoleUser {
					question = sorted[j].Message.Content
					break
				}
			}
			if line := renderLine(question, msg); line != "" {
				lines = append(lines, line)
			}
		case model.RoleUser:
			answered := false
			for j := i + 1; j < len(sorted); j++ {
				if sorted[j].Message.Role == model.RoleAssistant {
					answered = true
					break
				}
			}
			if !answered {
				if question := sanitizeText(msg.Content); question != "" {
					lines = append(lines, "[PERGUNTA] "+question)
				}
			}
		}
	}
	return lines
}

func renderPair(p exchangePair) string {
	return renderLine(p.user.Message.Content, p.assistant.Message)
}

// renderLine builds one formatted exchange:
// [PERGUNTA] q -> [RESPOSTA] a -> [QUERYSQL] sql, omitting empty segments.
// The explicit SQL field on the assistant message takes precedence over SQL
// extracted from its text.
func renderLine(questionRaw string, assistant *model.ChatMessage) string {
	question := sanitizeText(questionRaw)

	sql, rest := extractSQL(assistant.Content)
	if explicit := strings.TrimSpace(assistant.SQLQuery); explicit != "" {
		sql = explicit
	}
	answer := sanitizeText(rest)

	var segments []string
	if question != "" {
		segments = append(segments, "[PERGUNTA] "+question)
	}
	if answer != "" {
		segments = append(segments, "[RESPOSTA] "+answer)
	}
	if sql != "" {
		segments = append(segments, "[QUERYSQL] "+collapseWhitespace(sql))
	}
	return strings.Join(segments, " -> ")
}

// extractSQL pulls an embedded SQL statement out of free-form model output.
// Priority: fenced block marked sql, fenced block starting with SELECT/WITH,
// first terminated SELECT/WITH span, trailing SELECT/WITH without terminator.
// Returns the statement and the text with that span removed.
func extractSQL(text string) (sql, rest string) {
	for _, re := range []*regexp.Regexp{fencedSQLRe, fencedQueryRe, terminatedSQLRe} {
		if m := re.FindStringSubmatchIndex(text); m != nil {
			sql = strings.TrimSpace(text[m[2]:m[3]])
			rest = text[:m[0]] + " " + text[m[1]:]
			return sql, rest
		}
	}
	if loc := trailingSQLRe.FindStringIndex(text); loc != nil {
		return strings.TrimSpace(text[loc[0]:]), text[:loc[0]]
	}
	return "", text
}

// sanitizeText strips fenced code blocks, decoration and "query sql
// utilizada" lines, then collapses whitespace runs to single spaces.
func sanitizeText(text string) string {
	text = fencedBlockRe.ReplaceAllString(text, " ")

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		if strings.Contains(lower, "query sql utilizada") {
			continue
		}
		if isDecorationLine(trimmed) {
			continue
		}
		kept = append(kept, trimmed)
	}
	return collapseWhitespace(strings.Join(kept, " "))
}

// isDecorationLine reports separator runs (---, ===) and timing lines.
func isDecorationLine(line string) bool {
	lower := strings.ToLower(line)
	if strings.Contains(lower, "tempo de execução") || strings.Contains(lower, "⏱") {
		return true
	}
	if len(line) < 3 {
		return false
	}
	for _, r := range line {
		switch r {
		case '-', '=', '*', '_', '#', '~':
		default:
			return false
		}
	}
	return true
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
