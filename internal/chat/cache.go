package chat

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

const (
	DefaultCacheCapacity       = 10
	DefaultSimilarityThreshold = 0.70
)

// QuestionCache detects near-duplicate questions within a session. Entries live
// on the Session record so they share its storage and TTL.
type QuestionCache struct {
	capacity  int
	threshold float64
}

// NewQuestionCache creates a cache; out-of-range values fall back to the defaults.
func NewQuestionCache(capacity int, threshold float64) *QuestionCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &QuestionCache{capacity: capacity, threshold: threshold}
}

// Threshold returns the similarity needed for a hit.
func (c *QuestionCache) Threshold() float64 { return c.threshold }

// Lookup returns the most similar cached answer at or above the threshold
// whose topic equals topic. Newer entries win ties.
func (c *QuestionCache) Lookup(session *Session, query, topic string) (CachedAnswer, float64, bool) {
	if c == nil || session == nil {
		return CachedAnswer{}, 0, false
	}
	q := normalizeQuestion(query)
	if q == "" {
		return CachedAnswer{}, 0, false
	}

	var (
		best      CachedAnswer
		bestScore float64
		found     bool
	)
	for i := len(session.RecentAnswers) - 1; i >= 0; i-- {
		entry := session.RecentAnswers[i]
		if entry.Topic != topic {
			continue
		}
		score := Similarity(q, normalizeQuestion(entry.Query))
		if score >= c.threshold && score > bestScore {
			best, bestScore, found = entry, score, true
		}
	}
	return best, bestScore, found
}

// Remember appends an answer and drops the oldest entries beyond capacity.
func (c *QuestionCache) Remember(session *Session, answer CachedAnswer) {
	if c == nil || session == nil || normalizeQuestion(answer.Query) == "" {
		return
	}
	session.RecentAnswers = append(session.RecentAnswers, answer)
	if over := len(session.RecentAnswers) - c.capacity; over > 0 {
		session.RecentAnswers = append([]CachedAnswer(nil), session.RecentAnswers[over:]...)
	}
}

// Similarity is 1 - levenshtein(a, b) / max(len(a), len(b)) over runes.
func Similarity(a, b string) float64 {
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func normalizeQuestion(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
