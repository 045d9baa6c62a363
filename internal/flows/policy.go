package flows

import (
	"strings"

	"github.com/noah-isme/algogenius-api/internal/models"
)

// PerformanceRecord is one graded assignment as seen by the goal agent.
type PerformanceRecord struct {
	Concept    string `json:"concept"`
	Score      int    `json:"score"`
	Difficulty string `json:"difficulty"`
}

// ConceptStats aggregates the records of a single concept.
type ConceptStats struct {
	Concept  string
	Attempts int
	Total    int
	Failures int
}

// Average returns the mean score of the concept.
func (s ConceptStats) Average() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Total) / float64(s.Attempts)
}

// repeatedlyFailed reports whether the concept was failed on at least two occasions.
func (s ConceptStats) repeatedlyFailed() bool {
	return s.Failures >= 2
}

// weaker reports whether s ranks below other. Lower average wins; on equal
// averages a repeatedly failed concept wins, then the one with more failures,
// then the alphabetically first.
func (s ConceptStats) weaker(other ConceptStats) bool {
	// Cross multiplication keeps the comparison exact.
	left := s.Total * other.Attempts
	right := other.Total * s.Attempts
	if left != right {
		return left < right
	}
	if s.repeatedlyFailed() != other.repeatedlyFailed() {
		return s.repeatedlyFailed()
	}
	if s.Failures != other.Failures {
		return s.Failures > other.Failures
	}
	return strings.ToLower(s.Concept) < strings.ToLower(other.Concept)
}

// AggregateHistory groups records by concept, case-insensitively, keeping the
// first spelling seen. Records without a concept are ignored.
func AggregateHistory(history []PerformanceRecord) []ConceptStats {
	index := make(map[string]int)
	stats := make([]ConceptStats, 0)
	for _, record := range history {
		concept := strings.TrimSpace(record.Concept)
		if concept == "" {
			continue
		}
		key := strings.ToLower(concept)
		pos, ok := index[key]
		if !ok {
			pos = len(stats)
			index[key] = pos
			stats = append(stats, ConceptStats{Concept: concept})
		}
		stats[pos].Attempts++
		stats[pos].Total += record.Score
		if record.Score < PassingScore {
			stats[pos].Failures++
		}
	}
	return stats
}

// WeakestConcept returns the concept with the lowest average score.
func WeakestConcept(history []PerformanceRecord) (ConceptStats, bool) {
	stats := AggregateHistory(history)
	if len(stats) == 0 {
		return ConceptStats{}, false
	}
	weakest := stats[0]
	for _, candidate := range stats[1:] {
		if candidate.weaker(weakest) {
			weakest = candidate
		}
	}
	return weakest, true
}

// RecommendDifficulty maps an average score to the next difficulty tier.
func RecommendDifficulty(average float64) string {
	switch {
	case average < 60:
		return models.DifficultyEasy
	case average <= 85:
		return models.DifficultyMedium
	default:
		return models.DifficultyHard
	}
}

// TargetScore is the score a goal at the given difficulty asks for.
func TargetScore(difficulty string) int {
	switch difficulty {
	case models.DifficultyHard:
		return 95
	case models.DifficultyMedium:
		return 85
	default:
		return 70
	}
}
