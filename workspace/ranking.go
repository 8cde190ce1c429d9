package workspace

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/crossgrep/crossgrep/store"
)

// Ranking weights. Raw similarity dominates; exact keyword hits are
// the strongest single modifier so literal matches surface above
// merely-similar code.
const (
	weightSimilarity = 1.0
	weightPriority   = 0.3
	weightBoost      = 0.2
	weightRecency    = 0.1
	weightExactMatch = 0.5

	// recencyHalfLife is the window over which freshly edited files
	// decay to zero recency contribution.
	recencyWindow = 7 * 24 * time.Hour
)

// SearchResult is one ranked hit across the workspace.
type SearchResult struct {
	ProjectID   string  `json:"project_id"`
	ProjectName string  `json:"project_name"`
	FilePath    string  `json:"file_path"`
	Language    string  `json:"language,omitempty"`
	StartLine   int     `json:"start_line,omitempty"`
	EndLine     int     `json:"end_line,omitempty"`
	Content     string  `json:"content,omitempty"`
	Score       float64 `json:"score"`
	Similarity  float32 `json:"similarity"`
	Boost       float64 `json:"boost"`
}

// rankHits turns raw similarity hits into final-ranked results:
//
//	final = sim + priority*0.3 + boost*0.2 + recency*0.1 + exact*0.5
//
// then dedupes to the best chunk per file and resolves ties by raw
// similarity, then lexicographic path.
func rankHits(hits []store.SearchHit, query string, priorities map[string]string, boosts map[string]float64, limit int) []SearchResult {
	queryTerms := tokenizeQuery(query)
	now := time.Now()

	best := make(map[string]SearchResult, len(hits))
	for _, hit := range hits {
		boost := 1.0
		if b, ok := boosts[hit.Payload.ProjectID]; ok && b > boost {
			boost = b
		}

		score := float64(hit.Score)*weightSimilarity +
			priorityWeight(priorities[hit.Payload.ProjectID])*weightPriority +
			boost*weightBoost +
			recencyScore(hit.Payload.Metadata, now)*weightRecency +
			exactMatchScore(queryTerms, hit.Payload.Content)*weightExactMatch

		result := SearchResult{
			ProjectID:   hit.Payload.ProjectID,
			ProjectName: hit.Payload.ProjectName,
			FilePath:    hit.Payload.FilePath,
			Language:    hit.Payload.Language,
			StartLine:   metaInt(hit.Payload.Metadata, "start_line"),
			EndLine:     metaInt(hit.Payload.Metadata, "end_line"),
			Content:     hit.Payload.Content,
			Score:       score,
			Similarity:  hit.Score,
			Boost:       boost,
		}

		// One entry per file path, even across projects.
		key := hit.Payload.FilePath
		if prev, ok := best[key]; !ok || result.Score > prev.Score {
			best[key] = result
		}
	}

	results := make([]SearchResult, 0, len(best))
	for _, r := range best {
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].FilePath < results[j].FilePath
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// priorityWeight maps the configured priority tier to its multiplier.
func priorityWeight(priority string) float64 {
	switch strings.ToLower(priority) {
	case "critical":
		return 1.5
	case "high":
		return 1.2
	case "low":
		return 0.7
	default: // medium, normal, unset
		return 1.0
	}
}

// recencyScore decays linearly from 1 (edited now) to 0 (a week or
// older). Missing or malformed mtime metadata scores 0.
func recencyScore(metadata map[string]string, now time.Time) float64 {
	raw, ok := metadata["mtime"]
	if !ok {
		return 0
	}
	mtime, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}

	age := now.Sub(time.Unix(mtime, 0))
	if age < 0 {
		age = 0
	}
	if age >= recencyWindow {
		return 0
	}
	return 1 - float64(age)/float64(recencyWindow)
}

// exactMatchScore is the fraction of query terms found literally
// (case-insensitive) in the chunk content.
func exactMatchScore(queryTerms []string, content string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}

	lower := strings.ToLower(content)
	found := 0
	for _, term := range queryTerms {
		if strings.Contains(lower, term) {
			found++
		}
	}
	return float64(found) / float64(len(queryTerms))
}

func tokenizeQuery(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			terms = append(terms, f)
		}
	}
	return terms
}

func metaInt(metadata map[string]string, key string) int {
	n, _ := strconv.Atoi(metadata[key])
	return n
}
