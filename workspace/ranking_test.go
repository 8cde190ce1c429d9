package workspace

import (
	"strconv"
	"testing"
	"time"

	"github.com/crossgrep/crossgrep/store"
)

func hit(projectID, filePath string, sim float32, content string) store.SearchHit {
	return store.SearchHit{
		Score: sim,
		Payload: store.Payload{
			ProjectID:   projectID,
			ProjectName: projectID,
			FilePath:    filePath,
			Content:     content,
			Metadata:    map[string]string{"start_line": "1", "end_line": "10"},
		},
	}
}

func TestRankPriorityTiers(t *testing.T) {
	hits := []store.SearchHit{
		hit("low_p", "a.go", 0.8, ""),
		hit("crit", "b.go", 0.8, ""),
		hit("normal_p", "c.go", 0.8, ""),
		hit("high_p", "d.go", 0.8, ""),
	}
	priorities := map[string]string{
		"crit": "critical", "high_p": "high", "normal_p": "normal", "low_p": "low",
	}

	results := rankHits(hits, "", priorities, nil, 10)

	wantOrder := []string{"crit", "high_p", "normal_p", "low_p"}
	for i, id := range wantOrder {
		if results[i].ProjectID != id {
			t.Fatalf("rank %d = %s, want %s (full order %v)", i, results[i].ProjectID, id, results)
		}
	}
}

func TestRankDedupesPerFile(t *testing.T) {
	hits := []store.SearchHit{
		hit("p1", "main.go", 0.7, "chunk one"),
		hit("p1", "main.go", 0.9, "chunk two"),
		hit("p1", "main.go", 0.5, "chunk three"),
	}

	results := rankHits(hits, "", nil, nil, 10)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 per file", len(results))
	}
	if results[0].Similarity != 0.9 {
		t.Errorf("kept chunk similarity = %v, want the best (0.9)", results[0].Similarity)
	}
}

func TestRankMergesSamePathAcrossProjects(t *testing.T) {
	hits := []store.SearchHit{
		hit("p1", "src/api.py", 0.80, ""),
		hit("p2", "src/api.py", 0.90, ""),
	}

	results := rankHits(hits, "", nil, nil, 10)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 merged entry per file path", len(results))
	}
	if results[0].Similarity != 0.90 || results[0].ProjectID != "p2" {
		t.Errorf("merged entry = %+v, want the 0.90 hit from p2", results[0])
	}
}

func TestRankBoostApplied(t *testing.T) {
	hits := []store.SearchHit{
		hit("plain", "a.go", 0.8, ""),
		hit("boosted", "b.go", 0.8, ""),
	}
	boosts := map[string]float64{"boosted": 1.5}

	results := rankHits(hits, "", nil, boosts, 10)

	if results[0].ProjectID != "boosted" {
		t.Fatalf("boosted project not ranked first: %v", results)
	}
	if results[0].Boost != 1.5 || results[1].Boost != 1.0 {
		t.Errorf("boost fields = %v / %v, want 1.5 / 1.0", results[0].Boost, results[1].Boost)
	}

	delta := results[0].Score - results[1].Score
	if delta < 0.099 || delta > 0.101 {
		t.Errorf("boost score delta = %v, want 0.5*0.2 = 0.1", delta)
	}
}

func TestRankExactMatchWins(t *testing.T) {
	hits := []store.SearchHit{
		hit("p1", "similar.go", 0.85, "vector arithmetic helpers"),
		hit("p1", "literal.go", 0.80, "func ParseToken(raw string) error"),
	}

	results := rankHits(hits, "parsetoken error", nil, nil, 10)
	if results[0].FilePath != "literal.go" {
		t.Errorf("literal match ranked below similarity-only hit: %v", results)
	}
}

func TestRankTieBreakByPath(t *testing.T) {
	hits := []store.SearchHit{
		hit("p1", "zeta.go", 0.8, ""),
		hit("p1", "alpha.go", 0.8, ""),
	}

	results := rankHits(hits, "", nil, nil, 10)
	if results[0].FilePath != "alpha.go" {
		t.Errorf("equal scores not broken by path: %v", results)
	}
}

func TestRankLimit(t *testing.T) {
	var hits []store.SearchHit
	for i := 0; i < 20; i++ {
		hits = append(hits, hit("p1", "f"+strconv.Itoa(i)+".go", 0.5, ""))
	}

	if got := len(rankHits(hits, "", nil, nil, 5)); got != 5 {
		t.Errorf("got %d results, want limit of 5", got)
	}
}

func TestPriorityWeight(t *testing.T) {
	cases := map[string]float64{
		"critical": 1.5,
		"high":     1.2,
		"medium":   1.0,
		"normal":   1.0,
		"low":      0.7,
		"":         1.0,
		"CRITICAL": 1.5,
	}
	for priority, want := range cases {
		if got := priorityWeight(priority); got != want {
			t.Errorf("priorityWeight(%q) = %v, want %v", priority, got, want)
		}
	}
}

func TestRecencyScore(t *testing.T) {
	now := time.Now()
	meta := func(mtime string) map[string]string {
		return map[string]string{"mtime": mtime}
	}

	fresh := recencyScore(meta(strconv.FormatInt(now.Unix(), 10)), now)
	if fresh < 0.99 {
		t.Errorf("fresh file recency = %v, want ~1", fresh)
	}

	old := now.Add(-8 * 24 * time.Hour)
	if got := recencyScore(meta(strconv.FormatInt(old.Unix(), 10)), now); got != 0 {
		t.Errorf("week-old file recency = %v, want 0", got)
	}

	half := now.Add(-recencyWindow / 2)
	got := recencyScore(meta(strconv.FormatInt(half.Unix(), 10)), now)
	if got < 0.49 || got > 0.51 {
		t.Errorf("half-window recency = %v, want ~0.5", got)
	}

	if got := recencyScore(meta("not-a-number"), now); got != 0 {
		t.Errorf("malformed mtime recency = %v, want 0", got)
	}
	if got := recencyScore(nil, now); got != 0 {
		t.Errorf("missing metadata recency = %v, want 0", got)
	}

	future := now.Add(time.Hour)
	if got := recencyScore(meta(strconv.FormatInt(future.Unix(), 10)), now); got != 1 {
		t.Errorf("future mtime recency = %v, want clamped to 1", got)
	}
}

func TestExactMatchScore(t *testing.T) {
	terms := tokenizeQuery("Parse Token x")
	if len(terms) != 2 {
		t.Fatalf("tokenizeQuery kept single-character terms: %v", terms)
	}

	if got := exactMatchScore(terms, "func ParseToken()"); got != 1 {
		t.Errorf("both terms present: score = %v, want 1", got)
	}
	if got := exactMatchScore(terms, "func Parse()"); got != 0.5 {
		t.Errorf("one term present: score = %v, want 0.5", got)
	}
	if got := exactMatchScore(terms, "unrelated"); got != 0 {
		t.Errorf("no terms present: score = %v, want 0", got)
	}
	if got := exactMatchScore(nil, "anything"); got != 0 {
		t.Errorf("empty query: score = %v, want 0", got)
	}
}
