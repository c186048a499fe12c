package semantic

import (
	"context"
	"errors"
	"math"
	"testing"
)

// fakeEmbedder returns fixed vectors per text and counts calls.
type fakeEmbedder struct {
	vectors map[string][]float32
	fail    bool
	calls   int
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, input string) ([]float32, error) {
	res, err := f.GenerateEmbeddings(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

func (f *fakeEmbedder) GenerateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("embedding backend down")
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		if vec, ok := f.vectors[in]; ok {
			out[i] = vec
		} else {
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}
	c := []float32{-1, 0, 0}

	if got := CosineSimilarity(a, a); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("self similarity: got %f, want 1.0", got)
	}
	if got := CosineSimilarity(a, b); math.Abs(got) > 1e-9 {
		t.Fatalf("orthogonal similarity: got %f, want 0", got)
	}
	if got := CosineSimilarity(a, c); math.Abs(got+1.0) > 1e-9 {
		t.Fatalf("opposite similarity: got %f, want -1.0", got)
	}
	if CosineSimilarity(a, b) != CosineSimilarity(b, a) {
		t.Fatal("similarity is not symmetric")
	}
	if got := CosineSimilarity(nil, nil); got != 0 {
		t.Fatalf("empty vectors: got %f, want 0", got)
	}
	if got := CosineSimilarity([]float32{0, 0, 0}, a); got != 0 {
		t.Fatalf("zero magnitude: got %f, want 0", got)
	}
}

func TestFindBestMatch_ExactFastPath(t *testing.T) {
	embedder := &fakeEmbedder{}
	matcher := NewMatcher(embedder, nil)

	candidates := map[string]string{
		"customers": "Show ALL   customers",
		"orders":    "show all orders",
	}

	// Threshold above 1.0 must not defeat an exact match.
	match := matcher.FindBestMatch(context.Background(), "show all customers", candidates, 2.0, "")
	if match == nil {
		t.Fatal("expected a match, got nil")
	}
	if !match.Exact || match.Score != 1.0 || match.Method != MethodExact {
		t.Fatalf("unexpected match: %+v", match)
	}
	if match.Key != "customers" {
		t.Fatalf("expected key customers, got %q", match.Key)
	}
	if embedder.calls != 0 {
		t.Fatalf("exact match must not embed, got %d calls", embedder.calls)
	}
}

func TestFindBestMatch_EmbeddingPath(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"who volunteers here": {1, 0, 0},
			"volunteer people":    {0.9, 0.1, 0},
			"purchase orders":     {0, 1, 0},
		},
	}
	matcher := NewMatcher(embedder, nil)

	candidates := map[string]string{
		"volunteers": "volunteer people",
		"orders":     "purchase orders",
	}

	match := matcher.FindBestMatch(context.Background(), "who volunteers here", candidates, 0.5, "")
	if match == nil {
		t.Fatal("expected a match, got nil")
	}
	if match.Key != "volunteers" || match.Method != MethodEmbedding {
		t.Fatalf("unexpected match: %+v", match)
	}
	if match.Score < 0.5 || match.Score > 1.0 {
		t.Fatalf("score out of range: %f", match.Score)
	}
}

func TestFindBestMatch_BelowThreshold(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"completely unrelated": {1, 0, 0},
			"purchase orders":      {0, 1, 0},
		},
	}
	matcher := NewMatcher(embedder, nil)

	match := matcher.FindBestMatch(
		context.Background(),
		"completely unrelated",
		map[string]string{"orders": "purchase orders"},
		0.7,
		"",
	)
	if match != nil {
		t.Fatalf("expected no match below threshold, got %+v", match)
	}
}

func TestFindBestMatch_EmbeddingFailureIsAdvisory(t *testing.T) {
	embedder := &fakeEmbedder{fail: true}
	matcher := NewMatcher(embedder, nil)

	match := matcher.FindBestMatch(
		context.Background(),
		"anything",
		map[string]string{"orders": "purchase orders"},
		0.5,
		"",
	)
	if match != nil {
		t.Fatalf("expected nil on embedding failure, got %+v", match)
	}
}

func TestMatcher_EmbeddingCache(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"question":        {1, 0, 0},
			"candidate texts": {0.5, 0.5, 0},
		},
	}
	matcher := NewMatcher(embedder, nil)
	candidates := map[string]string{"one": "candidate texts"}

	matcher.FindBestMatch(context.Background(), "question", candidates, 0.1, "")
	first := embedder.calls
	matcher.FindBestMatch(context.Background(), "question", candidates, 0.1, "")
	if embedder.calls != first {
		t.Fatalf("expected cached embeddings on second call: %d then %d calls", first, embedder.calls)
	}

	matcher.ResetCache()
	matcher.FindBestMatch(context.Background(), "question", candidates, 0.1, "")
	if embedder.calls == first {
		t.Fatal("expected new embedding calls after cache reset")
	}
}

func TestMatchLabel_Ranked(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"customer details": {1, 0, 0},
			"Customer":         {0.95, 0.05, 0},
			"Order":            {0.3, 0.7, 0},
			"Product":          {0, 1, 0},
		},
	}
	matcher := NewMatcher(embedder, nil)

	matches := matcher.MatchLabel(context.Background(), "customer details", []string{"Customer", "Order", "Product"}, 0.2)
	if len(matches) < 2 {
		t.Fatalf("expected at least 2 matches, got %d", len(matches))
	}
	if matches[0].Key != "Customer" {
		t.Fatalf("expected Customer ranked first, got %q", matches[0].Key)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Fatal("matches not sorted by descending score")
		}
	}
}
