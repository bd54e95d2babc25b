package services

import (
	"math"
	"testing"
)

func f(v float64) *float64 { return &v }

func TestCombineScoresArithmetic(t *testing.T) {
	vectorResults := []SearchResult{
		{ID: 1, Title: "A", Score: f(0.9)},
		{ID: 2, Title: "B", Score: f(0.5)},
	}
	textByID := map[uint]float64{
		1: 0.3,
		2: 1.2,
	}

	combined := CombineScores(vectorResults, textByID, 0.7, 0.3)
	if len(combined) != 2 {
		t.Fatalf("expected 2 results, got %d", len(combined))
	}

	// combined = vs/1.0*0.7 + ts/1.5*0.3
	want1 := 0.9*0.7 + 0.3/1.5*0.3
	want2 := 0.5*0.7 + 1.2/1.5*0.3

	byID := map[uint]float64{}
	for _, r := range combined {
		byID[r.ID] = *r.Score
	}

	if math.Abs(byID[1]-want1) > 1e-9 {
		t.Errorf("article 1 score = %f, want %f", byID[1], want1)
	}
	if math.Abs(byID[2]-want2) > 1e-9 {
		t.Errorf("article 2 score = %f, want %f", byID[2], want2)
	}
}

func TestCombineScoresRequiresBothIndexes(t *testing.T) {
	vectorResults := []SearchResult{
		{ID: 1, Score: f(0.95)},
		{ID: 2, Score: f(0.90)},
		{ID: 3, Score: f(0.85)},
	}
	// Article 2 has no text match and must be dropped
	textByID := map[uint]float64{
		1: 0.5,
		3: 0.5,
	}

	combined := CombineScores(vectorResults, textByID, 0.7, 0.3)
	if len(combined) != 2 {
		t.Fatalf("expected 2 results, got %d", len(combined))
	}
	for _, r := range combined {
		if r.ID == 2 {
			t.Error("article without a text match leaked into hybrid results")
		}
	}
}

func TestCombineScoresSortedDescending(t *testing.T) {
	vectorResults := []SearchResult{
		{ID: 1, Score: f(0.2)},
		{ID: 2, Score: f(0.9)},
		{ID: 3, Score: f(0.6)},
	}
	textByID := map[uint]float64{1: 0.8, 2: 0.1, 3: 0.5}

	combined := CombineScores(vectorResults, textByID, 0.7, 0.3)
	for i := 1; i < len(combined); i++ {
		if *combined[i-1].Score < *combined[i].Score {
			t.Fatalf("results not sorted descending at index %d: %f < %f",
				i, *combined[i-1].Score, *combined[i].Score)
		}
	}
}

func TestCombineScoresDefaultWeights(t *testing.T) {
	vectorResults := []SearchResult{{ID: 1, Score: f(1.0)}}
	textByID := map[uint]float64{1: 1.5}

	combined := CombineScores(vectorResults, textByID, 0, 0)
	if len(combined) != 1 {
		t.Fatalf("expected 1 result, got %d", len(combined))
	}

	// Defaults 0.7/0.3: 1.0/1.0*0.7 + 1.5/1.5*0.3 = 1.0
	if math.Abs(*combined[0].Score-1.0) > 1e-9 {
		t.Errorf("score with default weights = %f, want 1.0", *combined[0].Score)
	}
}

func TestCombineScoresWeightsNeedNotSumToOne(t *testing.T) {
	vectorResults := []SearchResult{{ID: 1, Score: f(1.0)}}
	textByID := map[uint]float64{1: 1.5}

	combined := CombineScores(vectorResults, textByID, 1.0, 1.0)
	want := 1.0/vectorScoreNorm*1.0 + 1.5/textScoreNorm*1.0
	if math.Abs(*combined[0].Score-want) > 1e-9 {
		t.Errorf("score = %f, want %f", *combined[0].Score, want)
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"How to Reset Your Password", "how-to-reset-your-password"},
		{"  Billing & Invoices!  ", "billing-invoices"},
		{"API v2.1 Migration", "api-v2-1-migration"},
		{"---", ""},
		{"already-a-slug", "already-a-slug"},
	}

	for _, c := range cases {
		if got := Slugify(c.in); got != c.want {
			t.Errorf("Slugify(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
