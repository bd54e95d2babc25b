package services

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/supportal/api/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fixedEmbedder returns the same vector for every input so nearest-neighbor
// ordering in tests is deterministic.
type fixedEmbedder struct{}

func (fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, model.EmbeddingDimensions)
	vec[0] = 1
	return vec, nil
}

// integrationDB connects to the test database or skips. Requires a Postgres
// with the pgvector extension.
func integrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost user=postgres password=postgres dbname=supportal_test port=5432 sslmode=disable"
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		t.Skipf("pgvector extension unavailable: %v", err)
	}
	if err := db.AutoMigrate(&model.Category{}, &model.Article{}); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	return db
}

func TestTextSearchPublishedOnly(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()

	db.Exec("DELETE FROM articles")

	seed := []model.Article{
		{Title: "Welcome", Slug: "it-welcome", Content: "Welcome to the support portal", Status: model.ArticleStatusPublished},
		{Title: "Welcome Draft", Slug: "it-welcome-draft", Content: "Welcome draft content", Status: model.ArticleStatusDraft},
		{Title: "Welcome Archived", Slug: "it-welcome-archived", Content: "Welcome archived content", Status: model.ArticleStatusArchived},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatal(err)
		}
	}

	svc := NewSearchService(db, fixedEmbedder{}, true)

	results, total, err := svc.TextSearch(ctx, "welcome", SearchOptions{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}

	if total != 1 {
		t.Errorf("total = %d, want 1 (published only)", total)
	}
	for _, r := range results {
		if r.Slug != "it-welcome" {
			t.Errorf("unpublished article %q surfaced in text search", r.Slug)
		}
	}
}

func TestSearchWithFallbackTiers(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()

	db.Exec("DELETE FROM articles")

	// One published article with no embedding: vector finds nothing, text
	// should take over
	article := model.Article{
		Title:     "Password Reset",
		Slug:      "it-password-reset",
		Content:   "How to reset your password step by step",
		Status:    model.ArticleStatusPublished,
		ViewCount: 10,
	}
	if err := db.Create(&article).Error; err != nil {
		t.Fatal(err)
	}

	svc := NewSearchService(db, fixedEmbedder{}, true)

	outcome, err := svc.SearchWithFallback(ctx, "reset password", SearchOptions{Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Tier != MatchText {
		t.Errorf("tier = %q, want %q", outcome.Tier, MatchText)
	}
	if len(outcome.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(outcome.Results))
	}

	// Gibberish query: text finds nothing, popularity takes over
	outcome, err = svc.SearchWithFallback(ctx, "zzqqxxyy", SearchOptions{Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Tier != MatchPopularity {
		t.Errorf("tier = %q, want %q", outcome.Tier, MatchPopularity)
	}
	if len(outcome.Results) == 0 {
		t.Error("popularity fallback returned nothing")
	}
}

func TestUnembeddedVisibilityFlag(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()

	db.Exec("DELETE FROM articles")

	article := model.Article{
		Title:   "Unembedded Article",
		Slug:    "it-unembedded",
		Content: "Searchable text without a vector",
		Status:  model.ArticleStatusPublished,
	}
	if err := db.Create(&article).Error; err != nil {
		t.Fatal(err)
	}

	visible := NewSearchService(db, fixedEmbedder{}, true)
	hidden := NewSearchService(db, fixedEmbedder{}, false)

	_, total, err := visible.TextSearch(ctx, "searchable", SearchOptions{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Errorf("flag=true: total = %d, want 1", total)
	}

	_, total, err = hidden.TextSearch(ctx, "searchable", SearchOptions{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Errorf("flag=false: total = %d, want 0", total)
	}
}

func TestSlugUniquenessOnCreate(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()

	db.Exec("DELETE FROM articles")

	svc := NewArticleService(db, fixedEmbedder{})

	first, err := svc.Create(ctx, CreateArticleInput{
		Title:   "Original",
		Slug:    "it-duplicate-slug",
		Content: "original content",
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.Create(ctx, CreateArticleInput{
		Title:   "Impostor",
		Slug:    "it-duplicate-slug",
		Content: "different content",
	})
	if err == nil {
		t.Fatal("duplicate slug accepted")
	}

	// The existing article must be untouched
	var reloaded model.Article
	if err := db.First(&reloaded, first.ID).Error; err != nil {
		t.Fatal(err)
	}
	if reloaded.Title != "Original" || reloaded.Content != "original content" {
		t.Errorf("existing article mutated by failed create: %+v", fmt.Sprintf("%s/%s", reloaded.Title, reloaded.Content))
	}
}
