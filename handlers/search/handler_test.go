package search

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/supportal/api/model"
	"github.com/supportal/api/services"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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

// With vector=true and no embedder configured, the endpoint must still
// answer 200 with plain text results instead of an error.
func TestSearchDegradesToTextOnVectorFailure(t *testing.T) {
	db := integrationDB(t)

	db.Exec("DELETE FROM articles")
	article := model.Article{
		Title:   "Welcome",
		Slug:    "hs-welcome",
		Content: "Welcome to the support portal",
		Status:  model.ArticleStatusPublished,
	}
	if err := db.Create(&article).Error; err != nil {
		t.Fatal(err)
	}

	handler := NewSearchHandler(db, services.NewSearchService(db, nil, true))

	app := fiber.New()
	app.Get("/search", handler.Search)

	resp, err := app.Test(httptest.NewRequest("GET", "/search?q=welcome&vector=true", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Results    []services.SearchResult `json:"results"`
			SearchType services.SearchTier     `json:"searchType"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}

	if !body.Success {
		t.Error("response not marked successful")
	}
	if body.Data.SearchType != services.MatchText {
		t.Errorf("searchType = %q, want %q", body.Data.SearchType, services.MatchText)
	}
	if len(body.Data.Results) != 1 || body.Data.Results[0].Slug != "hs-welcome" {
		t.Errorf("text fallback results = %+v, want the seeded article", body.Data.Results)
	}
}
