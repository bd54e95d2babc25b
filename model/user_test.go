package model

import (
	"fmt"
	"testing"
	"time"
)

func TestRecordSearchCap(t *testing.T) {
	var activity SupportActivity
	now := time.Now()

	for i := 0; i < ActivityListCap+25; i++ {
		activity.RecordSearch(fmt.Sprintf("query %d", i), now)
	}

	if len(activity.SearchHistory) != ActivityListCap {
		t.Fatalf("search history length = %d, want %d", len(activity.SearchHistory), ActivityListCap)
	}

	// The oldest entries get dropped, not the newest
	first := activity.SearchHistory[0].Query
	last := activity.SearchHistory[len(activity.SearchHistory)-1].Query
	if first != "query 25" {
		t.Errorf("oldest kept entry = %q, want %q", first, "query 25")
	}
	if last != fmt.Sprintf("query %d", ActivityListCap+24) {
		t.Errorf("newest entry = %q", last)
	}
}

func TestRecordArticleViewAccumulates(t *testing.T) {
	var activity SupportActivity
	now := time.Now()

	activity.RecordArticleView(7, 1000, now)
	activity.RecordArticleView(7, 2500, now.Add(time.Minute))
	activity.RecordArticleView(9, 500, now)

	if len(activity.ArticleViews) != 2 {
		t.Fatalf("expected 2 view entries, got %d", len(activity.ArticleViews))
	}

	var entry *ArticleViewEntry
	for i := range activity.ArticleViews {
		if activity.ArticleViews[i].ArticleID == 7 {
			entry = &activity.ArticleViews[i]
		}
	}
	if entry == nil {
		t.Fatal("entry for article 7 missing")
	}
	if entry.ViewCount != 2 {
		t.Errorf("view count = %d, want 2", entry.ViewCount)
	}
	if entry.TimeSpentMS != 3500 {
		t.Errorf("time spent = %d, want 3500", entry.TimeSpentMS)
	}
	if !entry.LastViewed.Equal(now.Add(time.Minute)) {
		t.Errorf("last viewed not updated")
	}
}

func TestRecordTicketCap(t *testing.T) {
	var activity SupportActivity
	now := time.Now()

	for i := 0; i < ActivityListCap+5; i++ {
		activity.RecordTicket(TicketSummary{
			TicketID:  uint(i + 1),
			Title:     fmt.Sprintf("ticket %d", i),
			Status:    "open",
			CreatedAt: now,
		})
	}

	if len(activity.Tickets) != ActivityListCap {
		t.Fatalf("ticket list length = %d, want %d", len(activity.Tickets), ActivityListCap)
	}
	if activity.Tickets[0].TicketID != 6 {
		t.Errorf("oldest kept ticket id = %d, want 6", activity.Tickets[0].TicketID)
	}
}

func TestAddInterestDeduplicates(t *testing.T) {
	var profile KnowledgeProfile

	profile.AddInterest("billing")
	profile.AddInterest("api")
	profile.AddInterest("billing")

	if len(profile.InterestTags) != 2 {
		t.Fatalf("interest tags = %v, want 2 unique", profile.InterestTags)
	}
}

func TestSourcesValueEmpty(t *testing.T) {
	var s Sources
	v, err := s.Value()
	if err != nil {
		t.Fatal(err)
	}
	if string(v.([]byte)) != "[]" {
		t.Errorf("empty sources serialize to %q, want []", v)
	}
}

func TestJSONMapScanNil(t *testing.T) {
	var m JSONMap
	if err := m.Scan(nil); err != nil {
		t.Fatal(err)
	}
	if m == nil {
		t.Error("nil scan should produce an empty map")
	}
}
