package cron

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/supportal/api/model"
)

// reembedBatchSize caps how many articles a single cron run embeds, keeping
// each run short and bounded against API rate limits.
const reembedBatchSize = 20

// ReembedMissingArticles finds published articles without an embedding and
// computes one. Articles lose their embedding on content edits and after
// failed publish-time embedding calls; this job converges both cases.
func (m *CronManager) ReembedMissingArticles() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	jobName := "reembed_missing_articles"

	if m.embedder == nil {
		m.logJobComplete(jobName, "No embedder configured, skipping")
		return
	}

	var articles []model.Article
	err := m.db.WithContext(ctx).
		Where("status = ? AND embedding IS NULL", model.ArticleStatusPublished).
		Order("updated_at ASC").
		Limit(reembedBatchSize).
		Find(&articles).Error
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to query articles: %w", err))
		return
	}

	if len(articles) == 0 {
		m.logJobComplete(jobName, "No articles to embed")
		return
	}

	embedded := 0
	failed := 0

	for _, article := range articles {
		vec, err := m.embedder.Embed(ctx, article.Title+"\n\n"+article.Content)
		if err != nil {
			log.Printf("[CRON] Failed to embed article %d: %v", article.ID, err)
			failed++
			continue
		}

		v := pgvector.NewVector(vec)
		if err := m.db.WithContext(ctx).Model(&model.Article{}).
			Where("id = ?", article.ID).
			Update("embedding", &v).Error; err != nil {
			log.Printf("[CRON] Failed to store embedding for article %d: %v", article.ID, err)
			failed++
			continue
		}
		embedded++
	}

	m.logJobComplete(jobName, fmt.Sprintf("Embedded %d articles, %d failed", embedded, failed))
}

// AutoCloseResolvedTickets closes tickets that have sat in resolved state
// past the configured window without a customer reply.
func (m *CronManager) AutoCloseResolvedTickets() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "auto_close_resolved_tickets"

	cutoff := time.Now().AddDate(0, 0, -m.env.TICKET_AUTO_CLOSE_DAYS)
	now := time.Now()

	result := m.db.WithContext(ctx).Model(&model.Ticket{}).
		Where("status = ? AND resolved_at < ?", model.TicketStatusResolved, cutoff).
		Updates(map[string]interface{}{
			"status":    model.TicketStatusClosed,
			"closed_at": now,
		})
	if result.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to close tickets: %w", result.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Closed %d resolved tickets older than %d days", result.RowsAffected, m.env.TICKET_AUTO_CLOSE_DAYS))
}

// CleanupOldData prunes aged conversations with their messages, expired
// blacklisted tokens and old cron job logs.
func (m *CronManager) CleanupOldData() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	jobName := "cleanup_old_data"
	now := time.Now()

	conversationCutoff := now.AddDate(0, 0, -m.env.CONVERSATION_RETENTION_DAYS)

	var staleIDs []uint
	err := m.db.WithContext(ctx).Model(&model.Conversation{}).
		Unscoped().
		Where("(last_message_at < ? OR (last_message_at IS NULL AND created_at < ?))", conversationCutoff, conversationCutoff).
		Pluck("id", &staleIDs).Error
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to find stale conversations: %w", err))
		return
	}

	conversationsPruned := 0
	if len(staleIDs) > 0 {
		if err := m.db.WithContext(ctx).Where("conversation_id IN ?", staleIDs).Delete(&model.Message{}).Error; err != nil {
			m.logJobError(jobName, fmt.Errorf("failed to delete messages: %w", err))
			return
		}
		result := m.db.WithContext(ctx).Unscoped().Delete(&model.Conversation{}, staleIDs)
		if result.Error != nil {
			m.logJobError(jobName, fmt.Errorf("failed to delete conversations: %w", result.Error))
			return
		}
		conversationsPruned = int(result.RowsAffected)
	}

	// Expired blacklist entries are dead weight: the tokens they block can no
	// longer validate anyway
	tokensResult := m.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&model.JWTTokenBlacklist{})
	if tokensResult.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to delete expired tokens: %w", tokensResult.Error))
		return
	}

	logsCutoff := now.AddDate(0, 0, -30)
	logsResult := m.db.WithContext(ctx).
		Where("created_at < ?", logsCutoff).
		Delete(&model.CronJobLog{})
	if logsResult.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to delete old cron logs: %w", logsResult.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf(
		"Pruned %d conversations, %d expired tokens, %d old cron logs",
		conversationsPruned, tokensResult.RowsAffected, logsResult.RowsAffected,
	))
}
