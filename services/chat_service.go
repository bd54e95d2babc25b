package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"github.com/supportal/api/model"
	"gorm.io/gorm"
)

var (
	// ErrConversationNotFound is returned when a message targets a
	// conversation id that does not exist. Distinct from other failures so
	// callers can react to stale ids.
	ErrConversationNotFound = errors.New("conversation not found")
)

const (
	// conversationTitleLen is how much of the first message becomes the title
	conversationTitleLen = 50

	// contextCharsPerArticle caps how much of each retrieved article goes
	// into the completion prompt
	contextCharsPerArticle = 1500

	// maxSourceLinks caps the appended Sources section
	maxSourceLinks = 3

	// chatContextLimit is how many articles the retriever fetches per question
	chatContextLimit = 5

	completionTemperature = 0.7
	completionMaxTokens   = 500
)

const chatSystemPrompt = `You are a helpful customer support assistant. Answer the user's question using only the provided knowledge base context. Be concise and accurate. If the context does not contain the answer, say so honestly and suggest opening a support ticket. Format your answer in markdown.`

const noResultsMessage = "I couldn't find any information about that in our knowledge base. Please try rephrasing your question, or open a support ticket and our team will help you directly."

const completionFailedMessage = "I'm sorry, I'm having trouble generating an answer right now. Please try again in a moment, or open a support ticket if the problem persists."

// ChatService runs the retrieval-augmented chat pipeline: conversation
// persistence, context retrieval and answer generation.
type ChatService struct {
	db        *gorm.DB
	search    *SearchService
	llmClient *openai.Client
	enableAI  bool
}

// NewChatService creates a new chat service
func NewChatService(db *gorm.DB, search *SearchService, openaiAPIKey string) *ChatService {
	service := &ChatService{
		db:     db,
		search: search,
	}

	if openaiAPIKey != "" {
		service.llmClient = openai.NewClient(openaiAPIKey)
		service.enableAI = true
	} else {
		log.Println("Warning: OPENAI_API_KEY not set. Chat answers will be disabled.")
	}

	return service
}

// GetOrCreateConversation loads a conversation by id when one is given, or
// creates a new one. An unknown id is not an error: the server creates a
// fresh conversation instead of forcing the client to retry without the id.
func (s *ChatService) GetOrCreateConversation(ctx context.Context, conversationID *uint, sessionID string, userID *uint, firstMessage string, metadata model.JSONMap) (*model.Conversation, bool, error) {
	if conversationID != nil {
		var conv model.Conversation
		err := s.db.WithContext(ctx).First(&conv, *conversationID).Error
		if err == nil {
			return &conv, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("failed to load conversation: %w", err)
		}
		// Stale or bogus id: fall through and create a fresh conversation
		log.Printf("conversation %d not found, creating a new one", *conversationID)
	}

	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	conv := model.Conversation{
		SessionID: sessionID,
		UserID:    userID,
		Title:     deriveTitle(firstMessage),
		Status:    model.ConversationStatusActive,
		Metadata:  metadata,
	}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create conversation: %w", err)
	}

	return &conv, true, nil
}

// deriveTitle builds a conversation title from the first message
func deriveTitle(firstMessage string) string {
	title := strings.TrimSpace(firstMessage)
	runes := []rune(title)
	if len(runes) > conversationTitleLen {
		title = string(runes[:conversationTitleLen])
	}
	if title == "" {
		title = "New conversation"
	}
	return title
}

// AppendMessage appends a message to an existing conversation and bumps
// LastMessageAt. Fails with ErrConversationNotFound on unknown ids.
func (s *ChatService) AppendMessage(ctx context.Context, conversationID uint, role model.MessageRole, content string, sources model.Sources, metadata model.JSONMap) (*model.Message, error) {
	var conv model.Conversation
	if err := s.db.WithContext(ctx).First(&conv, conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	msg := model.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Sources:        sources,
		Metadata:       metadata,
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Update("last_message_at", now).Error; err != nil {
		log.Printf("Warning: failed to bump last_message_at for conversation %d: %v", conversationID, err)
	}

	return &msg, nil
}

// ChatRequest is a single user message through the pipeline
type ChatRequest struct {
	ConversationID *uint
	SessionID      string
	UserID         *uint
	Content        string
	Metadata       model.JSONMap
}

// ChatResult is the pipeline's output
type ChatResult struct {
	ConversationID uint           `json:"conversationId"`
	Answer         string         `json:"answer"`
	Sources        model.Sources  `json:"sources"`
	SearchTier     SearchTier     `json:"searchType"`
	Message        *model.Message `json:"-"`
}

// HandleMessage runs the full chat pipeline: persist the user message,
// retrieve context, generate an answer and persist it.
func (s *ChatService) HandleMessage(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	conv, _, err := s.GetOrCreateConversation(ctx, req.ConversationID, req.SessionID, req.UserID, req.Content, req.Metadata)
	if err != nil {
		return nil, err
	}

	if _, err := s.AppendMessage(ctx, conv.ID, model.MessageRoleUser, req.Content, nil, nil); err != nil {
		return nil, err
	}

	outcome, err := s.search.SearchWithFallback(ctx, req.Content, SearchOptions{
		Limit:    chatContextLimit,
		MinScore: DefaultChatMinScore,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	started := time.Now()
	answer, sources, tokensUsed := s.GenerateAnswer(ctx, req.Content, outcome.Results)
	latency := time.Since(started).Milliseconds()

	msg, err := s.AppendMessage(ctx, conv.ID, model.MessageRoleAssistant, answer, sources, model.JSONMap{
		"tokens_used": tokensUsed,
		"latency_ms":  latency,
		"search_tier": string(outcome.Tier),
	})
	if err != nil {
		return nil, err
	}

	return &ChatResult{
		ConversationID: conv.ID,
		Answer:         answer,
		Sources:        sources,
		SearchTier:     outcome.Tier,
		Message:        msg,
	}, nil
}

// GenerateAnswer produces the final answer text and the structured sources
// list from the retrieved articles. Failures never propagate: the user gets
// a fixed message instead.
func (s *ChatService) GenerateAnswer(ctx context.Context, question string, results []SearchResult) (string, model.Sources, int) {
	if len(results) == 0 {
		return noResultsMessage, model.Sources{}, 0
	}

	sources := buildSources(results)

	// Same shape as a failed completion: the apology plus the retrieved
	// sources, so the widget can still link the articles
	if !s.enableAI {
		return completionFailedMessage, sources, 0
	}

	resp, err := s.llmClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: chatSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(question, results),
			},
		},
		Temperature: completionTemperature,
		MaxTokens:   completionMaxTokens,
	})
	if err != nil {
		log.Printf("chat completion failed: %v", err)
		return completionFailedMessage, sources, 0
	}

	answer := resp.Choices[0].Message.Content

	// Sources section is always appended, even if the model already cited
	// the same articles in its answer
	answer += formatSources(results)

	return answer, sources, resp.Usage.TotalTokens
}

// buildPrompt assembles the context block and question for the completion call
func buildPrompt(question string, results []SearchResult) string {
	var b strings.Builder
	b.WriteString("Context from the knowledge base:\n\n")

	for _, r := range results {
		content := r.Content
		// Truncate on runes so a multi-byte character is never split
		if runes := []rune(content); len(runes) > contextCharsPerArticle {
			content = string(runes[:contextCharsPerArticle])
		}
		b.WriteString(fmt.Sprintf("Article: %s\n%s\n\n", r.Title, content))
	}

	b.WriteString("Question: ")
	b.WriteString(question)

	return b.String()
}

// formatSources renders the deterministic markdown Sources section
func formatSources(results []SearchResult) string {
	var b strings.Builder
	b.WriteString("\n\n**Sources:**\n")
	for i, r := range results {
		if i >= maxSourceLinks {
			break
		}
		b.WriteString(fmt.Sprintf("- [%s](/kb/%s)\n", r.Title, r.Slug))
	}
	return b.String()
}

// buildSources converts search results into the structured sources list
// stored on the assistant message
func buildSources(results []SearchResult) model.Sources {
	sources := make(model.Sources, 0, len(results))
	for _, r := range results {
		score := 0.0
		if r.Score != nil {
			score = *r.Score
		}
		sources = append(sources, model.Source{
			ArticleID: r.ID,
			Title:     r.Title,
			Slug:      r.Slug,
			Score:     score,
		})
	}
	return sources
}

// GetConversation loads a conversation without its messages
func (s *ChatService) GetConversation(ctx context.Context, id uint) (*model.Conversation, error) {
	var conv model.Conversation
	if err := s.db.WithContext(ctx).First(&conv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// ListMessages returns a conversation's messages ordered by creation time
func (s *ChatService) ListMessages(ctx context.Context, conversationID uint) ([]model.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	var messages []model.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// CloseConversation marks a conversation closed
func (s *ChatService) CloseConversation(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", id).
		Update("status", model.ConversationStatusClosed)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// DeleteConversation soft-deletes a conversation. Message rows stay behind
// the soft delete and get pruned by the retention cron.
func (s *ChatService) DeleteConversation(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&model.Conversation{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}
