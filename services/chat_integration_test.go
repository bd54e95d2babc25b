package services

import (
	"context"
	"errors"
	"testing"

	"github.com/supportal/api/model"
)

func TestAppendMessageUnknownConversation(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()

	if err := db.AutoMigrate(&model.Conversation{}, &model.Message{}); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	db.Exec("DELETE FROM messages")
	db.Exec("DELETE FROM conversations")

	svc := NewChatService(db, NewSearchService(db, fixedEmbedder{}, true), "")

	_, err := svc.AppendMessage(ctx, 999999, model.MessageRoleUser, "hello?", nil, nil)
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("append to bogus id: err = %v, want ErrConversationNotFound", err)
	}

	conv, created, err := svc.GetOrCreateConversation(ctx, nil, "", nil, "How do I reset my password?", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("expected a fresh conversation")
	}

	msg, err := svc.AppendMessage(ctx, conv.ID, model.MessageRoleUser, "How do I reset my password?", nil, nil)
	if err != nil {
		t.Fatalf("append to real conversation failed: %v", err)
	}
	if msg.ConversationID != conv.ID {
		t.Errorf("message bound to conversation %d, want %d", msg.ConversationID, conv.ID)
	}
}
