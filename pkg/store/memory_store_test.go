package store

import (
	"fmt"
	"testing"
	"time"

	"briefly/pkg/domain"
)

func TestMemoryStoreConversationLifecycle(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	conv := domain.Conversation{ID: "c1", SessionID: "sess-1", Title: "New Chat", CreatedAt: now, UpdatedAt: now}
	if err := s.CreateConversation(conv); err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	got, ok, err := s.GetConversation("c1")
	if err != nil || !ok {
		t.Fatalf("get conversation: ok=%v err=%v", ok, err)
	}
	if got.Title != "New Chat" {
		t.Fatalf("title = %q", got.Title)
	}

	last := now.Add(time.Minute)
	if err := s.UpdateConversation("c1", "What is Go", last); err != nil {
		t.Fatalf("update conversation: %v", err)
	}
	got, _, _ = s.GetConversation("c1")
	if got.Title != "What is Go" || got.LastMessageAt == nil || !got.LastMessageAt.Equal(last) {
		t.Fatalf("unexpected conversation after update: %+v", got)
	}

	if err := s.DeleteConversation("c1"); err != nil {
		t.Fatalf("delete conversation: %v", err)
	}
	if _, ok, _ := s.GetConversation("c1"); ok {
		t.Fatalf("conversation should be gone")
	}
}

func TestMemoryStoreListConversationsBySession(t *testing.T) {
	s := NewMemoryStore()
	for i := 0; i < 3; i++ {
		conv := domain.Conversation{
			ID:        fmt.Sprintf("c%d", i),
			SessionID: "sess-1",
			Title:     fmt.Sprintf("chat %d", i),
			CreatedAt: time.Now().UTC(),
		}
		if err := s.CreateConversation(conv); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	_ = s.CreateConversation(domain.Conversation{ID: "other", SessionID: "sess-2"})

	convs, err := s.ListConversationsBySession("sess-1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("len = %d, want 2", len(convs))
	}
	// newest first
	if convs[0].ID != "c2" || convs[1].ID != "c1" {
		t.Fatalf("unexpected order: %s, %s", convs[0].ID, convs[1].ID)
	}
}

func TestMemoryStoreMessagesPreserveOrder(t *testing.T) {
	s := NewMemoryStore()
	for i := 0; i < 5; i++ {
		msg := domain.Message{
			ID:        fmt.Sprintf("m%d", i),
			Role:      "user",
			Content:   fmt.Sprintf("msg %d", i),
			CreatedAt: time.Now().UTC(),
		}
		if err := s.AppendMessage("c1", msg); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	msgs, err := s.ListMessages("c1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("len = %d, want 5", len(msgs))
	}
	for i, msg := range msgs {
		if msg.ID != fmt.Sprintf("m%d", i) {
			t.Fatalf("order broken at %d: %s", i, msg.ID)
		}
	}

	tail, err := s.ListMessages("c1", 2)
	if err != nil {
		t.Fatalf("list tail: %v", err)
	}
	if len(tail) != 2 || tail[0].ID != "m3" || tail[1].ID != "m4" {
		t.Fatalf("unexpected tail: %+v", tail)
	}
}

func TestMemoryStoreArtifacts(t *testing.T) {
	s := NewMemoryStore()
	a := domain.Artifact{ID: "a1", ConversationID: "c1", StorageKey: "exports/c1.txt", SizeBytes: 42, CreatedAt: time.Now().UTC()}
	if err := s.SaveArtifact(a); err != nil {
		t.Fatalf("save artifact: %v", err)
	}
	got, ok, err := s.GetArtifact("a1")
	if err != nil || !ok {
		t.Fatalf("get artifact: ok=%v err=%v", ok, err)
	}
	if got.StorageKey != "exports/c1.txt" || got.SizeBytes != 42 {
		t.Fatalf("unexpected artifact: %+v", got)
	}
}

func TestMemoryStoreDeleteArtifactsByConversation(t *testing.T) {
	s := NewMemoryStore()
	for _, a := range []domain.Artifact{
		{ID: "a1", ConversationID: "c1", StorageKey: "exports/c1/a1.txt"},
		{ID: "a2", ConversationID: "c1", StorageKey: "exports/c1/a2.txt"},
		{ID: "a3", ConversationID: "c2", StorageKey: "exports/c2/a3.txt"},
	} {
		if err := s.SaveArtifact(a); err != nil {
			t.Fatalf("save artifact %s: %v", a.ID, err)
		}
	}
	removed, err := s.DeleteArtifactsByConversation("c1")
	if err != nil {
		t.Fatalf("delete artifacts: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("removed = %+v, want 2 artifacts", removed)
	}
	if _, ok, _ := s.GetArtifact("a1"); ok {
		t.Fatalf("a1 should be gone")
	}
	if _, ok, _ := s.GetArtifact("a3"); !ok {
		t.Fatalf("a3 should survive")
	}
}

func TestMemoryStoreSettings(t *testing.T) {
	s := NewMemoryStore()
	if _, ok, _ := s.GetSettings("sess-1"); ok {
		t.Fatalf("settings should be absent for fresh session")
	}
	want := domain.Settings{AssistantName: "Demo", ResponseStyle: "Direct", HistoryLimit: 10, ShowTimestamps: false}
	if err := s.SaveSettings("sess-1", want); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	got, ok, err := s.GetSettings("sess-1")
	if err != nil || !ok {
		t.Fatalf("get settings: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
}
