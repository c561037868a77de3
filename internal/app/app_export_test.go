package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"briefly/pkg/queue"
	"briefly/pkg/store"
)

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string]string
	deleted []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string]string)}
}

func (f *fakeObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = string(data)
	return nil
}

func (f *fakeObjectStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.local/" + key, nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func newExportApp(t *testing.T) (*App, *fakeObjectStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	q, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{Addr: mr.Addr(), Stream: "exports"})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	objects := newFakeObjectStore()
	a, err := New(Config{
		Generator: &stubGenerator{reply: "assistant reply"},
		Store:     store.NewMemoryStore(),
		Objects:   objects,
		Queue:     q,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, objects, mr
}

func TestExportPipelineStoresTranscriptAndArtifact(t *testing.T) {
	ctx := context.Background()
	a, objects, mr := newExportApp(t)

	reply, err := a.Chat(ctx, "sess-1", "", "please remember this", 0)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	job, err := a.EnqueueExport(ctx, "sess-1", reply.ConversationID)
	if err != nil {
		t.Fatalf("EnqueueExport: %v", err)
	}
	if job.Status != queue.StatusQueued {
		t.Fatalf("job status = %q", job.Status)
	}

	if err := a.processExport(ctx, job); err != nil {
		t.Fatalf("processExport: %v", err)
	}

	key := fmt.Sprintf("exports/%s/%s.txt", reply.ConversationID, job.ID)
	transcript, ok := objects.objects[key]
	if !ok {
		t.Fatalf("no object at %q, have %v", key, objects.objects)
	}
	if !strings.Contains(transcript, "please remember this") || !strings.Contains(transcript, "assistant reply") {
		t.Fatalf("transcript = %q", transcript)
	}

	// Artifact is held back until the job reaches done.
	pending, artifact, err := a.ExportStatus(ctx, job.ID)
	if err != nil {
		t.Fatalf("ExportStatus queued: %v", err)
	}
	if pending.Status != queue.StatusQueued || artifact != nil {
		t.Fatalf("queued status = %q, artifact = %v", pending.Status, artifact)
	}

	mr.HSet("job:exports:"+job.ID, "status", queue.StatusDone)
	done, artifact, err := a.ExportStatus(ctx, job.ID)
	if err != nil {
		t.Fatalf("ExportStatus done: %v", err)
	}
	if done.Status != queue.StatusDone {
		t.Fatalf("done status = %q", done.Status)
	}
	if artifact == nil {
		t.Fatal("missing artifact")
	}
	if artifact.ConversationID != reply.ConversationID {
		t.Fatalf("artifact conversation = %q", artifact.ConversationID)
	}
	if artifact.DownloadURL != "https://objects.local/"+key {
		t.Fatalf("artifact url = %q", artifact.DownloadURL)
	}
	if artifact.SizeBytes != int64(len(transcript)) {
		t.Fatalf("artifact size = %d, want %d", artifact.SizeBytes, len(transcript))
	}
}

func TestExportStatusUnknownJob(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newExportApp(t)

	if _, _, err := a.ExportStatus(ctx, "no-such-job"); err != ErrExportJobNotFound {
		t.Fatalf("err = %v, want %v", err, ErrExportJobNotFound)
	}
}

func TestDeleteConversationCleansUpExports(t *testing.T) {
	ctx := context.Background()
	a, objects, _ := newExportApp(t)

	reply, err := a.Chat(ctx, "sess-1", "", "to be deleted", 0)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	job, err := a.EnqueueExport(ctx, "sess-1", reply.ConversationID)
	if err != nil {
		t.Fatalf("EnqueueExport: %v", err)
	}
	if err := a.processExport(ctx, job); err != nil {
		t.Fatalf("processExport: %v", err)
	}

	if err := a.DeleteConversation(ctx, "sess-1", reply.ConversationID); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	key := fmt.Sprintf("exports/%s/%s.txt", reply.ConversationID, job.ID)
	if len(objects.deleted) != 1 || objects.deleted[0] != key {
		t.Fatalf("deleted = %v, want [%s]", objects.deleted, key)
	}
	if _, ok := objects.objects[key]; ok {
		t.Fatal("object still present after delete")
	}
}
