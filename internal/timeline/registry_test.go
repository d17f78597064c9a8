package timeline

import (
	"context"
	"testing"

	"github.com/MikeSquared-Agency/chatline/internal/chat"
)

func TestRegistry_OpenCachesTimeline(t *testing.T) {
	store := newFakeStore()
	r := NewRegistry(store, nil)

	first, err := r.Open(context.Background(), "conv-a")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	first.Append(context.Background(), chat.Message{Role: chat.RoleUser, Content: "Hi"})

	again, err := r.Open(context.Background(), "conv-a")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if first != again {
		t.Error("expected the same timeline instance")
	}

	other, _ := r.Open(context.Background(), "conv-b")
	if other.Len() != 0 {
		t.Errorf("expected separate empty timeline, got %d messages", other.Len())
	}
}

func TestRegistry_OpenEmptyIDFails(t *testing.T) {
	r := NewRegistry(newFakeStore(), nil)
	if _, err := r.Open(context.Background(), ""); err == nil {
		t.Error("expected error for empty conversation id")
	}
}
