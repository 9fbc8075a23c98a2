package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func chatServer(t *testing.T, status int, reply string, capture *ChatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if capture != nil {
			if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		resp := ChatResponse{
			Choices: []ChatChoice{{Message: Message{Role: "assistant", Content: reply}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestChatWithMessages(t *testing.T) {
	var captured ChatRequest
	server := chatServer(t, http.StatusOK, "hello there", &captured)
	defer server.Close()

	client := NewClient(server.URL, "key", "default-model")
	reply, err := client.ChatWithMessages(context.Background(),
		[]Message{{Role: "system", Content: "be brief"}, {Role: "user", Content: "hi"}},
		ChatParams{Model: "other-model", Temperature: 0.2},
	)
	if err != nil {
		t.Fatalf("ChatWithMessages() failed: %v", err)
	}
	if reply != "hello there" {
		t.Errorf("reply = %q", reply)
	}
	if captured.Model != "other-model" {
		t.Errorf("request model = %q, want override", captured.Model)
	}
	if len(captured.Messages) != 2 {
		t.Errorf("request carried %d messages, want 2", len(captured.Messages))
	}
}

func TestChatDefaultModel(t *testing.T) {
	var captured ChatRequest
	server := chatServer(t, http.StatusOK, "ok", &captured)
	defer server.Close()

	client := NewClient(server.URL, "key", "default-model")
	if _, err := client.Chat(context.Background(), "hi"); err != nil {
		t.Fatalf("Chat() failed: %v", err)
	}
	if captured.Model != "default-model" {
		t.Errorf("request model = %q, want client default", captured.Model)
	}
}

func TestChatTransientErrors(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		server := chatServer(t, status, "", nil)
		client := NewClient(server.URL, "key", "m")
		_, err := client.Chat(context.Background(), "hi")
		server.Close()
		if !errors.Is(err, ErrTransient) {
			t.Errorf("status %d: error = %v, want ErrTransient", status, err)
		}
	}
}

func TestChatNonTransientError(t *testing.T) {
	server := chatServer(t, http.StatusBadRequest, "", nil)
	defer server.Close()

	client := NewClient(server.URL, "key", "m")
	_, err := client.Chat(context.Background(), "hi")
	if err == nil {
		t.Fatal("Chat() should fail on 400")
	}
	if errors.Is(err, ErrTransient) {
		t.Errorf("400 classified as transient: %v", err)
	}
}

func TestChatNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ChatResponse{})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key", "m")
	if _, err := client.Chat(context.Background(), "hi"); err == nil {
		t.Fatal("Chat() should fail when no choices returned")
	}
}

func TestChatContextCancelled(t *testing.T) {
	server := chatServer(t, http.StatusOK, "ok", nil)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, "key", "m")
	_, err := client.Chat(ctx, "hi")
	if err == nil {
		t.Fatal("Chat() should fail on cancelled context")
	}
	if errors.Is(err, ErrTransient) {
		t.Errorf("cancellation classified as transient: %v", err)
	}
}
