package prompts

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PhucHuwu/Imagine-IV/internal/config"
	"github.com/PhucHuwu/Imagine-IV/internal/run"
	"github.com/PhucHuwu/Imagine-IV/internal/services"
)

func chatReply(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	encoded, _ := json.Marshal(payload)
	return string(encoded)
}

func testGenerator(t *testing.T, handler http.HandlerFunc) *Generator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewGenerator(config.OpenRouter{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test/model",
		Title:   "imagine",
	}, WithRandSource(rand.NewSource(1)))
}

func TestGeneratorParsesFencedJSON(t *testing.T) {
	var authHeader, titleHeader string
	gen := testGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		titleHeader = r.Header.Get("X-Title")

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test/model" || len(req.Messages) != 2 {
			t.Errorf("unexpected request payload: %+v", req)
		}

		content := "```json\n{\"image_prompt\":\"a lighthouse at dawn\",\"video1_prompt\":\"waves roll in\",\"video2_prompt\":\"the beam sweeps past\"}\n```"
		w.Write([]byte(chatReply(content)))
	})

	set, err := gen.Next(context.Background(), run.ModeVideo12)
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if set.Image != "a lighthouse at dawn" || set.Video1 != "waves roll in" || set.Video2 != "the beam sweeps past" {
		t.Fatalf("unexpected set: %+v", set)
	}
	if authHeader != "Bearer test-key" {
		t.Fatalf("missing auth header, got %q", authHeader)
	}
	if titleHeader != "imagine" {
		t.Fatalf("missing title header, got %q", titleHeader)
	}
}

func TestGeneratorHTTPErrorClassifiesAsPromptSkip(t *testing.T) {
	gen := testGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	})

	_, err := gen.Next(context.Background(), run.ModeImage)
	if !errors.Is(err, services.ErrPromptGeneration) {
		t.Fatalf("expected prompt generation marker, got %v", err)
	}
	if kind := services.ClassifySkip(err); kind != run.SkipPromptGeneration {
		t.Fatalf("expected prompt_generation skip, got %q", kind)
	}
}

func TestGeneratorRejectsIncompleteSet(t *testing.T) {
	gen := testGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatReply(`{"image_prompt":"a door","video1_prompt":"it opens"}`)))
	})

	_, err := gen.Next(context.Background(), run.ModeVideo12)
	if !errors.Is(err, services.ErrPromptGeneration) {
		t.Fatalf("expected prompt generation error for missing video2, got %v", err)
	}

	// The same payload is complete for a shorter mode.
	set, err := gen.Next(context.Background(), run.ModeVideo6)
	if err != nil {
		t.Fatalf("Next returned error for video6s: %v", err)
	}
	if set.Video1 != "it opens" {
		t.Fatalf("unexpected set: %+v", set)
	}
}

func TestGeneratorRejectsUnparseableContent(t *testing.T) {
	gen := testGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatReply("sorry, I can only answer in prose")))
	})

	_, err := gen.Next(context.Background(), run.ModeImage)
	if !errors.Is(err, services.ErrPromptGeneration) {
		t.Fatalf("expected prompt generation error, got %v", err)
	}
}

func TestGeneratorRequiresAPIKey(t *testing.T) {
	gen := NewGenerator(config.OpenRouter{Model: "test/model"})
	_, err := gen.Next(context.Background(), run.ModeImage)
	if !errors.Is(err, services.ErrPromptGeneration) {
		t.Fatalf("expected prompt generation error without api key, got %v", err)
	}
}

func TestDecodeModelJSONExtractsEmbeddedObject(t *testing.T) {
	var set Set
	content := "Here is the result: {\"image_prompt\":\"x\",\"video1_prompt\":\"y\",\"video2_prompt\":\"z\"} enjoy!"
	if err := decodeModelJSON(content, &set); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if set.Image != "x" || set.Video2 != "z" {
		t.Fatalf("unexpected set: %+v", set)
	}
}
