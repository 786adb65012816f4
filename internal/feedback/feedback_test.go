package feedback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/eduquest/internal/model"
)

func sampleExam() model.Exam {
	return model.Exam{
		ID:              "exam-101",
		Title:           "Calculus I",
		Category:        "Math",
		DurationSeconds: 2700,
		Questions: []model.Question{
			{ID: 1, Prompt: "Derivative of x^2?", Options: []string{"x", "2x"}, CorrectOptionIndex: 1, Points: 10},
			{ID: 2, Prompt: "Value of cos(0)?", Options: []string{"0", "1"}, CorrectOptionIndex: 1, Points: 5},
		},
	}
}

func sampleResult() model.ExamResult {
	return model.ExamResult{
		ExamID:      "exam-101",
		Score:       10,
		TotalPoints: 15,
		CompletedAt: time.Now(),
		Answers:     model.Answers{1: 1},
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Run("english", func(t *testing.T) {
		prompt, err := buildPrompt("en", sampleExam(), sampleResult())
		require.NoError(t, err)
		assert.Contains(t, prompt, "Exam: Calculus I")
		assert.Contains(t, prompt, "Points earned: 10/15")
		assert.Contains(t, prompt, "Percentage: 66.7%")
		assert.Contains(t, prompt, "Questions answered: 1 of 2")
		assert.Contains(t, prompt, "- Value of cos(0)?")
		assert.NotContains(t, prompt, "- Derivative of x^2?")
	})

	t.Run("vietnamese", func(t *testing.T) {
		prompt, err := buildPrompt("vi", sampleExam(), sampleResult())
		require.NoError(t, err)
		assert.Contains(t, prompt, "Tên bài thi: Calculus I")
		assert.Contains(t, prompt, "Điểm đạt được: 10/15")
		assert.Contains(t, prompt, "Tỷ lệ: 66.7%")
	})

	t.Run("all correct has no review list", func(t *testing.T) {
		res := sampleResult()
		res.Answers = model.Answers{1: 1, 2: 1}
		res.Score = 15
		prompt, err := buildPrompt("en", sampleExam(), res)
		require.NoError(t, err)
		assert.NotContains(t, prompt, "answered incorrectly")
		assert.Contains(t, prompt, "Percentage: 100.0%")
	})

	t.Run("zero total points", func(t *testing.T) {
		res := model.ExamResult{ExamID: "x", Answers: model.Answers{}}
		prompt, err := buildPrompt("en", model.Exam{Title: "Empty"}, res)
		require.NoError(t, err)
		assert.Contains(t, prompt, "Percentage: 0.0%")
	})

	t.Run("unknown language", func(t *testing.T) {
		_, err := buildPrompt("fr", sampleExam(), sampleResult())
		assert.Error(t, err)
	})
}

func fakeLLM(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/v1", "test-key", "test-model", "en")
	require.NoError(t, err)
	return c
}

func chatReply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     "cmpl-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
}

func TestGenerateFeedback(t *testing.T) {
	var gotPrompt string
	c := fakeLLM(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) > 0 {
			gotPrompt = req.Messages[0].Content
		}
		chatReply(w, "  Review trigonometry.  ")
	})

	text := c.GenerateFeedback(context.Background(), sampleExam(), sampleResult())
	assert.Equal(t, "Review trigonometry.", text)
	assert.Contains(t, gotPrompt, "Calculus I")
}

func TestGenerateFeedbackFailsOpen(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		c := fakeLLM(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusTooManyRequests)
		})
		assert.Equal(t, c.FallbackFailed(), c.GenerateFeedback(context.Background(), sampleExam(), sampleResult()))
	})

	t.Run("empty reply", func(t *testing.T) {
		c := fakeLLM(t, func(w http.ResponseWriter, r *http.Request) {
			chatReply(w, "")
		})
		assert.Equal(t, c.FallbackEmpty(), c.GenerateFeedback(context.Background(), sampleExam(), sampleResult()))
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		c := fakeLLM(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		})
		defer close(release)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		assert.Equal(t, c.FallbackFailed(), c.GenerateFeedback(ctx, sampleExam(), sampleResult()))
	})
}

func TestNewRejectsUnknownLanguage(t *testing.T) {
	_, err := New("", "key", "model", "de")
	assert.Error(t, err)
}
