package mockserver

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/runestone-ai/runestone-go/pkg/api"
)

var models = []api.Model{
	{ID: "runestone-mock", Object: api.ObjectModel, Created: 1700000000, OwnedBy: "runestone"},
	{ID: "runestone-mock-mini", Object: api.ObjectModel, Created: 1700000000, OwnedBy: "runestone"},
}

var responseSeq atomic.Int64

func responseID(prefix string) string {
	return fmt.Sprintf("%s-mock-%d", prefix, responseSeq.Add(1))
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req api.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "invalid_request_error", nil)
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required", "invalid_request_error", nil)
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages cannot be empty", "invalid_request_error", nil)
		return
	}

	if req.Stream {
		s.streamCompletion(w, r, req.Model, completionTokens(lastUserMessage(req.Messages)))
		return
	}

	text := completionText(lastUserMessage(req.Messages))
	writeJSON(w, http.StatusOK, api.ChatCompletionResponse{
		ID:      responseID("chatcmpl"),
		Object:  api.ObjectChatCompletion,
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []api.ChatChoice{
			{
				Index:        0,
				Message:      api.ChatMessage{Role: api.RoleAssistant, Content: text},
				FinishReason: "stop",
			},
		},
		Usage: usageFor(req.Messages, text),
	})
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req api.ChatStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "invalid_request_error", nil)
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required", "invalid_request_error", nil)
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages cannot be empty", "invalid_request_error", nil)
		return
	}

	s.streamCompletion(w, r, req.Model, completionTokens(lastUserMessage(req.Messages)))
}

// streamCompletion walks the reply as chunk frames: a role chunk, one
// chunk per token, then a finish chunk carrying usage. Fault injection
// applies here: MalformedFrame adds a garbage frame after the first
// content token, DropAfterChunks aborts the connection once that many
// data frames are out.
func (s *Server) streamCompletion(w http.ResponseWriter, r *http.Request, model string, tokens []string) {
	id := responseID("chatcmpl")

	chunks := make([]api.ChatCompletionChunk, 0, len(tokens)+2)
	chunks = append(chunks, chunkFor(id, model, api.ChunkDelta{Role: api.RoleAssistant}, nil))
	for _, tok := range tokens {
		chunks = append(chunks, chunkFor(id, model, api.ChunkDelta{Content: &tok}, nil))
	}
	finish := "stop"
	last := chunkFor(id, model, api.ChunkDelta{}, &finish)
	last.Usage = &api.Usage{
		PromptTokens:     10,
		CompletionTokens: len(tokens),
		TotalTokens:      10 + len(tokens),
	}
	chunks = append(chunks, last)

	sw := newStreamWriter(w)
	for i, chunk := range chunks {
		if s.cfg.DropAfterChunks > 0 && sw.sent >= s.cfg.DropAfterChunks {
			panic(http.ErrAbortHandler)
		}
		if i > 0 && s.cfg.StreamDelay > 0 {
			select {
			case <-time.After(s.cfg.StreamDelay):
			case <-r.Context().Done():
				return
			}
		}
		if err := sw.writeJSON(chunk); err != nil {
			return
		}
		if s.cfg.MalformedFrame && i == 1 {
			if err := sw.writeData([]byte("not-json{")); err != nil {
				return
			}
		}
	}
	sw.writeDone()
}

func chunkFor(id, model string, delta api.ChunkDelta, finish *string) api.ChatCompletionChunk {
	return api.ChatCompletionChunk{
		ID:      id,
		Object:  api.ObjectChatCompletionChunk,
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []api.ChunkChoice{
			{Index: 0, Delta: delta, FinishReason: finish},
		},
	}
}

func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	var req api.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "invalid_request_error", nil)
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required", "invalid_request_error", nil)
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required", "invalid_request_error", nil)
		return
	}

	text := completionText(req.Prompt)
	writeJSON(w, http.StatusOK, api.CompletionResponse{
		ID:      responseID("cmpl"),
		Object:  api.ObjectTextCompletion,
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []api.CompletionChoice{
			{Text: text, Index: 0, FinishReason: "stop"},
		},
		Usage: &api.Usage{
			PromptTokens:     len(strings.Fields(req.Prompt)),
			CompletionTokens: len(strings.Fields(text)),
			TotalTokens:      len(strings.Fields(req.Prompt)) + len(strings.Fields(text)),
		},
	})
}

func (s *Server) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req api.EmbeddingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "invalid_request_error", nil)
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required", "invalid_request_error", nil)
		return
	}

	inputs, err := embeddingInputs(req.Input)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_request_error", nil)
		return
	}
	if len(inputs) == 0 {
		writeError(w, http.StatusBadRequest, "input cannot be empty", "invalid_request_error", nil)
		return
	}

	data := make([]api.Embedding, len(inputs))
	promptTokens := 0
	for i, in := range inputs {
		data[i] = api.Embedding{
			Object:    api.ObjectEmbedding,
			Index:     i,
			Embedding: embeddingVector(in),
		}
		promptTokens += len(strings.Fields(in))
	}

	writeJSON(w, http.StatusOK, api.EmbeddingsResponse{
		Object: api.ObjectList,
		Model:  req.Model,
		Data:   data,
		Usage:  &api.Usage{PromptTokens: promptTokens, TotalTokens: promptTokens},
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.ModelList{Object: api.ObjectList, Data: models})
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	for _, m := range models {
		if m.ID == id {
			writeJSON(w, http.StatusOK, m)
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("model %q not found", id), "invalid_request_error", "model_not_found")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthStatus{Status: "ok", Version: "mock"})
}

// completionText picks the canned reply for a prompt. Deterministic so
// conformance checks can assert on content.
func completionText(prompt string) string {
	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(lower, "count from 1 to 5"):
		return "1, 2, 3, 4, 5"
	case strings.Contains(lower, "ping"):
		return "pong"
	default:
		return "Hello! This is a mock completion."
	}
}

// completionTokens splits the canned reply into streamable tokens, each
// carrying its leading space so concatenation reproduces the text.
func completionTokens(prompt string) []string {
	words := strings.Split(completionText(prompt), " ")
	tokens := make([]string, len(words))
	for i, word := range words {
		if i == 0 {
			tokens[i] = word
		} else {
			tokens[i] = " " + word
		}
	}
	return tokens
}

func lastUserMessage(messages []api.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == api.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func usageFor(messages []api.ChatMessage, reply string) *api.Usage {
	prompt := 0
	for _, m := range messages {
		prompt += len(strings.Fields(m.Content))
	}
	completion := len(strings.Fields(reply))
	return &api.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

// embeddingInputs normalizes the polymorphic input field to a string list.
func embeddingInputs(input any) ([]string, error) {
	switch v := input.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("input elements must be strings")
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("input must be a string or an array of strings")
	}
}

// embeddingVector derives a deterministic 8-dimension vector from the
// text, so the same input always embeds identically.
func embeddingVector(text string) []float64 {
	const dims = 8

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float64, dims)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float64(int64(seed>>11))/float64(1<<52) - 1
	}
	return vec
}
