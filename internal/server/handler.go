package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/devon-ng/gatewaycore/internal/config"
	"github.com/devon-ng/gatewaycore/internal/coordinator"
	"github.com/devon-ng/gatewaycore/internal/credential"
	"github.com/devon-ng/gatewaycore/internal/gatewayerr"
	"github.com/devon-ng/gatewaycore/internal/params"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

// statusFor maps a gatewayerr.Kind to the HTTP status a caller should
// see; faults that never reach this layer as *gatewayerr.Error (plain
// decode/validation errors) are always 400.
func statusFor(err error) int {
	var gerr *gatewayerr.Error
	if errors.As(err, &gerr) {
		switch gerr.Kind {
		case gatewayerr.KindSetup:
			return http.StatusBadRequest
		default:
			return http.StatusBadGateway
		}
	}
	return http.StatusBadRequest
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// processContentRequest mirrors §6.1's processContentViaApi fields.
// onChunk has no HTTP analogue — the caller subscribes to
// GET /v1/turns/{streamId}/events instead.
type processContentRequest struct {
	TabID               int               `json:"tabId"`
	URL                 string            `json:"url"`
	ProviderID          config.ProviderID `json:"providerId"`
	ModelID             string            `json:"modelId"`
	Source              params.Source     `json:"source"`
	CustomPrompt        string            `json:"customPrompt"`
	ConversationHistory []messageDTO      `json:"conversationHistory,omitempty"`
	FormattedContent    string            `json:"formattedContent,omitempty"`
}

type messageDTO struct {
	Role    params.Role `json:"role"`
	Content string      `json:"content"`
}

func (s *Server) handleProcessContent(w http.ResponseWriter, r *http.Request) {
	var req processContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	if s.limits != nil && !s.limits.Allow(req.ProviderID) {
		writeError(w, http.StatusTooManyRequests, gatewayerr.New(gatewayerr.KindSetup, "rate limit exceeded for provider"))
		return
	}

	creds, err := s.creds.Get(r.Context(), req.ProviderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if creds == nil {
		writeError(w, http.StatusBadRequest, gatewayerr.New(gatewayerr.KindSetup, "no stored credentials for provider"))
		return
	}

	history := make([]params.Message, len(req.ConversationHistory))
	for i, m := range req.ConversationHistory {
		history[i] = params.Message{Role: m.Role, Content: m.Content}
	}

	streamID, err := s.coord.ProcessContentViaApi(r.Context(), coordinator.TurnInput{
		TabID:               req.TabID,
		ProviderID:          req.ProviderID,
		ModelID:             req.ModelID,
		Source:              req.Source,
		Prompt:              req.CustomPrompt,
		ConversationHistory: history,
		FormattedContent:    req.FormattedContent,
		APIKey:              creds.APIKey,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"streamId":    streamID,
		"contentType": "text/event-stream",
	})
}

// handleEvents streams one Turn's chunk callbacks as SSE, framed the
// way the teacher's stream writer frames OpenAI chunks — one flushed
// "data: {json}\n\n" line per Chunk, but carrying the gateway's own
// chunk contract (§6.2) instead of OpenAI's choices[0].delta shape.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamId")

	events, ok := s.coord.Events(streamID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("stream not found or already completed/cancelled"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("response writer does not support flushing"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case chunk, ok := <-events:
			if !ok {
				return
			}
			jsonBytes, err := json.Marshal(chunk)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonBytes); err != nil {
				return
			}
			flusher.Flush()
			if chunk.Done {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamId")
	if err := s.coord.Cancel(streamID); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleGetModels(w http.ResponseWriter, r *http.Request) {
	providerID := config.ProviderID(chi.URLParam(r, "providerId"))

	models, err := s.cfg.Models(providerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	display := s.cfg.DisplayName(providerID)
	for i := range models {
		if models[i].DisplayName == "" {
			models[i].DisplayName = display
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"providerId": providerID,
		"models":     models,
	})
}

type credentialOperationRequest struct {
	ProviderID  config.ProviderID       `json:"providerId"`
	ProviderIDs []config.ProviderID     `json:"providerIds,omitempty"`
	Credentials *credential.Credentials `json:"credentials,omitempty"`
}

// handleCredentialOperation dispatches §6.1's credentialOperation
// action; operation is one of get/store/remove/validate/checkMultiple.
func (s *Server) handleCredentialOperation(w http.ResponseWriter, r *http.Request) {
	operation := chi.URLParam(r, "operation")

	var req credentialOperationRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	ctx := r.Context()

	switch operation {
	case "get":
		creds, err := s.creds.Get(ctx, req.ProviderID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "credentials": creds})

	case "store":
		if req.Credentials == nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("credentials are required"))
			return
		}
		if err := s.creds.Put(ctx, req.ProviderID, *req.Credentials); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	case "remove":
		if err := s.creds.Delete(ctx, req.ProviderID); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	case "validate":
		if req.Credentials == nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("credentials are required"))
			return
		}
		ok := s.creds.Validate(ctx, req.ProviderID, *req.Credentials)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "valid": ok})

	case "checkMultiple":
		results, err := s.creds.ExistsMultiple(ctx, req.ProviderIDs)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "results": results})

	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown credential operation: %q", operation))
	}
}
