package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/promptops/prompt-gateway/internal/auth"
	"github.com/promptops/prompt-gateway/internal/models"
	"github.com/promptops/prompt-gateway/internal/pipeline"
)

type Handler struct {
	pipeline *pipeline.Pipeline
}

func NewHandler(p *pipeline.Pipeline) *Handler {
	return &Handler{pipeline: p}
}

// Execute handles POST /api/v1/execute.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	cred, ok := auth.CredentialFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, pipeline.CodeMissingCredential, "missing credential")
		return
	}

	var req models.ExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.CodeValidation, "invalid JSON body")
		return
	}

	if uuid.Validate(req.VersionID) != nil {
		writeError(w, http.StatusBadRequest, pipeline.CodeValidation, "version_id must be a UUID")
		return
	}
	if req.ABVersionID != "" && uuid.Validate(req.ABVersionID) != nil {
		writeError(w, http.StatusBadRequest, pipeline.CodeValidation, "ab_version_id must be a UUID")
		return
	}

	res, perr := h.pipeline.Execute(r.Context(), cred, &req)
	if perr != nil {
		log.Printf("execute rejected for key %d: %v", cred.ID, perr)
		writePipelineError(w, perr)
		return
	}

	log.Printf("execute ok for key %d: model=%s cached=%v %dms", cred.ID, res.Model, res.Cached, time.Since(start).Milliseconds())
	writeSuccess(w, res.Data, &Meta{
		Model:         res.Model,
		Cached:        res.Cached,
		LatencyMs:     res.LatencyMs,
		TokensInput:   res.TokensInput,
		TokensOutput:  res.TokensOutput,
		CostMicroUSD:  res.CostMicroUSD,
		ServedVersion: res.ServedVersion,
	})
}

// CLI handles POST /api/v1/cli: a raw prompt with an optional forced model.
func (h *Handler) CLI(w http.ResponseWriter, r *http.Request) {
	cred, ok := auth.CredentialFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, pipeline.CodeMissingCredential, "missing credential")
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
		Model  string `json:"model,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.CodeValidation, "invalid JSON body")
		return
	}

	if len(req.Prompt) < 1 {
		writeError(w, http.StatusBadRequest, pipeline.CodeValidation, "prompt must not be empty")
		return
	}

	res, perr := h.pipeline.ExecuteRaw(r.Context(), cred, req.Prompt, req.Model)
	if perr != nil {
		log.Printf("cli rejected for key %d: %v", cred.ID, perr)
		writePipelineError(w, perr)
		return
	}

	writeSuccess(w, res.Data, &Meta{
		Model:        res.Model,
		Cached:       res.Cached,
		LatencyMs:    res.LatencyMs,
		TokensInput:  res.TokensInput,
		TokensOutput: res.TokensOutput,
		CostMicroUSD: res.CostMicroUSD,
	})
}
