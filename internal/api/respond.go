package api

import (
	"encoding/json"
	"net/http"

	"github.com/promptops/prompt-gateway/internal/pipeline"
)

// Meta is the execution metadata block of a success envelope.
type Meta struct {
	Model         string `json:"model"`
	Cached        bool   `json:"cached"`
	LatencyMs     int64  `json:"latency_ms"`
	TokensInput   int64  `json:"tokens_input"`
	TokensOutput  int64  `json:"tokens_output"`
	CostMicroUSD  int64  `json:"cost_micro_usd"`
	ServedVersion string `json:"served_version,omitempty"`
}

type errorBody struct {
	Code    pipeline.Code `json:"code"`
	Message string        `json:"message"`
}

type envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Meta    *Meta          `json:"meta,omitempty"`
	Error   *errorBody     `json:"error,omitempty"`
	Debug   map[string]any `json:"debug,omitempty"`
}

func writeSuccess(w http.ResponseWriter, data any, meta *Meta) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Meta: meta})
}

func writePipelineError(w http.ResponseWriter, perr *pipeline.Error) {
	writeJSON(w, perr.Status, envelope{
		Success: false,
		Error:   &errorBody{Code: perr.Code, Message: perr.Message},
		Debug:   perr.Debug,
	})
}

func writeError(w http.ResponseWriter, status int, code pipeline.Code, message string) {
	writeJSON(w, status, envelope{
		Success: false,
		Error:   &errorBody{Code: code, Message: message},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
