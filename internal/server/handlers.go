package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/concierge/internal/config"
	"github.com/hyperjump/concierge/internal/models"
	"github.com/hyperjump/concierge/internal/pipeline"
	"github.com/hyperjump/concierge/internal/storage"
	"go.uber.org/zap"
)

const serviceName = "concierge"

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	run, err := s.chat.Handle(r.Context(), pipeline.Request{
		UserID:    req.UserID,
		Utterance: req.Message,
		Location:  req.Location(),
	})
	if err != nil {
		s.respondRunError(w, run, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.ChatResponse{RunID: run.ID, Response: run.Response})
}

// respondRunError maps a failed run to a status code. The body never carries
// generated text.
func (s *Server) respondRunError(w http.ResponseWriter, run *pipeline.Run, err error) {
	resp := models.ErrorResponse{Error: "request failed"}
	if run != nil {
		resp.RunID = run.ID
	}
	status := http.StatusInternalServerError
	var se *pipeline.StageError
	if errors.As(err, &se) {
		resp.Stage = string(se.Stage)
		resp.Retryable = se.Retryable
		switch {
		case se.Stage == pipeline.StageMask:
			status = http.StatusUnprocessableEntity
			resp.Error = "message could not be processed"
		case errors.Is(err, pipeline.ErrGenerationTimeout):
			status = http.StatusServiceUnavailable
			resp.Error = "the assistant took too long to answer, please try again"
		case se.Retryable:
			status = http.StatusServiceUnavailable
			resp.Error = "the assistant is unavailable, please try again"
		}
	}
	s.logger.Warn("chat failed", zap.String("run_id", resp.RunID), zap.Int("status", status), zap.Error(err))
	s.respondJSON(w, status, resp)
}

func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(input.Content) == "" {
		s.respondError(w, http.StatusBadRequest, "content is required")
		return
	}
	s.logger.Debug("index document request", zap.String("id", input.ID), zap.String("title", input.Title))
	if err := s.knowledge.IndexDocument(r.Context(), &input); err != nil {
		s.logger.Error("indexing failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": input.ID, "status": "indexed"})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.knowledge.DeleteDocument(r.Context(), id); err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
}

// StatusConfig is the configuration summary reported by the status endpoint.
type StatusConfig struct {
	EmbeddingProvider   string `json:"embedding_provider"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
	GenerationProvider  string `json:"generation_provider"`
	GenerationModel     string `json:"generation_model,omitempty"`
	ChunkSize           int    `json:"chunk_size"`
	ChunkOverlap        int    `json:"chunk_overlap"`
	TopK                int    `json:"top_k"`
	Hybrid              bool   `json:"hybrid"`
	LiveStores          bool   `json:"live_stores"`
	DatabasePath        string `json:"database_path,omitempty"`
	BleveIndexPath      string `json:"bleve_index_path,omitempty"`
	VectorIndexPath     string `json:"vector_index_path,omitempty"`
}

// StatusResponse is the shape of GET /api/v1/status.
type StatusResponse struct {
	Documents       int64            `json:"documents"`
	BySource        map[string]int64 `json:"documents_by_source"`
	Chunks          int64            `json:"chunks"`
	VectorIndexSize int              `json:"vector_index_size"`
	KeywordEntries  uint64           `json:"keyword_entries"`
	DiskUsageBytes  *int64           `json:"disk_usage_bytes,omitempty"`
	Config          *StatusConfig    `json:"config,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.knowledge.Stats(r.Context())
	if err != nil {
		s.logger.Error("status: knowledge stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := StatusResponse{
		Documents:       st.Documents,
		BySource:        st.BySource,
		Chunks:          st.Chunks,
		VectorIndexSize: st.Vectors,
		KeywordEntries:  st.KeywordEntries,
	}
	if cfg := s.config; cfg != nil {
		resp.Config = &StatusConfig{
			EmbeddingProvider:   cfg.Embedding.Provider,
			EmbeddingDimensions: cfg.Embedding.Dimensions,
			GenerationProvider:  cfg.Generation.Provider,
			GenerationModel:     cfg.Generation.Model,
			ChunkSize:           cfg.Knowledge.ChunkSize,
			ChunkOverlap:        cfg.Knowledge.ChunkOverlap,
			TopK:                cfg.Retrieval.TopK,
			Hybrid:              cfg.Retrieval.Hybrid,
			LiveStores:          cfg.Enrichment.LiveStores,
			DatabasePath:        cfg.Storage.DatabasePath,
			BleveIndexPath:      cfg.Storage.BleveIndexPath,
			VectorIndexPath:     cfg.Storage.VectorIndexPath,
		}
		dbPath := cfg.Storage.DatabasePath
		if dbPath == config.MemoryDatabase {
			dbPath = ""
		}
		if diskBytes, err := storage.DiskUsageBytes(dbPath, cfg.Storage.BleveIndexPath, cfg.Storage.VectorIndexPath); err == nil {
			resp.DiskUsageBytes = &diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, models.ErrorResponse{Error: message})
}
