package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"recivo/internal/history"
	"recivo/internal/payload"
	"recivo/internal/relay"
	"recivo/internal/speech"
	"recivo/internal/voices"
)

// maxRequestBody ограничение размера тела POST /api/tts
const maxRequestBody = 1 << 20

// SpeakResponse ответ с готовым аудио
type SpeakResponse struct {
	AudioURL string `json:"audioUrl"`
	ProxyURL string `json:"proxyUrl"`
	JobID    string `json:"jobId,omitempty"`
}

// PendingResponse задача принята, но аудио еще не готово
type PendingResponse struct {
	Status string         `json:"status"`
	JobID  string         `json:"jobId"`
	Raw    *payload.Value `json:"raw,omitempty"`
}

// ErrorResponse ответ с ошибкой
type ErrorResponse struct {
	Error   string         `json:"error"`
	Details string         `json:"details,omitempty"`
	Raw     *payload.Value `json:"raw,omitempty"`
}

// LastResponse последний ответ провайдера
type LastResponse struct {
	Raw payload.Value `json:"raw"`
}

// HistoryResponse история успешных запросов
type HistoryResponse struct {
	History []history.Entry `json:"history"`
}

// VoicesResponse каталог голосов
type VoicesResponse struct {
	Voices    []voices.Voice `json:"voices"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// handleSpeak обрабатывает POST /api/tts
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	log := s.requestLogger(r)

	var req speech.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		log.Warn("некорректное тело запроса на синтез", zap.Error(err))
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}

	outcome, err := s.speech.Speak(r.Context(), req)
	if errors.Is(err, speech.ErrInvalidRequest) {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "text and voiceId are required"})
		return
	}
	if err != nil {
		log.Error("ошибка обработки запроса на синтез", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to generate speech", Details: err.Error()})
		return
	}

	switch outcome.Status {
	case speech.StatusReady:
		s.writeJSON(w, http.StatusOK, SpeakResponse{AudioURL: outcome.AudioURL, ProxyURL: outcome.ProxyURL})
	case speech.StatusPending:
		s.writeJSON(w, http.StatusAccepted, PendingResponse{
			Status: string(outcome.Status),
			JobID:  outcome.JobID,
			Raw:    rawOrNil(outcome.Raw),
		})
	default:
		resp := ErrorResponse{Error: "failed to generate speech", Details: outcome.Detail}
		if outcome.Failure == speech.FailureUnresolved {
			resp.Error = "no audio reference or job id in provider response"
			resp.Raw = rawOrNil(outcome.Raw)
		}
		s.writeJSON(w, http.StatusInternalServerError, resp)
	}
}

// handleStatus обрабатывает GET /api/tts/status/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.speech.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "job not found"})
		return
	}

	if outcome.Status == speech.StatusReady {
		s.writeJSON(w, http.StatusOK, SpeakResponse{
			AudioURL: outcome.AudioURL,
			ProxyURL: outcome.ProxyURL,
			JobID:    outcome.JobID,
		})
		return
	}

	s.writeJSON(w, http.StatusAccepted, PendingResponse{
		Status: string(outcome.Status),
		JobID:  outcome.JobID,
		Raw:    rawOrNil(outcome.Raw),
	})
}

// handleLast обрабатывает GET /api/tts/last
func (s *Server) handleLast(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.speech.LastRaw()
	if !ok {
		s.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no provider response yet"})
		return
	}
	s.writeJSON(w, http.StatusOK, LastResponse{Raw: raw})
}

// handleHistory обрабатывает GET /api/tts/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HistoryResponse{History: s.speech.History()})
}

// handleVoices обрабатывает GET /api/tts/voices
func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	list, updatedAt, err := s.voices.List()
	if errors.Is(err, voices.ErrNotLoaded) {
		s.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "voice catalog is not loaded yet"})
		return
	}
	s.writeJSON(w, http.StatusOK, VoicesResponse{Voices: list, UpdatedAt: updatedAt})
}

// handleProxy обрабатывает GET /api/tts/proxy?url= и передает аудио потоком
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	log := s.requestLogger(r)
	ref := r.URL.Query().Get("url")

	stream, err := s.relay.Open(r.Context(), ref)
	switch {
	case errors.Is(err, relay.ErrInvalidURL):
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "url must be an http(s) audio link"})
		return
	case err != nil:
		log.Warn("ошибка получения аудио для ретрансляции", zap.Error(err))
		s.writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "failed to fetch audio", Details: err.Error()})
		return
	}
	defer stream.Body.Close()

	// длинное аудио не должно обрываться по WriteTimeout сервера
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("не удалось снять ограничение записи", zap.Error(err))
	}

	w.Header().Set("Content-Type", stream.ContentType)
	if stream.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(stream.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, stream.Body)
	s.metrics.AddRelayBytes(n)
	if err != nil {
		log.Warn("передача аудио прервана",
			zap.String("sent", humanize.Bytes(uint64(n))),
			zap.Error(err))
		return
	}

	log.Info("аудио передано клиенту",
		zap.String("content_type", stream.ContentType),
		zap.String("size", humanize.Bytes(uint64(n))))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("ошибка записи JSON ответа", zap.Error(err))
	}
}

func rawOrNil(v payload.Value) *payload.Value {
	if v.IsNull() {
		return nil
	}
	return &v
}
