package questions

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/koscakluka/ema-interview/core/store"
)

const (
	generateRequestLimit = 10
	generateWindow       = time.Minute
)

// generateResponse carries the model payload undecoded in Questions.
type generateResponse struct {
	Success   bool   `json:"success"`
	Questions string `json:"questions,omitempty"`
	Error     string `json:"error,omitempty"`
}

type listResponse struct {
	Success    bool              `json:"success"`
	Interviews []store.Interview `json:"interviews,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// NewRouter exposes the service over HTTP. Generation is rate limited per
// client IP since every request costs a model call.
func NewRouter(service *Service) http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.With(rateLimit(generateRequestLimit, generateWindow)).
			Post("/questions/generate", handleGenerate(service))
		r.Get("/interviews", handleList(service))
	})

	return r
}

func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, generateResponse{Error: "Too Many Requests"})
		}),
	)
}

func handleGenerate(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, generateResponse{Error: "Bad Request"})
			return
		}

		result, err := service.Generate(r.Context(), req)
		switch {
		case errors.Is(err, ErrUnauthorized):
			writeJSON(w, http.StatusUnauthorized, generateResponse{Error: "Unauthorized"})
		case err != nil:
			logger.ErrorContext(r.Context(), "failed to generate questions", "error", err)
			writeJSON(w, http.StatusInternalServerError, generateResponse{Error: "Internal Server Error"})
		default:
			writeJSON(w, http.StatusOK, generateResponse{Success: true, Questions: result.Raw})
		}
	}
}

func handleList(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		interviews, err := service.List(r.Context(), r.URL.Query().Get("userId"))
		switch {
		case errors.Is(err, ErrUnauthorized):
			writeJSON(w, http.StatusUnauthorized, listResponse{Error: "Unauthorized"})
		case err != nil:
			logger.ErrorContext(r.Context(), "failed to list interviews", "error", err)
			writeJSON(w, http.StatusInternalServerError, listResponse{Error: "Internal Server Error"})
		default:
			writeJSON(w, http.StatusOK, listResponse{Success: true, Interviews: interviews})
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("failed to write response", "error", err)
	}
}
