package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegrjumin/cookieguard/internal/service"
	"github.com/olegrjumin/cookieguard/internal/store"
)

// maxBatchDomains bounds one batch request
const maxBatchDomains = 100

// scanRequest represents the JSON request body for the scan endpoint
type scanRequest struct {
	Domain        string `json:"domain"`
	NavTimeoutMs  *int   `json:"nav_timeout_ms,omitempty"`
	BannerWaitMs  *int   `json:"banner_wait_ms,omitempty"`
	SettleDelayMs *int   `json:"settle_delay_ms,omitempty"`
}

type batchRequest struct {
	Domains []string `json:"domains"`
}

func msg(text string) map[string]string {
	return map[string]string{"msg": text}
}

// scanHandler handles POST /v1/evaluations/scan
// Scans the domain, stores the evaluation and returns it
func scanHandler(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, msg("invalid JSON"))
			return
		}
		if req.Domain == "" {
			writeJSON(w, http.StatusBadRequest, msg("domain is required"))
			return
		}

		var opts *service.ScanOptions
		if req.NavTimeoutMs != nil || req.BannerWaitMs != nil || req.SettleDelayMs != nil {
			opts = &service.ScanOptions{
				NavTimeout:  millis(req.NavTimeoutMs),
				BannerWait:  millis(req.BannerWaitMs),
				SettleDelay: millis(req.SettleDelayMs),
			}
		}

		ev, err := svc.Scan(r.Context(), req.Domain, opts)
		if err != nil {
			writeScanError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, ev)
	}
}

// latestHandler handles GET /v1/evaluations/{domain}
func latestHandler(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ev, err := svc.Latest(r.Context(), chi.URLParam(r, "domain"))
		switch {
		case errors.Is(err, store.ErrNotFound), errors.Is(err, service.ErrInvalidDomain):
			writeJSON(w, http.StatusNotFound, msg("not found"))
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, msg(err.Error()))
		default:
			writeJSON(w, http.StatusOK, ev)
		}
	}
}

// historyHandler handles GET /v1/evaluations/{domain}/history?limit=n
func historyHandler(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, msg("invalid limit"))
				return
			}
			limit = n
		}

		list, err := svc.History(r.Context(), chi.URLParam(r, "domain"), limit)
		switch {
		case errors.Is(err, service.ErrInvalidDomain):
			writeJSON(w, http.StatusNotFound, msg("not found"))
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, msg(err.Error()))
		default:
			writeJSON(w, http.StatusOK, list)
		}
	}
}

// batchHandler handles POST /v1/evaluations/batch and streams one
// server-sent event per finished domain
func batchHandler(svc *service.Service, batch service.BatchOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, msg("invalid JSON"))
			return
		}
		if len(req.Domains) == 0 {
			writeJSON(w, http.StatusBadRequest, msg("domains are required"))
			return
		}
		if len(req.Domains) > maxBatchDomains {
			writeJSON(w, http.StatusBadRequest, msg(fmt.Sprintf("at most %d domains per batch", maxBatchDomains)))
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeJSON(w, http.StatusInternalServerError, msg("streaming not supported"))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
		w.WriteHeader(http.StatusOK)

		for event := range svc.ScanAllStreaming(r.Context(), req.Domains, batch) {
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\n", event.Stage)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// writeScanError maps scan failures to status codes
func writeScanError(w http.ResponseWriter, err error) {
	var se *service.ScanError
	if !errors.As(err, &se) {
		writeJSON(w, http.StatusInternalServerError, msg(err.Error()))
		return
	}

	status := http.StatusBadGateway
	switch se.Kind {
	case service.ErrorInvalidURL:
		status = http.StatusBadRequest
	case service.ErrorTimeout:
		status = http.StatusGatewayTimeout
	case service.ErrorBrowser, service.ErrorStore:
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, map[string]string{
		"msg":        err.Error(),
		"stage":      se.Stage,
		"error_type": se.Kind,
	})
}

func millis(v *int) time.Duration {
	if v == nil || *v <= 0 {
		return 0
	}
	return time.Duration(*v) * time.Millisecond
}
