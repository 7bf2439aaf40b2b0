package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"
)

type incidentPayload struct {
	Type              string `json:"type"`
	Severity          string `json:"severity"`
	TenantID          string `json:"tenant_id"`
	UserIDHash        string `json:"user_id_hash"`
	Page              string `json:"page"`
	Route             string `json:"route"`
	Endpoint          string `json:"endpoint"`
	Method            string `json:"method"`
	HTTPStatus        int    `json:"http_status"`
	Message           string `json:"message"`
	Details           string `json:"details"`
	StackTrace        string `json:"stack_trace"`
	FrontendTimestamp string `json:"frontend_timestamp"`
	ScreenshotData    string `json:"screenshot_data"`
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/guardian/incidents", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing bearer token"})
			return
		}
		if r.Header.Get("X-Tenant-ID") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing tenant header"})
			return
		}

		var payload incidentPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}

		screenshot := "none"
		if payload.ScreenshotData != "" {
			screenshot = "present"
		}
		log.Printf("incident accepted: type=%s severity=%s tenant=%s user=%s message=%q screenshot=%s",
			payload.Type, payload.Severity, r.Header.Get("X-Tenant-ID"), payload.UserIDHash, payload.Message, screenshot)

		writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
	})

	logger := log.New(log.Writer(), "collector-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":8080",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :8080")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
