package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"zoolanding/quickstats/internal/stats"
	"zoolanding/quickstats/internal/store"
	"zoolanding/quickstats/pkg/statsproto"
)

// handleUpdate applies an operation batch posted as a JSON body.
func (s *StatsServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if s.config.CORS.Enabled {
		s.addCORSHeaders(w, r)

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		writeJSON(w, http.StatusBadRequest, statsproto.NewErrorResponse("Missing body"))
		return
	}

	var req statsproto.UpdateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		if errors.Is(err, statsproto.ErrInvalidOps) {
			writeJSON(w, http.StatusBadRequest, statsproto.NewErrorResponse(err.Error()))
			return
		}
		writeJSON(w, http.StatusBadRequest, statsproto.NewErrorResponse("Body is not valid JSON"))
		return
	}

	res, err := s.service.Update(r.Context(), &req)
	if err != nil {
		if stats.IsClientError(err) {
			writeJSON(w, http.StatusBadRequest, statsproto.NewErrorResponse(err.Error()))
			return
		}
		log.Error().Err(err).Str("appName", req.AppName).Msg("update failed")
		writeJSON(w, http.StatusInternalServerError, statsproto.NewErrorResponse("Internal error"))
		return
	}

	// A completed write is a document change subscribers should see.
	if res.Wrote {
		if data, err := res.Document.Bytes(); err == nil {
			s.notifySubscribers(req.AppName, data)
		}
	}

	writeJSON(w, http.StatusOK, &statsproto.UpdateResponse{
		OK:        true,
		Bucket:    res.Bucket,
		Key:       res.Key,
		Stats:     res.Document,
		ETag:      res.ETag,
		VersionID: res.VersionID,
		DryRun:    res.DryRun,
	})
}

// handleRead serves the current document, or a change stream when the
// request carries a Subscribe header.
func (s *StatsServer) handleRead(w http.ResponseWriter, r *http.Request) {
	if s.config.CORS.Enabled {
		s.addCORSHeaders(w, r)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	appName := mux.Vars(r)["appName"]
	if err := statsproto.ValidateAppName(appName); err != nil {
		writeJSON(w, http.StatusBadRequest, statsproto.NewErrorResponse(err.Error()))
		return
	}

	data, etag, err := s.store.Get(r.Context(), store.Key(appName))
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, statsproto.NewErrorResponse("Stats file not found"))
		return
	}
	if err != nil {
		log.Error().Err(err).Str("appName", appName).Msg("read failed")
		writeJSON(w, http.StatusInternalServerError, statsproto.NewErrorResponse("Internal error"))
		return
	}

	w.Header().Set("Content-Type", "application/json")

	// Check if this is a subscription request
	if r.Header.Get("Subscribe") == "true" || r.Header.Get("subscribe") == "true" {
		// Ensure we can flush the response
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming not supported", http.StatusInternalServerError)
			return
		}

		// Set headers for streaming
		w.Header().Set("subscribe", "true")
		w.Header().Set("cache-control", "no-cache, no-transform")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(209) // 209 is the status code for a successful subscription

		// Add subscription
		subID := s.AddSubscription(appName, w, flusher, data, etag)

		// Send initial state
		fmt.Fprintf(w, "Version: %s\r\n", etag)
		fmt.Fprintf(w, "Parents: \r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n", len(data))
		fmt.Fprintf(w, "\r\n")
		w.Write(data)
		fmt.Fprintf(w, "\r\n\r\n\r\n\r\n\r\n")
		flusher.Flush()

		// Remove subscription when client disconnects
		notify := r.Context().Done()
		go func() {
			<-notify
			s.RemoveSubscription(appName, subID)
		}()

		// Keep the connection open until client disconnects
		<-notify
	} else {
		// Regular GET request
		w.Header().Set("Version", etag)
		w.Write(data)
	}
}

// addCORSHeaders adds CORS headers to the response
func (s *StatsServer) addCORSHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", s.config.CORS.AllowOrigins)
	w.Header().Set("Access-Control-Allow-Methods", s.config.CORS.AllowMethods)
	w.Header().Set("Access-Control-Allow-Headers", s.config.CORS.AllowHeaders)

	if s.config.CORS.AllowCredentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}

	w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", s.config.CORS.MaxAge))
}

// writeJSON encodes a response envelope.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
