// Package api provides HTTP handlers for ToysBot endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/toysnicaragua/toysbot/internal/models"
)

// metaWebhookPayload is the ad-attribution callback body sent by Meta when a
// user taps a click-to-WhatsApp advertisement.
type metaWebhookPayload struct {
	UserID      string `json:"userId"`
	Platform    string `json:"platform"`
	// ProductID is numeric on some ad platforms and a string on others.
	ProductID   json.Number `json:"productId"`
	ProductName string      `json:"productName"`
	Timestamp   int64       `json:"timestamp,omitempty"`
}

func (s *Server) metaWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.metaWebhookHandler: processing attribution callback", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.metaWebhookHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var p metaWebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		slog.Warn("Server.metaWebhookHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if p.UserID == "" {
		slog.Warn("Server.metaWebhookHandler: missing userId")
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: userId"))
		return
	}
	if p.Platform == "" {
		slog.Warn("Server.metaWebhookHandler: missing platform", "user_id", p.UserID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: platform"))
		return
	}

	receivedAt := time.Now()
	if p.Timestamp > 0 {
		receivedAt = time.Unix(p.Timestamp, 0)
	}
	attribution := &models.AdAttribution{
		Platform:    p.Platform,
		ProductID:   p.ProductID.String(),
		ProductName: p.ProductName,
		ReceivedAt:  receivedAt,
	}

	if err := s.store.SaveAdAttribution(p.UserID, attribution); err != nil {
		slog.Error("Server.metaWebhookHandler: failed to save attribution", "error", err, "user_id", p.UserID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to record attribution"))
		return
	}

	slog.Info("Server.metaWebhookHandler: attribution recorded", "user_id", p.UserID, "platform", p.Platform, "product_id", p.ProductID)
	writeJSONResponse(w, http.StatusOK, models.Recorded())
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "healthy"}))
}
