package handlers

import (
	"net/http"
)

type RouteOptions struct {
	CORSOrigins string
	// RateLimitPerMin caps dashboard routes per client IP. The device
	// routes are never limited.
	RateLimitPerMin int
}

// Routes builds the mux shared by the dashboard and device listeners.
func Routes(h *Handler, hub *Hub, opts RouteOptions) http.Handler {
	mux := http.NewServeMux()
	limit := RateLimit(opts.RateLimitPerMin)

	mux.HandleFunc("/listener/emotion", h.ListenerEmotion)
	mux.HandleFunc("/detect_simple", h.DetectSimple)

	mux.Handle("/health", limit(http.HandlerFunc(h.Health)))
	mux.Handle("/detect_webcam", limit(http.HandlerFunc(h.DetectWebcam)))
	mux.Handle("/api/metrics", limit(http.HandlerFunc(h.Metrics)))
	mux.Handle("/api/history", limit(http.HandlerFunc(h.History)))
	if hub != nil {
		mux.Handle("/ws", limit(hub))
	}

	return Chain(mux,
		RequestID,
		AccessLog,
		CORS(opts.CORSOrigins),
	)
}
