package handlers

import (
	"bufio"
	"context"
	"crypto/rand"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/DDH2004/AIoTHackStorm/pkg/log"
)

const RequestIDHeader = "X-Request-ID"

var errNoHijack = errors.New("response writer does not support hijacking")

type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so the first one listed runs first.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func newRequestID(t time.Time) string {
	id, err := ulid.New(ulid.Timestamp(t), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return "unknown"
	}
	return id.String()
}

// RequestID reuses the caller's X-Request-ID or assigns a new ULID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = newRequestID(time.Now())
		}
		w.Header().Set(RequestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), log.RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.size += n
	return n, err
}

// Hijack lets the WebSocket upgrade pass through the recorder.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errNoHijack
	}
	return h.Hijack()
}

// AccessLog logs one line per request. The polling endpoints log at debug so
// a 10 Hz client does not flood the log.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		fields := log.Fields{
			"request_id":    w.Header().Get(RequestIDHeader),
			"method":        r.Method,
			"path":          r.URL.Path,
			"status":        rec.status,
			"latency_ms":    time.Since(start).Milliseconds(),
			"ip":            clientIP(r),
			"user_agent":    r.UserAgent(),
			"response_size": rec.size,
		}

		switch {
		case rec.status >= 500:
			log.Error(fields, "Server error")
		case rec.status >= 400:
			log.Warn(fields, "Client error")
		case r.Method == http.MethodGet:
			log.Debug(fields, "Success")
		default:
			log.Info(fields, "Success")
		}
	})
}

type rateLimiter struct {
	mu     sync.Mutex
	bucket map[string]*rate.Limiter
	rate   rate.Limit
	burst  int
}

func newRateLimiter(perMinute int) *rateLimiter {
	burst := perMinute / 6
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		bucket: make(map[string]*rate.Limiter),
		rate:   rate.Limit(float64(perMinute) / 60),
		burst:  burst,
	}
}

func (l *rateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.bucket[ip]; !ok {
		l.bucket[ip] = rate.NewLimiter(l.rate, l.burst)
	}
	return l.bucket[ip]
}

// RateLimit caps requests per client IP. perMinute <= 0 disables it.
func RateLimit(perMinute int) Middleware {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := newRateLimiter(perMinute)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !limiter.get(ip).Allow() {
				log.Warn(log.Fields{"ip": ip, "path": r.URL.Path}, "too many requests")
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORS answers preflight requests and sets the allow headers. origins is a
// comma separated list; "*" or empty allows any origin.
func CORS(origins string) Middleware {
	allowed := make(map[string]bool)
	allowAll := strings.TrimSpace(origins) == "" || strings.TrimSpace(origins) == "*"
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
