// Package api serves the clipboard exchange contract: a small JSON-over-HTTP
// surface guarded by a shared token in the X-Auth-Token header.
package api

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.klb.dev/clipbridge/internal/logging"
)

const (
	// TokenHeader carries the shared secret.
	TokenHeader = "X-Auth-Token"
	// FormField is the POST form field holding the text.
	FormField = "clipboard"
	// MaxBodySize caps request bodies.
	MaxBodySize = 16 << 20
)

// Clipboard is the device the endpoint reads and writes.
type Clipboard interface {
	ReadText() (string, error)
	WriteText(text string) error
}

// Recorder receives every non-blank value written through the endpoint.
type Recorder interface {
	Add(text string) bool
}

// Config wires the handler.
type Config struct {
	// Token is compared in constant time with X-Auth-Token. An empty token
	// accepts requests that omit the header.
	Token     string
	Clipboard Clipboard
	History   Recorder
	// Restarting, when set, makes responses close their connection so
	// clients reconnect to the new process.
	Restarting func() bool
}

type server struct {
	cfg Config
}

// NewHandler returns the routed, middleware-wrapped handler.
func NewHandler(cfg Config) http.Handler {
	s := &server{cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", s.auth(s.handlePing))
	mux.HandleFunc("GET /clipboard", s.auth(s.handleGetClipboard))
	mux.HandleFunc("POST /clipboard", s.auth(s.handlePostClipboard))
	mux.HandleFunc("/ping", methodNotAllowed("GET"))
	mux.HandleFunc("/clipboard", methodNotAllowed("GET, POST"))
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, errNotFound)
	})

	return cors(s.connectionClose(limitBody(mux)))
}

// NewServer returns an http.Server for addr serving h.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func (s *server) auth(next http.HandlerFunc) http.HandlerFunc {
	want := []byte(s.cfg.Token)
	return func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get(TokenHeader))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			slog.Warn("rejected request", "remote", r.RemoteAddr, "method", r.Method, "path", r.URL.Path)
			writeError(w, errUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleGetClipboard(w http.ResponseWriter, r *http.Request) {
	text, err := s.cfg.Clipboard.ReadText()
	if err != nil {
		slog.Error("clipboard read failed", "remote", r.RemoteAddr, "err", err)
		writeError(w, &Error{Status: http.StatusInternalServerError, Detail: err.Error()})
		return
	}
	logText("clipboard sent", r, text)
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent", "clipboard": text})
}

func (s *server) handlePostClipboard(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, errTooLarge)
			return
		}
		writeError(w, &Error{Status: http.StatusBadRequest, Detail: fmt.Sprintf("invalid form: %v", err)})
		return
	}
	// Invalid UTF-8 would not survive the JSON reply or the history file.
	text := strings.ToValidUTF8(r.PostFormValue(FormField), "\uFFFD")

	if err := s.cfg.Clipboard.WriteText(text); err != nil {
		slog.Error("clipboard write failed", "remote", r.RemoteAddr, "err", err)
		writeError(w, &Error{Status: http.StatusInternalServerError, Detail: err.Error()})
		return
	}
	if s.cfg.History != nil && strings.TrimSpace(text) != "" {
		s.cfg.History.Add(text)
	}
	logText("clipboard received", r, text)
	writeJSON(w, http.StatusOK, map[string]string{"status": "received", "clipboard": text})
}

func parseForm(r *http.Request) error {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		return r.ParseMultipartForm(MaxBodySize)
	}
	return r.ParseForm()
}

func methodNotAllowed(allow string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", allow)
		writeError(w, errMethodNotAllowed)
	}
}

// logText logs size and fingerprint at INFO and a short preview at DEBUG.
func logText(msg string, r *http.Request, text string) {
	slog.Info(msg, "remote", r.RemoteAddr, "bytes", len(text), "fingerprint", logging.Fingerprint(text))
	slog.Debug(msg, "remote", r.RemoteAddr, "preview", logging.Preview(text))
}

// cors allows any origin. Only a real preflight (OPTIONS carrying Origin
// and Access-Control-Request-Method) is answered here; a bare OPTIONS is
// routed like any other method and gets a 405.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		if isPreflight(r) {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, "+TokenHeader)
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions &&
		r.Header.Get("Origin") != "" &&
		r.Header.Get("Access-Control-Request-Method") != ""
}

func (s *server) connectionClose(next http.Handler) http.Handler {
	if s.cfg.Restarting == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Restarting() {
			w.Header().Set("Connection", "close")
		}
		next.ServeHTTP(w, r)
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
		next.ServeHTTP(w, r)
	})
}
