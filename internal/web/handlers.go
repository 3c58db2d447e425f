package web

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/cjeanneret/ScanGo/internal/debug"
	"github.com/cjeanneret/ScanGo/internal/logic/command"
	"github.com/cjeanneret/ScanGo/internal/scanner"
)

// maxScanBody caps POST /scan bodies; commands are short.
const maxScanBody = 4 << 10

// Injector feeds a command into the virtual scanner.
type Injector interface {
	Inject(text string) error
}

// ScanRequest is the body of POST /scan.
type ScanRequest struct {
	Command string `json:"command"`
}

// CommandInfo describes one vocabulary entry for GET /commands.
type CommandInfo struct {
	Text string `json:"text"`
	ID   int    `json:"id"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Injector    Injector
	Commands    []CommandInfo
	staticFS    fs.FS
	heartbeat   time.Duration
}

// NewHandlers creates handlers with the given dependencies.
// If injector is nil, POST /scan will return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, injector Injector, table *command.Table, staticFS fs.FS) *Handlers {
	var cmds []CommandInfo
	if table != nil {
		for _, e := range table.Entries() {
			cmds = append(cmds, CommandInfo{Text: e.Text, ID: int(e.ID)})
		}
	}
	return &Handlers{
		Broadcaster: broadcaster,
		Injector:    injector,
		Commands:    cmds,
		staticFS:    staticFS,
		heartbeat:   30 * time.Second,
	}
}

// HandleCommands returns the command vocabulary as JSON.
func (h *Handlers) HandleCommands(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Commands)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleScan handles POST /scan: the command is queued as if it had been
// scanned, and goes through the same framing and matching.
func (h *Handlers) HandleScan(w http.ResponseWriter, r *http.Request) {
	if h.Injector == nil {
		http.Error(w, "virtual scanner not configured", http.StatusServiceUnavailable)
		return
	}

	var req ScanRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxScanBody)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		http.Error(w, "command must not be empty", http.StatusBadRequest)
		return
	}
	if strings.ContainsAny(req.Command, "\r\n") {
		http.Error(w, "command must be a single line", http.StatusBadRequest)
		return
	}

	if err := h.Injector.Inject(req.Command); err != nil {
		switch {
		case errors.Is(err, scanner.ErrQueueFull):
			http.Error(w, "scanner busy", http.StatusTooManyRequests)
		case errors.Is(err, scanner.ErrQueueClosed):
			http.Error(w, "scanner stopped", http.StatusServiceUnavailable)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	debug.Verbose("Web scan: %q", req.Command)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
