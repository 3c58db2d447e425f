package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/cjeanneret/ScanGo/internal/logic/command"
	"github.com/cjeanneret/ScanGo/internal/scanner"
)

// ---------- Handler helpers ----------

type fakeInjector struct {
	got []string
	err error
}

func (f *fakeInjector) Inject(text string) error {
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, text)
	return nil
}

func newTestHandlers(injector Injector) *Handlers {
	staticFS := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html>test</html>")},
	}
	return NewHandlers(NewStatusBroadcaster(), injector, command.DefaultTable(), staticFS)
}

func scanBody(cmd string) *bytes.Reader {
	data, _ := json.Marshal(ScanRequest{Command: cmd})
	return bytes.NewReader(data)
}

// ---------- HandleScan ----------

func TestHandleScan_Queued(t *testing.T) {
	inj := &fakeInjector{}
	h := newTestHandlers(inj)
	req := httptest.NewRequest(http.MethodPost, "/scan", scanBody("MOVE FORWARD"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.HandleScan(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "queued" {
		t.Errorf("response status = %q, want \"queued\"", resp["status"])
	}
	if len(inj.got) != 1 || inj.got[0] != "MOVE FORWARD" {
		t.Errorf("injected = %v, want [MOVE FORWARD]", inj.got)
	}
}

func TestHandleScan_UnknownTextIsStillQueued(t *testing.T) {
	// Matching happens in the loop, so invalid commands reach it too
	inj := &fakeInjector{}
	h := newTestHandlers(inj)
	w := httptest.NewRecorder()

	h.HandleScan(w, httptest.NewRequest(http.MethodPost, "/scan", scanBody("rgb led purple")))

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
}

func TestHandleScan_BadRequests(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not_json", "not json"},
		{"empty_command", `{"command":""}`},
		{"blank_command", `{"command":"   "}`},
		{"multi_line", `{"command":"RGB LED RED\r\nRGB LED OFF"}`},
		{"oversized", `{"command":"` + strings.Repeat("x", 8<<10) + `"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inj := &fakeInjector{}
			h := newTestHandlers(inj)
			w := httptest.NewRecorder()

			h.HandleScan(w, httptest.NewRequest(http.MethodPost, "/scan", strings.NewReader(tc.body)))

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if len(inj.got) != 0 {
				t.Errorf("nothing should be injected, got %v", inj.got)
			}
		})
	}
}

func TestHandleScan_NoInjector(t *testing.T) {
	h := newTestHandlers(nil)
	w := httptest.NewRecorder()

	h.HandleScan(w, httptest.NewRequest(http.MethodPost, "/scan", scanBody("RGB LED OFF")))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestHandleScan_InjectErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"full", scanner.ErrQueueFull, http.StatusTooManyRequests},
		{"closed", scanner.ErrQueueClosed, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandlers(&fakeInjector{err: tc.err})
			w := httptest.NewRecorder()

			h.HandleScan(w, httptest.NewRequest(http.MethodPost, "/scan", scanBody("RGB LED OFF")))

			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestHandleScan_QueueFullAfterDepth(t *testing.T) {
	q := scanner.NewQueue(1)
	defer q.Close()
	h := newTestHandlers(q)

	w1 := httptest.NewRecorder()
	h.HandleScan(w1, httptest.NewRequest(http.MethodPost, "/scan", scanBody("SPIN CLOCKWISE")))
	if w1.Code != http.StatusAccepted {
		t.Fatalf("first scan: status = %d, want %d", w1.Code, http.StatusAccepted)
	}

	w2 := httptest.NewRecorder()
	h.HandleScan(w2, httptest.NewRequest(http.MethodPost, "/scan", scanBody("SPIN COUNTERCLOCKWISE")))
	if w2.Code != http.StatusTooManyRequests {
		t.Errorf("second scan: status = %d, want %d", w2.Code, http.StatusTooManyRequests)
	}
}

// ---------- HandleCommands ----------

func TestHandleCommands(t *testing.T) {
	h := newTestHandlers(nil)
	w := httptest.NewRecorder()

	h.HandleCommands(w, httptest.NewRequest(http.MethodGet, "/commands", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var cmds []CommandInfo
	if err := json.NewDecoder(w.Body).Decode(&cmds); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cmds) != 9 {
		t.Fatalf("got %d commands, want 9", len(cmds))
	}
	if cmds[0].Text != "RGB LED GREEN" || cmds[8].Text != "SPIN COUNTERCLOCKWISE" {
		t.Errorf("unexpected order: first %q, last %q", cmds[0].Text, cmds[8].Text)
	}
}

// ---------- ServeIndex ----------

func TestServeIndex(t *testing.T) {
	h := newTestHandlers(nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	h.ServeIndex(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/html; charset=utf-8", ct)
	}
	if !strings.Contains(w.Body.String(), "<html>") {
		t.Error("body should contain HTML content")
	}
}

func TestServeIndex_Missing(t *testing.T) {
	h := NewHandlers(NewStatusBroadcaster(), nil, nil, fstest.MapFS{})
	w := httptest.NewRecorder()

	h.ServeIndex(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ---------- HandleStatusStream ----------

func TestHandleStatusStream(t *testing.T) {
	h := newTestHandlers(nil)
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/status/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.HandleStatusStream(w, req)
		close(done)
	}()

	// Wait for the subscription before broadcasting
	deadline := time.Now().Add(time.Second)
	for h.Broadcaster.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.Broadcaster.BroadcastMsg("stream test")
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	if !strings.HasPrefix(body, ": connected\n\n") {
		t.Errorf("stream should start with the connected comment, got %q", body)
	}
	if !strings.Contains(body, "data: ") || !strings.Contains(body, "stream test") {
		t.Errorf("stream should carry the broadcast, got %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
}

// ---------- Router ----------

func TestRouter_Routes(t *testing.T) {
	q := scanner.NewQueue(4)
	defer q.Close()
	srv, err := NewServer("127.0.0.1:0", NewStatusBroadcaster(), q, command.DefaultTable())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET / = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/commands")
	if err != nil {
		t.Fatalf("GET /commands: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /commands = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/scan", "application/json", scanBody("RGB LED BLUE"))
	if err != nil {
		t.Fatalf("POST /scan: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("POST /scan = %d, want 202", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/scan")
	if err != nil {
		t.Fatalf("GET /scan: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /scan = %d, want 405", resp.StatusCode)
	}

	buf := make([]byte, 32)
	n, _ := q.Read(buf)
	if got := string(buf[:n]); got != "RGB LED BLUE\r\n" {
		t.Errorf("queued = %q, want \"RGB LED BLUE\\r\\n\"", got)
	}
}
