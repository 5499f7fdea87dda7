package attachment

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/restsend/chatkit/config"
	"github.com/restsend/chatkit/internal/restapi"
	"github.com/restsend/chatkit/observer"
)

type recordingObserver struct {
	observer.NoOp
	mu       sync.Mutex
	done     []string
	canceled []string
}

func (o *recordingObserver) OnTransferDone(chatID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done = append(o.done, chatID)
}

func (o *recordingObserver) OnTransferCancel(chatID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.canceled = append(o.canceled, chatID)
}

func newTestManager(t *testing.T, handler http.HandlerFunc, obs observer.Observer) *Manager {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	api := restapi.New(server.URL, "tok", "/api", 5*time.Second)
	cfg := config.DefaultConfig()
	cfg.MaxAttachmentConcurrent = 2
	cfg.AttachmentProgressEvery = time.Millisecond
	return New(api, obs, cfg)
}

func TestUploadSendsPrivateFieldAndReportsDone(t *testing.T) {
	var sawPrivate string
	handler := func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		sawPrivate = r.FormValue("private")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://cdn.example.com/f1","size":5,"contentType":"text/plain"}`))
	}

	obs := &recordingObserver{}
	mgr := newTestManager(t, handler, obs)

	result, err := mgr.Upload(context.Background(), "c1", "hello.txt", "text/plain", 5, true, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.URL != "https://cdn.example.com/f1" {
		t.Fatalf("unexpected upload result: %+v", result)
	}
	if sawPrivate != "1" {
		t.Fatalf("expected private=1 field, got %q", sawPrivate)
	}
	if len(obs.done) != 1 || obs.done[0] != "c1" {
		t.Fatalf("expected OnTransferDone(c1), got %v", obs.done)
	}
}

func TestDownloadAtomicRename(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload-bytes"))
	}
	obs := &recordingObserver{}
	mgr := newTestManager(t, handler, obs)

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")

	server := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)

	if err := mgr.Download(context.Background(), "c2", server.URL, dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("expected destination file written: %v", err)
	}
	if string(data) != "payload-bytes" {
		t.Fatalf("unexpected content: %q", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".attachment-download-") {
			t.Fatalf("expected temp file cleaned up, found %s", e.Name())
		}
	}
	if len(obs.done) != 1 || obs.done[0] != "c2" {
		t.Fatalf("expected OnTransferDone(c2), got %v", obs.done)
	}
}

// blockingReader never produces bytes until its unblock channel closes,
// simulating a slow attachment source so the test can cancel mid-transfer.
type blockingReader struct {
	started chan struct{}
	unblock chan struct{}
	once    sync.Once
}

func (r *blockingReader) Read(p []byte) (int, error) {
	r.once.Do(func() { close(r.started) })
	<-r.unblock
	return 0, io.EOF
}

func TestCancelUploadAbortsInFlightTransfer(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
	}
	obs := &recordingObserver{}
	mgr := newTestManager(t, handler, obs)

	reader := &blockingReader{started: make(chan struct{}), unblock: make(chan struct{})}

	done := make(chan error, 1)
	go func() {
		_, err := mgr.Upload(context.Background(), "c3", "slow.bin", "application/octet-stream", -1, false, reader)
		done <- err
	}()

	select {
	case <-reader.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("upload never started reading the source")
	}
	mgr.Cancel("c3")

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected an error after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("upload did not return after cancel")
	}
	if len(obs.canceled) != 1 || obs.canceled[0] != "c3" {
		t.Fatalf("expected OnTransferCancel(c3), got %v", obs.canceled)
	}
}
