// Package attachment manages upload/download transfers: a bounded worker
// slot pool, a cancel-token map keyed by chat id, and progress reporting
// to the Observer throttled to config.AttachmentProgressEvery.
//
// Grounded on
// original_source/crates/restsend/src/client/attachment.rs's
// AttachmentInner (a map of chat id -> oneshot cancel sender) and
// bken/server/internal/blob/store.go's temp-file-then-rename pattern,
// adapted here from the server's receive side to the client's download
// side.
package attachment

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/restsend/chatkit/chaterr"
	"github.com/restsend/chatkit/config"
	"github.com/restsend/chatkit/internal/restapi"
	"github.com/restsend/chatkit/observer"
)

// Manager bounds concurrent transfers at cfg.MaxAttachmentConcurrent and
// tracks one cancel token per in-flight transfer, keyed by chat id.
type Manager struct {
	api *restapi.Service
	obs observer.Observer
	cfg config.Config

	slots chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New builds a Manager bounded by cfg.MaxAttachmentConcurrent.
func New(api *restapi.Service, obs observer.Observer, cfg config.Config) *Manager {
	capacity := cfg.MaxAttachmentConcurrent
	if capacity <= 0 {
		capacity = 1
	}
	return &Manager{
		api:     api,
		obs:     obs,
		cfg:     cfg,
		slots:   make(chan struct{}, capacity),
		cancels: map[string]context.CancelFunc{},
	}
}

func (m *Manager) register(key string, cancel context.CancelFunc) {
	m.mu.Lock()
	m.cancels[key] = cancel
	m.mu.Unlock()
}

func (m *Manager) unregister(key string) {
	m.mu.Lock()
	delete(m.cancels, key)
	m.mu.Unlock()
}

// Cancel aborts the in-flight transfer registered under key, if any.
// Mirrors AttachmentInner::cancel dropping the oneshot sender.
func (m *Manager) Cancel(key string) {
	m.mu.Lock()
	cancel, ok := m.cancels[key]
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

func (m *Manager) acquireSlot(ctx context.Context) error {
	select {
	case m.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) releaseSlot() { <-m.slots }

// throttled wraps onProgress so it fires at most once per
// cfg.AttachmentProgressEvery, always letting the final call through
// regardless of cadence (sent >= total).
func throttled(interval time.Duration, onProgress func(sent, total int64)) restapi.ProgressFunc {
	var last time.Time
	var mu sync.Mutex
	return func(sent, total int64) {
		mu.Lock()
		defer mu.Unlock()
		now := time.Now()
		if sent < total && now.Sub(last) < interval {
			return
		}
		last = now
		onProgress(sent, total)
	}
}

// Upload sends one attachment's bytes through the HTTP Service Layer,
// bounded by the concurrency cap and cancelable via Cancel(chatID).
// Progress is reported through Observer.OnUploadProgress; completion or
// cancellation through OnTransferDone/OnTransferCancel.
func (m *Manager) Upload(ctx context.Context, chatID, fileName, contentType string, size int64, private bool, reader io.Reader) (restapi.UploadResult, error) {
	if err := m.acquireSlot(ctx); err != nil {
		return restapi.UploadResult{}, chaterr.New(chaterr.KindUserCancel, "upload queue: "+err.Error())
	}
	defer m.releaseSlot()

	txCtx, cancel := context.WithCancel(ctx)
	m.register(chatID, cancel)
	defer func() {
		cancel()
		m.unregister(chatID)
	}()

	onProgress := throttled(m.cfg.AttachmentProgressEvery, func(sent, total int64) {
		m.obs.OnUploadProgress(chatID, sent, total)
	})

	result, err := m.api.Upload(txCtx, fileName, contentType, size, private, reader, onProgress)
	if err != nil {
		if txCtx.Err() != nil {
			m.obs.OnTransferCancel(chatID)
			return restapi.UploadResult{}, chaterr.New(chaterr.KindUserCancel, "canceled")
		}
		return restapi.UploadResult{}, err
	}
	m.obs.OnTransferDone(chatID)
	return result, nil
}

// Download fetches url into destPath atomically: it streams into a temp
// file alongside destPath, then renames on success so a reader never
// observes a partially written file. Bounded by the concurrency cap and
// cancelable via Cancel(chatID).
func (m *Manager) Download(ctx context.Context, chatID, url, destPath string) error {
	if err := m.acquireSlot(ctx); err != nil {
		return chaterr.New(chaterr.KindUserCancel, "download queue: "+err.Error())
	}
	defer m.releaseSlot()

	txCtx, cancel := context.WithCancel(ctx)
	m.register(chatID, cancel)
	defer func() {
		cancel()
		m.unregister(chatID)
	}()

	dir := filepath.Dir(destPath)
	tempFile, err := os.CreateTemp(dir, ".attachment-download-*")
	if err != nil {
		return fmt.Errorf("attachment: create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	onProgress := throttled(m.cfg.AttachmentProgressEvery, func(received, total int64) {
		m.obs.OnDownloadProgress(url, received, total)
	})

	err = m.api.Download(txCtx, url, tempFile, onProgress)
	closeErr := tempFile.Close()
	if err != nil {
		if txCtx.Err() != nil {
			m.obs.OnTransferCancel(chatID)
			return chaterr.New(chaterr.KindUserCancel, "canceled")
		}
		return err
	}
	if closeErr != nil {
		return fmt.Errorf("attachment: close temp file: %w", closeErr)
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		return fmt.Errorf("attachment: move into place: %w", err)
	}
	m.obs.OnTransferDone(chatID)
	return nil
}
