package restapi

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/restsend/chatkit/chaterr"
)

// UploadResult is the server's response to a successful attachment upload.
type UploadResult struct {
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// ProgressFunc reports bytes sent so far out of total (total may be -1 if
// unknown) during an upload or download.
type ProgressFunc func(sent, total int64)

// Upload streams reader's content as a multipart file upload, invoking
// onProgress as bytes are written to the wire. Grounded on
// services/media.rs's upload call and
// bken/server/internal/httpapi/server.go's multipart handling (there, the
// server side of the same exchange).
func (s *Service) Upload(ctx context.Context, fileName, contentType string, size int64, private bool, reader io.Reader, onProgress ProgressFunc) (UploadResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()
		defer mw.Close()
		privateVal := "0"
		if private {
			privateVal = "1"
		}
		if err := mw.WriteField("private", privateVal); err != nil {
			pw.CloseWithError(err)
			return
		}
		part, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		cr := &countingReader{r: reader, onProgress: onProgress, total: size}
		if _, err := io.Copy(part, cr); err != nil {
			pw.CloseWithError(err)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url("/attachment/upload"), pr)
	if err != nil {
		return UploadResult{}, fmt.Errorf("restapi: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return UploadResult{}, chaterr.Wrap(chaterr.KindNetworkBroken, "upload failed", err)
	}
	defer resp.Body.Close()

	var out UploadResult
	if err := handleResponse(resp, &out); err != nil {
		return UploadResult{}, err
	}
	return out, nil
}

// Download streams the content at url to w, invoking onProgress as bytes
// arrive.
func (s *Service) Download(ctx context.Context, url string, w io.Writer, onProgress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("restapi: build download request: %w", err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return chaterr.Wrap(chaterr.KindNetworkBroken, "download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return handleResponse(resp, nil)
	}

	cw := &countingWriter{w: w, onProgress: onProgress, total: resp.ContentLength}
	_, err = io.Copy(cw, resp.Body)
	if err != nil {
		return fmt.Errorf("restapi: stream download body: %w", err)
	}
	return nil
}

type countingReader struct {
	r          io.Reader
	onProgress ProgressFunc
	total      int64
	sent       int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.sent += int64(n)
		if c.onProgress != nil {
			c.onProgress(c.sent, c.total)
		}
	}
	return n, err
}

type countingWriter struct {
	w          io.Writer
	onProgress ProgressFunc
	total      int64
	received   int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if n > 0 {
		c.received += int64(n)
		if c.onProgress != nil {
			c.onProgress(c.received, c.total)
		}
	}
	return n, err
}
