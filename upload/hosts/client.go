// Package hosts provides the nine upload.Host implementations of
// spec.md §4.4, one file per backend in the teacher's clients/ convention
// (clients/s3.go, clients/mediaconvert.go, clients/arweave_s3.go — one
// file per storage backend). Every host is an opaque
// upload(local-path) -> URL | error or remote(source-url) -> URL | error
// function per spec.md §6; this package only owns the request shape, not
// interpretation of host-specific error bodies beyond a pinned response
// schema for FilePress (spec.md §9 Open Question).
package hosts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/log"
	"github.com/mirrobot/mirrobot/metrics"
	"github.com/mirrobot/mirrobot/progress"
)

// controlTimeout bounds short control-plane calls; bodyTimeout bounds the
// actual file transfer (spec.md §5: "short for control calls, long — up
// to one hour — for body transfers").
const (
	controlTimeout = 30 * time.Second
	bodyTimeout    = time.Hour
)

// newClient returns a retryablehttp client wired to the module's leveled
// logger, matching every other HTTP client in the teacher's clients/
// package. CheckRetry is metrics.HttpRetryHook so doRequest's
// metrics.MonitorRequest call can report retry counts and failures per
// host.
func newClient(retryMax int) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.Logger = log.NewRetryableHTTPLogger()
	c.CheckRetry = metrics.HttpRetryHook
	return c
}

// multipartUploadFile POSTs localPath as a multipart/form-data field named
// fieldName to endpoint, along with any extra string fields, and returns
// the raw response body. hostName labels the bytes-sent metric, reusing
// progress.ReadCounter from its original streaming-body byte-accounting
// role.
func multipartUploadFile(ctx context.Context, client *retryablehttp.Client, endpoint, fieldName, localPath string, extraFields map[string]string, hostName string) ([]byte, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()
	counter := progress.NewReadCounter(f)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(fieldName, filepath.Base(localPath))
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, counter); err != nil {
		return nil, fmt.Errorf("copying file into form: %w", err)
	}
	metrics.Default.Upload.HostBytesSent.WithLabelValues(hostName).Add(float64(counter.Count()))
	for k, v := range extraFields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("writing field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, bodyTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return doRequest(client, req)
}

// remoteIngest asks a host to fetch sourceURL itself, used by Drive-
// sourced and Seedbox-sourced embed hosts (TurboVid, VidHide, Abyss,
// FilePress).
func remoteIngest(ctx context.Context, client *retryablehttp.Client, endpoint string, form url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, controlTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return doRequest(client, req)
}

func doRequest(client *retryablehttp.Client, req *retryablehttp.Request) ([]byte, error) {
	resp, err := metrics.MonitorRequest(metrics.Default.Client, client, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

// urlResponse is the single documented response shape hosts are expected
// to return: a top-level JSON object with a "url" field. Any other shape
// is an upload failure, never a silent skip (spec.md §9 Open Question).
type urlResponse struct {
	URL string `json:"url"`
}

func parseURLResponse(data []byte) (string, error) {
	var r urlResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if r.URL == "" {
		return "", fmt.Errorf("response missing url field")
	}
	return r.URL, nil
}

// base implements the common upload.Host bookkeeping (name, dependencies,
// 1080p gating) shared by all nine hosts.
type base struct {
	name      string
	cfg       config.HostConfig
	deps      []string
	embedOnly bool
}

func (b base) Name() string                      { return b.name }
func (b base) DependsOn() []string               { return b.deps }
func (b base) RequiresResolution1080pOnly() bool { return b.embedOnly }
