package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Veetaha/snowpity/util"
	"github.com/Veetaha/snowpity/util/retry"
)

// ErrHTTP is a non-2xx answer from an upstream platform.
type ErrHTTP struct {
	URL    string
	Status int
}

func (e ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP error with status code %d for url %s", e.Status, e.URL)
}

// NewHTTPClient returns the client upstream platform calls go through.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: time.Minute}
}

// GetJSON performs a GET with retry and decodes the JSON body into out.
func GetJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := retry.RetryRequest(client, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ErrHTTP{URL: url, Status: resp.StatusCode}
	}

	// Metadata responses are small; the bound is a guard against a misbehaving
	// upstream streaming forever.
	buf := new(limitedBuffer)
	if err := util.CopyMax(buf, resp.Body, 10*util.MB); err != nil {
		return fmt.Errorf("reading response from %s: %w", url, err)
	}

	return json.Unmarshal(buf.bs, out)
}

type limitedBuffer struct {
	bs []byte
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.bs = append(b.bs, p...)
	return len(p), nil
}

var _ io.Writer = (*limitedBuffer)(nil)
