package uploader

import (
	"bytes"
	"context"
	"net/http"
	"os"

	"github.com/Veetaha/snowpity/service/mediaproc"
	"github.com/Veetaha/snowpity/service/rpc"
	"github.com/Veetaha/snowpity/util"
	"github.com/Veetaha/snowpity/util/retry"
	"github.com/pkg/errors"
)

// downloadToMemory fetches the URL into RAM. The declared content-length is
// checked before the body is read, and the bound is enforced again while
// streaming since upstreams are known to lie about sizes.
func (u *Uploader) downloadToMemory(ctx context.Context, url string, max int64) ([]byte, error) {
	resp, err := u.startDownload(ctx, url, max)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	if err := util.CopyMax(buf, resp.Body, max); err != nil {
		if errors.Is(err, util.ErrDataTooLarge) {
			return nil, ErrBlobTooBig{Max: max}
		}
		return nil, errors.Wrapf(err, "downloading %s", url)
	}
	return buf.Bytes(), nil
}

// downloadToTemp fetches the URL into a scoped temp file.
func (u *Uploader) downloadToTemp(ctx context.Context, url string, max int64) (*mediaproc.TempFile, error) {
	resp, err := u.startDownload(ctx, url, max)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	f, err := os.CreateTemp("", "download-*")
	if err != nil {
		return nil, errors.Wrap(err, "creating download temp file")
	}
	tmp := &mediaproc.TempFile{Path: f.Name()}

	err = util.CopyMax(f, resp.Body, max)
	f.Close()
	if err != nil {
		tmp.Close()
		if errors.Is(err, util.ErrDataTooLarge) {
			return nil, ErrBlobTooBig{Max: max}
		}
		return nil, errors.Wrapf(err, "downloading %s", url)
	}
	return tmp, nil
}

func (u *Uploader) startDownload(ctx context.Context, url string, max int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := retry.RetryRequest(u.httpClient, req)
	if err != nil {
		return nil, errors.Wrapf(err, "requesting %s", url)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, rpc.ErrHTTP{URL: url, Status: resp.StatusCode}
	}

	if resp.ContentLength > max {
		resp.Body.Close()
		return nil, ErrBlobTooBig{Actual: resp.ContentLength, Max: max}
	}

	return resp, nil
}
