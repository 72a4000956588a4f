package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	sierrors "github.com/jsettlers-installer/installer/client/errors"
	"github.com/jsettlers-installer/installer/version"
)

const (
	userAgent = "jsettlers-installer/%s"
)

// HTTPClient is the part of *http.Client used for downloads.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Download streams the body of url into w. Failures are not retried.
func Download(ctx context.Context, client HTTPClient, url string, w io.Writer) (int64, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", fmt.Sprintf(userAgent, version.InstallerVersion()))

	resp, err := client.Do(req)
	if err != nil {
		return 0, &sierrors.NetworkError{Op: "GET " + url, Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warnf("error closing response body: %v", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, &sierrors.NetworkError{Op: "GET " + url, Err: fmt.Errorf("unexpected HTTP status: %d", resp.StatusCode)}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &sierrors.NetworkError{Op: "GET " + url, Err: fmt.Errorf("failed to write response body: %w", err)}
	}

	return n, nil
}
