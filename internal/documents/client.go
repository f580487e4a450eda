// Package documents adapts the external document group service, which knows
// whether the mandatory operations paperwork for an import group is on file.
package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
)

// HTTPClient calls GET {base}/import-groups/{id}/required-documents, which
// answers {"present": bool}. Unknown groups count as documents missing.
type HTTPClient struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
}

type requiredDocuments struct {
	Present bool `json:"present"`
}

func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid documents service url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPClient{
		base:    base,
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout: timeout,
	}, nil
}

func (c *HTTPClient) RequiredDocumentsPresent(ctx context.Context, groupID id.ImportGroupID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.base.JoinPath("import-groups", groupID.String(), "required-documents")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, dErrors.Wrap(err, dErrors.CodeTimeout, "document service timed out")
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "document service unavailable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 500:
		return false, dErrors.Newf(dErrors.CodeInternal, "document service returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return false, dErrors.Newf(dErrors.CodeInternal, "unexpected document service status %d", resp.StatusCode)
	}

	var body requiredDocuments
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "document service returned malformed body")
	}
	return body.Present, nil
}
