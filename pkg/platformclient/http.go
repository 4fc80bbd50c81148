package platformclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/ktharrington/Scheduler-Application/pkg/account"
	"github.com/ktharrington/Scheduler-Application/pkg/governor"
	"github.com/ktharrington/Scheduler-Application/pkg/schederr"
)

// HTTPClient is the real Client implementation: an HTTP wrapper around the
// external graph API, shaped by a token-bucket limiter so the scheduler's
// worker pool can never burst past the platform's own rate rules (§4.2, §5).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
}

// NewHTTPClient creates an HTTPClient. qps bounds outbound calls to the
// platform across the whole process, not per account — the per-account
// ordering guarantee comes from internal/mutexreg, not from this limiter.
func NewHTTPClient(baseURL string, qps int, timeout time.Duration) *HTTPClient {
	if qps <= 0 {
		qps = 1
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(qps), qps),
		timeout:    timeout,
	}
}

func (c *HTTPClient) do(ctx context.Context, acct account.Account, method, path string, query url.Values, body any) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, schederr.Transient("waiting for outbound rate limiter", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, schederr.Terminal("bad_request", "encoding request body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, schederr.Transient("building platform request", err)
	}
	req.Header.Set("Authorization", "Bearer "+acct.AccessToken.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, schederr.Transient(fmt.Sprintf("calling platform %s %s", method, path), err)
	}
	return resp, nil
}

func readBody(resp *http.Response) string {
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return string(b)
}

// CreateContainer stages a single media item (§4.2).
func (c *HTTPClient) CreateContainer(ctx context.Context, acct account.Account, req CreateContainerRequest) (string, error) {
	payload := map[string]any{
		"media_url": req.MediaURL,
		"caption":   req.Caption,
		"is_video":  req.IsVideo,
		"is_reel":   req.IsReel,
	}
	resp, err := c.do(ctx, acct, http.MethodPost, fmt.Sprintf("/%s/media", acct.PlatformUserID), nil, payload)
	if err != nil {
		return "", err
	}
	body := readBody(resp)
	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return "", err
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return "", schederr.Transient("decoding container response", err)
	}
	return out.ID, nil
}

// CreateCarouselChild stages one child item of a carousel (§4.2, §4.7).
func (c *HTTPClient) CreateCarouselChild(ctx context.Context, acct account.Account, itemURL string) (string, error) {
	return c.CreateContainer(ctx, acct, CreateContainerRequest{MediaURL: itemURL})
}

// CreateCarouselParent stages the parent carousel container referencing
// already-staged children (§4.2, §4.7).
func (c *HTTPClient) CreateCarouselParent(ctx context.Context, acct account.Account, childIDs []string, caption string) (string, error) {
	payload := map[string]any{
		"media_type":  "CAROUSEL",
		"children":    childIDs,
		"caption":     caption,
	}
	resp, err := c.do(ctx, acct, http.MethodPost, fmt.Sprintf("/%s/media", acct.PlatformUserID), nil, payload)
	if err != nil {
		return "", err
	}
	body := readBody(resp)
	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return "", err
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return "", schederr.Transient("decoding carousel parent response", err)
	}
	return out.ID, nil
}

// ContainerStatus polls the staging status of a container (§4.2, §4.7).
func (c *HTTPClient) ContainerStatus(ctx context.Context, acct account.Account, containerID string) (ContainerState, error) {
	resp, err := c.do(ctx, acct, http.MethodGet, "/"+containerID, url.Values{"fields": {"status_code"}}, nil)
	if err != nil {
		return "", err
	}
	body := readBody(resp)
	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return "", err
	}

	var out struct {
		StatusCode string `json:"status_code"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return "", schederr.Transient("decoding container status response", err)
	}
	state := ContainerState(out.StatusCode)
	if err := classifyContainerState(state); err != nil {
		return state, err
	}
	return state, nil
}

// Publish finalizes a staged container (§4.2, §4.7).
func (c *HTTPClient) Publish(ctx context.Context, acct account.Account, containerID string) (string, error) {
	payload := map[string]any{"creation_id": containerID}
	resp, err := c.do(ctx, acct, http.MethodPost, fmt.Sprintf("/%s/media_publish", acct.PlatformUserID), nil, payload)
	if err != nil {
		return "", err
	}
	body := readBody(resp)
	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return "", err
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return "", schederr.Transient("decoding publish response", err)
	}
	return out.ID, nil
}

// PublishingLimit queries the platform's rolling 24h publish quota (§4.2, §4.3).
func (c *HTTPClient) PublishingLimit(ctx context.Context, acct account.Account) (governor.Quota, error) {
	resp, err := c.do(ctx, acct, http.MethodGet, fmt.Sprintf("/%s/content_publishing_limit", acct.PlatformUserID), nil, nil)
	if err != nil {
		return governor.Quota{}, err
	}
	body := readBody(resp)
	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return governor.Quota{}, err
	}

	var out struct {
		Data []struct {
			QuotaUsage int `json:"quota_usage"`
			Config     struct {
				QuotaTotal  int `json:"quota_total"`
				QuotaPeriod int `json:"quota_duration"` // seconds
			} `json:"config"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return governor.Quota{}, schederr.Transient("decoding publishing limit response", err)
	}
	if len(out.Data) == 0 {
		return governor.Quota{}, schederr.Transient("empty publishing limit response", nil)
	}
	d := out.Data[0]
	return governor.Quota{
		Used:           d.QuotaUsage,
		Limit:          d.Config.QuotaTotal,
		WindowResetsAt: time.Now().Add(time.Duration(d.Config.QuotaPeriod) * time.Second),
	}, nil
}
