package sdapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	txt2imgPath  = "/sdapi/v1/txt2img"
	samplersPath = "/sdapi/v1/samplers"
	modelsPath   = "/sdapi/v1/sd-models"
)

// Client talks to one or more Stable Diffusion web UI API servers.
// It is safe for concurrent use; methods take the target base URL so a
// single client can serve every endpoint in the registry.
type Client struct {
	http         *retryablehttp.Client
	callTimeout  time.Duration
	probeTimeout time.Duration
}

// SamplerInfo describes one available sampler.
type SamplerInfo struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

// ModelInfo describes one installed checkpoint.
type ModelInfo struct {
	Title     string `json:"title"`
	ModelName string `json:"model_name"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

// NewClient creates a client. retryMax bounds transport-level retries
// against the same server (0 keeps dispatch single-shot); callTimeout
// bounds a generation call and probeTimeout a liveness probe.
func NewClient(retryMax int, callTimeout, probeTimeout time.Duration) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil

	return &Client{
		http:         rc,
		callTimeout:  callTimeout,
		probeTimeout: probeTimeout,
	}
}

// TextToImage runs a generation job against the given server and returns
// the decoded images. A non-2xx status, an empty image list, or a payload
// that is not valid base64 is an error.
func (c *Client) TextToImage(ctx context.Context, base *url.URL, params Params) ([][]byte, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding txt2img payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var resp txt2imgResponse
	if err := c.postJSON(ctx, base, txt2imgPath, body, &resp); err != nil {
		return nil, err
	}

	if len(resp.Images) == 0 {
		return nil, fmt.Errorf("backend %s returned no images", base)
	}

	images := make([][]byte, 0, len(resp.Images))
	for _, encoded := range resp.Images {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decoding image from %s: %w", base, err)
		}
		images = append(images, raw)
	}

	return images, nil
}

// Ping performs a cheap metadata call against the server. Any failure
// (timeout, connection error, non-success status) is returned as an
// error; the caller treats it as liveness data.
func (c *Client) Ping(ctx context.Context, base *url.URL) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	res, err := c.get(ctx, base, samplersPath)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("probe of %s: unexpected status %d", base, res.StatusCode)
	}

	return nil
}

// Samplers lists the samplers available on the server.
func (c *Client) Samplers(ctx context.Context, base *url.URL) ([]SamplerInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	var samplers []SamplerInfo
	if err := c.getJSON(ctx, base, samplersPath, &samplers); err != nil {
		return nil, err
	}

	return samplers, nil
}

// Models lists the checkpoints installed on the server.
func (c *Client) Models(ctx context.Context, base *url.URL) ([]ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	var models []ModelInfo
	if err := c.getJSON(ctx, base, modelsPath, &models); err != nil {
		return nil, err
	}

	return models, nil
}

func (c *Client) get(ctx context.Context, base *url.URL, path string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpointURL(base, path), nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", path, err)
	}

	return c.http.Do(req)
}

func (c *Client) getJSON(ctx context.Context, base *url.URL, path string, out any) error {
	res, err := c.get(ctx, base, path)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s on %s: unexpected status %d", path, base, res.StatusCode)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response from %s: %w", path, base, err)
	}

	return nil
}

func (c *Client) postJSON(ctx context.Context, base *url.URL, path string, body []byte, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpointURL(base, path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("POST %s on %s: unexpected status %d", path, base, res.StatusCode)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response from %s: %w", path, base, err)
	}

	return nil
}

func endpointURL(base *url.URL, path string) string {
	ref := *base
	ref.Path = strings.TrimSuffix(base.Path, "/") + path
	return ref.String()
}
