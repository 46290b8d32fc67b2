// Package pinning uploads generated images to IPFS through the Pinata API.
package pinning

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"resty.dev/v3"
)

const (
	// DefaultAPIURL is the Pinata file pinning endpoint.
	DefaultAPIURL = "https://api.pinata.cloud/pinning/pinFileToIPFS"
	// DefaultGatewayURL is the public gateway used to build returned URLs.
	DefaultGatewayURL = "https://gateway.pinata.cloud"
	// DefaultTimeout bounds each of the download and upload steps.
	DefaultTimeout = time.Minute

	uploadFieldName = "file"
	uploadFileName  = "image.png"
)

// ErrEmptyIpfsHash is returned when Pinata accepts the upload but returns no hash.
var ErrEmptyIpfsHash = errors.New("pinning service returned an empty IpfsHash")

// Pinner pins an image and returns a gateway URL for it.
type Pinner interface {
	PinImage(ctx context.Context, imageURL string) (string, error)
}

// Opts holds configuration options for the Pinata client.
type Opts struct {
	JWT        string
	APIURL     string
	GatewayURL string
	Timeout    time.Duration
}

// Option defines a configuration option for the Pinata client.
type Option func(*Opts)

// WithJWT sets the Pinata bearer token.
func WithJWT(jwt string) Option {
	return func(o *Opts) { o.JWT = jwt }
}

// WithAPIURL overrides the pinning endpoint.
func WithAPIURL(url string) Option {
	return func(o *Opts) { o.APIURL = url }
}

// WithGatewayURL overrides the gateway host used in returned URLs.
func WithGatewayURL(url string) Option {
	return func(o *Opts) { o.GatewayURL = url }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// pinResponse is the JSON body returned by pinFileToIPFS.
type pinResponse struct {
	IpfsHash    string `json:"IpfsHash"`
	PinSize     int64  `json:"PinSize"`
	Timestamp   string `json:"Timestamp"`
	IsDuplicate bool   `json:"isDuplicate"`
}

// PinataClient downloads images and re-uploads them to Pinata.
type PinataClient struct {
	http       *resty.Client
	jwt        string
	apiURL     string
	gatewayURL string
}

// NewClient creates a Pinata client. The JWT falls back to PINATA_JWT.
func NewClient(opts ...Option) (*PinataClient, error) {
	cfg := Opts{APIURL: DefaultAPIURL, GatewayURL: DefaultGatewayURL, Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.JWT == "" {
		cfg.JWT = os.Getenv("PINATA_JWT")
	}
	slog.Debug("Pinata client config loaded", "JWT_set", cfg.JWT != "", "api_url", cfg.APIURL, "gateway", cfg.GatewayURL)
	if cfg.JWT == "" {
		return nil, fmt.Errorf("PINATA_JWT not set")
	}

	return &PinataClient{
		http:       resty.New().SetTimeout(cfg.Timeout),
		jwt:        cfg.JWT,
		apiURL:     cfg.APIURL,
		gatewayURL: strings.TrimRight(cfg.GatewayURL, "/"),
	}, nil
}

// PinImage downloads imageURL, uploads the raw bytes as image.png and returns
// the gateway URL of the pinned content.
func (c *PinataClient) PinImage(ctx context.Context, imageURL string) (string, error) {
	slog.Info("PinataClient PinImage starting download", "image_url", imageURL)

	data, err := c.download(ctx, imageURL)
	if err != nil {
		slog.Error("PinataClient PinImage download failed", "error", err, "image_url", imageURL)
		return "", err
	}

	slog.Debug("PinataClient PinImage uploading", "bytes", len(data))
	var out pinResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.jwt).
		SetFileReader(uploadFieldName, uploadFileName, bytes.NewReader(data)).
		SetResult(&out).
		Post(c.apiURL)
	if err != nil {
		slog.Error("PinataClient PinImage upload failed", "error", err)
		return "", fmt.Errorf("failed to upload to pinning service: %w", err)
	}
	if res.IsError() {
		slog.Error("PinataClient PinImage upload bad status", "status", res.StatusCode())
		return "", fmt.Errorf("pinning service returned status %d: %s", res.StatusCode(), res.String())
	}
	if out.IpfsHash == "" {
		return "", ErrEmptyIpfsHash
	}

	gateway := fmt.Sprintf("%s/ipfs/%s", c.gatewayURL, out.IpfsHash)
	slog.Info("PinataClient PinImage succeeded", "ipfs_hash", out.IpfsHash, "duplicate", out.IsDuplicate)
	return gateway, nil
}

func (c *PinataClient) download(ctx context.Context, imageURL string) ([]byte, error) {
	res, err := c.http.R().SetContext(ctx).Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("image download returned status %d", res.StatusCode())
	}
	return res.Bytes(), nil
}

// Close releases the underlying HTTP client.
func (c *PinataClient) Close() error {
	return c.http.Close()
}
