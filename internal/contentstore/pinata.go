package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"credledger/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultPinataAPI     = "https://api.pinata.cloud"
	DefaultPinataGateway = "https://gateway.pinata.cloud/ipfs"
)

// PinataConfig configures the Pinata IPFS pinning client.
type PinataConfig struct {
	APIURL     string
	GatewayURL string
	APIKey     string
	APISecret  string
	Timeout    time.Duration
}

// Pinata pins JSON documents to IPFS and reads them back through a gateway.
type Pinata struct {
	api     string
	gateway string
	key     string
	secret  string
	client  *http.Client
}

// ErrPinataAuth is returned when Pinata rejects the API credentials.
var ErrPinataAuth = errors.New("failed to authenticate with Pinata, check the API keys")

func NewPinata(cfg PinataConfig) (*Pinata, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("pinata api key and secret are required")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultPinataAPI
	}
	if cfg.GatewayURL == "" {
		cfg.GatewayURL = DefaultPinataGateway
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Pinata{
		api:     strings.TrimRight(cfg.APIURL, "/"),
		gateway: strings.TrimRight(cfg.GatewayURL, "/"),
		key:     cfg.APIKey,
		secret:  cfg.APISecret,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// Put pins doc and returns its IPFS hash.
func (p *Pinata) Put(ctx context.Context, doc json.RawMessage) (string, error) {
	span, ctx := observability.NewSpan(ctx, "contentstore.pin")
	defer span.End()

	if !json.Valid(doc) {
		return "", errors.New("invalid document: not JSON")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.api+"/pinning/pinJSONToIPFS", bytes.NewReader(doc))
	if err != nil {
		return "", err
	}
	p.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		span.SetError(err)
		return "", fmt.Errorf("pin document: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		span.SetError(err)
		return "", fmt.Errorf("pin document: %w", err)
	}

	var out pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode pin response: %w", err)
	}
	if out.IpfsHash == "" {
		return "", errors.New("pin response carried no hash")
	}
	span.SetAttributes(attribute.String("ipfs.hash", out.IpfsHash))
	return out.IpfsHash, nil
}

// Get fetches the document for ref from the gateway.
func (p *Pinata) Get(ctx context.Context, ref string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.gateway+"/"+url.PathEscape(ref), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("content %s is not JSON", ref)
	}
	return body, nil
}

// Unpin releases the pin for ref.
func (p *Pinata) Unpin(ctx context.Context, ref string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, p.api+"/pinning/unpin/"+url.PathEscape(ref), nil)
	if err != nil {
		return err
	}
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("unpin %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("unpin %s: %w", ref, err)
	}
	return nil
}

func (p *Pinata) authorize(req *http.Request) {
	req.Header.Set("pinata_api_key", p.key)
	req.Header.Set("pinata_secret_api_key", p.secret)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrPinataAuth
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("pinata returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

var _ Unpinner = (*Pinata)(nil)
