// Package metadata resolves token content URIs to display metadata.
// Content URIs point at JSON documents in the common NFT metadata shape;
// the resolver extracts the fields the marketplace renders and caches
// the result, since content URIs are immutable once minted.
package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/photonft/market_layer/pkg/logger"
)

// maxDocumentBytes caps how much of a metadata document is read.
const maxDocumentBytes = 1 << 20

// Metadata is the subset of a token document the marketplace displays.
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// Resolver turns a content URI into display metadata.
type Resolver interface {
	Resolve(ctx context.Context, contentURI string) (Metadata, error)
}

// HTTPResolver fetches metadata documents over HTTP(S) and memoizes
// successful lookups per URI.
type HTTPResolver struct {
	client *http.Client
	log    *logger.Logger

	mu    sync.RWMutex
	cache map[string]Metadata
}

// NewHTTPResolver builds a resolver. A nil client gets a 10 second
// timeout default.
func NewHTTPResolver(client *http.Client, log *logger.Logger) *HTTPResolver {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("metadata")
	}
	return &HTTPResolver{
		client: client,
		log:    log,
		cache:  make(map[string]Metadata),
	}
}

// Resolve implements Resolver.
func (r *HTTPResolver) Resolve(ctx context.Context, contentURI string) (Metadata, error) {
	if contentURI == "" {
		return Metadata{}, fmt.Errorf("empty content URI")
	}

	r.mu.RLock()
	md, ok := r.cache[contentURI]
	r.mu.RUnlock()
	if ok {
		return md, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, contentURI, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("build metadata request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("fetch metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Metadata{}, fmt.Errorf("fetch metadata: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return Metadata{}, fmt.Errorf("metadata at %s is not valid JSON", contentURI)
	}

	doc := gjson.ParseBytes(body)
	md = Metadata{
		Name:        doc.Get("name").String(),
		Description: doc.Get("description").String(),
		Image:       doc.Get("image").String(),
	}

	r.mu.Lock()
	r.cache[contentURI] = md
	r.mu.Unlock()

	r.log.WithField("content_uri", contentURI).Debug("metadata resolved")
	return md, nil
}
