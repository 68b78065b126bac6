package proxy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"jcr/internal/cache"
	"jcr/internal/config"
	"jcr/internal/plugins"
)

const (
	versionHeader = "X-JCR-Version"
	cacheHeader   = "X-JCR-Cache"
)

type Proxy struct {
	mu           sync.RWMutex
	config       *config.Config
	reverseProxy *httputil.ReverseProxy
	cache        *cache.Cache
	plugins      *plugins.Manager
	version      string
}

func New(cfg *config.Config, version string) (*Proxy, error) {
	target, err := url.Parse(cfg.BackendURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}

	cacheClient, err := newCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache client: %w", err)
	}

	pluginManager, err := plugins.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create plugin manager: %w", err)
	}

	if err := pluginManager.LoadPlugins(cfg); err != nil {
		return nil, fmt.Errorf("failed to load plugins: %w", err)
	}

	p := &Proxy{
		config:  cfg,
		cache:   cacheClient,
		plugins: pluginManager,
		version: version,
	}
	p.reverseProxy = p.newReverseProxy(target)

	return p, nil
}

func newCache(cfg *config.Config) (*cache.Cache, error) {
	if !cfg.CachingEnabled() {
		return nil, nil
	}
	return cache.New(cfg.Redis, time.Duration(cfg.CacheTTL)*time.Second)
}

func (p *Proxy) newReverseProxy(target *url.URL) *httputil.ReverseProxy {
	rp := httputil.NewSingleHostReverseProxy(target)
	rp.ModifyResponse = p.modifyResponse
	rp.ErrorHandler = p.errorHandler
	return rp
}

func (p *Proxy) UpdateConfig(cfg *config.Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	target, err := url.Parse(cfg.BackendURL)
	if err != nil {
		return fmt.Errorf("invalid backend URL: %w", err)
	}

	// Update cache client if Redis configuration changed
	newCacheClient := p.cache
	if p.config.Redis != cfg.Redis || p.config.CacheTTL != cfg.CacheTTL || p.config.CachingEnabled() != cfg.CachingEnabled() {
		newCacheClient, err = newCache(cfg)
		if err != nil {
			return fmt.Errorf("failed to create new cache client: %w", err)
		}
	}

	if err := p.plugins.LoadPlugins(cfg); err != nil {
		return fmt.Errorf("failed to reload plugins: %w", err)
	}

	if newCacheClient != p.cache && p.cache != nil {
		if err := p.cache.Close(); err != nil {
			slog.Error("Failed to close previous cache client", "error", err)
		}
	}

	p.config = cfg
	p.cache = newCacheClient
	p.reverseProxy = p.newReverseProxy(target)

	return nil
}

// Close releases the cache connection.
func (p *Proxy) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cache == nil {
		return nil
	}
	return p.cache.Close()
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if r.Method == http.MethodGet && p.cache != nil && !p.hasDenylistedCookies(r) {
		if cached := p.cache.Get(r, p.config); cached != nil {
			slog.Info("Serving cached response", "url", r.URL.Path)
			p.serveCachedResponse(w, cached)
			return
		}
	}

	mimeType := extractMimeType(r.Header.Get("Content-Type"))
	if p.config.StripsRequests(mimeType) && hasBody(r) {
		if err := p.processRequest(r, mimeType); err != nil {
			slog.Error("Failed to process request", "url", r.URL.Path, "error", err)
			p.writeError(w, http.StatusBadGateway)
			return
		}
	}

	p.reverseProxy.ServeHTTP(w, r)
}

// processRequest replaces the body of r with the output of the request
// plugin chain for mimeType.
func (p *Proxy) processRequest(r *http.Request, mimeType string) error {
	if isEncoded(r.Header) {
		slog.Debug("Request body is content-encoded, skipping processing", "url", r.URL.Path)
		return nil
	}

	maxSize := p.maxBodySize()
	if r.ContentLength > maxSize {
		slog.Info("Request too large, skipping processing", "size", r.ContentLength, "max", maxSize)
		return nil
	}

	original := r.Body
	// Use LimitReader to prevent reading more than maxSize
	body, err := io.ReadAll(io.LimitReader(original, maxSize+1)) // +1 to detect if limit exceeded
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}

	// Check if we hit the size limit
	if int64(len(body)) > maxSize {
		slog.Info("Request too large, skipping processing", "size", len(body), "max", maxSize)
		r.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(body), original), original}
		return nil
	}
	if err := original.Close(); err != nil {
		slog.Error("Failed to close request body", "error", err)
	}

	processed, err := p.processWithPlugins(body, r, p.config.GetPluginsForMimeType(mimeType), requestProcessor)
	if err != nil {
		return err
	}

	if !bytes.Equal(processed, body) {
		slog.Debug("Processed request body", "url", r.URL.Path, "before", len(body), "after", len(processed))
	}

	r.Body = io.NopCloser(bytes.NewReader(processed))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(processed)), nil
	}
	r.ContentLength = int64(len(processed))
	r.TransferEncoding = nil
	r.Header.Set("Content-Length", strconv.Itoa(len(processed)))

	return nil
}

func (p *Proxy) modifyResponse(resp *http.Response) error {
	contentType := resp.Header.Get("Content-Type")
	mimeType := extractMimeType(contentType)

	// Always add version header to any response that goes through jcr
	resp.Header.Set(versionHeader, p.version)

	if !p.config.StripsResponses(mimeType) {
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	if isEncoded(resp.Header) {
		slog.Debug("Response body is content-encoded, skipping processing", "url", resp.Request.URL.Path)
		return nil
	}

	// Add cache MISS header for processed responses
	resp.Header.Set(cacheHeader, "MISS")

	maxSize := p.maxBodySize()
	if resp.ContentLength > maxSize {
		slog.Info("Response too large, skipping processing", "size", resp.ContentLength, "max", maxSize)
		return nil
	}

	original := resp.Body
	body, err := io.ReadAll(io.LimitReader(original, maxSize+1))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if int64(len(body)) > maxSize {
		slog.Info("Response too large, skipping processing", "size", len(body), "max", maxSize)
		resp.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(body), original), original}
		return nil
	}
	if err := original.Close(); err != nil {
		slog.Error("Failed to close response body", "error", err)
	}

	if resp.Request.Method == http.MethodGet && p.shouldCache(resp) {
		body, err = p.processAndCacheResponse(body, resp, mimeType)
	} else {
		body, err = p.processResponse(body, resp, mimeType)
	}

	if err != nil {
		return err
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))

	return nil
}

// processResponse runs the response plugin chain for mimeType over body.
func (p *Proxy) processResponse(body []byte, resp *http.Response, mimeType string) ([]byte, error) {
	pluginConfigs := p.config.GetPluginsForMimeType(mimeType)
	if len(pluginConfigs) == 0 {
		return body, nil
	}

	return p.processWithPlugins(body, resp.Request, pluginConfigs, responseProcessor)
}

func (p *Proxy) processAndCacheResponse(body []byte, resp *http.Response, mimeType string) ([]byte, error) {
	processedBody, err := p.processResponse(body, resp, mimeType)
	if err != nil {
		return nil, err
	}

	cacheEntry := &cache.Entry{
		Body:       processedBody,
		Headers:    resp.Header.Clone(),
		StatusCode: resp.StatusCode,
		Timestamp:  time.Now(),
	}
	cacheEntry.Headers.Set("Content-Length", strconv.Itoa(len(processedBody)))
	cacheEntry.Headers.Del(cacheHeader)

	if err := p.cache.Set(resp.Request, cacheEntry, p.config); err != nil {
		slog.Error("Failed to cache response", "error", err)
	}

	return processedBody, nil
}

func (p *Proxy) shouldCache(resp *http.Response) bool {
	if p.cache == nil {
		return false
	}

	if resp.Header.Get("Set-Cookie") != "" {
		return false
	}

	if p.hasDenylistedCookies(resp.Request) {
		return false
	}

	return p.cache.IsCacheable(resp)
}

func (p *Proxy) hasDenylistedCookies(req *http.Request) bool {
	for _, denyName := range p.config.CookieDenylist {
		for _, cookie := range req.Cookies() {
			if cookie.Name == denyName {
				return true
			}
		}
	}
	return false
}

func (p *Proxy) serveCachedResponse(w http.ResponseWriter, entry *cache.Entry) {
	for key, values := range entry.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}

	// Add jcr headers for cached responses
	w.Header().Set(versionHeader, p.version)
	w.Header().Set(cacheHeader, "HIT")

	w.WriteHeader(entry.StatusCode)
	if _, err := w.Write(entry.Body); err != nil {
		slog.Error("Failed to write cached response body", "error", err)
	}
}

func (p *Proxy) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, r.Context().Err()) {
		slog.Info("Client went away", "url", r.URL.Path, "error", err)
	} else {
		slog.Error("Proxy error", "url", r.URL.Path, "error", err)
	}
	p.writeError(w, http.StatusBadGateway)
}

func (p *Proxy) writeError(w http.ResponseWriter, status int) {
	w.Header().Set(versionHeader, p.version)
	http.Error(w, http.StatusText(status), status)
}

func (p *Proxy) maxBodySize() int64 {
	return int64(p.config.MaxBodySizeMB) * 1024 * 1024
}

func extractMimeType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		return strings.ToLower(strings.TrimSpace(contentType[:idx]))
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

func hasBody(r *http.Request) bool {
	return r.Body != nil && r.Body != http.NoBody
}

func isEncoded(header http.Header) bool {
	encoding := header.Get("Content-Encoding")
	return encoding != "" && !strings.EqualFold(encoding, "identity")
}
