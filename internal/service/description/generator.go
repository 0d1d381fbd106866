package description

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	"golang.org/x/sync/singleflight"

	"storefront/internal/monitor"
	"storefront/pkg/breaker"
	"storefront/pkg/log"
)

// Fallback texts
const (
	MissingKeyText  = "AI description unavailable (Missing API Key)."
	EmptyText       = "No description generated."
	UnavailableText = "Could not generate description at this time."
)

const promptTemplate = `Write a catchy, short marketing description (max 2 sentences) for a product named "%s" in the category "%s". Focus on benefits.`

// maximum response body read from the model endpoint
const maxResponseBytes = 1 << 20

// Config generator configuration
type Config struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
	// CacheTTL zero disables caching
	CacheTTL   time.Duration
	CacheMaxMB int
}

// Generator writes marketing copy for products through a generateContent
// REST endpoint
type Generator struct {
	cfg     Config
	client  *http.Client
	breaker *breaker.CircuitBreaker
	cache   *bigcache.BigCache
	group   singleflight.Group
	metrics *monitor.Metrics
}

// NewGenerator creates a generator. cb may be nil.
func NewGenerator(cfg Config, cb *breaker.CircuitBreaker, metrics *monitor.Metrics) (*Generator, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	g := &Generator{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: cb,
		metrics: metrics,
	}
	if g.breaker == nil {
		g.breaker = breaker.NewCircuitBreaker("description", breaker.Config{})
	}

	if cfg.CacheTTL > 0 {
		cacheCfg := bigcache.DefaultConfig(cfg.CacheTTL)
		cacheCfg.HardMaxCacheSize = cfg.CacheMaxMB
		cacheCfg.Verbose = false
		cache, err := bigcache.New(context.Background(), cacheCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create description cache: %w", err)
		}
		g.cache = cache
	}
	return g, nil
}

// Generate returns a short description for the product. It never fails:
// every error turns into one of the fallback texts.
func (g *Generator) Generate(ctx context.Context, name, category string) string {
	if g.cfg.APIKey == "" {
		g.metrics.RecordDescription("missing_key")
		return MissingKeyText
	}

	key := strings.ToLower(strings.TrimSpace(name)) + "\x00" + strings.ToLower(strings.TrimSpace(category))
	if g.cache != nil {
		if data, err := g.cache.Get(key); err == nil {
			g.metrics.RecordDescription("cached")
			return string(data)
		}
	}

	// the shared call outlives any single caller so collapsed waiters are
	// not failed by whoever arrived first
	ch := g.group.DoChan(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.Timeout)
		defer cancel()

		var text string
		err := g.breaker.Execute(callCtx, func(ctx context.Context) error {
			var err error
			text, err = g.call(ctx, name, category)
			return err
		})
		switch {
		case err != nil:
			log.FromContext(callCtx).WithError(err).WithField("product", name).Warn("Description generation failed")
			g.metrics.RecordDescription("error")
			return UnavailableText, nil
		case text == "":
			g.metrics.RecordDescription("empty")
			return EmptyText, nil
		}

		g.metrics.RecordDescription("generated")
		if g.cache != nil {
			_ = g.cache.Set(key, []byte(text))
		}
		return text, nil
	})

	select {
	case res := <-ch:
		return res.Val.(string)
	case <-ctx.Done():
		g.metrics.RecordDescription("cancelled")
		return UnavailableText
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (g *Generator) call(ctx context.Context, name, category string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: fmt.Sprintf(promptTemplate, name, category)}}}},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.cfg.Endpoint, g.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generateContent returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to decode generateContent response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", nil
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}

// Close releases the cache
func (g *Generator) Close() error {
	if g.cache == nil {
		return nil
	}
	return g.cache.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
