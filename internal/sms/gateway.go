// Package sms sends text messages through an HTTP SMS provider (Termii-style API).
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/assacalos/megvie/internal/logger"
	"github.com/assacalos/megvie/internal/normalize"
)

type Gateway interface {
	Send(ctx context.Context, to, message string) bool
	IsConfigured() bool
}

type Config struct {
	APIKey             string
	APIURL             string
	DefaultCountryCode string
	Timeout            time.Duration
	// SimulateWhenUnconfigured makes an unconfigured gateway log and report
	// success instead of failing closed.
	SimulateWhenUnconfigured bool
}

type HTTPGateway struct {
	cfg    Config
	client *http.Client
}

func NewHTTPGateway(cfg Config) *HTTPGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &HTTPGateway{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (g *HTTPGateway) IsConfigured() bool {
	return g.cfg.APIKey != "" && g.cfg.APIURL != ""
}

func (g *HTTPGateway) Send(ctx context.Context, to, message string) bool {
	to = normalize.InternationalPhone(to, g.cfg.DefaultCountryCode)
	if to == "" {
		return false
	}
	if !g.IsConfigured() {
		if g.cfg.SimulateWhenUnconfigured {
			logger.From(ctx).Info("sms.simulated", "to", to, "message", preview(message))
			return true
		}
		logger.From(ctx).Warn("sms.skipped", "to", to, "reason", "gateway not configured")
		return false
	}

	if err := g.post(ctx, map[string]string{"to": to, "sms": message, "api_key": g.cfg.APIKey}); err != nil {
		logger.From(ctx).Warn("sms.failed", "to", to, "err", err)
		return false
	}
	return true
}

func (g *HTTPGateway) post(ctx context.Context, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sms status %d: %s", resp.StatusCode, data)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= 50 {
		return s
	}
	return string(r[:50]) + "..."
}
