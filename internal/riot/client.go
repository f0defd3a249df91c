// Package riot talks to the game's spectator and summoner APIs.
package riot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"gamewatch/pkg/logx"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://{region}.api.riotgames.com"

	spectatorPath = "/lol/spectator/v5/active-games/by-summoner/"
	summonerPath  = "/lol/summoner/v4/summoners/by-name/"

	// maxBody bounds how much of a response is read.
	maxBody = 4 << 20
)

type Config struct {
	APIKey  string
	BaseURL string // template; "{region}" is replaced by the lower-cased region
	Timeout time.Duration

	// RatePerSec paces all requests; <= 0 disables pacing.
	RatePerSec int
	Burst      int
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

// New builds a client. hc may be nil.
func New(cfg Config, hc *http.Client, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Client{cfg: cfg, http: hc, log: log.With(logx.String("comp", "riot"))}
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.RatePerSec
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return c
}

func (c *Client) host(region string) string {
	return strings.TrimRight(strings.ReplaceAll(c.cfg.BaseURL, "{region}", strings.ToLower(strings.TrimSpace(region))), "/")
}

// get performs one paced GET and returns status code and body.
func (c *Client) get(ctx context.Context, url string) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Riot-Token", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

const maxSnippet = 200

// snippet shortens a response body for error messages, cutting on a rune boundary.
func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxSnippet {
		cut := maxSnippet
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}
