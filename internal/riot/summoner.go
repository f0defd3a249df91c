package riot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type summoner struct {
	PUUID string `json:"puuid"`
	Name  string `json:"name"`
}

// ResolvePUUID looks up the stable identifier for a summoner name.
// A 404 or a body without a puuid yields ErrNotFound.
func (c *Client) ResolvePUUID(ctx context.Context, name, region string) (string, error) {
	name, region = strings.TrimSpace(name), strings.TrimSpace(region)
	if name == "" || region == "" {
		return "", fmt.Errorf("%w: name and region are required", ErrInvalidArgument)
	}

	u := c.host(region) + summonerPath + url.PathEscape(name)
	code, body, err := c.get(ctx, u)
	if err != nil {
		return "", err
	}
	switch code {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", fmt.Errorf("summoner %q in %s: %w", name, region, ErrNotFound)
	default:
		return "", fmt.Errorf("summoner %q in %s: %w %d: %s", name, region, ErrUnexpectedStatus, code, snippet(body))
	}

	var s summoner
	if err := json.Unmarshal(body, &s); err != nil {
		return "", fmt.Errorf("decode summoner: %w", err)
	}
	if strings.TrimSpace(s.PUUID) == "" {
		return "", fmt.Errorf("summoner %q in %s has no puuid: %w", name, region, ErrNotFound)
	}
	return s.PUUID, nil
}
