package riot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"gamewatch/pkg/logx"
)

// CheckStatus asks the spectator API whether puuid is currently in a game.
//
// 200 with a decodable body is Active, 404 is Inactive. Everything else,
// including transport failures, is Unknown with Err set. There are no retries.
func (c *Client) CheckStatus(ctx context.Context, puuid, region string) Status {
	puuid, region = strings.TrimSpace(puuid), strings.TrimSpace(region)
	if puuid == "" || region == "" {
		return Status{Kind: Unknown, Err: fmt.Errorf("%w: puuid and region are required", ErrInvalidArgument)}
	}

	u := c.host(region) + spectatorPath + url.PathEscape(puuid)
	code, body, err := c.get(ctx, u)
	if err != nil {
		return Status{Kind: Unknown, Err: err}
	}

	switch code {
	case http.StatusOK:
		var g ActiveGame
		if err := json.Unmarshal(body, &g); err != nil {
			return Status{Kind: Unknown, Err: fmt.Errorf("decode active game: %w", err)}
		}
		g.Raw = append(json.RawMessage(nil), body...)
		c.log.Debug("player in game", logx.String("region", region), logx.Int64("game_id", g.GameID))
		return Status{Kind: Active, Game: &g}
	case http.StatusNotFound:
		return Status{Kind: Inactive}
	default:
		return Status{Kind: Unknown, Err: fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, code, snippet(body))}
	}
}
