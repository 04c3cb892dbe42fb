// Package cloudflare provides a client for interacting with the Cloudflare API.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/viper"
)

type PurgeClient struct {
	ZoneID   string
	APIToken string
	HTTP     *http.Client
}

type purgeResponse struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func NewPurgeClient() *PurgeClient {
	return &PurgeClient{
		ZoneID:   viper.GetString("cloudflare.zone_id"),
		APIToken: viper.GetString("cloudflare.api_token"),
		HTTP:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether the client is configured. Purges are skipped
// entirely when it isn't.
func (p *PurgeClient) Enabled() bool {
	return p.ZoneID != "" && p.APIToken != ""
}

// PurgeURLs asks the edge to drop its cached copies of the given URLs.
func (p *PurgeClient) PurgeURLs(ctx context.Context, urls []string) error {
	if !p.Enabled() {
		return nil
	}

	payload := map[string]any{"files": urls}
	jsonBody, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("https://api.cloudflare.com/client/v4/zones/%s/purge_cache", p.ZoneID),
		bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+p.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("purge request failed, %w", err)
	}

	respBody, _ := io.ReadAll(resp.Body)
	defer resp.Body.Close()

	var res purgeResponse
	if err := json.Unmarshal(respBody, &res); err != nil {
		return fmt.Errorf("failed to parse purge response, %w", err)
	}

	if !res.Success {
		if len(res.Errors) > 0 {
			return fmt.Errorf("purge rejected, code %d: %s", res.Errors[0].Code, res.Errors[0].Message)
		}
		return fmt.Errorf("purge rejected with status %d", resp.StatusCode)
	}

	return nil
}
