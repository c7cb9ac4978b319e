package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPPusher mengirim push sebagai POST JSON ke endpoint terdaftar user
// (webhook gateway push di luar sistem ini). Satu percobaan, tanpa retry.
type HTTPPusher struct {
	Client *http.Client
}

func NewHTTPPusher() *HTTPPusher {
	return &HTTPPusher{Client: &http.Client{Timeout: 5 * time.Second}}
}

func (p *HTTPPusher) Push(ctx context.Context, endpoint, title, body string) error {
	payload, err := json.Marshal(map[string]string{"title": title, "body": body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}
	return nil
}
