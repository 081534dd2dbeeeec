package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"baidu-face-go/config"

	log "github.com/sirupsen/logrus"
)

// maxSnapshotSize bounds how much image data a single snapshot may carry.
const maxSnapshotSize = 16 << 20 // 16 MiB

// Client fetches frames from a camera's snapshot endpoint.
type Client struct {
	cfg        config.CameraConfig
	httpClient *http.Client
}

// NewClient creates a snapshot client for one camera.
func NewClient(cfg config.CameraConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the camera name.
func (c *Client) Name() string {
	return c.cfg.Name
}

// Fetch downloads the current frame from the camera.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.SnapshotURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot from camera %s: %w", c.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera %s snapshot returned status %d", c.cfg.Name, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot data: %w", err)
	}

	log.Debugf("Fetched %d bytes snapshot from camera %s", len(data), c.cfg.Name)
	return data, nil
}
