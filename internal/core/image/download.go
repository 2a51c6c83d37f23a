package image

import (
	"context"
	"fmt"
	"net/http"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Downloader fetches remote images, e.g. the hero image URL a recipe page
// advertises.
type Downloader struct {
	client       *resty.Client
	maxSizeBytes int64
}

// NewDownloader creates a downloader.
func NewDownloader(cfg *config.Config) *Downloader {
	client := resty.New().
		SetTimeout(cfg.Scraper.Timeout).
		SetHeader("User-Agent", cfg.Scraper.UserAgent)

	return &Downloader{
		client:       client,
		maxSizeBytes: cfg.Image.MaxSizeBytes,
	}
}

// Download fetches the image at url.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	resp, err := d.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status code %d", resp.StatusCode())
	}

	body := resp.Body()
	if int64(len(body)) > d.maxSizeBytes {
		return nil, fmt.Errorf("image size %d exceeds maximum of %d bytes", len(body), d.maxSizeBytes)
	}

	common.LogDebug("Image downloaded",
		zap.String("url", url),
		zap.Int("size", len(body)),
	)
	return body, nil
}
