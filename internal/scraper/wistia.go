package scraper

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/iconidentify/coursegrab/internal/config"
	"github.com/iconidentify/coursegrab/internal/domain"
)

// WistiaClient looks up downloadable assets of Wistia-hosted videos.
type WistiaClient struct {
	http *resty.Client
}

// NewWistiaClient creates a new Wistia media client.
func NewWistiaClient(cfg config.WistiaConfig) *WistiaClient {
	return &WistiaClient{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json"),
	}
}

type wistiaMediaResponse struct {
	Media struct {
		Name   string        `json:"name"`
		Assets []wistiaAsset `json:"assets"`
	} `json:"media"`
}

type wistiaAsset struct {
	Type        string `json:"type"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ContentType string `json:"contentType"`
}

// BestAssetURL returns the URL of the largest complete-file asset of the
// Wistia media id.
func (c *WistiaClient) BestAssetURL(ctx context.Context, id string) (string, error) {
	var out wistiaMediaResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		ForceContentType("application/json").
		Get("/embed/medias/{id}.json")
	if err != nil {
		return "", fmt.Errorf("wistia lookup %s: %w", id, err)
	}
	if res.IsError() {
		return "", fmt.Errorf("wistia lookup %s: status %d", id, res.StatusCode())
	}

	best := pickLargestAsset(out.Media.Assets)
	if best == nil {
		return "", fmt.Errorf("%w: wistia media %s has no downloadable assets", domain.ErrMediaNotFound, id)
	}
	return best.URL, nil
}

func pickLargestAsset(assets []wistiaAsset) *wistiaAsset {
	var best *wistiaAsset
	for i := range assets {
		a := &assets[i]
		if a.URL == "" || isStreamingURL(a.URL) || a.ContentType == "application/x-mpegURL" {
			continue
		}
		if best == nil || a.Size > best.Size {
			best = a
		}
	}
	return best
}
