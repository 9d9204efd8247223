package app

import (
	"fmt"

	"github.com/fhsinchy/geb-deals/config"
	"github.com/fhsinchy/geb-deals/internal/infrastructure/marketplace"
	"github.com/fhsinchy/geb-deals/internal/infrastructure/metrics"
	"github.com/fhsinchy/geb-deals/internal/usecase"
)

// NewSearchService builds the fetch and extract chain from configuration.
// m may be nil to run without metrics.
func NewSearchService(cfg *config.Config, m *metrics.Metrics) (*usecase.SearchService, error) {
	client, err := marketplace.NewClient(marketplace.ClientConfig{
		BaseURL:     cfg.Marketplace.BaseURL,
		SearchPath:  cfg.Marketplace.SearchPath,
		Category:    cfg.Marketplace.Category,
		Timeout:     cfg.Marketplace.Timeout,
		Headers:     cfg.Marketplace.RequestHeaders(),
		Fingerprint: marketplace.Fingerprint(cfg.Marketplace.Fingerprint),
	}, m)
	if err != nil {
		return nil, fmt.Errorf("marketplace client: %w", err)
	}

	parser, err := marketplace.NewParser(marketplace.ParserConfig{
		BaseURL:        cfg.Marketplace.BaseURL,
		TrackingParams: cfg.Marketplace.TrackingParams,
	}, m)
	if err != nil {
		return nil, fmt.Errorf("marketplace parser: %w", err)
	}

	return usecase.NewSearchService(client, parser, usecase.SearchServiceConfig{
		MaxQueryLength: cfg.Search.MaxQueryLength,
	}), nil
}
