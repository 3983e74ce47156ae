package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/news_crawler/internal/config"
	"github.com/iWorld-y/news_crawler/internal/searxng"
	"github.com/iWorld-y/news_crawler/internal/tavily"
)

func TestNewSearcher(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{}
	_, err := NewSearcher(ctx, cfg)
	assert.Error(t, err)

	cfg.Search.Tavily.APIKey = "tvly"
	s, err := NewSearcher(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &tavily.Client{}, s)

	cfg = &config.Config{}
	cfg.Search.Provider = "searxng"
	_, err = NewSearcher(ctx, cfg)
	assert.Error(t, err)
	cfg.Search.SearXNG.BaseURL = "http://localhost:8888"
	s, err = NewSearcher(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &searxng.Client{}, s)

	cfg.Search.Provider = "bing"
	_, err = NewSearcher(ctx, cfg)
	assert.Error(t, err)
}
