package fetcher

import (
	"log/slog"
	"time"

	"go.uber.org/zap"

	"github.com/scipunch/technews/config"
	"github.com/scipunch/technews/fetcher/telegram"
	"github.com/scipunch/technews/fetcher/types"
)

// Build creates the enabled sources in merge order: RSS, keyword API, Telegram
func Build(cfg config.Config, creds config.Credentials, logger *zap.Logger) []types.Source {
	timeout := time.Duration(cfg.News.RequestTimeoutSeconds) * time.Second

	var sources []types.Source
	if len(cfg.News.RSSFeeds) > 0 {
		sources = append(sources, NewRSSSource(cfg.News.RSSFeeds, timeout))
	}

	sources = append(sources, NewKeywordAPISource(KeywordAPIConfig{
		Endpoint: cfg.News.KeywordEndpoint,
		APIKey:   creds.NewsAPI.APIKey,
		Timeout:  timeout,
	}))

	if len(cfg.News.TelegramChannels) > 0 {
		if !creds.Telegram.IsValid() {
			slog.Warn("telegram channels configured without credentials, skipping", "channels", len(cfg.News.TelegramChannels))
		} else {
			sources = append(sources, telegram.NewSource(telegram.Session{
				Dir:         cfg.DataDirectory,
				Credentials: creds.Telegram,
				Logger:      logger,
			}, cfg.News.TelegramChannels))
		}
	}

	return sources
}

// MaxItems returns the per-endpoint item limit configured for a source
func MaxItems(cfg config.NewsConfig, source types.Source) int {
	if _, ok := source.(*KeywordAPISource); ok {
		return cfg.KeywordMaxItems
	}
	return cfg.MaxItemsPerFeed
}
