package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"

	"github.com/scipunch/technews/fetcher/types"
)

const (
	defaultMessageLimit = 50
	maxTitleRunes       = 100
)

// ChannelError reports a failure of a single channel
type ChannelError struct {
	Channel string
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("telegram channel %s failed with %v", e.Channel, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// Source reads the latest posts of public Telegram channels.
// The first line of a post becomes the title and its t.me link the url.
type Source struct {
	session  Session
	channels []string
	now      func() time.Time
}

func NewSource(s Session, channels []string) *Source {
	return &Source{session: s, channels: channels, now: time.Now}
}

func (s *Source) Name() string { return "telegram" }

// Fetch opens one client connection and reads every configured channel through it
func (s *Source) Fetch(ctx context.Context, maxItems int, lookback time.Duration) ([]types.NewsItem, error) {
	if maxItems <= 0 {
		maxItems = defaultMessageLimit
	}
	var (
		items []types.NewsItem
		errs  []error
	)
	err := Run(ctx, s.session, func(ctx context.Context, client *telegram.Client) error {
		api := client.API()
		for _, url := range s.channels {
			channelItems, err := s.fetchChannel(ctx, api, url, maxItems, lookback)
			if err != nil {
				slog.Warn("failed to read telegram channel", "channel", url, "with", err)
				errs = append(errs, &ChannelError{Channel: url, Err: err})
				continue
			}
			items = append(items, channelItems...)
		}
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return items, errors.Join(errs...)
}

func (s *Source) fetchChannel(ctx context.Context, api *tg.Client, url string, limit int, lookback time.Duration) ([]types.NewsItem, error) {
	username, err := parseChannelURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid channel URL: %w", err)
	}

	resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: username,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve channel @%s: %w", username, err)
	}

	var channel *tg.Channel
	for _, chat := range resolved.Chats {
		if ch, ok := chat.(*tg.Channel); ok {
			channel = ch
			break
		}
	}
	if channel == nil {
		return nil, fmt.Errorf("channel @%s not found in resolved peers", username)
	}
	if !channel.Broadcast {
		return nil, fmt.Errorf("@%s is a group, not a channel", username)
	}

	messagesData, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer: &tg.InputPeerChannel{
			ChannelID:  channel.ID,
			AccessHash: channel.AccessHash,
		},
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages from @%s: %w", username, err)
	}

	var messages []tg.MessageClass
	switch m := messagesData.(type) {
	case *tg.MessagesMessages:
		messages = m.Messages
	case *tg.MessagesMessagesSlice:
		messages = m.Messages
	case *tg.MessagesChannelMessages:
		messages = m.Messages
	case *tg.MessagesMessagesNotModified:
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected messages type: %T", messagesData)
	}

	items := freshItems(channel.Title, username, messages, s.now().UTC(), lookback)
	slog.Debug("fetched telegram channel", "channel", username, "messages", len(items))
	return items, nil
}

// freshItems converts channel messages to items, dropping service messages,
// empty texts and anything published before now-lookback
func freshItems(channelTitle, username string, messages []tg.MessageClass, now time.Time, lookback time.Duration) []types.NewsItem {
	items := make([]types.NewsItem, 0, len(messages))
	for _, msgClass := range messages {
		msg, ok := msgClass.(*tg.Message)
		if !ok {
			continue // service message
		}
		item, ok := messageToItem(channelTitle, username, msg.ID, msg.Date, msg.Message)
		if !ok || !types.IsFresh(item.PublishedAt, now, lookback) {
			continue
		}
		items = append(items, item)
	}
	return items
}

func messageToItem(channelTitle, username string, id, date int, text string) (types.NewsItem, bool) {
	title := firstLine(text)
	if title == "" {
		return types.NewsItem{}, false
	}
	return types.NewsItem{
		Source:      channelTitle,
		Title:       truncateText(title, maxTitleRunes),
		URL:         fmt.Sprintf("https://t.me/%s/%d", username, id),
		PublishedAt: time.Unix(int64(date), 0).UTC(),
	}, true
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// parseChannelURL extracts the channel username from various URL formats
// Supports:
//   - https://t.me/channelname
//   - http://t.me/channelname
//   - t.me/channelname
//   - @channelname
//   - channelname
func parseChannelURL(url string) (string, error) {
	url = strings.TrimSpace(url)
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimPrefix(url, "t.me/")
	url = strings.TrimPrefix(url, "@")
	url = strings.TrimSuffix(url, "/")

	if url == "" {
		return "", fmt.Errorf("empty channel username")
	}
	if strings.Contains(url, "/") {
		return "", fmt.Errorf("invalid channel URL format: %s", url)
	}
	return url, nil
}

// truncateText cuts text to maxLen runes at a word boundary when possible, adding "..."
func truncateText(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	truncated := string(runes[:maxLen])
	if idx := strings.LastIndex(truncated, " "); idx > len(truncated)/2 {
		truncated = truncated[:idx]
	}
	return truncated + "..."
}
