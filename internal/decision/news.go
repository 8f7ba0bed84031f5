package decision

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// newsFallback is used whenever the feed cannot be fetched or parsed; the
// prompt still renders and the decision proceeds without news.
const newsFallback = "No recent news available."

// NewsConfig tunes the RSS feed folded into the prompt context.
type NewsConfig struct {
	FeedURL  string
	Timeout  time.Duration
	MaxChars int
}

// NewsFetcher pulls crypto headlines from an RSS feed and flattens them
// into a plain-text section for the prompt.
type NewsFetcher struct {
	http   *resty.Client
	cfg    NewsConfig
	logger *slog.Logger
}

func NewNewsFetcher(cfg NewsConfig, logger *slog.Logger) *NewsFetcher {
	return &NewsFetcher{
		http:   resty.New().SetTimeout(cfg.Timeout),
		cfg:    cfg,
		logger: logger.With("component", "news"),
	}
}

type rssFeed struct {
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

// Fetch returns the news section, or the fallback text on any failure.
func (n *NewsFetcher) Fetch(ctx context.Context) string {
	resp, err := n.http.R().SetContext(ctx).Get(n.cfg.FeedURL)
	if err != nil {
		n.logger.Warn("news fetch failed", "error", err)
		return newsFallback
	}
	if resp.StatusCode() != http.StatusOK {
		n.logger.Warn("news fetch failed", "status", resp.StatusCode())
		return newsFallback
	}

	var feed rssFeed
	if err := xml.Unmarshal(resp.Body(), &feed); err != nil {
		n.logger.Warn("news parse failed", "error", err)
		return newsFallback
	}
	if len(feed.Channel.Items) == 0 {
		return newsFallback
	}

	var b strings.Builder
	for _, item := range feed.Channel.Items {
		line := fmt.Sprintf("- %s", stripHTML(item.Title))
		if desc := stripHTML(item.Description); desc != "" {
			line += ": " + desc
		}
		if b.Len()+len(line)+1 > n.cfg.MaxChars {
			break
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return newsFallback
	}
	return strings.TrimSpace(b.String())
}

var (
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// stripHTML drops markup and collapses whitespace.
func stripHTML(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#8217;", "'", "&#8220;", `"`, "&#8221;", `"`, "&nbsp;", " ").Replace(s)
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
