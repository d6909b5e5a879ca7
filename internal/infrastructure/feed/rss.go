package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"velestra/internal/domain"
	"velestra/internal/ports"
)

// Poller fetches and parses RSS 2.0 and Atom feeds. Item descriptions often
// carry embedded HTML; it is stripped down to plain text before the item is
// offered to the classifier.
type Poller struct {
	client *http.Client
}

var _ ports.FeedSource = (*Poller)(nil)

// NewPoller wires an HTTP client; nil gets a 20s-timeout default.
func NewPoller(client *http.Client) *Poller {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Poller{client: client}
}

// Poll fetches one feed and returns its items as articles, newest first as
// the feed orders them. The article id is a hash of title+source, matching
// the dedup ledger's key.
func (p *Poller) Poll(ctx context.Context, name, feedURL string) ([]domain.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Velestra/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned %s", name, resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	items, err := parseFeed(raw)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", name, err)
	}

	articles := make([]domain.Article, 0, len(items))
	for _, item := range items {
		title := strings.TrimSpace(item.title)
		if title == "" {
			continue
		}
		articles = append(articles, domain.Article{
			ID:          ArticleID(title, name),
			Title:       title,
			Description: stripHTML(item.description),
			URL:         item.link,
			Source:      name,
			PublishedAt: item.published,
		})
	}
	return articles, nil
}

// ArticleID derives the dedup ledger key from title and source. The hash is
// collision-tolerant: a clash only suppresses one article.
func ArticleID(title, source string) string {
	sum := sha256.Sum256([]byte(title + source))
	return hex.EncodeToString(sum[:])
}

type feedItem struct {
	title       string
	description string
	link        string
	published   time.Time
}

type rssDoc struct {
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Description string `xml:"description"`
			Link        string `xml:"link"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

type atomDoc struct {
	Entries []struct {
		Title   string `xml:"title"`
		Summary string `xml:"summary"`
		Content string `xml:"content"`
		Links   []struct {
			Rel  string `xml:"rel,attr"`
			Href string `xml:"href,attr"`
		} `xml:"link"`
		Published string `xml:"published"`
		Updated   string `xml:"updated"`
	} `xml:"entry"`
}

func parseFeed(raw []byte) ([]feedItem, error) {
	var rss rssDoc
	if err := xml.Unmarshal(raw, &rss); err == nil && len(rss.Channel.Items) > 0 {
		items := make([]feedItem, 0, len(rss.Channel.Items))
		for _, it := range rss.Channel.Items {
			items = append(items, feedItem{
				title:       it.Title,
				description: it.Description,
				link:        strings.TrimSpace(it.Link),
				published:   parseFeedTime(it.PubDate),
			})
		}
		return items, nil
	}

	var atom atomDoc
	if err := xml.Unmarshal(raw, &atom); err != nil {
		return nil, fmt.Errorf("neither rss nor atom: %w", err)
	}

	items := make([]feedItem, 0, len(atom.Entries))
	for _, entry := range atom.Entries {
		description := entry.Summary
		if description == "" {
			description = entry.Content
		}
		published := entry.Published
		if published == "" {
			published = entry.Updated
		}

		var link string
		for _, l := range entry.Links {
			if l.Rel == "" || l.Rel == "alternate" {
				link = l.Href
				break
			}
		}

		items = append(items, feedItem{
			title:       entry.Title,
			description: description,
			link:        link,
			published:   parseFeedTime(published),
		})
	}
	return items, nil
}

var feedTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05Z",
}

// parseFeedTime tries the common feed date layouts; an unparseable date
// falls back to now so the recency gate never drops an item for a formatting
// quirk alone.
func parseFeedTime(value string) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range feedTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

func stripHTML(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || !strings.Contains(value, "<") {
		return value
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(value))
	if err != nil {
		return value
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
