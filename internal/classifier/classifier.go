package classifier

import (
	"fmt"
	"strings"
	"time"

	"velestra/internal/config"
	"velestra/internal/domain"
)

// category couples a signal type with its trigger words and the confidence
// bonus it contributes. Order matters: detection is first-match-wins down the
// priority list, never cumulative.
type category struct {
	signalType domain.SignalType
	triggers   []string
	bonus      float64
}

var categories = []category{
	{domain.TypeAcquisition, []string{"acquisition", "merger", "buys", "acquires"}, 0.40},
	{domain.TypeIPO, []string{"ipo", "public", "nasdaq", "stock"}, 0.35},
	{domain.TypeFunding, []string{"funding", "series", "raised", "million", "billion"}, 0.35},
	{domain.TypeInnovation, []string{"breakthrough", "first", "new", "novel"}, 0.30},
	{domain.TypeProductLaunch, []string{"launch", "releases", "announces", "introducing"}, 0.25},
}

// Classifier turns raw articles into scored signals. It holds no state and is
// fully deterministic: the same article always yields the same signal.
type Classifier struct {
	keywords      []string
	keywordWeight float64
	minConfidence float64
}

// New builds a classifier from the scoring configuration.
func New(cfg config.ScoringConfig) *Classifier {
	return &Classifier{
		keywords:      cfg.Keywords,
		keywordWeight: cfg.KeywordWeight,
		minConfidence: cfg.MinConfidence,
	}
}

// Classify scores the article and returns a signal, or nil when no keyword
// matches or the confidence lands below the publishing threshold. The
// threshold itself is inclusive: a score of exactly the minimum produces a
// signal.
func (c *Classifier) Classify(article domain.Article, now time.Time) *domain.Signal {
	text := strings.ToLower(article.Title + " " + article.Description)

	var matched []string
	for _, keyword := range c.keywords {
		if strings.Contains(text, keyword) {
			matched = append(matched, keyword)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	confidence := float64(len(matched)) * c.keywordWeight

	signalType := domain.TypeGeneral
	for _, cat := range categories {
		if containsAny(text, cat.triggers) {
			signalType = cat.signalType
			confidence += cat.bonus
			break
		}
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < c.minConfidence {
		return nil
	}

	prediction := fmt.Sprintf("New %s development: %s", signalType.Label(), article.Title)

	evidence := []string{
		"Keywords: " + strings.Join(matched, ", "),
		"Source: " + article.Source,
		"Article URL: " + article.URL,
		"Type: " + string(signalType),
		"Published: " + article.PublishedAt.UTC().Format(time.RFC1123),
	}

	return &domain.Signal{
		Type:           signalType,
		Source:         article.Source,
		Content:        article.Title,
		Confidence:     confidence,
		DetectedAt:     now,
		Prediction:     prediction,
		Evidence:       evidence,
		ApprovalStatus: domain.StatusPending,
	}
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
