package classifier

import (
	"strings"
	"testing"
	"time"

	"velestra/internal/config"
	"velestra/internal/domain"
)

func testConfig() config.ScoringConfig {
	return config.ScoringConfig{
		KeywordWeight: 0.06,
		MinConfidence: 0.50,
		Keywords:      []string{"ai", "startup", "robotics", "funding"},
	}
}

func article(title, description string) domain.Article {
	return domain.Article{
		ID:          "article-1",
		Title:       title,
		Description: description,
		URL:         "https://example.com/item",
		Source:      "TestFeed",
		PublishedAt: time.Date(2026, 8, 23, 8, 0, 0, 0, time.UTC),
	}
}

func TestClassifyScoresKeywordsAndCategory(t *testing.T) {
	t.Parallel()

	c := New(testConfig())
	now := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)

	// 3 keywords (robotics, ai, startup) * 0.06 + acquisition bonus 0.40.
	signal := c.Classify(article("Robotics giant buys AI startup in surprise merger", ""), now)
	if signal == nil {
		t.Fatal("expected a signal, got nil")
	}
	if signal.Type != domain.TypeAcquisition {
		t.Errorf("type = %s, want %s", signal.Type, domain.TypeAcquisition)
	}
	if got, want := signal.Confidence, 3*0.06+0.40; !closeTo(got, want) {
		t.Errorf("confidence = %.4f, want %.4f", got, want)
	}
	if signal.DetectedAt != now {
		t.Errorf("detectedAt = %v, want %v", signal.DetectedAt, now)
	}
	if signal.ApprovalStatus != domain.StatusPending {
		t.Errorf("status = %s, want pending", signal.ApprovalStatus)
	}
	if !strings.Contains(signal.Prediction, "acquisition development") {
		t.Errorf("prediction %q does not name the category", signal.Prediction)
	}
	if len(signal.Evidence) == 0 {
		t.Error("expected evidence lines")
	}
}

func TestClassifyNoKeywordMatch(t *testing.T) {
	t.Parallel()

	c := New(testConfig())
	if signal := c.Classify(article("Quarterly weather report released", ""), time.Now()); signal != nil {
		t.Fatalf("expected nil for keyword-free article, got %+v", signal)
	}
}

func TestClassifyBelowThreshold(t *testing.T) {
	t.Parallel()

	c := New(testConfig())
	// 1 keyword * 0.06 + product launch bonus 0.25 = 0.31 < 0.50.
	if signal := c.Classify(article("Robotics firm announces gripper", ""), time.Now()); signal != nil {
		t.Fatalf("expected nil below threshold, got confidence %.2f", signal.Confidence)
	}
}

func TestClassifyThresholdIsInclusive(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.KeywordWeight = 0.25
	cfg.MinConfidence = 0.50
	c := New(cfg)

	// Exactly 1*0.25 + launch bonus 0.25 = 0.50, all binary-exact values.
	signal := c.Classify(article("Robotics firm announces gripper", ""), time.Now())
	if signal == nil {
		t.Fatal("score equal to the minimum must still produce a signal")
	}
}

func TestClassifyCategoryPriority(t *testing.T) {
	t.Parallel()

	c := New(testConfig())
	cases := []struct {
		name  string
		title string
		want  domain.SignalType
	}{
		{"acquisition over launch", "Merger deal: ai startup funding group to launch combined brand", domain.TypeAcquisition},
		{"ipo over funding", "AI startup funding closed ahead of ipo", domain.TypeIPO},
		{"funding alone", "AI startup raised record funding", domain.TypeFunding},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			signal := c.Classify(article(tc.title, ""), time.Now())
			if signal == nil {
				t.Fatal("expected a signal")
			}
			if signal.Type != tc.want {
				t.Errorf("type = %s, want %s", signal.Type, tc.want)
			}
		})
	}
}

func TestClassifyBonusNotCumulative(t *testing.T) {
	t.Parallel()

	c := New(testConfig())
	// Triggers for acquisition and ipo both present; only the acquisition
	// bonus may apply. 3 keywords * 0.06 + 0.40 = 0.58.
	signal := c.Classify(article("Merger ahead of ipo: ai startup funding locked", ""), time.Now())
	if signal == nil {
		t.Fatal("expected a signal")
	}
	if got, want := signal.Confidence, 3*0.06+0.40; !closeTo(got, want) {
		t.Errorf("confidence = %.4f, want %.4f (single bonus)", got, want)
	}
}

func TestClassifyConfidenceClamped(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.KeywordWeight = 0.30
	c := New(cfg)

	signal := c.Classify(article("AI startup robotics funding merger", ""), time.Now())
	if signal == nil {
		t.Fatal("expected a signal")
	}
	if signal.Confidence != 1.0 {
		t.Errorf("confidence = %.4f, want clamped 1.0", signal.Confidence)
	}
}

func TestClassifyReadsDescription(t *testing.T) {
	t.Parallel()

	c := New(testConfig())
	signal := c.Classify(article("Industry brief", "ai startup funding merger confirmed"), time.Now())
	if signal == nil {
		t.Fatal("expected keywords in the description to count")
	}
}

func closeTo(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
