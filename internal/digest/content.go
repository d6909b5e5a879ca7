package digest

import "velestra/internal/ports"

// StaticProvider cycles through a fixed pool of narrative text. The digest
// jobs treat the provider as opaque; swapping in a generated source changes
// nothing else.
type StaticProvider struct {
	trendIdx   int
	insightIdx int
	qaIdx      int
}

var _ ports.ContentProvider = (*StaticProvider)(nil)

var trends = []string{
	"AI safety and compliance becoming enterprise requirements",
	"Developer tools market fragmenting into AI-enhanced vs traditional",
	"Funding patterns shifting toward proven revenue models",
	"Open source AI projects gaining enterprise traction",
}

var insights = []string{
	"Early AI adopters are building sustainable competitive moats through custom model training",
	"The best opportunities are often adjacent to obvious trends, not directly competing",
	"Enterprise customers value AI safety and compliance over cutting-edge capabilities",
	"Developer tool companies that integrate AI features retain users better than pure AI tools",
}

var qaPairs = [][2]string{
	{
		"Is the AI bubble about to burst?",
		"Based on funding patterns and technical progress, we see market consolidation (not collapse) in the next 6-12 months. Weaker players struggle, core infrastructure strengthens.",
	},
	{
		"Should I pivot from web dev tools to AI tools?",
		"Dev tool market fragmenting into AI-enhanced vs traditional. If you have users, enhance with AI features rather than full pivot. Gradual transition favored.",
	},
	{
		"When will AI coding replace developers?",
		"AI will augment, not replace developers for years. Focus on AI-assisted development rather than competing with AI. Upskill in AI tool integration.",
	},
}

// NewStaticProvider returns the default content pool.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{}
}

// WeeklyTrend returns the next trend line from the pool.
func (p *StaticProvider) WeeklyTrend() string {
	trend := trends[p.trendIdx%len(trends)]
	p.trendIdx++
	return trend
}

// WeeklyInsight returns the next insight line from the pool.
func (p *StaticProvider) WeeklyInsight() string {
	insight := insights[p.insightIdx%len(insights)]
	p.insightIdx++
	return insight
}

// OracleQA returns the next question/answer pair from the pool.
func (p *StaticProvider) OracleQA() (string, string) {
	qa := qaPairs[p.qaIdx%len(qaPairs)]
	p.qaIdx++
	return qa[0], qa[1]
}

// MonthlyOutlook returns the monthly predictions block.
func (p *StaticProvider) MonthlyOutlook() string {
	return `📈 *What We See Coming:*

*Next 30 Days:*
• AI coding tools will consolidate around a few major players
• Enterprise AI safety requirements will become standard

*Next 90 Days:*
• Major acquisition in AI infrastructure space
• New regulatory framework for AI training data

*Confidence Levels:*
🔥 High (80%+): Enterprise AI adoption acceleration
📊 Medium (60-80%): Consolidation in dev tools space`
}

// MissedOpportunities returns the midweek retrospective block.
func (p *StaticProvider) MissedOpportunities() string {
	return `🚀 *Partnership Window (Closed):*
AI startup went viral - Pro subscribers contacted them 18h early

💰 *Investment Intel (Expired):*
Funding announcement surfaced days before mainstream coverage

🎯 *Competitive Threat (Too Late):*
New competitor launched - Pro subscribers pivoted features early`
}
