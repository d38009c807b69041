package filter

import "time"

// Signal is one information-density pattern contributing to the quality
// score.
type Signal struct {
	Name    string `yaml:"name" json:"name"`
	Pattern string `yaml:"pattern" json:"pattern"`
	Weight  int    `yaml:"weight" json:"weight"`
}

// Config holds filter parameters. It is read once when the Filter is built;
// changes apply to the next run.
type Config struct {
	MinContentLength   int `yaml:"min_content_length"`
	RelevanceThreshold int `yaml:"relevance_threshold"`
	// KeywordCap limits how much a single keyword can add to the relevance
	// score.
	KeywordCap        int      `yaml:"keyword_cap"`
	Keywords          []string `yaml:"keywords"`
	BlacklistPatterns []string `yaml:"blacklist_patterns"`

	QualitySignals []Signal `yaml:"quality_signals"`
	// SignalCap limits how many matches of one signal are counted.
	SignalCap int `yaml:"signal_cap"`
	// QualityGate turns the quality score into a rejection criterion.
	QualityGate     bool `yaml:"quality_gate"`
	MinQualityScore int  `yaml:"min_quality_score"`

	// MaxAge rejects items whose known publication time is older. Zero
	// disables the check.
	MaxAge time.Duration `yaml:"max_age"`
}

// DefaultKeywords are financial-news keywords in English and Korean.
var DefaultKeywords = []string{
	// markets
	"stock", "stocks", "shares", "equity", "market", "trading", "nasdaq", "dow jones", "s&p 500", "wall street",
	// companies
	"apple", "tesla", "microsoft", "amazon", "nvidia", "berkshire",
	// crypto
	"bitcoin", "cryptocurrency", "ethereum", "blockchain",
	// central banks
	"federal reserve", "powell", "interest rate", "interest rates", "monetary policy", "fomc",
	// economy
	"inflation", "gdp", "employment", "economic", "economy", "recession",
	// earnings
	"earnings", "revenue", "profit", "quarterly", "investor", "investors", "investment",
	// geopolitics
	"trade war", "tariff", "tariffs", "sanction", "sanctions", "oil",
	// Korean
	"투자", "주식", "증시", "금리", "환율", "경제", "시장", "실적", "매출",
	"인플레이션", "연준", "코스피", "코스닥", "나스닥", "비트코인", "채권",
}

// DefaultBlacklist matches publisher boilerplate that is never an article.
var DefaultBlacklist = []string{
	`the associated press is an independent global news organization`,
	`founded in \d{4}`,
	`remains the most trusted source`,
	`more than half the world's population sees`,
	`essential provider of the technology`,
	`vital to the news business`,
}

// DefaultSignals weight currency amounts above other signals.
var DefaultSignals = []Signal{
	{Name: "currency", Pattern: `\$\d+(?:\.\d+)?(?:\s*(?:billion|million|trillion))?`, Weight: 2},
	{Name: "won", Pattern: `\d[\d,]*(?:\.\d+)?\s*(?:억|조|만)?\s*원`, Weight: 2},
	{Name: "percentage", Pattern: `\d+(?:\.\d+)?\s*%`, Weight: 1},
	{Name: "date", Pattern: `\d{4}-\d{2}-\d{2}`, Weight: 1},
	{Name: "quarter", Pattern: `q[1-4]\s+\d{4}`, Weight: 1},
	{Name: "magnitude", Pattern: `\d+(?:\.\d+)?\s*(?:billion|million|trillion|bn)\b`, Weight: 1},
}

// DefaultConfig returns the default filter configuration.
func DefaultConfig() Config {
	return Config{
		MinContentLength:   300,
		RelevanceThreshold: 4,
		KeywordCap:         5,
		Keywords:           append([]string(nil), DefaultKeywords...),
		BlacklistPatterns:  append([]string(nil), DefaultBlacklist...),
		QualitySignals:     append([]Signal(nil), DefaultSignals...),
		SignalCap:          3,
	}
}
