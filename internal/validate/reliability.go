package validate

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/ppiankov/veracity/internal/model"
)

// DefaultHighDomains are registrable domains treated as high reliability
var DefaultHighDomains = []string{
	"who.int",
	"un.org",
	"europa.eu",
	"nature.com",
	"science.org",
	"thelancet.com",
	"nejm.org",
	"doi.org",
	"arxiv.org",
	"reuters.com",
	"apnews.com",
	"legislation.gov.uk",
	"nih.gov",
}

// DefaultMediumDomains are registrable domains treated as medium reliability
var DefaultMediumDomains = []string{
	"wikipedia.org",
	"britannica.com",
	"bbc.co.uk",
	"bbc.com",
	"nytimes.com",
	"theguardian.com",
	"washingtonpost.com",
	"economist.com",
	"ft.com",
	"npr.org",
}

// highSuffixes mark institutional hosts regardless of the table
var highSuffixes = []string{".gov", ".edu", ".ac.uk", ".int", ".mil"}

// ReliabilityClassifier assigns static reliability tiers by registrable domain
type ReliabilityClassifier struct {
	tiers map[string]model.ReliabilityTier
}

// NewReliabilityClassifier builds a classifier from the defaults plus configured
// domains. Configured domains override the defaults.
func NewReliabilityClassifier(cfg *model.ReliabilityConfig) *ReliabilityClassifier {
	c := &ReliabilityClassifier{tiers: make(map[string]model.ReliabilityTier)}

	for _, d := range DefaultMediumDomains {
		c.tiers[d] = model.TierMedium
	}
	for _, d := range DefaultHighDomains {
		c.tiers[d] = model.TierHigh
	}

	if cfg != nil {
		for _, d := range cfg.Medium {
			c.tiers[domainKey(d)] = model.TierMedium
		}
		for _, d := range cfg.High {
			c.tiers[domainKey(d)] = model.TierHigh
		}
	}

	return c
}

// Tier classifies a single URL. Unknown or unparsable URLs are low.
func (c *ReliabilityClassifier) Tier(rawURL string) model.ReliabilityTier {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return model.TierLow
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return model.TierLow
	}
	host = strings.TrimPrefix(host, "www.")

	// Exact host match first so subdomain entries like legislation.gov.uk win
	if tier, ok := c.tiers[host]; ok {
		return tier
	}
	if tier, ok := c.tiers[domainKey(host)]; ok {
		return tier
	}

	for _, suffix := range highSuffixes {
		if strings.HasSuffix(host, suffix) {
			return model.TierHigh
		}
	}

	return model.TierLow
}

// Classify partitions sources into reliability tiers, preserving input order
func (c *ReliabilityClassifier) Classify(sources []model.Source) model.Classification {
	out := model.Classification{
		High:   []model.Source{},
		Medium: []model.Source{},
		Low:    []model.Source{},
	}
	for _, s := range sources {
		switch c.Tier(s.URL) {
		case model.TierHigh:
			out.High = append(out.High, s)
		case model.TierMedium:
			out.Medium = append(out.Medium, s)
		default:
			out.Low = append(out.Low, s)
		}
	}
	return out
}

// Classify uses the built-in table
func Classify(sources []model.Source) model.Classification {
	return NewReliabilityClassifier(nil).Classify(sources)
}

// domainKey reduces a host to its registrable domain (eTLD+1)
func domainKey(host string) string {
	host = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(host)), "www.")
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}
