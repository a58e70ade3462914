package retraction

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// chainField returns the string form of a fixed chain field, or of an
// attribute when key names no fixed field.
func chainField(c *Chain, key string) (string, bool) {
	switch key {
	case "id", "chain_id":
		return c.ID, true
	case "paper_id":
		return c.PaperID, true
	case "type":
		return c.Type, true
	case "severity_level":
		return strconv.Itoa(c.SeverityLevel), true
	case "overall_explanation":
		return c.OverallExplanation, true
	}
	if _, ok := c.Attributes[key]; !ok {
		return "", false
	}
	return attrString(c.Attributes, key), true
}

// ChainByID looks a chain up in an index, falling back to the
// hyphen-stripped form of a UUID.
func ChainByID(chains map[string]*Chain, id string) (*Chain, bool) {
	if c, ok := chains[id]; ok {
		return c, true
	}
	if IsUUID(id) {
		for stored, c := range chains {
			if MatchID(stored, id) {
				return c, true
			}
		}
	}
	return nil, false
}

// ChainByKey returns the first chain whose key field equals value.
func ChainByKey(chains []*Chain, key, value string) (*Chain, bool) {
	for _, c := range chains {
		if v, ok := chainField(c, key); ok && MatchID(v, value) {
			return c, true
		}
	}
	return nil, false
}

// ChainsByAttribute returns every chain whose attribute equals value.
func ChainsByAttribute(chains []*Chain, name string, value any) []*Chain {
	var out []*Chain
	for _, c := range chains {
		if attrEquals(c.Attributes, name, value) {
			out = append(out, c)
		}
	}
	return out
}

// ReasoningSteps returns the reasoning steps of the chain whose key field
// equals value.
func ReasoningSteps(chains []*Chain, key, value string) ([]string, bool) {
	c, ok := ChainByKey(chains, key, value)
	if !ok {
		return nil, false
	}
	return c.ReasoningSteps, true
}

// EntityIndex maps entity IDs to entities.
type EntityIndex map[string]*Entity

// NewEntityIndex indexes entities by ID.
func NewEntityIndex(entities []*Entity) EntityIndex {
	idx := make(EntityIndex, len(entities))
	for _, e := range entities {
		idx[e.ID] = e
	}
	return idx
}

// Get looks an entity up, falling back to the hyphen-stripped UUID form.
func (idx EntityIndex) Get(id string) (*Entity, bool) {
	if e, ok := idx[id]; ok {
		return e, true
	}
	if IsUUID(id) {
		for stored, e := range idx {
			if MatchID(stored, id) {
				return e, true
			}
		}
	}
	return nil, false
}

func paperField(p *Paper, key string) (string, bool) {
	switch key {
	case "id":
		return p.ID, true
	case "title":
		return p.Title, true
	case "doi":
		return p.DOI, true
	case "journal":
		return p.Journal, true
	case "date":
		return p.Date, true
	}
	if _, ok := p.Attributes[key]; !ok {
		return "", false
	}
	return attrString(p.Attributes, key), true
}

// PaperByKey returns the first paper whose key field equals value.
func PaperByKey(papers []*Paper, key, value string) (*Paper, bool) {
	for _, p := range papers {
		if v, ok := paperField(p, key); ok && MatchID(v, value) {
			return p, true
		}
	}
	return nil, false
}

// PapersByTitle returns every paper with exactly this title.
func PapersByTitle(papers []*Paper, title string) []*Paper {
	var out []*Paper
	for _, p := range papers {
		if p.Title == title {
			out = append(out, p)
		}
	}
	return out
}

// PapersByAttribute returns every paper whose attribute equals value.
func PapersByAttribute(papers []*Paper, name string, value any) []*Paper {
	var out []*Paper
	for _, p := range papers {
		if attrEquals(p.Attributes, name, value) {
			out = append(out, p)
		}
	}
	return out
}

// PapersByCitations returns papers with at least minCitations citations.
func PapersByCitations(papers []*Paper, minCitations int) []*Paper {
	var out []*Paper
	for _, p := range papers {
		if citations(p) >= float64(minCitations) {
			out = append(out, p)
		}
	}
	return out
}

// TrendingPapers returns papers whose citations per day since publication
// reach minPerDay, most cited first. Papers without a parseable publication
// date, or published less than a day before now, are skipped.
func TrendingPapers(papers []*Paper, now time.Time, minPerDay float64) []*Paper {
	var out []*Paper
	for _, p := range papers {
		pub, ok := AttrTime(p.Attributes, AttrPublicationDate)
		if !ok {
			continue
		}
		days := int(now.Sub(pub).Hours() / 24)
		if days <= 0 {
			continue
		}
		if citations(p)/float64(days) >= minPerDay {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return citations(out[i]) > citations(out[j])
	})
	return out
}

// SeminalPapers returns papers at least minAgeYears old whose citation count
// reaches the given percentile (0-100) of the eligible papers.
func SeminalPapers(papers []*Paper, now time.Time, percentile float64, minAgeYears float64) []*Paper {
	type eligible struct {
		paper     *Paper
		citations float64
	}
	var pool []eligible
	for _, p := range papers {
		pub, ok := AttrTime(p.Attributes, AttrPublicationDate)
		if !ok {
			continue
		}
		years := now.Sub(pub).Hours() / 24 / 365.25
		if years >= minAgeYears {
			pool = append(pool, eligible{paper: p, citations: citations(p)})
		}
	}
	if len(pool) == 0 {
		return nil
	}

	values := make([]float64, len(pool))
	for i, e := range pool {
		values[i] = e.citations
	}
	threshold := Percentile(values, percentile)

	var out []*Paper
	for _, e := range pool {
		if e.citations >= threshold {
			out = append(out, e.paper)
		}
	}
	return out
}

// Percentile returns the p-th percentile (0-100) of values using linear
// interpolation between closest ranks.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func citations(p *Paper) float64 {
	v, _ := AttrFloat(p.Attributes, AttrCitationCount)
	return v
}

func attrString(attrs map[string]any, key string) string {
	if f, ok := AttrFloat(attrs, key); ok {
		if _, isString := attrs[key].(string); !isString {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	if s, ok := attrs[key].(string); ok {
		return s
	}
	return fmt.Sprint(attrs[key])
}
