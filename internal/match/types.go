package match

// Strategy labels recorded alongside every resolved match
const (
	StrategyExactBase     = "strategy1_exact_base_match"
	StrategySuffixPrefix  = "strategy2_suffix_match_"
	StrategyConsolidation = "strategy3_consolidation_match"
	StrategyBaseOnly      = "strategy4_base_match_only"
	StrategyPartialBase   = "strategy5_partial_base_match"
	NoMatchFound          = "no_match_found"
)

// Candidate is a possible aggregate GeoID for a group of missing GeoIDs
type Candidate struct {
	GeoID      string // empty when no match was found
	Confidence int    // 0-100
	Strategy   string
}

// Found reports whether the candidate names an aggregate GeoID
func (c Candidate) Found() bool {
	return c.GeoID != ""
}

// NoMatch is the terminal result when every strategy comes up empty
func NoMatch() Candidate {
	return Candidate{Strategy: NoMatchFound}
}

// Group is a sequential run of missing GeoIDs sharing a base prefix and region
type Group struct {
	GeoIDs []string
	Region string
}

// Representative returns the first (lexicographically smallest) member
func (g Group) Representative() string {
	return g.GeoIDs[0]
}

// GroupResult pairs a group with the single match resolved for it
type GroupResult struct {
	Group Group
	Match Candidate
}

// Input is the reconciliation request: the authoritative reference identifiers
// with their region tags, and the identifiers present in the derived aggregate.
type Input struct {
	Regions   map[string]string // reference GeoID -> region tag
	Aggregate []string
}

// Report is the complete outcome of a reconciliation run
type Report struct {
	Missing      []string
	Groups       []GroupResult
	Mappings     map[string]string // missing GeoID -> matched GeoID, "" when unmatched
	Mapped       int
	Unmapped     int
	StrategyHits map[string]int // groups resolved per strategy
}

// MappedPercent returns the share of missing GeoIDs that received a match
func (r *Report) MappedPercent() float64 {
	total := r.Mapped + r.Unmapped
	if total == 0 {
		return 0
	}
	return 100 * float64(r.Mapped) / float64(total)
}
