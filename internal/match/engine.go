package match

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/opendatama/rejtracts/internal/geoid"
	"github.com/opendatama/rejtracts/internal/logging"
)

// Engine resolves groups of missing GeoIDs against an aggregate identifier set
type Engine struct {
	tiers  []Tier
	logger zerolog.Logger
}

// NewEngine creates an engine with the default strategy cascade
func NewEngine(logger zerolog.Logger) *Engine {
	return NewEngineWithTiers(logger, DefaultTiers())
}

// NewEngineWithTiers creates an engine with a custom strategy cascade
func NewEngineWithTiers(logger zerolog.Logger, tiers []Tier) *Engine {
	return &Engine{tiers: tiers, logger: logger}
}

// Resolve runs the cascade for one representative GeoID. The pool should
// already be restricted to the representative's county.
func (e *Engine) Resolve(rep string, pool []string) Candidate {
	for _, tier := range e.tiers {
		var pooled []Candidate
		for _, generate := range tier {
			pooled = append(pooled, generate(rep, pool)...)
		}
		if len(pooled) > 0 {
			return Best(pooled)
		}
	}
	return NoMatch()
}

// Missing returns the reference GeoIDs absent from the aggregate, sorted
func Missing(reference map[string]string, aggregate []string) []string {
	present := make(map[string]struct{}, len(aggregate))
	for _, id := range aggregate {
		present[id] = struct{}{}
	}

	var missing []string
	for id := range reference {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}

// Reconcile finds the reference GeoIDs missing from the aggregate, groups
// them into sequential runs and maps every member of a group to the single
// match resolved for the group's representative.
func (e *Engine) Reconcile(input Input) (*Report, error) {
	defer logging.Timing(e.logger, "reconcile")()

	for _, id := range input.Aggregate {
		if err := geoid.Validate(id); err != nil {
			return nil, err
		}
	}

	missing := Missing(input.Regions, input.Aggregate)
	e.logger.Info().Int("missing", len(missing)).Msg("found missing geoids")

	groups, err := GroupSequential(missing, input.Regions)
	if err != nil {
		return nil, err
	}
	e.logger.Info().
		Int("missing", len(missing)).
		Int("groups", len(groups)).
		Msg("grouped missing geoids")

	byCounty := make(map[string][]string)
	for _, id := range input.Aggregate {
		county := geoid.County(id)
		byCounty[county] = append(byCounty[county], id)
	}
	for county := range byCounty {
		sort.Strings(byCounty[county])
	}

	report := &Report{
		Missing:      missing,
		Mappings:     make(map[string]string, len(missing)),
		StrategyHits: make(map[string]int),
	}

	for i, group := range groups {
		rep := group.Representative()
		result := e.Resolve(rep, byCounty[geoid.County(rep)])

		event := e.logger.Info().
			Int("group", i+1).
			Strs("geoids", group.GeoIDs).
			Str("representative", rep).
			Str("region", group.Region)
		if result.Found() {
			event.Str("match", result.GeoID).
				Int("confidence", result.Confidence).
				Str("strategy", result.Strategy).
				Msg("match found")
			report.StrategyHits[result.Strategy]++
		} else {
			event.Msg("no match found")
		}

		for _, id := range group.GeoIDs {
			report.Mappings[id] = result.GeoID
			if result.Found() {
				report.Mapped++
			} else {
				report.Unmapped++
			}
		}
		report.Groups = append(report.Groups, GroupResult{Group: group, Match: result})
	}

	return report, nil
}
