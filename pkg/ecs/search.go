package ecs

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rotisserie/eris"
)

// SearchParam contains parameters for a runtime search. Components are named by string, so search
// works where the component types aren't known at compile time (debug tooling, consoles).
// We use expr lang for the where clause to filter the entities, please refer to its documentation
// for more details: https://expr-lang.org/docs/getting-started.
type SearchParam struct {
	Find   []string    // List of component names to search for. Must be empty when Match is MatchAll.
	Match  SearchMatch // A match type to use for the search. Defaults to MatchContains.
	Where  string      // Optional expr language string to filter the results.
	Limit  uint32      // Maximum number of results to return (0 = unlimited)
	Offset uint32      // Number of results to skip before returning
}

// SearchMatch is the type of match to use for the search.
type SearchMatch string

const (
	// MatchContains matches entities that contain the specified components, but may have other
	// components as well.
	MatchContains SearchMatch = "contains"
	// MatchExact matches entities that have exactly the specified components.
	MatchExact SearchMatch = "exact"
	// MatchAll matches all entities regardless of components. Find must be empty when using this.
	MatchAll SearchMatch = "all"
)

// Search returns the entities that match the given search parameters. Each result maps "_id" to
// the entity's ID and each component's name to a copy of its value.
func (w *World) Search(params SearchParam) ([]map[string]any, error) {
	filter, err := params.validateAndGetFilter()
	if err != nil {
		return nil, eris.Wrap(err, "invalid search params")
	}

	candidates, err := w.searchCandidates(params)
	if err != nil {
		return nil, err
	}

	limit := params.Limit
	if limit == 0 {
		limit = ^uint32(0)
	}

	results := make([]map[string]any, 0)
	skipped := uint32(0)
	all := w.components.allPools()

	for _, entity := range candidates {
		result, ok := w.buildEntityResult(entity, params, all)
		if !ok {
			continue
		}

		if filter != nil {
			matches, err := matchesFilter(filter, result)
			if err != nil {
				return nil, err
			}
			if !matches {
				continue
			}
		}

		// Apply offset: skip first N matching entities
		if skipped < params.Offset {
			skipped++
			continue
		}

		results = append(results, result)
		if uint32(len(results)) >= limit { //nolint:gosec // Bounded by limit
			break
		}
	}

	return results, nil
}

// validateAndGetFilter validates the search parameters and returns an expr VM program compiled
// from the where clause.
func (s *SearchParam) validateAndGetFilter() (*vm.Program, error) {
	if s.Match == "" {
		s.Match = MatchContains
	}

	if s.Match == MatchAll {
		if len(s.Find) > 0 {
			return nil, eris.New("find must be empty when match is 'all'")
		}
	} else {
		if len(s.Find) == 0 {
			return nil, eris.New("find must not be empty when match is not 'all'")
		}
		if s.Match != MatchExact && s.Match != MatchContains {
			return nil, eris.Errorf("invalid `match` value: must be either '%s' or '%s'", MatchExact, MatchContains)
		}
	}

	// If no expression is provided, return a nil program
	if len(s.Where) == 0 {
		return nil, nil //nolint:nilnil // No filter
	}

	// Compile the expression and check that the return type is boolean.
	filter, err := expr.Compile(s.Where, expr.AsBool())
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse where clause")
	}
	return filter, nil
}

// searchCandidates returns the entities of the smallest pool named in Find, or every live entity
// for MatchAll.
func (w *World) searchCandidates(params SearchParam) ([]Entity, error) {
	if params.Match == MatchAll {
		return w.Entities(), nil
	}

	ids := make([]ComponentID, 0, len(params.Find))
	for _, name := range params.Find {
		id, err := w.components.getID(name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	pools, ok := w.components.resolve(ids)
	if !ok {
		return nil, nil
	}
	return smallest(pools).Entities(), nil
}

// buildEntityResult creates a result map for an entity. Returns false if the entity doesn't match.
func (w *World) buildEntityResult(e Entity, params SearchParam, all []componentPool) (map[string]any, bool) {
	find := make(map[string]struct{}, len(params.Find))
	for _, name := range params.Find {
		find[name] = struct{}{}
	}

	result := make(map[string]any, len(params.Find)+1)
	result["_id"] = e.ID()

	for _, p := range all {
		_, wanted := find[p.Name()]
		component, has := p.Get(e)
		switch {
		case wanted && !has:
			return nil, false
		case !wanted && has && params.Match == MatchExact:
			return nil, false
		case has && (wanted || params.Match == MatchAll):
			result[p.Name()] = component
		}
	}
	return result, true
}

// matchesFilter checks if an entity matches the filter expression.
func matchesFilter(filter *vm.Program, result map[string]any) (bool, error) {
	// Run the filter expression. We set the entity map as the environment for `Run` so the vm
	// program has access to the entity data to filter.
	output, err := expr.Run(filter, result)
	if err != nil {
		return false, eris.Wrap(err, "failed to run filter expression")
	}

	// The expression is compiled without an environment, so expr.AsBool can't check field
	// accesses like health.HP > 200 at compile time.
	isMatchFilter, ok := output.(bool)
	if !ok {
		return false, eris.New("invalid where clause")
	}
	return isMatchFilter, nil
}
