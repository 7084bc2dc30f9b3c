package alignment

import (
	"context"
	"fmt"
	"sort"
	"time"

	apperrors "pitalign/internal/errors"
)

// TimezoneField is the reference field holding an entity's IANA zone
const TimezoneField = "Timezone"

// ReferenceLookup is the security-reference collaborator.
type ReferenceLookup interface {
	Lookup(ctx context.Context, entities []string, fields []string) (map[string]map[string]string, error)
}

func loadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil || name == "" {
		return nil, apperrors.NewParameterError("unknown timezone '%s'", name)
	}
	return loc, nil
}

// zoneCache loads each distinct zone name once per call.
type zoneCache map[string]*time.Location

func (c zoneCache) load(name string) (*time.Location, error) {
	if loc, ok := c[name]; ok {
		return loc, nil
	}
	loc, err := loadLocation(name)
	if err != nil {
		return nil, err
	}
	c[name] = loc
	return loc, nil
}

// ResolveTimezone picks the single zone used to interpret UTC event stamps:
// the explicit zone, else the calendar's zone, else the one zone all
// entities share according to lookup.
func ResolveTimezone(ctx context.Context, explicit, calendarTZ string, entities []string, lookup ReferenceLookup) (*time.Location, error) {
	if explicit != "" && calendarTZ != "" && explicit != calendarTZ {
		return nil, apperrors.NewParameterError(
			"cannot use timezone %s because reindex_like timezone is %s, these must match", explicit, calendarTZ)
	}
	if explicit != "" {
		return loadLocation(explicit)
	}
	if calendarTZ != "" {
		return loadLocation(calendarTZ)
	}

	zones, missing, err := lookupTimezones(ctx, entities, lookup)
	if err != nil {
		return nil, err
	}

	distinct := make(map[string]struct{})
	for _, z := range zones {
		distinct[z] = struct{}{}
	}
	switch len(distinct) {
	case 0:
		return nil, apperrors.NewMissingTimezoneError("no timezone specified and cannot infer because timezones are missing", missing)
	case 1:
		for name := range distinct {
			return loadLocation(name)
		}
	}
	names := make([]string, 0, len(distinct))
	for name := range distinct {
		names = append(names, name)
	}
	return nil, apperrors.NewAmbiguousTimezoneError(names)
}

// ResolveEntityTimezones returns every entity's own zone; any entity
// without one fails the call.
func ResolveEntityTimezones(ctx context.Context, entities []string, lookup ReferenceLookup, missingMessage string) (map[string]*time.Location, error) {
	zones, missing, err := lookupTimezones(ctx, entities, lookup)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		if missingMessage == "" {
			missingMessage = "timezones are missing for some sids"
		}
		return nil, apperrors.NewMissingTimezoneError(missingMessage, missing)
	}

	cache := make(zoneCache)
	out := make(map[string]*time.Location, len(zones))
	for entity, name := range zones {
		loc, err := cache.load(name)
		if err != nil {
			return nil, err
		}
		out[entity] = loc
	}
	return out, nil
}

func lookupTimezones(ctx context.Context, entities []string, lookup ReferenceLookup) (map[string]string, []string, error) {
	if lookup == nil {
		return nil, nil, apperrors.NewInternalError("no reference lookup configured for timezone resolution", nil)
	}
	ref, err := lookup.Lookup(ctx, entities, []string{TimezoneField})
	if err != nil {
		return nil, nil, fmt.Errorf("lookup entity timezones: %w", err)
	}

	zones := make(map[string]string, len(entities))
	var missing []string
	for _, e := range entities {
		name := ref[e][TimezoneField]
		if name == "" {
			missing = append(missing, e)
			continue
		}
		zones[e] = name
	}
	sort.Strings(missing)
	return zones, missing, nil
}
