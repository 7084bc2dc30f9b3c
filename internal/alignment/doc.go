// Package alignment reindexes sparse fact records onto a dense target calendar.
//
// Fact feeds (fundamentals, estimates, short-sale availability, index
// membership, sentiment scores) publish values at irregular times. Backtests
// need those values laid out on the trading calendar of a price panel, one
// column per security, carrying each value forward until it changes and never
// revealing a value before it was knowable.
//
// # Pipeline
//
// One generic engine is parameterized by a per-feed Schema:
//
//  1. Timezone resolution: explicit zone, calendar zone, or reference lookup
//  2. Normalization: typed rows, zone conversion, truncation to granularity
//  3. Deduplication: one record per (group, entity, aligned timestamp)
//  4. Daily aggregation (intraday feeds in aggregate mode only)
//  5. Period offset (walk back N report events)
//  6. Panel construction over the unioned timeline
//  7. Forward-fill, shift, max-lag masking
//  8. Trim to the calendar, null conventions, grouping
//
// # Architecture
//
//   - schema.go: Schema and FieldSpec, the per-feed contract
//   - config.go: AlignmentConfig and the IntradayMode variants
//   - calendar.go: calendar validation and civil-time helpers
//   - timezone.go: Timezone Resolver
//   - normalize.go: Record Normalizer
//   - dedup.go: Deduplicator
//   - aggregate.go: intraday to daily Aggregator
//   - panel.go: Panel Builder
//   - fill.go: Forward-Fill & Shift Engine
//   - filter.go: Max-Lag and Period-Offset Filter
//   - assemble.go: Output Assembler
//   - engine.go: orchestration, logging and telemetry
//
// # Time Handling
//
// Every internal timestamp is a civil (wall clock) time stored in UTC. Event
// instants are converted into the resolved zone once, at normalization, and
// the output index is always the caller's original calendar dates. Each
// distinct zone is loaded once per call.
//
// # Usage Example
//
//	engine := alignment.NewEngine(logger)
//	result, err := engine.Align(ctx, alignment.Request{
//	    Schema:   schema,
//	    Calendar: calendar,
//	    Config:   alignment.AlignmentConfig{MaxLag: "23D"},
//	    Records:  records,
//	    Lookup:   lookup,
//	})
//
// Each call is single-threaded and stateless; nothing is cached between calls.
package alignment
