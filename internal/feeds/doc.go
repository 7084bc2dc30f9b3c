// Package feeds binds the alignment engine to concrete data feeds.
//
// Each feed in the Catalogue pairs an alignment.Schema with the way its
// records are queried: the lookback before the calendar's first date,
// feed-specific options that filter source columns, and whether grouped
// results need explicit codes. Align validates every parameter, queries
// the fact source once and hands the records to the engine.
//
// Usage:
//
//	deps := feeds.Deps{Source: source, Lookup: lookup, Logger: logger}
//	result, err := feeds.IBKRBorrowFees(ctx, deps, cal, feeds.Params{})
package feeds
