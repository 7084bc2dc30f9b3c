// Package shared holds helpers used across the pitalign packages.
//
// The testutil subpackage provides test fixtures (dates, calendars and
// file-shaped fact records) and a capturing slog handler with assertions
// for checking what a component logged.
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    cal := testutil.Calendar("2018-05-01", 3, "FI12345")
//	    ...
//	    testutil.AssertLogContains(t, logs, slog.LevelInfo, "alignment complete")
//	}
//
// Nothing here may import business packages other than pkg/contracts.
package shared
