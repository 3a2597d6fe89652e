package ddiclient

import "time"

// newSleepTimer is a package-level indirection over time.NewTimer so tests
// can substitute a near-instant timer instead of sleeping for real
// intervals while still exercising the select/ctx-cancellation logic.
var newSleepTimer = time.NewTimer
