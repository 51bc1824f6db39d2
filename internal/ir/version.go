package ir

// Version constants.
const (
	// FactsVersion is the statement-facts schema version.
	FactsVersion = "1"

	// Version is the sluice release version.
	Version = "0.1.0"
)
