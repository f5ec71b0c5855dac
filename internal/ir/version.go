package ir

// Version constants recorded with every run.
const (
	// SchemaVersion is the version of the pipeline definition format.
	SchemaVersion = "1"

	// EngineVersion is the pscs engine version.
	EngineVersion = "0.3.0"
)
