package config

import "time"

// Mining defaults.
const (
	DefaultMiningHorizon = 0 // unlimited ancestry walk
	DefaultFetchWorkers  = 8
	DefaultFetchRetries  = 2
	DefaultFetchBackoff  = 2 * time.Second
	DefaultFetchTimeout  = 60 * time.Second
)

// Scoring weight defaults. Dependency compatibility dominates; recency is a
// small bounded term so a structurally compatible old copy outranks a
// fresher incompatible one.
const (
	DefaultWeightSyntaxValid       = 25
	DefaultWeightSyntaxInvalid     = -40
	DefaultWeightSignatureHit      = 5
	DefaultWeightSignatureMiss     = -8
	DefaultWeightRemoteProvenance  = 15
	DefaultWeightReflogProvenance  = 5
	DefaultWeightOrphanProvenance  = 0
	DefaultWeightCompleteness      = 20
	DefaultWeightRecencyMax        = 10
	DefaultRecencyHalflifeDays     = 30
	DefaultWeightValidationFailure = -50
)

// Session defaults.
const (
	DefaultSessionDir     = ".salvage/sessions"
	DefaultBranchPrefix   = "salvage/recovery"
	DefaultCommitterName  = "salvage"
	DefaultCommitterEmail = "salvage@localhost"
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)
