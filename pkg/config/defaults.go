package config

// Workload defaults.
const (
	DefaultWorkloadOps         = 100_000
	DefaultWorkloadKeySpace    = 10_000
	DefaultWorkloadSeed        = 1
	DefaultWorkloadRemoveRatio = 0.3
	DefaultWorkloadLookupRatio = 0.3
	DefaultWorkloadVerifyEvery = 10_000
)

// DefaultHibernationThreshold is the arena size below which hibernation is skipped.
const DefaultHibernationThreshold = 1000

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = FormatText
)

// Telemetry defaults.
const (
	DefaultServiceName = "ordmap"
	DefaultSampleRatio = 1.0
)

// DefaultOutputFormat is the report format of the CLI.
const DefaultOutputFormat = FormatTable

// Recognised format names.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatTable = "table"
	FormatYAML  = "yaml"
)
