package flags

// Centralized definitions for CLI flags used across the application

const (
	// Profile flags select the named connection record from the config file
	Profile      = "profile"
	ProfileShort = "p"

	// Config flags point at a config file other than ~/.config/bucketdeck/config.yaml
	Config = "config"

	// Bucket flags override the bucket of the selected profile
	Bucket      = "bucket"
	BucketShort = "b"

	// Prefix flags are used to filter object listings
	Prefix = "prefix"

	// Filter flags narrow a listing to keys starting with the prefix plus this text
	Filter = "filter"

	// PageSize flags set the number of entries requested per listing page
	PageSize = "page-size"

	// All flags keep fetching pages until the listing is complete
	All      = "all"
	AllShort = "a"

	// Range flags select part of an object as offset:length
	Range = "range"

	// TTL flags set the lifetime of a presigned URL
	TTL = "ttl"

	// Force flags are used to bypass interactive confirmation prompts for destructive operations
	Force      = "force"
	ForceShort = "f"

	// Debug flags are used to enable verbose logging
	Debug      = "debug"
	DebugShort = "d"

	// LogFile flags send logs of the terminal browser to a file instead of discarding them
	LogFile = "log-file"

	// MetricsAddr flags expose Prometheus transfer metrics on the given address
	MetricsAddr = "metrics-addr"

	// Timeout flags bound how long the CLI waits for one operation
	Timeout = "timeout"
)
