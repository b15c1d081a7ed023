package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoTarget is returned when no seed domain is given.
	ErrNoTarget = errors.New("no target specified: provide at least one domain")

	// ErrInvalidDomain is returned when a seed cannot be turned into an
	// absolute http or https URL with a host.
	ErrInvalidDomain = errors.New("invalid domain")

	// ErrInvalidWorkers is returned for a negative worker count.
	// Zero is valid and means the crawl runs on the calling goroutine.
	ErrInvalidWorkers = errors.New("invalid workers: must be non-negative")

	// ErrInvalidTimeout is returned when the queue wait timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrUnknownFormat is returned for an output format no writer supports.
	ErrUnknownFormat = errors.New("unknown output format")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConflictingProxy is returned when both --proxy and --tor are set.
	ErrConflictingProxy = errors.New("conflicting proxy settings: --proxy and --tor cannot be used together")

	// ErrOnionRequiresTor is returned when an .onion seed is given without
	// --tor or --proxy.
	ErrOnionRequiresTor = errors.New(".onion targets require --tor or --proxy")

	// ErrInvalidOnionAddress is returned for an .onion seed that is not a
	// valid v3 address.
	ErrInvalidOnionAddress = errors.New("invalid v3 onion address")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
