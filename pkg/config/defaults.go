package config

import "time"

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = LogFormatText
)

// Server defaults.
const (
	DefaultServerHost         = "127.0.0.1"
	DefaultServerPort         = 8080
	DefaultServerReadTimeout  = 15 * time.Second
	DefaultServerWriteTimeout = 30 * time.Second
	DefaultServerIdleTimeout  = 60 * time.Second
	DefaultServerMaxBodyBytes = 1 << 20 // 1 MiB.
)

// DefaultCacheSize is the number of compiled documents kept in memory.
const DefaultCacheSize = 256

// Codegen defaults.
const (
	DefaultCodegenPackage  = "portfolio"
	DefaultCodegenTypeName = "Portfolio"
)
