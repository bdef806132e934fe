// Package loader registers store drivers via blank imports.
// Import this package to ensure the default store drivers are available.
//
// Usage in main.go:
//
//	import _ "github.com/havenworlds/haven-relay/internal/platform/store/loader"
package loader

import (
	// Register the in-memory store driver
	_ "github.com/havenworlds/haven-relay/internal/platform/store/memory"

	// Register the SQLite store driver
	_ "github.com/havenworlds/haven-relay/internal/platform/store/sqlite"

	// Register the Redis/Valkey store driver
	_ "github.com/havenworlds/haven-relay/internal/platform/store/valkey"
)
