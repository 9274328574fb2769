package eventguard

import "github.com/sbnctech/murmurant-eventguard/logger"

// Logger is re-exported so embedders can depend on the root package alone.
type Logger = logger.Logger
