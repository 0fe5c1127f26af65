// Package observability provides structured logging and Prometheus metrics
// for the Dino Games backend.
//
// This package implements:
//   - zap logger construction from LOG_LEVEL / LOG_FORMAT
//   - Request-scoped loggers carrying the chi request ID
//   - Prometheus collectors for token verification, the management
//     credential, Management API calls and request throttling
package observability
