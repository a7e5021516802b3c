// Package provider implements the AI extraction backends. It supports
// multiple providers behind a single Extractor interface, with ordered
// credential fallback on rate limiting and structured-JSON response
// parsing shared across all of them.
package provider
