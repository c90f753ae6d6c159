package fetch

import "errors"

// ErrFullIndexUnsupported is returned by FetchAll when a provider has no
// economical bulk-listing endpoint (e.g. npm, PyPI, Crates) and callers
// must fall back to GetPackage/Search for individual lookups.
var ErrFullIndexUnsupported = errors.New("fetch: full index listing not supported by this provider")

// ErrSearchNotConfigured is returned by Search when the resolver has no
// search_url entry configured for the provider.
var ErrSearchNotConfigured = errors.New("fetch: search endpoint not configured for this provider")

// ErrNotSupported is returned by the local-command and git-clone fetchers
// when their binary is missing on the host, and by a local-command fetcher
// for an operation it has no command for.
var ErrNotSupported = errors.New("fetch: operation not supported by this provider")
