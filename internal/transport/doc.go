// Package transport provides the shared HTTP client used for every page and
// image request of a crawl.
//
// The client stacks three layers on a pooled http.Transport:
//
//	headerTransport  User-Agent, per-host basic auth, cookie and headers
//	retryTransport   global rate limit, per-attempt timeout, bounded retry
//	http.Transport   connection pool, optional SOCKS5 dialer
//
// Failed attempts are retried on network errors and on 429, 500, 502, 503
// and 504 with exponential backoff. A Retry-After header on the response
// takes precedence over the computed backoff. Retries stop as soon as the
// request context is cancelled.
package transport
