package transport

import (
	"net/http"
)

// headerTransport wraps an http.RoundTripper to set the User-Agent and
// per-host credentials, cookie and headers on every request, including
// requests that follow a redirect to another host.
type headerTransport struct {
	base      http.RoundTripper
	userAgent string
	policy    HostPolicy
}

// RoundTrip implements http.RoundTripper.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.userAgent != "" && clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}

	if t.policy != nil {
		host := clone.URL.Host
		site := t.policy.Site(host)
		for k, v := range site.Headers {
			clone.Header.Set(k, v)
		}
		if site.Cookie != "" {
			clone.Header.Set("Cookie", site.Cookie)
		}
		if _, _, ok := clone.BasicAuth(); !ok {
			if user, pass, ok := t.policy.CredentialsFor(host); ok {
				clone.SetBasicAuth(user, pass)
			}
		}
	}

	// Credentials embedded in the URL itself win over configured ones.
	if u := clone.URL.User; u != nil {
		pass, _ := u.Password()
		clone.SetBasicAuth(u.Username(), pass)
	}

	return t.base.RoundTrip(clone)
}

// CloseIdleConnections forwards to the wrapped transport.
func (t *headerTransport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if ci, ok := t.base.(closeIdler); ok {
		ci.CloseIdleConnections()
	}
}
