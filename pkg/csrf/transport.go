package csrf

import "net/http"

// FromRequest extracts the presented CSRF token from the request, checking
// the hidden form field, then the custom header, then (lowest priority) the
// query parameter. Returns an empty string when no token is present.
func (m *Manager) FromRequest(r *http.Request) string {
	// PostFormValue parses the body once and only consults POST/PUT/PATCH
	// form data, never the query string.
	if v := r.PostFormValue(m.formField); v != "" {
		return v
	}

	if v := r.Header.Get(m.headerName); v != "" {
		return v
	}

	return r.URL.Query().Get(m.queryParam)
}
