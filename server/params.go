package server

import "net/url"

// oauthParams are the query parameters the identity provider appends to the
// redirect URI. They are stripped after handling so the URL can be reused or
// shared without leaking single-use credentials.
var oauthParams = []string{"code", "state", "session_state", "iss", "error", "error_description"}

// IsCallback reports whether rawURL carries authorization-response
// parameters, i.e. whether it should be routed to the callback handler
// instead of the session restore path.
func IsCallback(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	query := parsed.Query()
	return query.Get("code") != "" || query.Get("error") != ""
}

// StripOAuthParams removes the authorization-response parameters from rawURL
// and returns the cleaned URL. Other query parameters are preserved.
func StripOAuthParams(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	for _, param := range oauthParams {
		query.Del(param)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
