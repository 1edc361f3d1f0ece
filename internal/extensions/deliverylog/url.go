package deliverylog

import "net/url"

// redactURL drops credentials and the query string, which commonly carry
// tokens for hosted webhook receivers.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
