package sanitizer

import (
	"net/url"
	"strings"
)

// NormalizePhotoURL serves every listing photo over https with a lower-case host. Query strings are
// kept since CDNs sign them; fragments are dropped. Unparseable input yields "".
func NormalizePhotoURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}

	u.Scheme = "https"
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	return u.String()
}
