package main

import (
	"net/url"
	"strings"
)

// DefaultRecaptchaBaseURL is the api2 endpoint family the anchor and reload
// requests are addressed to.
const DefaultRecaptchaBaseURL = "https://www.google.com/recaptcha/api2/"

// reloadSegmentIndex is the position of the reload parameter in the anchor
// query string. Anchor URLs issued by the widget carry ar=1 first and k=<key>
// second, so index 1 lands on the site key.
const reloadSegmentIndex = 1

// ChallengeContext holds the protocol parameters of one challenge, copied
// verbatim from the anchor URL. It is never modified after parsing.
type ChallengeContext struct {
	rawURL      string
	anchorQuery string
	reloadQuery string
	params      url.Values
}

// ParseChallengeContext derives a ChallengeContext from an anchor URL.
// Malformed input yields empty parameters rather than an error; the handshake
// requests fail on their own with a more useful message.
func ParseChallengeContext(rawURL string) *ChallengeContext {
	c := &ChallengeContext{rawURL: rawURL, params: url.Values{}}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return c
	}

	c.anchorQuery = parsed.RawQuery
	if segments := strings.Split(parsed.RawQuery, "&"); len(segments) > reloadSegmentIndex {
		c.reloadQuery = segments[reloadSegmentIndex]
	}

	// ParseQuery returns what it could decode alongside the first error.
	c.params, _ = url.ParseQuery(parsed.RawQuery)
	if c.params == nil {
		c.params = url.Values{}
	}
	return c
}

// URL returns the URL the context was parsed from.
func (c *ChallengeContext) URL() string { return c.rawURL }

// Param returns the decoded value of key, or "" when absent.
func (c *ChallengeContext) Param(key string) string { return c.params.Get(key) }

func (c *ChallengeContext) SiteKey() string  { return c.Param("k") }
func (c *ChallengeContext) Size() string     { return c.Param("size") }
func (c *ChallengeContext) Co() string       { return c.Param("co") }
func (c *ChallengeContext) Callback() string { return c.Param("cb") }
func (c *ChallengeContext) Language() string { return c.Param("hl") }
func (c *ChallengeContext) Version() string  { return c.Param("v") }

// AnchorQuery is the full raw query string of the anchor URL.
func (c *ChallengeContext) AnchorQuery() string { return c.anchorQuery }

// ReloadQuery returns the second &-separated segment of the anchor query,
// untouched. The reload endpoint is addressed positionally: if the provider
// ever reorders the anchor parameters this stops pointing at k=, and
// KeyedReloadQuery should be used instead.
func (c *ChallengeContext) ReloadQuery() string { return c.reloadQuery }

// KeyedReloadQuery addresses the reload endpoint by site key name.
func (c *ChallengeContext) KeyedReloadQuery() string {
	return "k=" + url.QueryEscape(c.SiteKey())
}

// AnchorURL builds the anchor endpoint URL under base.
func (c *ChallengeContext) AnchorURL(base string) string {
	return base + "anchor?" + c.anchorQuery
}

// ReloadURL builds the reload endpoint URL under base.
func (c *ChallengeContext) ReloadURL(base string, keyed bool) string {
	if keyed {
		return base + "reload?" + c.KeyedReloadQuery()
	}
	return base + "reload?" + c.reloadQuery
}
