package main

import "testing"

const testAnchorURL = "https://www.google.com/recaptcha/api2/anchor?ar=1&k=6LcSITEKEY&co=aHR0cHM6Ly9leGFtcGxlLmNvbTo0NDM.&hl=es&v=pCoGBhjs9s8EhFOHJFe8cqis&size=invisible&cb=ahgcbc2r6a0w"

func TestReloadQueryIsPositional(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"second segment", "https://x.test/p?a=1&b=SITEKEY123&c=3", "b=SITEKEY123"},
		{"anchor url", testAnchorURL, "k=6LcSITEKEY"},
		{"kept raw", "https://x.test/p?a=1&b=a%2Bb", "b=a%2Bb"},
		{"single segment", "https://x.test/p?a=1", ""},
		{"no query", "https://x.test/p", ""},
		{"malformed", "%zz", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseChallengeContext(tt.url).ReloadQuery(); got != tt.want {
				t.Errorf("ReloadQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChallengeContextParams(t *testing.T) {
	c := ParseChallengeContext(testAnchorURL)

	got := map[string]string{
		"k":    c.SiteKey(),
		"size": c.Size(),
		"co":   c.Co(),
		"cb":   c.Callback(),
		"hl":   c.Language(),
		"v":    c.Version(),
	}
	want := map[string]string{
		"k":    "6LcSITEKEY",
		"size": "invisible",
		"co":   "aHR0cHM6Ly9leGFtcGxlLmNvbTo0NDM.",
		"cb":   "ahgcbc2r6a0w",
		"hl":   "es",
		"v":    "pCoGBhjs9s8EhFOHJFe8cqis",
	}
	for key, w := range want {
		if got[key] != w {
			t.Errorf("%s = %q, want %q", key, got[key], w)
		}
	}

	if c.Param("missing") != "" {
		t.Errorf("absent key should resolve to empty string, got %q", c.Param("missing"))
	}
	if c.AnchorQuery() != "ar=1&k=6LcSITEKEY&co=aHR0cHM6Ly9leGFtcGxlLmNvbTo0NDM.&hl=es&v=pCoGBhjs9s8EhFOHJFe8cqis&size=invisible&cb=ahgcbc2r6a0w" {
		t.Errorf("AnchorQuery() = %q", c.AnchorQuery())
	}
}

func TestChallengeContextDecodesValues(t *testing.T) {
	c := ParseChallengeContext("https://x.test/anchor?ar=1&k=a%2Bb&hl=pt%2DBR")
	if c.SiteKey() != "a+b" {
		t.Errorf("SiteKey() = %q, want a+b", c.SiteKey())
	}
	if c.Language() != "pt-BR" {
		t.Errorf("Language() = %q, want pt-BR", c.Language())
	}
}

func TestChallengeContextMalformedURL(t *testing.T) {
	c := ParseChallengeContext("::not a url")
	if c.SiteKey() != "" || c.AnchorQuery() != "" || c.ReloadQuery() != "" {
		t.Errorf("malformed URL should yield empty parameters, got k=%q anchor=%q reload=%q",
			c.SiteKey(), c.AnchorQuery(), c.ReloadQuery())
	}
}

func TestChallengeEndpointURLs(t *testing.T) {
	c := ParseChallengeContext("https://x.test/anchor?ar=1&k=KEY&v=1")

	if got, want := c.AnchorURL(DefaultRecaptchaBaseURL), DefaultRecaptchaBaseURL+"anchor?ar=1&k=KEY&v=1"; got != want {
		t.Errorf("AnchorURL = %q, want %q", got, want)
	}
	if got, want := c.ReloadURL(DefaultRecaptchaBaseURL, false), DefaultRecaptchaBaseURL+"reload?k=KEY"; got != want {
		t.Errorf("ReloadURL positional = %q, want %q", got, want)
	}

	reordered := ParseChallengeContext("https://x.test/anchor?v=1&ar=1&k=KEY")
	if got := reordered.ReloadURL(DefaultRecaptchaBaseURL, false); got != DefaultRecaptchaBaseURL+"reload?ar=1" {
		t.Errorf("positional reload should follow parameter order, got %q", got)
	}
	if got := reordered.ReloadURL(DefaultRecaptchaBaseURL, true); got != DefaultRecaptchaBaseURL+"reload?k=KEY" {
		t.Errorf("keyed reload = %q", got)
	}
}
