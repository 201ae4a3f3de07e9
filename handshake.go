package main

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	http "github.com/bogdanfinn/fhttp"
)

const (
	// anchorTokenID is the id of the hidden input carrying the session token c.
	anchorTokenID = "recaptcha-token"

	// reloadReason is the reason code the widget sends for a programmatic execute.
	reloadReason = "q"

	defaultRequestTimeout = 20 * time.Second
)

var reloadTokenPattern = regexp.MustCompile(`\["rresp","(.*?)"`)

// hiddenValuePattern matches the literal fragment the anchor page renders for
// a hidden input with the given id.
func hiddenValuePattern(id string) *regexp.Regexp {
	return regexp.MustCompile(`type="hidden" id="` + regexp.QuoteMeta(id) + `" value="(.*?)"`)
}

var anchorTokenPattern = hiddenValuePattern(anchorTokenID)

// ExtractAnchorToken returns the recaptcha-token value from an anchor page,
// or "" when the marker is missing.
func ExtractAnchorToken(body string) string {
	return joinCaptures(anchorTokenPattern, body)
}

// ExtractReloadToken returns every ["rresp","..." capture from a reload
// response, concatenated. In practice there is exactly one.
func ExtractReloadToken(body string) string {
	return joinCaptures(reloadTokenPattern, body)
}

func joinCaptures(re *regexp.Regexp, body string) string {
	var sb strings.Builder
	for _, m := range re.FindAllStringSubmatch(body, -1) {
		sb.WriteString(m[1])
	}
	return sb.String()
}

// HandshakeOptions tunes a HandshakeSolver. Zero values pick the defaults.
type HandshakeOptions struct {
	// BaseURL is the endpoint family, with trailing slash.
	BaseURL string
	// KeyedReload addresses reload by k=<siteKey> instead of the positional
	// second query segment.
	KeyedReload bool
	// Timeout bounds each of the two requests.
	Timeout time.Duration
	Profile *BrowserProfile
	Logger  Logger
}

// HandshakeSolver mints a token by replaying the anchor and reload requests
// over one HTTP session.
type HandshakeSolver struct {
	challenge *ChallengeContext
	client    Doer
	opts      HandshakeOptions
}

// NewHandshakeSolver binds a session to the challenge described by anchorURL.
// The session must keep cookies between calls; the reload is only honored
// with the cookies the anchor call set.
func NewHandshakeSolver(client Doer, anchorURL string, opts HandshakeOptions) *HandshakeSolver {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultRecaptchaBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRequestTimeout
	}
	if opts.Profile == nil {
		opts.Profile = DefaultProfile
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	return &HandshakeSolver{
		challenge: ParseChallengeContext(anchorURL),
		client:    client,
		opts:      opts,
	}
}

// Challenge returns the parsed challenge parameters.
func (h *HandshakeSolver) Challenge() *ChallengeContext {
	return h.challenge
}

func (h *HandshakeSolver) anchorURL() string {
	return h.challenge.AnchorURL(h.opts.BaseURL)
}

func (h *HandshakeSolver) reloadURL() string {
	return h.challenge.ReloadURL(h.opts.BaseURL, h.opts.KeyedReload)
}

// GetToken runs anchor then reload and returns the rresp token. Faults are
// returned as *TokenError and never retried here: the anchor token is
// consumed by the reload, so replaying only the failed leg would send a
// stale token.
func (h *HandshakeSolver) GetToken(ctx context.Context) (string, error) {
	anchorBody, err := h.fetchAnchor(ctx)
	if err != nil {
		return "", err
	}

	c := ExtractAnchorToken(anchorBody)
	if c == "" {
		return "", newTokenError(ExtractionFailure, "anchor",
			fmt.Errorf("no %s marker in anchor body: %q", anchorTokenID, previewBody([]byte(anchorBody))))
	}

	reloadBody, err := h.postReload(ctx, c)
	if err != nil {
		return "", err
	}

	token := ExtractReloadToken(reloadBody)
	if token == "" {
		return "", newTokenError(ExtractionFailure, "reload",
			fmt.Errorf("no rresp marker in reload body: %q", previewBody([]byte(reloadBody))))
	}
	return token, nil
}

func (h *HandshakeSolver) fetchAnchor(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.anchorURL(), nil)
	if err != nil {
		return "", newTokenError(TransportFault, "anchor", err)
	}
	req.Header = http.Header{
		"Accept": {"*/*"},
	}

	return h.do(req, "anchor")
}

// reloadForm is the form body of the reload call, in the order the widget sends it.
func (h *HandshakeSolver) reloadForm(c string) string {
	ch := h.challenge
	fields := [][2]string{
		{"v", ch.Version()},
		{"reason", reloadReason},
		{"c", c},
		{"k", ch.SiteKey()},
		{"co", ch.Co()},
		{"size", ch.Size()},
		{"cb", ch.Callback()},
		{"hl", ch.Language()},
	}

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, url.QueryEscape(f[0])+"="+url.QueryEscape(f[1]))
	}
	return strings.Join(parts, "&")
}

func (h *HandshakeSolver) postReload(ctx context.Context, c string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.reloadURL(), strings.NewReader(h.reloadForm(c)))
	if err != nil {
		return "", newTokenError(TransportFault, "reload", err)
	}

	profile := h.opts.Profile
	req.Header = http.Header{
		"Accept":          {"*/*"},
		"Accept-Encoding": {"gzip, deflate, br"},
		"Accept-Language": {profile.AcceptLanguage},
		"Content-Type":    {"application/x-www-form-urlencoded"},
		"User-Agent":      {profile.UserAgent},
		"Pragma":          {"no-cache"},
		"Sec-Fetch-Dest":  {"empty"},
		"Sec-Fetch-Mode":  {"cors"},
		"Sec-Fetch-Site":  {"same-origin"},
		"Referer":         {h.anchorURL()},
		http.HeaderOrderKey: {
			"Content-Length",
			"Accept",
			"Accept-Encoding",
			"Accept-Language",
			"Content-Type",
			"User-Agent",
			"Pragma",
			"Sec-Fetch-Dest",
			"Sec-Fetch-Mode",
			"Sec-Fetch-Site",
			"Referer",
			"Cookie",
		},
		http.PHeaderOrderKey: PseudoHeaderOrder,
	}

	return h.do(req, "reload")
}

// do executes req and logs the request path and response status, the way
// every request in this package is traced.
func (h *HandshakeSolver) do(req *http.Request, op string) (string, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		h.opts.Logger.Log("%s %s -> error: %v", req.Method, req.URL.Path, err)
		return "", newTokenError(TransportFault, op, err)
	}
	defer resp.Body.Close()
	h.opts.Logger.Log("%s %s -> %d", req.Method, req.URL.Path, resp.StatusCode)

	body, err := readResponseBody(resp)
	if err != nil {
		return "", newTokenError(TransportFault, op, fmt.Errorf("read body: %w", err))
	}
	return string(body), nil
}
