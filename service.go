package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
)

// =============================================================================
// Solver services
// =============================================================================

// ServiceProvider describes a createTask/getTaskResult solver API.
type ServiceProvider struct {
	Name          string
	CreateTaskURL string
	TaskResultURL string
	TaskType      string
	PollInterval  time.Duration
}

var (
	CapSolverProvider = ServiceProvider{
		Name:          "capsolver",
		CreateTaskURL: "https://api.capsolver.com/createTask",
		TaskResultURL: "https://api.capsolver.com/getTaskResult",
		TaskType:      "ReCaptchaV3TaskProxyLess",
		PollInterval:  time.Second,
	}
	CapMonsterProvider = ServiceProvider{
		Name:          "capmonster",
		CreateTaskURL: "https://api.capmonster.cloud/createTask",
		TaskResultURL: "https://api.capmonster.cloud/getTaskResult",
		TaskType:      "RecaptchaV3TaskProxyless",
		PollInterval:  2 * time.Second,
	}
	TwoCaptchaProvider = ServiceProvider{
		Name:          "2captcha",
		CreateTaskURL: "https://api.2captcha.com/createTask",
		TaskResultURL: "https://api.2captcha.com/getTaskResult",
		TaskType:      "RecaptchaV3TaskProxyless",
		PollInterval:  5 * time.Second, // 2captcha recommends 5s polling
	}
)

var fatalCaptchaCodes = []string{
	"ERROR_ZERO_BALANCE",
	"ERROR_KEY_DOES_NOT_EXIST",
	"ERROR_WRONG_USER_KEY",
	"ERROR_WRONG_GOOGLEKEY",
	"ERROR_IP_NOT_ALLOWED",
	"ERROR_IP_BANNED",
}

func isFatalCaptchaError(errorCode string) bool {
	return slices.Contains(fatalCaptchaCodes, errorCode)
}

// ServiceAccount is a provider with the API key to use on it.
type ServiceAccount struct {
	Provider ServiceProvider
	APIKey   string
}

// ServiceChain hands out accounts in priority order. An account that hits a
// fatal provider error (bad key, no balance) is disabled for the rest of the
// run and the next one takes over.
type ServiceChain struct {
	mu       sync.Mutex
	accounts []ServiceAccount
	disabled []bool
}

// NewServiceChain returns a chain over accounts, skipping those without a
// key. An empty chain is a fatal configuration error.
func NewServiceChain(accounts ...ServiceAccount) (*ServiceChain, error) {
	c := &ServiceChain{}
	for _, a := range accounts {
		if a.APIKey != "" {
			c.accounts = append(c.accounts, a)
		}
	}
	if len(c.accounts) == 0 {
		return nil, NewFatalError(errors.New("no captcha providers configured. Set CAPSOLVER_KEY, CAPMONSTER_KEY or 2CAP_KEY"))
	}
	c.disabled = make([]bool, len(c.accounts))
	return c, nil
}

// Active returns the first account still enabled.
func (c *ServiceChain) Active() (ServiceAccount, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, a := range c.accounts {
		if !c.disabled[i] {
			return a, true
		}
	}
	return ServiceAccount{}, false
}

// Disable turns off the named provider and reports whether another account
// is still enabled.
func (c *ServiceChain) Disable(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining := false
	for i, a := range c.accounts {
		if a.Provider.Name == name {
			c.disabled[i] = true
		}
		remaining = remaining || !c.disabled[i]
	}
	return remaining
}

const (
	defaultServiceTimeout        = 120 * time.Second
	defaultServiceRequestTimeout = 30 * time.Second
)

// ServiceOptions configures a ServiceSolver.
type ServiceOptions struct {
	Provider  ServiceProvider
	APIKey    string
	PageURL   string
	SiteKey   string
	Action    string
	MinScore  float64
	UserAgent string
	// Timeout bounds the whole solve, polling included.
	Timeout time.Duration
	Client  *fasthttp.Client
	// Chain, when set, is told about fatal provider errors so later
	// acquisitions move on to the next provider.
	Chain  *ServiceChain
	Logger Logger
}

// ServiceSolver delegates token acquisition to a solver service.
type ServiceSolver struct {
	opts ServiceOptions
}

func NewServiceSolver(opts ServiceOptions) (*ServiceSolver, error) {
	if opts.APIKey == "" {
		return nil, NewFatalError(fmt.Errorf("%s: no API key configured", opts.Provider.Name))
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultServiceTimeout
	}
	if opts.Provider.PollInterval <= 0 {
		opts.Provider.PollInterval = time.Second
	}
	if opts.Client == nil {
		opts.Client = &fasthttp.Client{Name: "recap"}
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	return &ServiceSolver{opts: opts}, nil
}

type serviceResponse struct {
	ErrorId          int             `json:"errorId"`
	ErrorCode        string          `json:"errorCode"`
	ErrorDescription string          `json:"errorDescription"`
	TaskId           json.RawMessage `json:"taskId"` // string on capsolver, number on 2captcha
	Status           string          `json:"status"`
	Solution         map[string]any  `json:"solution"`
}

func (s *ServiceSolver) task() map[string]any {
	task := map[string]any{
		"type":       s.opts.Provider.TaskType,
		"websiteURL": s.opts.PageURL,
		"websiteKey": s.opts.SiteKey,
	}
	if s.opts.Action != "" {
		task["pageAction"] = s.opts.Action
	}
	if s.opts.MinScore > 0 {
		task["minScore"] = s.opts.MinScore
	}
	if s.opts.UserAgent != "" {
		task["userAgent"] = s.opts.UserAgent
	}
	return task
}

// GetToken creates a task and polls it until it is ready.
func (s *ServiceSolver) GetToken(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	res, err := s.post(ctx, s.opts.Provider.CreateTaskURL, map[string]any{
		"clientKey": s.opts.APIKey,
		"task":      s.task(),
	})
	if err != nil {
		return "", err
	}
	if res.ErrorId != 0 {
		return "", s.providerError(res)
	}
	if len(res.TaskId) == 0 {
		return "", newTokenError(ServiceFault, "createTask", errors.New("no task id in response"))
	}
	s.opts.Logger.Log("%s task %s created", s.opts.Provider.Name, string(res.TaskId))

	return s.poll(ctx, res.TaskId)
}

func (s *ServiceSolver) poll(ctx context.Context, taskID json.RawMessage) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", newTokenError(ServiceFault, "getTaskResult", fmt.Errorf("solve timeout: %w", ctx.Err()))
		case <-time.After(s.opts.Provider.PollInterval):
		}

		res, err := s.post(ctx, s.opts.Provider.TaskResultURL, map[string]any{
			"clientKey": s.opts.APIKey,
			"taskId":    taskID,
		})
		if err != nil && expired(ctx) {
			return "", newTokenError(ServiceFault, "getTaskResult", fmt.Errorf("solve timeout: %w", context.DeadlineExceeded))
		}
		if err != nil {
			return "", err
		}
		if res.ErrorId != 0 {
			return "", s.providerError(res)
		}
		if res.Status == "ready" {
			return extractServiceToken(res.Solution)
		}
	}
}

// expired reports whether ctx is done or its deadline has passed, which can
// precede ctx.Err() by a timer tick.
func expired(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	deadline, ok := ctx.Deadline()
	return ok && !time.Now().Before(deadline)
}

func extractServiceToken(solution map[string]any) (string, error) {
	for _, key := range []string{"gRecaptchaResponse", "token"} {
		if token, ok := solution[key].(string); ok && token != "" {
			return token, nil
		}
	}
	return "", newTokenError(ExtractionFailure, "getTaskResult", errors.New("no token in solution"))
}

func (s *ServiceSolver) providerError(res *serviceResponse) error {
	err := newTokenError(ServiceFault, s.opts.Provider.Name,
		fmt.Errorf("%s - %s", res.ErrorCode, res.ErrorDescription))
	if !isFatalCaptchaError(res.ErrorCode) {
		return err
	}
	if s.opts.Chain != nil && s.opts.Chain.Disable(s.opts.Provider.Name) {
		s.opts.Logger.Log("%s disabled after %s, falling back to the next provider", s.opts.Provider.Name, res.ErrorCode)
		return err
	}
	return NewFatalError(err)
}

// post sends payload as JSON and decodes the provider envelope.
func (s *ServiceSolver) post(ctx context.Context, uri string, payload any) (*serviceResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, newTokenError(ServiceFault, uri, err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	timeout := defaultServiceRequestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, newTokenError(ServiceFault, uri, context.DeadlineExceeded)
	}

	if err := s.opts.Client.DoTimeout(req, resp, timeout); err != nil {
		return nil, newTokenError(TransportFault, uri, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, newTokenError(ServiceFault, uri,
			fmt.Errorf("status %d: %s", resp.StatusCode(), previewBody(resp.Body())))
	}

	var out serviceResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, newTokenError(ServiceFault, uri, fmt.Errorf("decode response: %w", err))
	}
	return &out, nil
}
