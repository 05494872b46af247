package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"proctor/e2e/steps/common"
	"proctor/e2e/steps/correlation"
	jwttoken "proctor/internal/jwt_token"
)

// TestContext carries one scenario's HTTP state against a running server.
type TestContext struct {
	BaseURL    string
	SigningKey string

	client       *http.Client
	accessToken  string
	lastStatus   int
	lastBody     []byte
	lastResponse map[string]any
}

func NewTestContext(baseURL, signingKey string) *TestContext {
	return &TestContext{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		SigningKey: signingKey,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	correlation.RegisterSteps(ctx, tc)
}

// Authenticate mints a token the server's validator accepts.
func (tc *TestContext) Authenticate(subject string, roles []string) error {
	svc := jwttoken.NewJWTService(tc.SigningKey, "proctor", "proctor-admin")
	token, err := svc.GenerateAccessToken(subject, roles, 5*time.Minute)
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}
	tc.accessToken = token
	return nil
}

func (tc *TestContext) ClearAuth() {
	tc.accessToken = ""
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil)
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.do(http.MethodPost, path, body)
}

func (tc *TestContext) do(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.accessToken)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.lastResponse = nil
	_ = json.Unmarshal(tc.lastBody, &tc.lastResponse)
	return nil
}

func (tc *TestContext) GetLastStatusCode() int {
	return tc.lastStatus
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.lastBody
}

// GetResponseField walks a dotted path through the last JSON object.
func (tc *TestContext) GetResponseField(path string) (any, error) {
	var current any = tc.lastResponse
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", path, part)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not found in response: %s", path, tc.lastBody)
		}
	}
	return current, nil
}
