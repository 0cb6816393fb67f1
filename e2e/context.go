package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
)

// TestContext drives one scenario against an in-process stack and keeps the
// last response plus values remembered between steps.
type TestContext struct {
	server *httptest.Server
	stack  *stack
	status int
	body   []byte
	vars   map[string]string
}

func NewTestContext() *TestContext {
	return &TestContext{vars: map[string]string{}}
}

// Reset starts a fresh stack so scenarios never share state.
func (tc *TestContext) Reset() {
	tc.Close()
	tc.stack = newStack()
	tc.server = httptest.NewServer(tc.stack.handler)
	tc.status = 0
	tc.body = nil
	tc.vars = map[string]string{}
}

func (tc *TestContext) Close() {
	if tc.server != nil {
		tc.server.Close()
		tc.server = nil
	}
}

func (tc *TestContext) POST(path string, body any, headers map[string]string) error {
	var payload io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(b)
	}
	return tc.do(http.MethodPost, path, payload, headers)
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil, nil)
}

func (tc *TestContext) do(method, path string, body io.Reader, headers map[string]string) error {
	req, err := http.NewRequest(method, tc.server.URL+tc.Expand(path), body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := tc.server.Client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.status = resp.StatusCode
	tc.body, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) Status() int { return tc.status }

// SealNotifications counts seal-updated events published for producer.
func (tc *TestContext) SealNotifications(producer string) int {
	return tc.stack.notifications.Count(producer)
}

// Field resolves a dotted path such as "changes.0.reason" in the last JSON
// response.
func (tc *TestContext) Field(path string) (any, error) {
	var cur any
	if err := json.Unmarshal(tc.body, &cur); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w (%s)", err, tc.body)
	}
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q missing in %s", path, tc.body)
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %q", part, path)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %q of %q", part, path)
		}
	}
	return cur, nil
}

func (tc *TestContext) Remember(name, value string) { tc.vars[name] = value }

// Expand replaces {name} with remembered values.
func (tc *TestContext) Expand(s string) string {
	for k, v := range tc.vars {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}
