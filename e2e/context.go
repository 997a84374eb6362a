// Package e2e drives the heritage HTTP API through Gherkin scenarios. Each
// scenario gets a fresh in-process server over the embedded seed roster.
package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	familyhandler "heritage/internal/family/handler"
	familyservice "heritage/internal/family/service"
	jwttoken "heritage/internal/jwt_token"
	memberhandler "heritage/internal/member/handler"
	memberservice "heritage/internal/member/service"
	"heritage/internal/member/store/persistent"
	"heritage/internal/member/store/seed"
	"heritage/internal/platform/metrics"
	ratelimit "heritage/internal/ratelimit/middleware"
	"heritage/internal/ratelimit/models"
	"heritage/internal/ratelimit/store/bucket"
	httptransport "heritage/internal/transport/http"
)

const (
	signingKey = "e2e-signing-key"
	issuer     = "heritage"
	audience   = "heritage-web"

	// WriteLimit is the per-principal update budget scenarios run with.
	WriteLimit = 3
)

// TestContext holds the server and the last exchange of one scenario.
type TestContext struct {
	server *httptest.Server
	tokens *jwttoken.JWTService
	token  string

	lastStatus int
	lastBody   []byte
	lastHeader http.Header
}

func NewTestContext() *TestContext {
	return &TestContext{tokens: jwttoken.NewJWTService(signingKey, issuer, audience)}
}

// Start boots a server with empty persistent state.
func (tc *TestContext) Start() error {
	seeds, err := seed.Default()
	if err != nil {
		return err
	}
	logger := slog.New(slog.DiscardHandler)
	members := memberservice.New(persistent.NewInMemory(), seeds, memberservice.WithLogger(logger))
	family := familyservice.New(members, familyservice.WithLogger(logger))
	limiter := ratelimit.New(bucket.New(), models.Limit{Requests: WriteLimit, Window: time.Minute}, logger)
	validator := jwttoken.NewJWTServiceAdapter(tc.tokens)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:  logger,
		Metrics: metrics.New(),
		Handlers: []httptransport.Registrar{
			memberhandler.New(members, validator, logger,
				memberhandler.WithWriteLimit(limiter.Limit(memberhandler.WriteAction)),
			),
			familyhandler.New(family, logger),
		},
	})
	tc.server = httptest.NewServer(router)
	tc.token = ""
	tc.lastStatus, tc.lastBody, tc.lastHeader = 0, nil, nil
	return nil
}

func (tc *TestContext) Close() {
	if tc.server != nil {
		tc.server.Close()
		tc.server = nil
	}
}

// SignIn makes later requests carry a token for sub.
func (tc *TestContext) SignIn(sub jwttoken.Subject) error {
	token, err := tc.tokens.GenerateAccessToken(sub, time.Hour)
	if err != nil {
		return err
	}
	tc.token = token
	return nil
}

// UseRawToken sends token verbatim, valid or not.
func (tc *TestContext) UseRawToken(token string) {
	tc.token = token
}

func (tc *TestContext) SignOut() {
	tc.token = ""
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil)
}

func (tc *TestContext) PATCH(path, body string) error {
	return tc.do(http.MethodPatch, path, strings.NewReader(body))
}

func (tc *TestContext) do(method, path string, body io.Reader) error {
	req, err := http.NewRequest(method, tc.server.URL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}
	resp, err := tc.server.Client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.lastStatus = resp.StatusCode
	tc.lastHeader = resp.Header
	return nil
}

func (tc *TestContext) GetLastResponseStatus() int {
	return tc.lastStatus
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.lastBody
}

func (tc *TestContext) GetLastResponseHeader(name string) string {
	return tc.lastHeader.Get(name)
}

// GetResponseField walks a dotted path through the last JSON body. Numeric
// segments index arrays.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var v any
	if err := json.Unmarshal(tc.lastBody, &v); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	for _, part := range strings.Split(field, ".") {
		switch node := v.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in response", field)
			}
			v = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %q", part, field)
			}
			v = node[i]
		default:
			return nil, fmt.Errorf("field %q not found in response", field)
		}
	}
	return v, nil
}
