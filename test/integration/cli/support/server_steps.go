package support

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"
)

func (testCtx *TestContext) theServerIsRunning() error {
	return testCtx.createTestHTTPServer(0)
}

func (testCtx *TestContext) theServerIsRunningWithARateLimitOf(perMinute int) error {
	return testCtx.createTestHTTPServer(perMinute)
}

func (testCtx *TestContext) iGET(endpoint string) error {
	return testCtx.makeHTTPRequest(http.MethodGet, endpoint, "")
}

func (testCtx *TestContext) iPOSTTo(endpoint string, body *godog.DocString) error {
	return testCtx.makeHTTPRequest(http.MethodPost, endpoint, body.Content)
}

// iPOSTTimesTo sends the same body n times and keeps the last response.
func (testCtx *TestContext) iPOSTTimesTo(endpoint string, n int, body *godog.DocString) error {
	for range n {
		if err := testCtx.makeHTTPRequest(http.MethodPost, endpoint, body.Content); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) iMakeAnOPTIONSRequestTo(endpoint string) error {
	return testCtx.makeHTTPRequest(http.MethodOptions, endpoint, "")
}

// theResponseStatusShouldBe verifies the HTTP response status.
func (testCtx *TestContext) theResponseStatusShouldBe(expectedStatus int) error {
	if testCtx.LastHTTPStatusCode != expectedStatus {
		return fmt.Errorf("expected status %d, got %d\nResponse: %s",
			expectedStatus, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeValidJSON() error {
	_, err := parseJSON(testCtx.LastHTTPResponse)
	return err
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain '%s'\nResponse: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseFieldShouldBe(field, expected string) error {
	return fieldShouldBe(testCtx.LastHTTPResponse, field, expected)
}

func (testCtx *TestContext) theResponseFieldShouldBeApproximately(field string, expected float64) error {
	return fieldShouldBeApproximately(testCtx.LastHTTPResponse, field, expected)
}

// accessControlAllowOriginShouldBe verifies the CORS origin header.
func (testCtx *TestContext) accessControlAllowOriginShouldBe(origin string) error {
	got := testCtx.LastHTTPHeaders["Access-Control-Allow-Origin"]
	if got != origin {
		return fmt.Errorf("expected Access-Control-Allow-Origin %q, got %q", origin, got)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBePresent(name string) error {
	if _, ok := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; !ok {
		return fmt.Errorf("header %s missing from response", name)
	}
	return nil
}

// iSendOverTheWebSocket dials /ws/ctc, writes one message and stores the
// reply as the last response.
func (testCtx *TestContext) iSendOverTheWebSocket(body *godog.DocString) error {
	if testCtx.HTTPTestServer == nil {
		return errors.New("server is not running")
	}
	url := "ws" + strings.TrimPrefix(testCtx.GetServerURL(), "http") + "/ws/ctc"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to dial websocket: %w", err)
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(body.Content)); err != nil {
		return fmt.Errorf("failed to write websocket message: %w", err)
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read websocket reply: %w", err)
	}
	testCtx.LastHTTPResponse = string(msg)
	return nil
}

func (testCtx *TestContext) makeHTTPRequest(method, endpoint, body string) error {
	if testCtx.HTTPTestServer == nil {
		return errors.New("server is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, testCtx.GetServerURL()+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(data)
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for key, values := range resp.Header {
		if len(values) > 0 {
			testCtx.LastHTTPHeaders[key] = values[0]
		}
	}
	return nil
}

// RegisterServerSteps registers the server step definitions.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the server is running$`, testCtx.theServerIsRunning)
	sc.Step(`^the server is running with a rate limit of (\d+) requests per minute$`,
		testCtx.theServerIsRunningWithARateLimitOf)

	// Requests
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST to "([^"]*)":$`, testCtx.iPOSTTo)
	sc.Step(`^I POST (\d+) times to "([^"]*)":$`, func(n int, endpoint string, body *godog.DocString) error {
		return testCtx.iPOSTTimesTo(endpoint, n, body)
	})
	sc.Step(`^I make an OPTIONS request to "([^"]*)"$`, testCtx.iMakeAnOPTIONSRequestTo)
	sc.Step(`^I send over the WebSocket:$`, testCtx.iSendOverTheWebSocket)

	// Responses
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should be valid JSON$`, testCtx.theResponseShouldBeValidJSON)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseFieldShouldBe)
	sc.Step(`^the response field "([^"]*)" should be approximately ([-+0-9.eE]+)$`,
		testCtx.theResponseFieldShouldBeApproximately)
	sc.Step(`^Access-Control-Allow-Origin should be "([^"]*)"$`, testCtx.accessControlAllowOriginShouldBe)
	sc.Step(`^the response header "([^"]*)" should be present$`, testCtx.theResponseHeaderShouldBePresent)
}
