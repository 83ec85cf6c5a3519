package client

import (
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIResponse represents a response from Instagram's API
type APIResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
	RawBody   []byte `json:"-"`
}

// APIError represents an Instagram API error
type APIError struct {
	StatusCode int
	Message    string
	ErrorType  string
	Response   *APIResponse
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("Instagram API error: %s (code: %d, type: %s)", e.Message, e.StatusCode, e.ErrorType)
	}
	return fmt.Sprintf("Instagram API error: status code %d", e.StatusCode)
}

// Is matches API errors by error type, so replies built from a live server
// response compare equal to the exported sentinels while still carrying
// their own Response.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return t.ErrorType != "" && t.ErrorType == e.ErrorType
}

// Common Instagram API errors, for errors.Is matching.
var (
	ErrChallengeRequired  = &APIError{Message: "Challenge required", ErrorType: "challenge_required"}
	ErrCheckpointRequired = &APIError{Message: "Checkpoint required", ErrorType: "checkpoint_challenge_required"}
	ErrLoginRequired      = &APIError{Message: "Login required", ErrorType: "login_required"}
	ErrRateLimited        = &APIError{Message: "Rate limited, please wait", ErrorType: "rate_limit"}
)

// baseHeaders returns the base headers for API requests
func (c *Client) baseHeaders() map[string]string {
	headers := map[string]string{
		"User-Agent":                  c.UserAgent,
		"Content-Type":                "application/x-www-form-urlencoded; charset=UTF-8",
		"Accept-Language":             c.Locale,
		"Accept-Encoding":             "gzip, deflate",
		"X-IG-Capabilities":           "3brTvw==",
		"X-IG-Connection-Type":        "WIFI",
		"X-IG-Connection-Speed":       strconv.Itoa(rand.Intn(3000)+1000) + "kbps",
		"X-IG-Bandwidth-Speed-KBPS":   "-1.000",
		"X-IG-Bandwidth-TotalBytes-B": "0",
		"X-IG-Bandwidth-TotalTime-MS": "0",
		"X-IG-App-Locale":             c.Locale,
		"X-IG-Device-Locale":          c.Locale,
		"X-IG-Mapped-Locale":          c.Locale,
		"X-Pigeon-Session-Id":         c.ClientSessionID,
		"X-Pigeon-Rawclienttime":      strconv.FormatFloat(float64(time.Now().UnixNano())/1e9, 'f', 3, 64),
		"X-IG-App-ID":                 IGAppID,
		"X-Bloks-Version-Id":          c.BloksVersioningID,
		"X-Bloks-Is-Layout-RTL":       "false",
		"X-Bloks-Is-Panorama-Enabled": "true",
		"X-FB-HTTP-Engine":            "Liger",
		"X-FB-Client-IP":              "True",
		"X-FB-Server-Cluster":         "True",
		"IG-INTENDED-USER-ID":         strconv.FormatInt(c.UserID(), 10),
		"X-IG-Nav-Chain":              "",
		"X-IG-SALT-IDS":               strconv.FormatInt(rand.Int63(), 10),
		"X-MID":                       c.Mid,
	}

	if c.IgWwwClaim != "" {
		headers["X-IG-WWW-Claim"] = c.IgWwwClaim
	} else {
		headers["X-IG-WWW-Claim"] = "0"
	}

	if c.IgURur != "" {
		headers["IG-U-RUR"] = c.IgURur
	}

	return headers
}

// privateRequest makes an authenticated form-encoded POST to the private API
func (c *Client) privateRequest(ctx context.Context, endpoint string, data map[string]any) (*APIResponse, error) {
	urlStr := c.apiBaseURL + endpoint

	formData := url.Values{}
	for key, value := range data {
		switch v := value.(type) {
		case string:
			formData.Set(key, v)
		case int:
			formData.Set(key, strconv.Itoa(v))
		case int64:
			formData.Set(key, strconv.FormatInt(v, 10))
		case bool:
			if v {
				formData.Set(key, "1")
			} else {
				formData.Set(key, "0")
			}
		default:
			jsonBytes, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal data: %w", err)
			}
			formData.Set(key, string(jsonBytes))
		}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", urlStr, strings.NewReader(formData.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.applyHeaders(req)

	return c.do(req, endpoint)
}

// privateRequestGET makes a GET request with query parameters to the private API
func (c *Client) privateRequestGET(ctx context.Context, endpoint string, params map[string]string) (*APIResponse, error) {
	urlStr := c.apiBaseURL + endpoint

	queryParams := url.Values{}
	for key, value := range params {
		queryParams.Set(key, value)
	}

	if len(queryParams) > 0 {
		urlStr += "?" + queryParams.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.applyHeaders(req)
	req.Header.Del("Content-Type")

	return c.do(req, endpoint)
}

// applyHeaders stamps a request with the session and device context.
func (c *Client) applyHeaders(req *http.Request) {
	for key, value := range c.baseHeaders() {
		req.Header.Set(key, value)
	}

	if len(c.AuthorizationData) > 0 {
		req.Header.Set("Authorization", c.getAuthorizationHeader())
	}

	req.Header.Set("X-CSRFToken", c.CSRFToken())
}

// do executes a prepared request, decompresses and parses the response, and
// folds session state carried in cookies and headers back into the client.
func (c *Client) do(req *http.Request, endpoint string) (*APIResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var bodyReader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		bodyReader = gzReader
	}

	body, err := io.ReadAll(bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.updateCookies(resp.Cookies())
	c.updateFromResponseHeaders(resp.Header)

	apiResp := &APIResponse{
		RawBody: body,
	}
	if err := json.Unmarshal(body, apiResp); err != nil {
		c.log.Debug().Str("endpoint", endpoint).Bytes("body", body).Msg("response is not JSON")
	}

	c.logRequest(req.Method, endpoint, resp.StatusCode, body)

	if resp.StatusCode != http.StatusOK || apiResp.Status == "fail" {
		return apiResp, c.handleAPIError(resp.StatusCode, apiResp)
	}

	return apiResp, nil
}

// logRequest is the structured equivalent of the response-logging hook.
func (c *Client) logRequest(method, endpoint string, status int, body []byte) {
	ev := c.log.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status", status)
	if len(body) > 0 && body[0] == '{' {
		ev = ev.RawJSON("response", body)
	}
	ev.Msg("api request")
}

// getAuthorizationHeader builds the authorization header
func (c *Client) getAuthorizationHeader() string {
	if len(c.AuthorizationData) == 0 {
		return ""
	}

	jsonData, err := json.Marshal(c.AuthorizationData)
	if err != nil {
		return ""
	}

	encoded := base64.StdEncoding.EncodeToString(jsonData)
	return fmt.Sprintf("Bearer IGT:2:%s", encoded)
}

// parseAuthorization parses the authorization header from response
func (c *Client) parseAuthorization(auth string) map[string]any {
	if auth == "" {
		return nil
	}

	parts := strings.Split(auth, ":")
	if len(parts) < 2 {
		return nil
	}

	decoded, err := base64.StdEncoding.DecodeString(parts[len(parts)-1])
	if err != nil {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal(decoded, &result); err != nil {
		return nil
	}

	return result
}

// updateCookies updates stored cookies from response
func (c *Client) updateCookies(cookies []*http.Cookie) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cookie := range cookies {
		c.Cookies[cookie.Name] = cookie.Value

		switch cookie.Name {
		case "csrftoken":
			c.csrfToken = cookie.Value
		case "mid":
			c.Mid = cookie.Value
		case "sessionid":
			c.SessionID = cookie.Value
		}
	}
}

// updateFromResponseHeaders updates client state from response headers
func (c *Client) updateFromResponseHeaders(headers http.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if auth := headers.Get("ig-set-authorization"); auth != "" {
		c.AuthorizationData = c.parseAuthorization(auth)
	}

	if rur := headers.Get("ig-set-ig-u-rur"); rur != "" {
		c.IgURur = rur
	}

	if claim := headers.Get("x-ig-set-www-claim"); claim != "" {
		c.IgWwwClaim = claim
	}
}

// handleAPIError converts API error responses to proper errors. The
// returned error always carries the parsed response; errors.Is matching
// against the exported sentinels goes through APIError.Is.
func (c *Client) handleAPIError(statusCode int, resp *APIResponse) error {
	errorType := resp.ErrorType
	if statusCode == 429 && errorType == "" {
		errorType = "rate_limit"
	}

	return &APIError{
		StatusCode: statusCode,
		Message:    resp.Message,
		ErrorType:  errorType,
		Response:   resp,
	}
}

// withDefaultData adds default data to request
func (c *Client) withDefaultData(data map[string]any) map[string]any {
	result := map[string]any{
		"_uuid":     c.UUID,
		"device_id": c.AndroidDeviceID,
	}
	for k, v := range data {
		result[k] = v
	}
	return result
}

// withExtraData adds extra data including user ID
func (c *Client) withExtraData(data map[string]any) map[string]any {
	result := c.withDefaultData(map[string]any{
		"phone_id": c.PhoneID,
		"_uid":     strconv.FormatInt(c.UserID(), 10),
		"guid":     c.UUID,
	})
	for k, v := range data {
		result[k] = v
	}
	return result
}
