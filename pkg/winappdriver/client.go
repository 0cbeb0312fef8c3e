// Package winappdriver talks to a WinAppDriver (or Appium Windows driver)
// server over the WebDriver JSON wire protocol.
//
// Both response shapes are accepted: W3C ({"value": {...}}) and the legacy
// JSON wire shape ({"sessionId": "...", "status": 0, "value": ...}) that
// WinAppDriver still emits for most commands.
package winappdriver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/devicelab-dev/shift-runner/pkg/logger"
)

const (
	// W3C WebDriver element identifier key (standard constant)
	w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"
	// LegacyElementKey is the JSON wire element identifier key.
	LegacyElementKey = "ELEMENT"

	defaultHTTPTimeout = 2 * time.Minute
)

// Locator strategies understood by WinAppDriver.
const (
	ByName            = "name"
	ByAccessibilityID = "accessibility id"
	ByXPath           = "xpath"
	ByClassName       = "class name"
	ByID              = "id"
	ByTagName         = "tag name"
)

// Mouse buttons for MouseClick.
const (
	LeftButton  = 0
	RightButton = 2
)

// Client is a single WebDriver session against one server. It is not safe
// for concurrent use; the session manager owns exactly one at a time.
type Client struct {
	serverURL    string
	sessionID    string
	client       *http.Client
	appiumServer bool
}

// NewClient creates a client for the server at serverURL.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: defaultHTTPTimeout, // app launch can take a while
		},
	}
}

// SetAppiumServer switches capability naming to the appium: vendor prefix.
func (c *Client) SetAppiumServer(enabled bool) {
	c.appiumServer = enabled
}

// ServerURL returns the server this client talks to.
func (c *Client) ServerURL() string {
	return c.serverURL
}

// SessionID returns the live session id, or "" when disconnected.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Connect creates a new session with the given capabilities.
func (c *Client) Connect(ctx context.Context, caps Capabilities) error {
	always := caps
	if c.appiumServer {
		always = caps.WithAppiumPrefix()
	}
	body := map[string]interface{}{
		"desiredCapabilities": caps,
		"capabilities": map[string]interface{}{
			"alwaysMatch": always,
		},
	}

	resp, err := c.post(ctx, "/session", body)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	id, _ := resp["sessionId"].(string)
	if id == "" {
		if value, ok := resp["value"].(map[string]interface{}); ok {
			id, _ = value["sessionId"].(string)
		}
	}
	if id == "" {
		return fmt.Errorf("no session ID in response")
	}
	c.sessionID = id
	logger.Debug("session %s created (%s)", id, caps)
	return nil
}

// Disconnect closes the session. Calling it without a session is a no-op.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	_, err := c.delete(ctx, c.sessionPath())
	logger.Debug("session %s deleted", c.sessionID)
	c.sessionID = ""
	return err
}

// Element Operations

// FindElement finds a single element from the session root.
func (c *Client) FindElement(ctx context.Context, using, value string) (string, error) {
	return c.findOne(ctx, c.sessionPath()+"/element", using, value)
}

// FindElements finds all matching elements from the session root.
func (c *Client) FindElements(ctx context.Context, using, value string) ([]string, error) {
	return c.findMany(ctx, c.sessionPath()+"/elements", using, value)
}

// FindChildElement finds a single element below parentID.
func (c *Client) FindChildElement(ctx context.Context, parentID, using, value string) (string, error) {
	return c.findOne(ctx, c.elementPath(parentID)+"/element", using, value)
}

// FindChildElements finds all matching elements below parentID.
func (c *Client) FindChildElements(ctx context.Context, parentID, using, value string) ([]string, error) {
	return c.findMany(ctx, c.elementPath(parentID)+"/elements", using, value)
}

func (c *Client) findOne(ctx context.Context, path, using, value string) (string, error) {
	resp, err := c.post(ctx, path, map[string]interface{}{
		"using": using,
		"value": value,
	})
	if err != nil {
		return "", err
	}

	elemValue, ok := resp["value"].(map[string]interface{})
	if !ok {
		return "", &Error{Kind: KindNoSuchElement, Message: fmt.Sprintf("%s=%q", using, value)}
	}
	id := extractElementID(elemValue)
	if id == "" {
		return "", &Error{Kind: KindNoSuchElement, Message: fmt.Sprintf("%s=%q", using, value)}
	}
	return id, nil
}

func (c *Client) findMany(ctx context.Context, path, using, value string) ([]string, error) {
	resp, err := c.post(ctx, path, map[string]interface{}{
		"using": using,
		"value": value,
	})
	if err != nil {
		return nil, err
	}

	values, ok := resp["value"].([]interface{})
	if !ok {
		return nil, nil
	}

	var ids []string
	for _, v := range values {
		if elem, ok := v.(map[string]interface{}); ok {
			if id := extractElementID(elem); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// Click clicks an element.
func (c *Client) Click(ctx context.Context, elementID string) error {
	_, err := c.post(ctx, c.elementPath(elementID)+"/click", map[string]interface{}{})
	return err
}

// Clear clears an element's text.
func (c *Client) Clear(ctx context.Context, elementID string) error {
	_, err := c.post(ctx, c.elementPath(elementID)+"/clear", map[string]interface{}{})
	return err
}

// SendKeysToElement types text into an element.
func (c *Client) SendKeysToElement(ctx context.Context, elementID, text string) error {
	_, err := c.post(ctx, c.elementPath(elementID)+"/value", map[string]interface{}{
		"text":  text,
		"value": []string{text},
	})
	return err
}

// Text returns an element's text.
func (c *Client) Text(ctx context.Context, elementID string) (string, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/text")
	if err != nil {
		return "", err
	}
	text, _ := resp["value"].(string)
	return text, nil
}

// Attribute returns a UI Automation property such as Name or AriaProperties.
// A null value is returned as "".
func (c *Client) Attribute(ctx context.Context, elementID, name string) (string, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/attribute/"+name)
	if err != nil {
		return "", err
	}
	switch v := resp["value"].(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	case float64:
		// Handles such as 1706796 must not come back in exponent form.
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return fmt.Sprint(v), nil
	}
}

// IsDisplayed checks if an element is visible.
func (c *Client) IsDisplayed(ctx context.Context, elementID string) (bool, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/displayed")
	if err != nil {
		return false, err
	}
	displayed, _ := resp["value"].(bool)
	return displayed, nil
}

// IsEnabled checks if an element is enabled.
func (c *Client) IsEnabled(ctx context.Context, elementID string) (bool, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/enabled")
	if err != nil {
		return false, err
	}
	enabled, _ := resp["value"].(bool)
	return enabled, nil
}

// Pointer and keyboard (legacy JSON wire endpoints WinAppDriver implements)

// MoveTo moves the pointer. With an element id the offset is relative to
// the element's top-left corner; with "" it is relative to the current
// pointer position.
func (c *Client) MoveTo(ctx context.Context, elementID string, xOffset, yOffset int) error {
	body := map[string]interface{}{
		"xoffset": xOffset,
		"yoffset": yOffset,
	}
	if elementID != "" {
		body["element"] = elementID
	}
	_, err := c.post(ctx, c.sessionPath()+"/moveto", body)
	return err
}

// MoveToElement moves the pointer to the centre of an element.
func (c *Client) MoveToElement(ctx context.Context, elementID string) error {
	_, err := c.post(ctx, c.sessionPath()+"/moveto", map[string]interface{}{
		"element": elementID,
	})
	return err
}

// MouseClick clicks at the current pointer position.
func (c *Client) MouseClick(ctx context.Context, button int) error {
	_, err := c.post(ctx, c.sessionPath()+"/click", map[string]interface{}{
		"button": button,
	})
	return err
}

// SendKeys sends keystrokes to the focused window. Use Chord for key
// combinations.
func (c *Client) SendKeys(ctx context.Context, keys ...string) error {
	_, err := c.post(ctx, c.sessionPath()+"/keys", map[string]interface{}{
		"value": keys,
	})
	return err
}

// Window and session

// MaximizeWindow maximizes the session's top-level window.
func (c *Client) MaximizeWindow(ctx context.Context) error {
	_, err := c.post(ctx, c.sessionPath()+"/window/maximize", map[string]interface{}{})
	return err
}

// Screenshot returns a screenshot as PNG bytes.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/screenshot")
	if err != nil {
		return nil, err
	}
	encoded, ok := resp["value"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid screenshot response")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Source returns the UI Automation tree as XML.
func (c *Client) Source(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/source")
	if err != nil {
		return "", err
	}
	source, _ := resp["value"].(string)
	return source, nil
}

// SetImplicitWait sets the implicit element-lookup timeout. Both the W3C
// and legacy body fields are sent.
func (c *Client) SetImplicitWait(ctx context.Context, timeout time.Duration) error {
	ms := timeout.Milliseconds()
	_, err := c.post(ctx, c.sessionPath()+"/timeouts", map[string]interface{}{
		"implicit": ms,
		"type":     "implicit",
		"ms":       ms,
	})
	return err
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

func (c *Client) get(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodPost, path, body)
}

func (c *Client) delete(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodDelete, path, nil)
}

func (c *Client) request(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	url := c.serverURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			if resp.StatusCode >= http.StatusBadRequest {
				return nil, &Error{HTTPStatus: resp.StatusCode, Kind: KindUnknown, Message: strings.TrimSpace(string(respBody))}
			}
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	if werr := responseError(resp.StatusCode, result); werr != nil {
		return result, werr
	}
	return result, nil
}

func extractElementID(value map[string]interface{}) string {
	// W3C format
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	// Legacy format
	if id, ok := value[LegacyElementKey].(string); ok {
		return id
	}
	return ""
}
