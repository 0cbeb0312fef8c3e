// Package wadtest provides an in-process fake WinAppDriver for tests.
//
// The server keeps two element trees: Desktop, seen by sessions opened with
// app=Root, and App, seen by launched or attached sessions. Every request is
// recorded in Events so tests can assert ordering (root closed before attach,
// one live app session, and so on).
//
// Hooks (OnClick, OnSubmit, OnKeys, OnMove) run with the server lock held.
// They may mutate elements directly but must not call Server methods.
package wadtest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
)

const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// Session kinds.
const (
	KindRoot   = "root"
	KindLaunch = "launch"
	KindAttach = "attach"
)

// Element is a node in a fake UI Automation tree. The zero value is visible
// and enabled.
type Element struct {
	ID           string
	Name         string
	AutomationID string
	ClassName    string
	Text         string
	Hidden       bool
	Disabled     bool
	Stale        bool
	Attributes   map[string]string
	Children     []*Element

	// Numbers holds attributes the server reports as JSON numbers, the way
	// WinAppDriver reports NativeWindowHandle on some builds.
	Numbers map[string]float64

	// Faults makes the next n commands on the element fail with an
	// unknown error.
	Faults int

	OnClick  func(e *Element)
	OnSubmit func(e *Element)

	Clicks int
}

// Session is a live fake session.
type Session struct {
	ID       string
	Kind     string
	Target   string // app path or window handle
	Implicit int64
}

// Server is a fake WinAppDriver.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	desktop  []*Element
	app      []*Element
	sessions map[string]*Session
	elements map[string]*Element
	nextID   int

	events   []string
	keys     []string
	pointerX int
	pointerY int
	hovered  *Element
	moves    int
	maxApp   int

	// Session creation failures by kind. Empty means success.
	RootError   string
	LaunchError string
	AttachError string

	OnKeys func(keys string)
	OnMove func(x, y, moves int)
}

// NewServer starts a fake server. Call Close when done.
func NewServer() *Server {
	s := &Server{
		sessions: make(map[string]*Session),
		elements: make(map[string]*Element),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// SetDesktop replaces the tree root sessions see.
func (s *Server) SetDesktop(elems ...*Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.desktop = elems
}

// SetApp replaces the tree app sessions see.
func (s *Server) SetApp(elems ...*Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.app = elems
}

// Update runs fn with the server lock held.
func (s *Server) Update(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Events returns a copy of the request log.
func (s *Server) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

// Keys returns keystrokes sent to the active window.
func (s *Server) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...)
}

// Moves returns how many pointer moves were made.
func (s *Server) Moves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moves
}

// Pointer returns the pointer position relative to where the test started.
func (s *Server) Pointer() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pointerX, s.pointerY
}

// LiveSessions returns the sessions not yet deleted.
func (s *Server) LiveSessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Session
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	return out
}

// MaxLiveAppSessions returns the high-water mark of concurrent app sessions.
func (s *Server) MaxLiveAppSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxApp
}

func (s *Server) record(format string, args ...interface{}) {
	s.events = append(s.events, fmt.Sprintf(format, args...))
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var body map[string]interface{}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) == 0 || parts[0] != "session" {
		writeError(w, http.StatusNotFound, 9, "unknown command", r.URL.Path)
		return
	}
	if len(parts) == 1 && r.Method == http.MethodPost {
		s.createSession(w, body)
		return
	}

	sess := s.sessions[parts[1]]
	if sess == nil {
		writeError(w, http.StatusNotFound, 6, "invalid session id", parts[1])
		return
	}
	rest := parts[2:]

	switch {
	case len(rest) == 0 && r.Method == http.MethodDelete:
		delete(s.sessions, sess.ID)
		s.record("delete %s %s", sess.Kind, sess.ID)
		writeValue(w, sess.ID, nil)

	case len(rest) == 1 && rest[0] == "element":
		s.find(w, sess, s.tree(sess), body, false)
	case len(rest) == 1 && rest[0] == "elements":
		s.find(w, sess, s.tree(sess), body, true)

	case len(rest) >= 3 && rest[0] == "element":
		e := s.elements[rest[1]]
		if e == nil || e.Stale {
			writeError(w, http.StatusNotFound, 10, "stale element reference", rest[1])
			return
		}
		if e.Faults > 0 {
			e.Faults--
			s.record("fault %s", label(e))
			writeError(w, http.StatusInternalServerError, 13, "unknown error", "An unknown error occurred in the remote end")
			return
		}
		s.elementCommand(w, sess, e, rest[2:], body)

	case len(rest) == 1 && rest[0] == "moveto":
		s.moveTo(w, sess, body)
	case len(rest) == 1 && rest[0] == "click":
		s.record("mouseclick")
		if s.hovered != nil {
			s.click(s.hovered)
		}
		writeValue(w, sess.ID, nil)
	case len(rest) == 1 && rest[0] == "keys":
		keys := joinValue(body["value"])
		s.keys = append(s.keys, keys)
		s.record("keys %q", keys)
		if s.OnKeys != nil {
			s.OnKeys(keys)
		}
		writeValue(w, sess.ID, nil)
	case len(rest) == 2 && rest[0] == "window" && rest[1] == "maximize":
		s.record("maximize %s", sess.ID)
		writeValue(w, sess.ID, nil)
	case len(rest) == 1 && rest[0] == "timeouts":
		ms, _ := body["ms"].(float64)
		sess.Implicit = int64(ms)
		s.record("timeouts %s %d", sess.ID, sess.Implicit)
		writeValue(w, sess.ID, nil)
	case len(rest) == 1 && rest[0] == "screenshot":
		writeValue(w, sess.ID, base64.StdEncoding.EncodeToString(tinyPNG()))
	case len(rest) == 1 && rest[0] == "source":
		writeValue(w, sess.ID, s.source(s.tree(sess)))
	default:
		writeError(w, http.StatusNotFound, 9, "unknown command", r.URL.Path)
	}
}

func (s *Server) createSession(w http.ResponseWriter, body map[string]interface{}) {
	caps := capabilities(body)

	sess := &Session{}
	var failure string
	switch {
	case caps["app"] == "Root":
		sess.Kind, failure = KindRoot, s.RootError
		sess.Target = "Root"
	case caps["appTopLevelWindow"] != nil:
		sess.Kind, failure = KindAttach, s.AttachError
		sess.Target = fmt.Sprint(caps["appTopLevelWindow"])
	default:
		sess.Kind, failure = KindLaunch, s.LaunchError
		sess.Target = fmt.Sprint(caps["app"])
	}

	if failure != "" {
		s.record("create-failed %s %s", sess.Kind, sess.Target)
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]interface{}{
			"value": map[string]interface{}{"error": "session not created", "message": failure},
		})
		return
	}

	s.nextID++
	sess.ID = fmt.Sprintf("s%d", s.nextID)
	s.sessions[sess.ID] = sess
	s.record("create %s %s", sess.Kind, sess.Target)

	if sess.Kind != KindRoot {
		live := 0
		for _, other := range s.sessions {
			if other.Kind != KindRoot {
				live++
			}
		}
		if live > s.maxApp {
			s.maxApp = live
		}
	}

	// Legacy JSON wire shape, as WinAppDriver 1.2 answers.
	writeJSON(w, map[string]interface{}{
		"sessionId": sess.ID,
		"status":    0,
		"value":     caps,
	})
}

// capabilities reads desiredCapabilities, falling back to alwaysMatch with
// any appium: prefixes stripped.
func capabilities(body map[string]interface{}) map[string]interface{} {
	if desired, ok := body["desiredCapabilities"].(map[string]interface{}); ok && len(desired) > 0 {
		return desired
	}
	out := map[string]interface{}{}
	if c, ok := body["capabilities"].(map[string]interface{}); ok {
		if always, ok := c["alwaysMatch"].(map[string]interface{}); ok {
			for k, v := range always {
				out[strings.TrimPrefix(k, "appium:")] = v
			}
		}
	}
	return out
}

func (s *Server) tree(sess *Session) []*Element {
	if sess.Kind == KindRoot {
		return s.desktop
	}
	return s.app
}

func (s *Server) find(w http.ResponseWriter, sess *Session, roots []*Element, body map[string]interface{}, many bool) {
	using, _ := body["using"].(string)
	value, _ := body["value"].(string)

	matches := s.match(roots, using, value)
	s.record("find %s %s=%s -> %d", sess.ID, using, value, len(matches))

	if many {
		list := make([]interface{}, 0, len(matches))
		for _, e := range matches {
			list = append(list, s.ref(e))
		}
		writeValue(w, sess.ID, list)
		return
	}
	if len(matches) == 0 {
		writeError(w, http.StatusNotFound, 7, "no such element",
			"An element could not be located on the page using the given search parameters.")
		return
	}
	writeValue(w, sess.ID, s.ref(matches[0]))
}

func (s *Server) ref(e *Element) map[string]interface{} {
	if e.ID == "" {
		s.nextID++
		e.ID = fmt.Sprintf("el%d", s.nextID)
	}
	s.elements[e.ID] = e
	return map[string]interface{}{w3cElementKey: e.ID, "ELEMENT": e.ID}
}

func (s *Server) elementCommand(w http.ResponseWriter, sess *Session, e *Element, cmd []string, body map[string]interface{}) {
	switch {
	case cmd[0] == "element":
		s.find(w, sess, e.Children, body, false)
	case cmd[0] == "elements":
		s.find(w, sess, e.Children, body, true)
	case cmd[0] == "click":
		if e.Hidden || e.Disabled {
			writeError(w, http.StatusBadRequest, 11, "element not interactable", e.Name)
			return
		}
		s.click(e)
		writeValue(w, sess.ID, nil)
	case cmd[0] == "clear":
		e.Text = ""
		s.record("clear %s", label(e))
		writeValue(w, sess.ID, nil)
	case cmd[0] == "value":
		text := joinValue(body["value"])
		if text == "" {
			text, _ = body["text"].(string)
		}
		submit := strings.Contains(text, "\ue007")
		e.Text += strings.ReplaceAll(text, "\ue007", "")
		s.record("type %s %q", label(e), text)
		if submit && e.OnSubmit != nil {
			e.OnSubmit(e)
		}
		writeValue(w, sess.ID, nil)
	case cmd[0] == "text":
		writeValue(w, sess.ID, e.Text)
	case cmd[0] == "attribute" && len(cmd) == 2:
		if n, ok := e.Numbers[cmd[1]]; ok {
			writeValue(w, sess.ID, n)
			return
		}
		writeValue(w, sess.ID, attribute(e, cmd[1]))
	case cmd[0] == "displayed":
		writeValue(w, sess.ID, !e.Hidden)
	case cmd[0] == "enabled":
		writeValue(w, sess.ID, !e.Disabled)
	default:
		writeError(w, http.StatusNotFound, 9, "unknown command", strings.Join(cmd, "/"))
	}
}

func (s *Server) click(e *Element) {
	e.Clicks++
	s.record("click %s", label(e))
	if e.OnClick != nil {
		e.OnClick(e)
	}
}

func (s *Server) moveTo(w http.ResponseWriter, sess *Session, body map[string]interface{}) {
	s.moves++
	if id, ok := body["element"].(string); ok && id != "" {
		e := s.elements[id]
		if e == nil || e.Stale {
			writeError(w, http.StatusNotFound, 10, "stale element reference", id)
			return
		}
		s.hovered = e
		s.record("moveto %s", label(e))
	} else {
		dx, _ := body["xoffset"].(float64)
		dy, _ := body["yoffset"].(float64)
		s.pointerX += int(dx)
		s.pointerY += int(dy)
		s.hovered = nil
		s.record("moveto %+d,%+d", int(dx), int(dy))
	}
	if s.OnMove != nil {
		s.OnMove(s.pointerX, s.pointerY, s.moves)
	}
	writeValue(w, sess.ID, nil)
}

func (s *Server) source(roots []*Element) string {
	var b strings.Builder
	var walk func(es []*Element)
	walk = func(es []*Element) {
		for _, e := range es {
			fmt.Fprintf(&b, "<Element Name=%q AutomationId=%q>", e.Name, e.AutomationID)
			walk(e.Children)
			b.WriteString("</Element>")
		}
	}
	b.WriteString("<Root>")
	walk(roots)
	b.WriteString("</Root>")
	return b.String()
}

// match walks the tree depth-first and returns every element the locator
// selects.
func (s *Server) match(roots []*Element, using, value string) []*Element {
	pred := predicate(using, value)
	var out []*Element
	var walk func(es []*Element)
	walk = func(es []*Element) {
		for _, e := range es {
			if pred(e) {
				out = append(out, e)
			}
			walk(e.Children)
		}
	}
	walk(roots)
	return out
}

var xpathRe = regexp.MustCompile(`^\.?//\*(?:\[(?:(contains|starts-with)\(@(\w+),\s*'([^']*)'\)|@(\w+)\s*=\s*'([^']*)')\])?$`)

func predicate(using, value string) func(*Element) bool {
	switch using {
	case "name":
		return func(e *Element) bool { return e.Name == value }
	case "accessibility id", "id":
		return func(e *Element) bool { return e.AutomationID == value }
	case "class name":
		return func(e *Element) bool { return e.ClassName == value }
	case "xpath":
		m := xpathRe.FindStringSubmatch(value)
		if m == nil {
			return func(*Element) bool { return false }
		}
		switch {
		case m[1] == "contains":
			return func(e *Element) bool { return strings.Contains(attribute(e, m[2]), m[3]) }
		case m[1] == "starts-with":
			return func(e *Element) bool { return strings.HasPrefix(attribute(e, m[2]), m[3]) }
		case m[4] != "":
			return func(e *Element) bool { return attribute(e, m[4]) == m[5] }
		default:
			return func(*Element) bool { return true }
		}
	}
	return func(*Element) bool { return false }
}

func attribute(e *Element, name string) string {
	switch name {
	case "Name":
		return e.Name
	case "AutomationId":
		return e.AutomationID
	case "ClassName":
		return e.ClassName
	}
	return e.Attributes[name]
}

func label(e *Element) string {
	if e.Name != "" {
		return e.Name
	}
	if e.AutomationID != "" {
		return "#" + e.AutomationID
	}
	return e.ID
}

func joinValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []interface{}:
		var b strings.Builder
		for _, part := range t {
			b.WriteString(fmt.Sprint(part))
		}
		return b.String()
	}
	return ""
}

func writeValue(w http.ResponseWriter, sessionID string, value interface{}) {
	writeJSON(w, map[string]interface{}{
		"sessionId": sessionID,
		"status":    0,
		"value":     value,
	})
}

func writeError(w http.ResponseWriter, httpStatus, status int, kind, message string) {
	w.WriteHeader(httpStatus)
	writeJSON(w, map[string]interface{}{
		"status": status,
		"value":  map[string]interface{}{"error": kind, "message": message},
	})
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

var (
	pngOnce sync.Once
	pngData []byte
)

func tinyPNG() []byte {
	pngOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, 4, 4))
		for x := 0; x < 4; x++ {
			for y := 0; y < 4; y++ {
				img.Set(x, y, color.RGBA{R: 0x20, G: 0x40, B: 0x80, A: 0xff})
			}
		}
		var buf bytes.Buffer
		_ = png.Encode(&buf, img)
		pngData = buf.Bytes()
	})
	return pngData
}
