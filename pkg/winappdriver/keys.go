package winappdriver

import "strings"

// WebDriver key codes from the Unicode private use area.
const (
	KeyNull      = "\ue000"
	KeyBackspace = "\ue003"
	KeyTab       = "\ue004"
	KeyEnter     = "\ue007"
	KeyShift     = "\ue008"
	KeyControl   = "\ue009"
	KeyAlt       = "\ue00a"
	KeyEscape    = "\ue00c"
	KeyDelete    = "\ue017"
)

// Chord presses the keys together. Modifiers stay down until the trailing
// KeyNull releases them.
func Chord(keys ...string) string {
	return strings.Join(keys, "") + KeyNull
}
