package winappdriver

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Capability names used with WinAppDriver.
const (
	CapApp               = "app"
	CapPlatformName      = "platformName"
	CapDeviceName        = "deviceName"
	CapAppTopLevelWindow = "appTopLevelWindow"
	CapAutomationName    = "automationName"

	// RootApp opens a session on the desktop instead of one application.
	RootApp = "Root"

	appiumPrefix = "appium:"
)

// Capabilities is the desired capability set for a new session.
type Capabilities map[string]interface{}

func baseCapabilities() Capabilities {
	return Capabilities{
		CapPlatformName: "Windows",
		CapDeviceName:   "WindowsPC",
	}
}

// RootCapabilities opens a desktop session used to find top-level windows.
func RootCapabilities() Capabilities {
	caps := baseCapabilities()
	caps[CapApp] = RootApp
	return caps
}

// LaunchCapabilities starts the executable at appPath.
func LaunchCapabilities(appPath string) Capabilities {
	caps := baseCapabilities()
	caps[CapApp] = appPath
	return caps
}

// AttachCapabilities attaches to an existing top-level window. hexHandle is
// the 0x-prefixed value returned by FormatWindowHandle.
func AttachCapabilities(hexHandle string) Capabilities {
	caps := baseCapabilities()
	caps[CapAppTopLevelWindow] = hexHandle
	return caps
}

// WithAppiumPrefix returns a copy for an Appium server: every non-standard
// capability gains the appium: prefix and automationName is set to Windows.
func (c Capabilities) WithAppiumPrefix() Capabilities {
	out := make(Capabilities, len(c)+1)
	for k, v := range c {
		if k == CapPlatformName || strings.Contains(k, ":") {
			out[k] = v
			continue
		}
		out[appiumPrefix+k] = v
	}
	if _, ok := out[appiumPrefix+CapAutomationName]; !ok {
		out[appiumPrefix+CapAutomationName] = "Windows"
	}
	return out
}

// String renders the capabilities in key order for logs.
func (c Capabilities) String() string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, c[k]))
	}
	return strings.Join(parts, " ")
}

// FormatWindowHandle converts a decimal NativeWindowHandle attribute into the
// 0x-prefixed lowercase hex form appTopLevelWindow expects.
func FormatWindowHandle(native string) (string, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(native), 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid NativeWindowHandle %q: %w", native, err)
	}
	if n <= 0 {
		return "", fmt.Errorf("invalid NativeWindowHandle %q", native)
	}
	return "0x" + strconv.FormatInt(n, 16), nil
}
