// internal/ua/ua.go
//
// User-Agent parsing helpers.
//
// This wrapper isolates the third-party `github.com/avct/uasurfer` API so
// the rest of the codebase never sees its enums or structs.  The audit log
// records the browser, OS, and device class of whoever made each content
// change; nothing else reads the header.
package ua

import (
	"fmt"
	"strconv"
	"strings"

	surfer "github.com/avct/uasurfer"
)

// Info carries the UA attributes written to the audit log.
//
// Example (Chrome on macOS):
//
//	Browser   "Chrome"
//	Version   "125.0.6422"
//	OS        "MacOSX"
//	OSVersion "14.4"
//	Device    "Desktop"
//	Platform  "Mac"
//	IsBot     false
//	Raw       "Mozilla/5.0 (Macintosh;…"
//
// Device will be one of: "Desktop", "Mobile", "Tablet", or "Other".
type Info struct {
	Browser   string
	Version   string
	OS        string
	OSVersion string
	Device    string
	Platform  string
	IsBot     bool
	Raw       string
}

// Parse converts a raw header into an Info struct.  An empty header yields
// Device "Other" and empty names.
func Parse(raw string) Info {
	if raw == "" {
		return Info{Device: "Other"}
	}
	ua := surfer.Parse(raw)

	info := Info{
		Browser:   strings.TrimPrefix(ua.Browser.Name.String(), "Browser"),
		Version:   versionToString(ua.Browser.Version),
		OS:        strings.TrimPrefix(ua.OS.Name.String(), "OS"),
		OSVersion: versionToString(ua.OS.Version),
		Platform:  strings.TrimPrefix(ua.OS.Platform.String(), "Platform"),
		IsBot:     ua.IsBot(),
		Raw:       raw,
	}

	switch ua.DeviceType {
	case surfer.DeviceComputer:
		info.Device = "Desktop"
	case surfer.DeviceTablet:
		info.Device = "Tablet"
	case surfer.DevicePhone, surfer.DeviceWearable:
		info.Device = "Mobile"
	default:
		info.Device = "Other"
	}

	return info
}

// versionToString renders a semantic version in dotted form while trimming
// trailing zeros, e.g. 17.0.0 → "17", 17.3.0 → "17.3", 17.3.1 → "17.3.1".
func versionToString(v surfer.Version) string {
	if v.Major == 0 && v.Minor == 0 && v.Patch == 0 {
		return ""
	}
	if v.Patch != 0 {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
	if v.Minor != 0 {
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return strconv.Itoa(int(v.Major))
}

// String renders a short "Browser Version on OS (Device)" summary for logs.
func (i Info) String() string {
	if i.Browser == "" && i.OS == "" {
		return i.Device
	}
	b := strings.TrimSpace(i.Browser + " " + i.Version)
	return fmt.Sprintf("%s on %s (%s)", b, i.OS, i.Device)
}
