package client

import (
	"math/rand"
)

// DeviceProfile describes a hardware fingerprint the client can emulate.
type DeviceProfile struct {
	Manufacturer   string
	Device         string
	Model          string
	AndroidVersion int
	AndroidRelease string
	DPI            string
	Resolution     string
	CPU            string
}

// Common device manufacturers and models for fingerprinting
var deviceDatabase = []DeviceProfile{
	{
		Manufacturer:   "OnePlus",
		Device:         "devitron",
		Model:          "6T Dev",
		AndroidVersion: 26,
		AndroidRelease: "8.0.0",
		DPI:            "480dpi",
		Resolution:     "1080x1920",
		CPU:            "qcom",
	},
	{
		Manufacturer:   "samsung",
		Device:         "beyond1",
		Model:          "SM-G973F",
		AndroidVersion: 29,
		AndroidRelease: "10.0",
		DPI:            "560dpi",
		Resolution:     "1440x3040",
		CPU:            "exynos9820",
	},
	{
		Manufacturer:   "Google",
		Device:         "oriole",
		Model:          "Pixel 6",
		AndroidVersion: 31,
		AndroidRelease: "12.0",
		DPI:            "420dpi",
		Resolution:     "1080x2400",
		CPU:            "arm64-v8a",
	},
	{
		Manufacturer:   "Xiaomi",
		Device:         "cmi",
		Model:          "Mi 10 Pro",
		AndroidVersion: 30,
		AndroidRelease: "11.0",
		DPI:            "440dpi",
		Resolution:     "1080x2340",
		CPU:            "qcom",
	},
}

const (
	defaultAppVersion  = "269.0.0.18.75"
	defaultVersionCode = "314665256"
)

// getDefaultDeviceSettings returns default device configuration
func getDefaultDeviceSettings() *DeviceSettings {
	return settingsFromProfile(deviceDatabase[0])
}

// RandomizeDevice swaps the client onto a random known device profile and
// rebuilds the user agent accordingly.
func (c *Client) RandomizeDevice() {
	profile := deviceDatabase[rand.Intn(len(deviceDatabase))]
	c.DeviceSettings = settingsFromProfile(profile)
	c.setUserAgent()
}

func settingsFromProfile(p DeviceProfile) *DeviceSettings {
	return &DeviceSettings{
		AppVersion:     defaultAppVersion,
		AndroidVersion: p.AndroidVersion,
		AndroidRelease: p.AndroidRelease,
		DPI:            p.DPI,
		Resolution:     p.Resolution,
		Manufacturer:   p.Manufacturer,
		Device:         p.Device,
		Model:          p.Model,
		CPU:            p.CPU,
		VersionCode:    defaultVersionCode,
	}
}
