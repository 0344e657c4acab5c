// File: internal/identity/identity.go

// Package identity synthesizes internally consistent synthetic browser
// fingerprints. Anti-bot risk engines score contradictions between signals
// (a Chrome user agent paired with an Apple-only GPU string, a timezone on
// the wrong continent for the reported geolocation) far more heavily than
// they score low entropy, so every derived field here is picked from pools
// keyed to the same underlying profile and never regenerated independently.
package identity

import (
	"fmt"
	"math/rand"
	"time"
)

// Identity is an immutable value object describing one synthetic browser.
// One Identity is forged per login attempt and used for the whole session.
type Identity struct {
	UserAgent      string
	Platform       string // navigator.platform value, e.g. "Win32"
	PlatformFamily string // "Windows" or "macOS"
	BrowserMajor   string

	ScreenWidth    int
	ScreenHeight   int
	ViewportWidth  int
	ViewportHeight int
	PixelRatio     float64

	Locale    string
	Languages []string
	Timezone  string

	Latitude  float64
	Longitude float64
	Accuracy  float64 // meters

	ColorScheme   string // "light" or "dark"
	ReducedMotion string // "no-preference" or "reduce"
	Contrast      string // "no-preference" or "more"

	HardwareConcurrency int
	DeviceMemory        int // GB, as exposed by navigator.deviceMemory

	GPUVendor   string
	GPURenderer string
}

// AcceptLanguage renders the outbound Accept-Language header for the identity.
func (id Identity) AcceptLanguage() string {
	if len(id.Languages) < 2 {
		return id.Locale
	}
	return fmt.Sprintf("%s,%s;q=0.9", id.Languages[0], id.Languages[1])
}

// ClientHints renders the sec-ch-ua* header triple consistent with the
// identity's browser version and platform family.
func (id Identity) ClientHints() (ua, mobile, platform string) {
	ua = fmt.Sprintf(`"Not/A)Brand";v="8", "Chromium";v="%s", "Google Chrome";v="%s"`, id.BrowserMajor, id.BrowserMajor)
	return ua, "?0", fmt.Sprintf("%q", id.PlatformFamily)
}

// gpuPair couples a WebGL vendor string with a renderer string.
type gpuPair struct {
	vendor   string
	renderer string
}

// osProfile binds together every platform-derived signal.
type osProfile struct {
	family   string
	platform string
	uaOS     string // the OS token inside the user-agent string
	gpus     []gpuPair
}

var osProfiles = []osProfile{
	{
		family:   "Windows",
		platform: "Win32",
		uaOS:     "Windows NT 10.0; Win64; x64",
		gpus: []gpuPair{
			{"Google Inc. (NVIDIA)", "ANGLE (NVIDIA, NVIDIA GeForce RTX 3060 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (NVIDIA)", "ANGLE (NVIDIA, NVIDIA GeForce GTX 1650 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (Intel)", "ANGLE (Intel, Intel(R) UHD Graphics 630 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (Intel)", "ANGLE (Intel, Intel(R) Iris(R) Xe Graphics Direct3D11 vs_5_0 ps_5_0, D3D11)"},
			{"Google Inc. (AMD)", "ANGLE (AMD, AMD Radeon RX 6600 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
		},
	},
	{
		family:   "macOS",
		platform: "MacIntel",
		uaOS:     "Macintosh; Intel Mac OS X 10_15_7",
		gpus: []gpuPair{
			{"Google Inc. (Apple)", "ANGLE (Apple, Apple M1, OpenGL 4.1)"},
			{"Google Inc. (Apple)", "ANGLE (Apple, Apple M2, OpenGL 4.1)"},
			{"Google Inc. (Intel)", "ANGLE (Intel, Intel(R) Iris(TM) Plus Graphics 655, OpenGL 4.1)"},
		},
	},
}

// chromeMajors holds recent stable Chrome major versions. Old versions are a
// bot signal of their own, so the pool stays shallow.
var chromeMajors = []string{"124", "125", "126"}

// screenSize pairs a common physical resolution with typical pixel ratios.
type screenSize struct {
	width, height int
	ratios        []float64
}

var screenSizes = []screenSize{
	{1920, 1080, []float64{1.0, 1.25}},
	{1536, 864, []float64{1.25}},
	{1440, 900, []float64{1.0, 2.0}},
	{1680, 1050, []float64{1.0}},
	{2560, 1440, []float64{1.0, 1.5}},
	{1366, 768, []float64{1.0}},
}

// geoCluster is a plausible metro-area coordinate; forged identities land
// within a small jitter of one of these centers, keeping city, timezone and
// locale mutually consistent.
type geoCluster struct {
	lat, lng float64
}

// localeProfile binds locale, languages, timezone and geolocation clusters.
type localeProfile struct {
	locale    string
	languages []string
	timezone  string
	clusters  []geoCluster
}

var localeProfiles = []localeProfile{
	{"en-US", []string{"en-US", "en"}, "America/New_York", []geoCluster{{40.7128, -74.0060}, {40.4406, -79.9959}, {42.3601, -71.0589}}},
	{"en-US", []string{"en-US", "en"}, "America/Chicago", []geoCluster{{41.8781, -87.6298}, {29.7604, -95.3698}, {32.7767, -96.7970}}},
	{"en-US", []string{"en-US", "en"}, "America/Los_Angeles", []geoCluster{{34.0522, -118.2437}, {37.7749, -122.4194}, {47.6062, -122.3321}}},
	{"en-US", []string{"en-US", "en"}, "America/Denver", []geoCluster{{39.7392, -104.9903}, {33.4484, -112.0740}}},
	{"en-GB", []string{"en-GB", "en"}, "Europe/London", []geoCluster{{51.5074, -0.1278}, {53.4808, -2.2426}}},
	{"en-CA", []string{"en-CA", "en"}, "America/Toronto", []geoCluster{{43.6532, -79.3832}, {45.5019, -73.5674}}},
}

var hardwareConcurrencies = []int{4, 8, 8, 12, 16}
var deviceMemories = []int{8, 8, 16, 16, 32}

// GeoJitterDegrees bounds how far a forged coordinate may drift from its
// cluster center.
const GeoJitterDegrees = 0.05

// Forge generates synthetic identities. Safe for sequential reuse; each call
// returns an independent Identity.
type Forge struct {
	rng *rand.Rand
}

// NewForge creates a Forge. A nil rng gets a time-seeded source, which is
// what production uses; tests inject a fixed seed.
func NewForge(rng *rand.Rand) *Forge {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Forge{rng: rng}
}

// Forge synthesizes one coherent identity. It draws every signal from pools
// keyed to a single OS profile and a single locale profile, so the result
// cannot contradict itself. Generation never fails: the pools are static and
// non-empty.
func (f *Forge) Forge() Identity {
	os := osProfiles[f.rng.Intn(len(osProfiles))]
	major := chromeMajors[f.rng.Intn(len(chromeMajors))]
	gpu := os.gpus[f.rng.Intn(len(os.gpus))]

	size := screenSizes[f.rng.Intn(len(screenSizes))]
	ratio := size.ratios[f.rng.Intn(len(size.ratios))]

	loc := localeProfiles[f.rng.Intn(len(localeProfiles))]
	cluster := loc.clusters[f.rng.Intn(len(loc.clusters))]

	id := Identity{
		UserAgent:      fmt.Sprintf("Mozilla/5.0 (%s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s.0.0.0 Safari/537.36", os.uaOS, major),
		Platform:       os.platform,
		PlatformFamily: os.family,
		BrowserMajor:   major,

		ScreenWidth:  size.width,
		ScreenHeight: size.height,
		// Window chrome eats a sliver of width (scrollbar) and a strip of
		// height (tab bar, omnibox, bookmarks). A maximized-but-not-kiosk
		// window is the common case for real users.
		ViewportWidth:  size.width - f.rng.Intn(18),
		ViewportHeight: size.height - 85 - f.rng.Intn(60),
		PixelRatio:     ratio,

		Locale:    loc.locale,
		Languages: loc.languages,
		Timezone:  loc.timezone,

		Latitude:  cluster.lat + (f.rng.Float64()*2-1)*GeoJitterDegrees,
		Longitude: cluster.lng + (f.rng.Float64()*2-1)*GeoJitterDegrees,
		Accuracy:  20 + f.rng.Float64()*80,

		ColorScheme:   pick(f.rng, []string{"light", "light", "light", "dark"}),
		ReducedMotion: pick(f.rng, []string{"no-preference", "no-preference", "no-preference", "reduce"}),
		Contrast:      pick(f.rng, []string{"no-preference", "no-preference", "no-preference", "more"}),

		HardwareConcurrency: hardwareConcurrencies[f.rng.Intn(len(hardwareConcurrencies))],
		DeviceMemory:        deviceMemories[f.rng.Intn(len(deviceMemories))],

		GPUVendor:   gpu.vendor,
		GPURenderer: gpu.renderer,
	}
	return id
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.Intn(len(values))]
}

// Clusters exposes the curated geolocation centers for verification.
func Clusters() []struct{ Lat, Lng float64 } {
	var out []struct{ Lat, Lng float64 }
	for _, lp := range localeProfiles {
		for _, c := range lp.clusters {
			out = append(out, struct{ Lat, Lng float64 }{c.lat, c.lng})
		}
	}
	return out
}
