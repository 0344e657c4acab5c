// File: internal/stealth/profile.go
package stealth

import (
	"fmt"
	"math/rand"
	"time"
)

// Cookie is a first-party cookie to pre-seed into the browsing context.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  time.Time
	Secure   bool
	HTTPOnly bool
}

// Profile is the believable "returning user" state seeded into a fresh
// context before the first navigation. A context with zero cookies and empty
// storage is a first-time visitor, and first-time visitors attempting a
// sign-in are scored as higher risk.
type Profile struct {
	Cookies      []Cookie
	LocalStorage map[string]string
}

// SeedProfile fabricates returning-visitor state for the given site domain
// (e.g. ".google.com"). The timestamps describe a visitor who first came by
// weeks ago and was last active within days.
func SeedProfile(rng *rand.Rand, domain string, now time.Time) Profile {
	firstVisit := now.Add(-time.Duration(20+rng.Intn(70)) * 24 * time.Hour)
	lastVisit := now.Add(-time.Duration(1+rng.Intn(72)) * time.Hour)
	visitCount := 3 + rng.Intn(20)

	consent := fmt.Sprintf("YES+cb.%s-17-p0.en+FX+%03d", firstVisit.Format("20060102"), 100+rng.Intn(800))

	cookies := []Cookie{
		{
			Name:    "CONSENT",
			Value:   consent,
			Domain:  domain,
			Path:    "/",
			Expires: now.Add(365 * 24 * time.Hour),
			Secure:  true,
		},
		{
			Name:     "1P_JAR",
			Value:    now.Format("2006-01-02-15"),
			Domain:   domain,
			Path:     "/",
			Expires:  now.Add(30 * 24 * time.Hour),
			Secure:   true,
			HTTPOnly: false,
		},
		{
			Name:    "_visits",
			Value:   fmt.Sprintf("%d", visitCount),
			Domain:  domain,
			Path:    "/",
			Expires: now.Add(180 * 24 * time.Hour),
		},
	}

	theme := "light"
	if rng.Intn(4) == 0 {
		theme = "dark"
	}

	storage := map[string]string{
		"theme":            theme,
		"first_visit":      fmt.Sprintf("%d", firstVisit.UnixMilli()),
		"last_interaction": fmt.Sprintf("%d", lastVisit.UnixMilli()),
		"visit_count":      fmt.Sprintf("%d", visitCount),
		"cookie_notice":    "dismissed",
	}

	return Profile{Cookies: cookies, LocalStorage: storage}
}
