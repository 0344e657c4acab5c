// File: internal/browser/builder.go
package browser

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/socialgenius/loginforge/internal/identity"
	"github.com/socialgenius/loginforge/internal/stealth"
)

// seedDomain is the site whose first-party state gets pre-populated to
// resemble a returning visitor.
const seedDomain = ".google.com"

// Builder constructs identity-bearing sessions from the shared engine.
// Safe for concurrent use.
type Builder struct {
	engine *Engine
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBuilder creates a Builder. A nil rng gets a time-seeded source.
func NewBuilder(engine *Engine, logger *zap.Logger, rng *rand.Rand) *Builder {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Builder{
		engine: engine,
		logger: logger.Named("session_builder"),
		rng:    rng,
	}
}

// Build opens an isolated browsing context configured end to end for the
// identity: device metrics, locale, timezone, geolocation, outbound
// headers, the fingerprint evasion script, and seeded returning-visitor
// cookies and storage. The caller owns the session and must Close it on
// every exit path.
func (b *Builder) Build(ctx context.Context, id identity.Identity) (*Session, error) {
	b.mu.Lock()
	noiseSeed := b.rng.Uint32()
	profile := stealth.SeedProfile(b.rng, seedDomain, time.Now())
	b.mu.Unlock()

	script, err := stealth.Script(id, noiseSeed)
	if err != nil {
		return nil, fmt.Errorf("browser: failed to render evasion script: %w", err)
	}
	storageScript, err := storageSeedScript(profile)
	if err != nil {
		return nil, fmt.Errorf("browser: failed to render storage seed script: %w", err)
	}

	tabCtx, cancel := chromedp.NewContext(b.engine.allocator())
	s := &Session{
		ctx:    tabCtx,
		cancel: cancel,
		logger: b.logger.Named("session"),
		id:     id,
	}
	s.trackNetwork()

	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetDeviceMetricsOverride(int64(id.ViewportWidth), int64(id.ViewportHeight), id.PixelRatio, false),
		emulation.SetUserAgentOverride(id.UserAgent).
			WithAcceptLanguage(id.AcceptLanguage()).
			WithPlatform(id.Platform),
		emulation.SetLocaleOverride().WithLocale(id.Locale),
		emulation.SetTimezoneOverride(id.Timezone),
		emulation.SetGeolocationOverride().
			WithLatitude(id.Latitude).
			WithLongitude(id.Longitude).
			WithAccuracy(id.Accuracy),
		cdpbrowser.GrantPermissions([]cdpbrowser.PermissionType{cdpbrowser.PermissionTypeGeolocation}),
		network.SetExtraHTTPHeaders(network.Headers(stealth.Headers(id))),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
				return fmt.Errorf("evasion script injection: %w", err)
			}
			if _, err := page.AddScriptToEvaluateOnNewDocument(storageScript).Do(ctx); err != nil {
				return fmt.Errorf("storage seed injection: %w", err)
			}
			return nil
		}),
		seedCookies(profile.Cookies),
	}

	if err := chromedp.Run(tabCtx, tasks); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: failed to configure session context: %w", err)
	}

	b.logger.Info("Session built",
		zap.String("platform", id.PlatformFamily),
		zap.String("locale", id.Locale),
		zap.String("timezone", id.Timezone),
		zap.Int("viewport_width", id.ViewportWidth),
		zap.Int("viewport_height", id.ViewportHeight))
	return s, nil
}

// seedCookies installs the returning-visitor cookies into the context.
func seedCookies(cookies []stealth.Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			expires := cdp.TimeSinceEpoch(c.Expires)
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				WithExpires(&expires).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("seeding cookie %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

// storageSeedScript renders a page-load script that populates first-party
// localStorage on the seed domain without clobbering values the site
// writes itself.
func storageSeedScript(profile stealth.Profile) (string, error) {
	entries, err := json.Marshal(profile.LocalStorage)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(() => {
	if (!location.hostname.endsWith('google.com')) return;
	const seed = %s;
	try {
		for (const k of Object.keys(seed)) {
			if (localStorage.getItem(k) === null) localStorage.setItem(k, seed[k]);
		}
	} catch (e) {}
})();`, entries), nil
}
