package browser

import (
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Consent button selectors for the common consent management platforms.
// Retailer pages in the EU frequently hide the product behind these.
var consentSelectors = []string{
	// OneTrust
	`button#onetrust-accept-btn-handler`,
	`button[id*="onetrust-accept"]`,
	// Cookiebot
	`button#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll`,
	`button#CybotCookiebotDialogBodyButtonAccept`,
	// Didomi
	`button#didomi-notice-agree-button`,
	// TrustArc
	`#truste-consent-button`,
	// Generic patterns
	`button[data-testid="cookie-accept"]`,
	`button[aria-label*="Accept"]`,
	`button.cookie-accept`,
	`button.accept-cookies`,
	`button#accept-cookies`,
	`div[class*="consent"] button[class*="accept"]`,
}

const consentClickTimeout = 2 * time.Second

// dismissConsent clicks the first visible consent button it can find.
// Returns true if a banner was dismissed. Failures are fine; the page
// content is usually still extractable behind an undismissed overlay.
func dismissConsent(page *rod.Page, logger *slog.Logger) bool {
	time.Sleep(500 * time.Millisecond)

	for _, selector := range consentSelectors {
		elem, err := page.Timeout(consentClickTimeout).Element(selector)
		if err != nil {
			continue
		}
		visible, err := elem.Visible()
		if err != nil || !visible {
			continue
		}
		if err := elem.Click(proto.InputMouseButtonLeft, 1); err != nil {
			logger.Debug("failed to click consent button", "selector", selector, "error", err)
			continue
		}
		logger.Debug("dismissed consent banner", "selector", selector)
		time.Sleep(300 * time.Millisecond)
		return true
	}
	return false
}
