package harness

import (
	"regexp"
	"strings"
	"time"
)

var (
	metaRefreshHintRe = regexp.MustCompile(`http-equiv\s*=\s*["']?\s*refresh`)
	handlerAttrRe     = regexp.MustCompile(`\bon(load|error)\s*=`)
)

var asyncHints = []string{
	"settimeout",
	"setinterval",
	"requestanimationframe",
	"promise",
	"async",
	"await",
}

// AutoTimeout picks the observation window for one case. A configured
// window wins; otherwise the payload and the sanitizer output are
// scanned for deferred-execution hints, so the common synchronous case
// stays fast. The rendered sink is not scanned; sink scaffolding such
// as the script wrappers would trip the hints for every case.
func AutoTimeout(payloadHTML, sanitizedHTML string, configured time.Duration) time.Duration {
	if configured > 0 {
		return configured
	}
	blob := strings.ToLower(payloadHTML + "\n" + sanitizedHTML)
	for _, hint := range asyncHints {
		if strings.Contains(blob, hint) {
			return 250 * time.Millisecond
		}
	}
	if metaRefreshHintRe.MatchString(blob) {
		return 400 * time.Millisecond
	}
	if handlerAttrRe.MatchString(blob) {
		return 25 * time.Millisecond
	}
	return 0
}
