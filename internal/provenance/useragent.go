package provenance

import (
	"strings"

	"github.com/mssola/useragent"

	"whisper/internal/message/models"
)

// ClientSummary reduces a User-Agent header to "<browser> on <os>".
func ClientSummary(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return models.Unknown
	}
	ua := useragent.New(header)
	if ua.Bot() {
		name, _ := ua.Browser()
		if name == "" {
			return "bot"
		}
		return name + " (bot)"
	}

	browser, _ := ua.Browser()
	osName := ua.OSInfo().Name
	switch {
	case browser == "" && osName == "":
		return models.Unknown
	case osName == "":
		return browser
	case browser == "":
		return "unknown browser on " + osName
	default:
		return browser + " on " + osName
	}
}
