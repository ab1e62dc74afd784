package lobby

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cardroom/cardroom/internal/session"
)

// Locale2Printer returns a translation function for the given locale, nil
// when the locale cannot be parsed. Locales arrive in POSIX form ("fr_FR")
// as well as BCP 47 ("fr-FR").
func (l *Lobby) Locale2Printer(locale string) session.TranslateFunc {
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		l.log.Debugf("unparseable locale %q: %v", locale, err)
		return nil
	}

	printer := message.NewPrinter(tag)
	return func(s string) string {
		return printer.Sprintf(message.Key(s, s))
	}
}
