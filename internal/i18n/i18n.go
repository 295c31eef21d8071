// Package i18n serves the interface strings for the dashboard in English and
// German. Bundles live in code; a missing key falls back to English so a
// half-translated language never renders blank labels.
package i18n

import "strings"

// Lang identifies a supported interface language.
type Lang string

const (
	English Lang = "en"
	German  Lang = "de"
)

// Default is the fallback language for unknown codes and missing keys.
const Default = English

// Bundle maps message keys to translated strings.
type Bundle map[string]string

var english = Bundle{
	"app.title":                "A1 German Course",
	"dashboard.title":          "Your Lessons",
	"dashboard.welcome":        "Welcome back",
	"dashboard.progress":       "watched",
	"dashboard.completed":      "Completed",
	"dashboard.markComplete":   "Mark as complete",
	"dashboard.markIncomplete": "Mark as incomplete",
	"dashboard.resume":         "Resume",
	"auth.signup":              "Sign up",
	"auth.login":               "Log in",
	"auth.logout":              "Log out",
	"auth.email":               "Email address",
	"auth.password":            "Password",
	"auth.invalidCredentials":  "Invalid email or password",
	"auth.emailTaken":          "This email is already registered",
	"auth.weakPassword":        "Password must be at least 6 characters",
}

var german = Bundle{
	"app.title":                "A1 Deutschkurs",
	"dashboard.title":          "Deine Lektionen",
	"dashboard.welcome":        "Willkommen zurück",
	"dashboard.progress":       "gesehen",
	"dashboard.completed":      "Abgeschlossen",
	"dashboard.markComplete":   "Als abgeschlossen markieren",
	"dashboard.markIncomplete": "Als nicht abgeschlossen markieren",
	"dashboard.resume":         "Fortsetzen",
	"auth.signup":              "Registrieren",
	"auth.login":               "Anmelden",
	"auth.logout":              "Abmelden",
	"auth.email":               "E-Mail-Adresse",
	"auth.password":            "Passwort",
	"auth.invalidCredentials":  "E-Mail oder Passwort ungültig",
	"auth.emailTaken":          "Diese E-Mail ist bereits registriert",
	"auth.weakPassword":        "Das Passwort muss mindestens 6 Zeichen lang sein",
}

var bundles = map[Lang]Bundle{
	English: english,
	German:  german,
}

// Supported lists the languages with a bundle, English first.
func Supported() []Lang {
	return []Lang{English, German}
}

// Parse normalizes a language code ("de", "DE", "de-AT") to a supported Lang.
func Parse(code string) (Lang, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	lang := Lang(code)
	_, ok := bundles[lang]
	return lang, ok
}

// T returns the full bundle for a language with English filling any gaps.
// Unknown languages get the English bundle.
func T(lang Lang) Bundle {
	base, ok := bundles[lang]
	if !ok {
		base = english
	}
	out := make(Bundle, len(english))
	for k, v := range english {
		out[k] = v
	}
	for k, v := range base {
		out[k] = v
	}
	return out
}

// Lookup resolves a single key, falling back to English and finally to the
// key itself.
func Lookup(lang Lang, key string) string {
	if b, ok := bundles[lang]; ok {
		if v, ok := b[key]; ok {
			return v
		}
	}
	if v, ok := english[key]; ok {
		return v
	}
	return key
}
