package otp

import (
	"fmt"

	"golang.org/x/text/language"
)

var supported = []language.Tag{language.English, language.Arabic}

var matcher = language.NewMatcher(supported)

var templates = map[language.Tag]string{
	language.English: "Your %s verification code is %s. It expires in %d minutes.",
	language.Arabic:  "رمز التحقق الخاص بك في %s هو %s. ينتهي خلال %d دقائق.",
}

// matchLocale picks the catalog language for a list of locale preferences,
// such as an Accept-Language header value or a stored user locale.
func matchLocale(prefs ...string) language.Tag {
	tags := make([]language.Tag, 0, len(prefs))

	for _, p := range prefs {
		if p == "" {
			continue
		}

		parsed, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}

		tags = append(tags, parsed...)
	}

	_, idx, _ := matcher.Match(tags...)

	return supported[idx]
}

func render(tag language.Tag, app, code string, minutes int) string {
	if minutes < 1 {
		minutes = 1
	}

	return fmt.Sprintf(templates[tag], app, code, minutes)
}
