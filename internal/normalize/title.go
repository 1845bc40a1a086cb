package normalize

import (
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyTitle is returned for titles without any text.
var ErrEmptyTitle = errors.New("empty title")

var decreeAbbrev = regexp.MustCompile(`(F0\w{8,10}(?:(?:-\d| \d))?) Ap\b`)

// Title capitalizes a document title. Titles starting with an "F09..." decision
// number get the number upper-cased and "Ap" expanded.
func Title(raw string) (string, error) {
	title := strings.TrimSpace(Canonicalize(raw))
	if title == "" {
		return "", ErrEmptyTitle
	}
	words := strings.Split(title, " ")
	if strings.HasPrefix(strings.ToLower(words[0]), "f09") {
		words[0] = strings.ToUpper(words[0])
		if len(words) > 1 {
			words[1] = Capitalize(words[1])
		}
	} else {
		words[0] = Capitalize(words[0])
	}
	title = strings.Join(words, " ")
	return decreeAbbrev.ReplaceAllString(title, "${1} Arrêté préfectoral"), nil
}
