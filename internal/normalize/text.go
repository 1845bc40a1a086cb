// Package normalize reformats the free-text fields published by the site.
// Every site-format assumption about titles, project names and municipality
// lines lives in this package.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	spaceReplacer = strings.NewReplacer(
		"\u00a0", " ",
		"\u202f", " ",
		"\u2009", " ",
		"\u2007", " ",
		"\u2019", "'",
		"\u2018", "'",
		"\u02bc", "'",
	)
	multiSpace = regexp.MustCompile(` {2,}`)
)

// Canonicalize applies NFC, maps special spaces and apostrophes to ASCII and
// collapses runs of spaces.
func Canonicalize(s string) string {
	s = norm.NFC.String(s)
	s = spaceReplacer.Replace(s)
	return multiSpace.ReplaceAllString(s, " ")
}

// Capitalize upper-cases the first rune of s.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

var infoLabels = []string{
	"Rubrique(s) concernée(s) :",
	"Pétitionnaire :",
	"Date de réception :",
	"Dossier complet le :",
	"Décision :",
	"Dossier reçu le :",
	"Recours gracieux du :",
}

// InfoBlock joins the text nodes of a project information block and puts every
// known field label on its own line.
func InfoBlock(nodes []string) string {
	var b strings.Builder
	for _, n := range nodes {
		if strings.TrimSpace(n) == "" {
			continue
		}
		b.WriteString(strings.TrimLeftFunc(n, unicode.IsSpace))
	}
	info := norm.NFC.String(b.String())
	for _, label := range infoLabels {
		info = strings.ReplaceAll(info, label, "\n"+label)
	}
	return strings.TrimSpace(info)
}
