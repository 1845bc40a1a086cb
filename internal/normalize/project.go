package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedProject is returned when a project name does not carry an identifier.
var ErrMalformedProject = errors.New("malformed project")

var (
	projectPattern      = regexp.MustCompile(`^([A-Za-z0-9]+)(?:_\S*)? *(?::|-) *(.*)`)
	municipalityPattern = regexp.MustCompile(`(?m)Commune\(s\) du projet : ?(.*)$`)
	openParen           = regexp.MustCompile(`(\S)\(`)
	spaceCloseParen     = regexp.MustCompile(`\s+\)`)
	codeFirst           = regexp.MustCompile(`^(\d{2})\s*-?\s*(.+?)(?:\s*\(\d{2}\))?$`)
	trailingCode        = regexp.MustCompile(`\(\d{2}\)$`)
	projectIDPattern    = regexp.MustCompile(`\(([A-Z0-9]*[A-Z][A-Z0-9]*)\)(?: - |$)`)
	departmentCode      = regexp.MustCompile(`\((\d{2})\)`)
)

var quotePairs = [][2]string{{`"`, `"`}, {"“", "”"}, {"«", "»"}}

// ProjectName turns "<id>[_] : <name>" into "<Name> (<ID>)".
func ProjectName(raw string) (string, error) {
	project := Canonicalize(strings.TrimSpace(raw))
	project = strings.TrimRight(project, ".,")
	m := projectPattern.FindStringSubmatch(project)
	if m == nil {
		return "", fmt.Errorf("%w: %q has no identifier", ErrMalformedProject, raw)
	}
	id := strings.ToUpper(m[1])
	name := strings.TrimSpace(m[2])
	for _, q := range quotePairs {
		if len(name) >= len(q[0])+len(q[1]) && strings.HasPrefix(name, q[0]) && strings.HasSuffix(name, q[1]) {
			name = strings.TrimSpace(name[len(q[0]) : len(name)-len(q[1])])
			break
		}
	}
	if name == "" {
		return "", fmt.Errorf("%w: %q has an empty name", ErrMalformedProject, raw)
	}
	return Capitalize(fmt.Sprintf("%s (%s)", name, id)), nil
}

// Municipalities extracts the "Commune(s) du projet" line of an information block
// and rewrites it as "name (NN), other (NN)". The department code is appended when
// the line does not end with one. ok is false when the block has no such line.
func Municipalities(info, department string) (string, bool) {
	m := municipalityPattern.FindStringSubmatch(Canonicalize(info))
	if m == nil {
		return "", false
	}
	towns := strings.ReplaceAll(m[1], " ; ", ", ")
	towns = strings.TrimSpace(towns)
	if towns == "" {
		return "", false
	}
	towns = openParen.ReplaceAllString(towns, "$1 (")
	towns = spaceCloseParen.ReplaceAllString(towns, ")")
	towns = codeFirst.ReplaceAllString(towns, "$2 ($1)")
	if department != "" && !trailingCode.MatchString(towns) {
		towns += fmt.Sprintf(" (%s)", department)
	}
	return towns, true
}

// Project builds the final project label from the raw name and the information block.
func Project(raw, info, department string) (string, error) {
	project, err := ProjectName(raw)
	if err != nil {
		return "", err
	}
	if towns, ok := Municipalities(info, department); ok {
		project = project + " - " + towns
	}
	return strings.TrimSpace(project), nil
}

// ProjectID returns the trailing "(ID)" of the project name in a normalized label.
// Acronyms in parentheses inside the name are skipped; municipality codes are
// numeric and never match.
func ProjectID(project string) string {
	ms := projectIDPattern.FindAllStringSubmatch(project, -1)
	if len(ms) == 0 {
		return ""
	}
	return ms[len(ms)-1][1]
}

// DepartmentCodes returns the two-digit codes in parentheses found in s.
func DepartmentCodes(s string) []string {
	var codes []string
	for _, m := range departmentCode.FindAllStringSubmatch(s, -1) {
		codes = append(codes, m[1])
	}
	return codes
}
