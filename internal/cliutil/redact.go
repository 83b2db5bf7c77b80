package cliutil

import (
	"regexp"
	"strings"
)

const redactedPlaceholder = "[redacted]"

var (
	secretAssignPattern = regexp.MustCompile(`(?i)^(-{0,2}[A-Z0-9_.-]*(?:` + strings.Join(secretWords(), "|") + `)[A-Z0-9_.-]*)(=)(.+)$`)
	secretFlagPattern   = regexp.MustCompile(`(?i)^-{1,2}[A-Z0-9_.-]*(?:` + strings.Join(secretWords(), "|") + `)[A-Z0-9_.-]*$`)
	urlUserinfoPattern  = regexp.MustCompile(`(://[^/:@\s]+:)([^/@\s]+)(@)`)
)

func secretWords() []string {
	words := []string{
		"PASSWORD",
		"PASSWD",
		"SECRET",
		"TOKEN",
		"API_KEY",
		"APIKEY",
		"ACCESS_KEY",
		"PRIVATE_KEY",
		"CREDENTIAL",
	}
	escaped := make([]string, len(words))
	for i, word := range words {
		escaped[i] = regexp.QuoteMeta(word)
	}
	return escaped
}

// RedactArgs returns a copy of argv safe to log. Values of KEY=value pairs and
// --flag=value options whose name mentions a secret are masked, as is the
// argument following a bare secret flag, and passwords embedded in URLs.
func RedactArgs(argv []string) []string {
	if len(argv) == 0 {
		return nil
	}
	out := make([]string, len(argv))
	maskNext := false
	for i, arg := range argv {
		if maskNext {
			out[i] = redactedPlaceholder
			maskNext = false
			continue
		}
		switch {
		case secretAssignPattern.MatchString(arg):
			out[i] = secretAssignPattern.ReplaceAllString(arg, "$1$2"+redactedPlaceholder)
		case secretFlagPattern.MatchString(arg):
			out[i] = arg
			maskNext = true
		default:
			out[i] = urlUserinfoPattern.ReplaceAllString(arg, "$1"+redactedPlaceholder+"$3")
		}
	}
	return out
}
