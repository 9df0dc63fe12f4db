// Package levels maps free-text host log levels onto the remote service's
// fixed log level enumeration.
package levels

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pithecene-io/rpbridge/types"
)

// aliases covers host level names that have no same-named remote level.
// Keys are lower case.
var aliases = map[string]types.LogLevel{
	"failure": types.LogLevelError,
	"warn":    types.LogLevelWarning,
}

// Fallback is the level used for names that match nothing.
const Fallback = types.LogLevelInfo

// Translate maps a host level name to a remote log level.
//
// The first character is upper-cased and the result is matched against the
// remote level set, ignoring case. "Failure" and "Warn" (any case) are
// aliases for Error and Warning. Anything else, including the empty string, becomes Fallback.
func Translate(name string) types.LogLevel {
	if name == "" {
		return Fallback
	}
	word := Capitalize(name)
	for _, lvl := range types.LogLevels() {
		if strings.EqualFold(word, string(lvl)) {
			return lvl
		}
	}
	if lvl, ok := aliases[strings.ToLower(word)]; ok {
		return lvl
	}
	return Fallback
}

// Capitalize upper-cases the first character of name and leaves the rest.
func Capitalize(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	upper := unicode.ToUpper(r)
	if upper == r {
		return name
	}
	return string(upper) + name[size:]
}
