package config

import (
	"os"
	"regexp"
)

// LookupFunc resolves an environment variable, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv expands ${VAR} and ${VAR:-default} from the process environment.
func ExpandEnv(input string) string {
	return ExpandEnvFunc(input, os.LookupEnv)
}

// ExpandEnvFunc expands ${VAR} and ${VAR:-default} using lookup.
//
// The default applies when the variable is unset or empty. Unset variables
// without a default expand to the empty string; a missing token then fails
// validation rather than expansion.
func ExpandEnvFunc(input string, lookup LookupFunc) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		if value, ok := lookup(groups[1]); ok && value != "" {
			return value
		}
		if len(groups) >= 3 {
			return groups[2]
		}
		return ""
	})
}
