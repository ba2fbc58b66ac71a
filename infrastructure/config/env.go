package config

import (
	"fmt"
	"os"
	"strings"

	domainconfig "github.com/prismworks/prism/domain/config"
)

// envExpander substitutes environment variable references in raw
// configuration text before it is parsed. Supported forms:
//
//	${VAR}            the value of VAR, empty when unset
//	${VAR:-fallback}  the value of VAR, or fallback when unset or empty
//	${VAR:?message}   an error carrying message when VAR is unset or empty
//	$VAR              shorthand for ${VAR}
type envExpander struct {
	strict  bool
	missing []string
}

func (e *envExpander) Expand(input string) (string, error) {
	e.missing = nil

	var out strings.Builder
	out.Grow(len(input))

	for i := 0; i < len(input); {
		c := input[i]
		if c != '$' || i+1 == len(input) {
			out.WriteByte(c)
			i++
			continue
		}

		if input[i+1] == '{' {
			end := strings.IndexByte(input[i+2:], '}')
			if end < 0 {
				// Unterminated reference, keep the text as written.
				out.WriteString(input[i:])
				break
			}
			e.writeBracketed(&out, input[i+2:i+2+end])
			i += end + 3
			continue
		}

		name := leadingVarName(input[i+1:])
		if name == "" {
			// A bare dollar, e.g. a price. Not a reference.
			out.WriteByte(c)
			i++
			continue
		}
		out.WriteString(e.resolve(name))
		i += len(name) + 1
	}

	if len(e.missing) > 0 {
		return "", fmt.Errorf("%w: %s", domainconfig.ErrMissingEnvVar, strings.Join(e.missing, ", "))
	}
	return out.String(), nil
}

// writeBracketed resolves one ${...} body, honoring the :- and :? modifiers.
func (e *envExpander) writeBracketed(out *strings.Builder, body string) {
	name, modifier, hasModifier := strings.Cut(body, ":")
	if hasModifier && strings.HasPrefix(modifier, "-") {
		if value, set := os.LookupEnv(name); set && value != "" {
			out.WriteString(value)
			return
		}
		out.WriteString(modifier[1:])
		return
	}
	if hasModifier && strings.HasPrefix(modifier, "?") {
		value, set := os.LookupEnv(name)
		if !set || value == "" {
			e.missing = append(e.missing, name+": "+modifier[1:])
			return
		}
		out.WriteString(value)
		return
	}
	out.WriteString(e.resolve(name))
}

// resolve returns the plain value of one variable, tracking strict misses.
func (e *envExpander) resolve(name string) string {
	value, set := os.LookupEnv(name)
	if !set && e.strict {
		e.missing = append(e.missing, name)
	}
	return value
}

// leadingVarName returns the longest variable name prefix of s, or empty
// when s does not start one. Names begin with a letter or underscore.
func leadingVarName(s string) string {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
			continue
		}
		if c >= '0' && c <= '9' && i > 0 {
			continue
		}
		return s[:i]
	}
	return s
}

// ExpandEnv expands environment variable references, substituting the empty
// string for unset variables.
func ExpandEnv(input string) string {
	e := &envExpander{}
	result, _ := e.Expand(input)
	return result
}

// ExpandEnvStrict expands environment variable references and reports unset
// variables as an error.
func ExpandEnvStrict(input string) (string, error) {
	e := &envExpander{strict: true}
	return e.Expand(input)
}
