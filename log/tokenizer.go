package log

import (
	"fmt"
	"strings"
)

type token struct {
	key, value string
}

// tokenize splits a hook configuration line such as
// "file=/tmp/browserenv.log,level=debug" into key/value tokens.
func tokenize(line string) ([]token, error) {
	var tokens []token
	for _, part := range strings.Split(line, ",") {
		if part == "" {
			return nil, fmt.Errorf("empty key in `%s`", line)
		}
		key, value, found := strings.Cut(part, "=")
		if key == "" {
			return nil, fmt.Errorf("empty key in `%s`", line)
		}
		if !found || value == "" {
			return nil, fmt.Errorf("key `%s` with no value", part)
		}
		tokens = append(tokens, token{key: key, value: value})
	}
	return tokens, nil
}
