package helpers

import "strings"

const recipientPrefix = "/offer/"

// RedactPath hides the public token in recipient link paths so it never reaches the logs.
func RedactPath(path string) string {
	rest, ok := strings.CutPrefix(path, recipientPrefix)
	if !ok || rest == "" {
		return path
	}
	if _, tail, found := strings.Cut(rest, "/"); found {
		return recipientPrefix + ":token/" + tail
	}
	return recipientPrefix + ":token"
}
