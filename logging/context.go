package logging

import (
	"context"

	"go.viam.com/utils"
)

type debugTagKey struct{}

// debugTagLength is the size of a generated tag.
const debugTagLength = 6

// EnableDebugMode tags ctx so that CDebugw emits regardless of the logger level. An empty tag is
// replaced by a random one.
func EnableDebugMode(ctx context.Context, tag string) context.Context {
	if tag == "" {
		tag = utils.RandomAlphaString(debugTagLength)
	}
	return context.WithValue(ctx, debugTagKey{}, tag)
}

// DebugTag returns the tag attached by EnableDebugMode, if any.
func DebugTag(ctx context.Context) (string, bool) {
	tag, ok := ctx.Value(debugTagKey{}).(string)
	return tag, ok && tag != ""
}

// IsDebugMode reports whether ctx carries a debug tag.
func IsDebugMode(ctx context.Context) bool {
	_, ok := DebugTag(ctx)
	return ok
}
