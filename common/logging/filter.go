package logging

import (
	"github.com/go-kit/log"
)

// dropKeys returns the key/value pairs of keyvals whose key is not in drop.
// A dangling key without a value is kept as is.
func dropKeys(keyvals []interface{}, drop map[interface{}]bool) []interface{} {
	kept := keyvals[:0:0]
	for i := 0; i < len(keyvals); i += 2 {
		if drop[keyvals[i]] {
			continue
		}
		end := i + 2
		if end > len(keyvals) {
			end = len(keyvals)
		}
		kept = append(kept, keyvals[i:end]...)
	}
	return kept
}

// NewFilterLogger wraps base so that the given keys never reach the output,
// whatever the level. Use it for modules handling personal identifiers.
func NewFilterLogger(base *Logger, keys ...string) *Logger {
	drop := make(map[interface{}]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}

	next := base.logger
	return &Logger{
		logger: log.LoggerFunc(func(keyvals ...interface{}) error {
			return next.Log(dropKeys(keyvals, drop)...)
		}),
		level:  base.level,
		module: base.module,
	}
}
