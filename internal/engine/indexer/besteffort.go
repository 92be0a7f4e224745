package indexer

import (
	"fmt"
	"log/slog"

	"pyindexer/internal/core/errors"
)

// safely runs fn and turns a panic into an error, so a failure while
// handling one name never unwinds the traversal.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.CodeInternal, fmt.Sprint(r))
		}
	}()
	return fn()
}

// bestEffort runs optional enrichment. Its failures are logged at debug
// level and otherwise ignored.
func bestEffort(log *slog.Logger, what string, fn func() error) {
	if err := safely(fn); err != nil {
		log.Debug(what+" skipped", "error", err)
	}
}
