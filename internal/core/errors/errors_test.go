package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "module not found")
		if err.Error() != "[NOT_FOUND] module not found" {
			t.Errorf("expected [NOT_FOUND] module not found, got %s", err.Error())
		}
	})

	t.Run("Newf", func(t *testing.T) {
		err := Newf(CodeValidationError, "unknown mode %q", "medium")
		if err.Error() != `[VALIDATION_ERROR] unknown mode "medium"` {
			t.Errorf("unexpected message %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("disk full")
		err := Wrap(original, CodeStorage, "commit failed")
		expected := "[STORAGE_ERROR] commit failed: disk full"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
		if !errors.Is(err, original) {
			t.Error("expected wrapped error to unwrap to the original")
		}
	})

	t.Run("WrapNil", func(t *testing.T) {
		if Wrap(nil, CodeInternal, "nothing") != nil {
			t.Error("expected Wrap(nil) to return nil")
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeParse, "tree-sitter returned no tree")
		if !IsCode(err, CodeParse) {
			t.Error("expected IsCode to return true for CodeParse")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("IsCodeThroughFmtWrap", func(t *testing.T) {
		err := fmt.Errorf("index file: %w", New(CodeStorage, "locked"))
		if !IsCode(err, CodeStorage) {
			t.Error("expected IsCode to see through fmt wrapping")
		}
	})

	t.Run("AddContext", func(t *testing.T) {
		err := AddContext(New(CodeParse, "bad file"), CtxPath, "pkg/mod.py")
		if !strings.Contains(err.Error(), "pkg/mod.py") {
			t.Errorf("expected context in message, got %s", err.Error())
		}

		wrapped := AddContext(fmt.Errorf("load: %w", New(CodeValidationError, "bad mode")), CtxMode, "fast")
		var de *DomainError
		if !errors.As(wrapped, &de) || de.Context[CtxMode] != "fast" || de.Code != CodeValidationError {
			t.Errorf("expected mode context on the inner domain error, got %v", wrapped)
		}

		plain := AddContext(errors.New("boom"), CtxOperation, "commit")
		if !IsCode(plain, CodeInternal) {
			t.Error("expected plain error to be promoted to CodeInternal")
		}
	})
}
