// Package cderrors provides standardized error categories for cargo-cooldown.
package cderrors

import (
	"errors"
	"fmt"
	"runtime"
)

// Category classifies a failure into one of the taxonomy buckets the
// resolver loop uses to decide fatal vs. recoverable handling.
type Category string

const (
	CategoryConfig          Category = "config"
	CategorySubprocess      Category = "subprocess"
	CategoryNetwork         Category = "network"
	CategoryCache           Category = "cache"
	CategoryMissingMetadata Category = "missing_metadata"
	CategoryNoCandidate     Category = "no_candidate"
	CategoryNonterminating  Category = "nonterminating"
	CategoryCancelled       Category = "cancelled"
)

// CooldownError is a structured error carrying enough context to build
// the enforce-mode report without re-parsing a message string.
type CooldownError struct {
	Category Category
	Message  string
	Context  map[string]string
	Caller   string
}

func (e *CooldownError) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("[%s] %s", e.Category, e.Message)
	}
	return fmt.Sprintf("[%s] %s (context: %v, at: %s)", e.Category, e.Message, e.Context, e.Caller)
}

func newError(cat Category, msg string, ctx map[string]string) *CooldownError {
	caller := "unknown"
	if pc, _, line, ok := runtime.Caller(2); ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fmt.Sprintf("%s:%d", fn.Name(), line)
		}
	}
	return &CooldownError{Category: cat, Message: msg, Context: ctx, Caller: caller}
}

func ConfigError(msg string, ctx map[string]string) *CooldownError {
	return newError(CategoryConfig, msg, ctx)
}

func SubprocessError(msg string, ctx map[string]string) *CooldownError {
	return newError(CategorySubprocess, msg, ctx)
}

func NetworkError(msg string, ctx map[string]string) *CooldownError {
	return newError(CategoryNetwork, msg, ctx)
}

func CacheError(msg string, ctx map[string]string) *CooldownError {
	return newError(CategoryCache, msg, ctx)
}

func MissingMetadata(name string) *CooldownError {
	return newError(CategoryMissingMetadata, "no publication instant cached for guarded package", map[string]string{"name": name})
}

func NoCandidate(name, version, reason string) *CooldownError {
	return newError(CategoryNoCandidate, reason, map[string]string{"name": name, "version": version})
}

func Nonterminating(iterations string) *CooldownError {
	return newError(CategoryNonterminating, "iteration cap exceeded", map[string]string{"iterations": iterations})
}

func Cancelled(where string) *CooldownError {
	return newError(CategoryCancelled, "interrupted at suspension point", map[string]string{"where": where})
}

// Is reports whether err is a CooldownError of the given category,
// mirroring the errors.Is convention the rest of the module relies on.
func Is(err error, cat Category) bool {
	var ce *CooldownError
	return errors.As(err, &ce) && ce.Category == cat
}
