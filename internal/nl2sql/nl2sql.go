// Package nl2sql names the shape of a natural-language-to-SQL translator
// (SPEC_FULL.md §1: "calls an LLM; stubbed in source"). Translate returns
// errs.ErrNotImplemented; no LLM integration ships here.
package nl2sql

import (
	"context"

	"github.com/lumos-db/lumosdb/internal/errs"
)

// Translator turns a natural-language question into SQL text runnable
// through internal/query.Router.
type Translator interface {
	Translate(ctx context.Context, question string) (string, error)
}

// stubTranslator is the only Translator this package provides: every call
// reports errs.ErrNotImplemented.
type stubTranslator struct{}

// NewStubTranslator returns a Translator that always fails with
// errs.ErrNotImplemented, a placeholder for a future LLM-backed
// implementation.
func NewStubTranslator() Translator { return stubTranslator{} }

func (stubTranslator) Translate(ctx context.Context, question string) (string, error) {
	return "", errs.ErrNotImplemented
}
