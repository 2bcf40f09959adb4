package nl2sql

import (
	"context"
	"errors"
	"testing"

	"github.com/lumos-db/lumosdb/internal/errs"
)

func TestStubTranslatorReturnsNotImplemented(t *testing.T) {
	tr := NewStubTranslator()
	_, err := tr.Translate(context.Background(), "how many widgets were synced today?")
	if !errors.Is(err, errs.ErrNotImplemented) {
		t.Fatalf("expected errs.ErrNotImplemented, got %v", err)
	}
}
