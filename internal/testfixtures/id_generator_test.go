package testfixtures

import "testing"

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	t.Parallel()

	gen := NewIDGenerator("req")

	first := gen.Next()
	second := gen.Next()

	if first != "req-001" || second != "req-002" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
	if gen.Issued() != 2 {
		t.Fatalf("expected 2 issued identifiers, got %d", gen.Issued())
	}
}

func TestIDGeneratorDefaultsPrefix(t *testing.T) {
	t.Parallel()

	if next := NewIDGenerator("").NextFunc()(); next != "id-001" {
		t.Fatalf("expected id-001, got %q", next)
	}
	var nilGen *IDGenerator
	if next := nilGen.NextFunc()(); next != "" {
		t.Fatalf("expected empty identifier from nil generator, got %q", next)
	}
}
