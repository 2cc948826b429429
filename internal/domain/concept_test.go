package domain

import "testing"

func TestNormalizeConcept(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"  Comisión   MENSUAL ", "comision mensual"},
		{"IVA\t21%", "iva 21%"},
		{"Transferencia   recibida\n", "transferencia recibida"},
		{"", ""},
		{"Ñandú", "nandu"},
	}

	for _, tt := range tests {
		if got := NormalizeConcept(tt.in); got != tt.want {
			t.Fatalf("NormalizeConcept(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanConceptKeepsCase(t *testing.T) {
	t.Parallel()

	if got := CleanConcept("  Débito   AUTOMÁTICO "); got != "Débito AUTOMÁTICO" {
		t.Fatalf("unexpected cleaned concept %q", got)
	}
}

func TestConceptMatchesTerm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		concept string
		term    string
		want    bool
	}{
		{"comision mensual", "comision", true},
		{"comision mensual", "comision mensual", true},
		{"cobro comision mensual", "comision mensual", true},
		{"privado", "iva", false},
		{"impuesto iva", "iva", true},
		{"comision", "comision mensual", false},
		{"", "comision", false},
		{"comision", "", false},
	}

	for _, tt := range tests {
		if got := ConceptMatchesTerm(tt.concept, tt.term); got != tt.want {
			t.Fatalf("ConceptMatchesTerm(%q, %q) = %v, want %v", tt.concept, tt.term, got, tt.want)
		}
	}
}

func TestIsConceptExcluded(t *testing.T) {
	t.Parallel()

	if !IsConceptExcluded("Comisión mensual", []string{"comision"}) {
		t.Fatalf("expected accented concept to be excluded by folded term")
	}
	if IsConceptExcluded("Transferencia", []string{"comision"}) {
		t.Fatalf("expected unrelated concept to be kept")
	}
}
