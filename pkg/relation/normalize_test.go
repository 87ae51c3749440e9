package relation

import "testing"

func TestNormalizePredicate(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		matched bool
	}{
		{"born in", BornIn, true},
		{"was born in", BornIn, true},
		{"nacque a", BornIn, true},
		{"è nato a", BornIn, true},
		{"died in", DiedIn, true},
		{"morì a", DiedIn, true},
		{"morto a Roma", DiedIn, true},
		{"lived in", LivedIn, true},
		{"visse a", LivedIn, true},
		{"abitò a", LivedIn, true},
		{"located in", LocatedIn, true},
		{"si trova a", LocatedIn, true},
		{"painted", Created, true},
		{"dipinse", Created, true},
		{"scrisse", Created, true},
		{"wrote", Created, true},
		{"worked with", WorkedWith, true},
		{"lavorò con", WorkedWith, true},
		{"part of", PartOf, true},
		{"parte di", PartOf, true},
		{"BORN_IN", BornIn, true},
		{"lived_in", LivedIn, true},
		{"associated with", AssociatedWith, true},
		{"incontrò", AssociatedWith, false},
		{"vide", AssociatedWith, false},
		{"", AssociatedWith, false},
		{"   ", AssociatedWith, false},
	}

	for _, tt := range tests {
		got, matched := NormalizePredicate(tt.raw)
		if got != tt.want || matched != tt.matched {
			t.Errorf("NormalizePredicate(%q) = %q, %v, want %q, %v",
				tt.raw, got, matched, tt.want, tt.matched)
		}
	}
}

func TestNormalizePredicateSpecificBeforeGeneric(t *testing.T) {
	// A predicate stuffed with extra words still resolves through the
	// contained verb phrase.
	got, matched := NormalizePredicate("nacque a Vinci nel 1452")
	if got != BornIn || !matched {
		t.Fatalf("got %q, %v, want %q, true", got, matched, BornIn)
	}
}
