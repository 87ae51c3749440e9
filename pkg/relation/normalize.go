package relation

import "strings"

// Controlled predicate vocabulary. Every resolved relation carries exactly
// one of these values.
const (
	BornIn         = "BORN_IN"
	DiedIn         = "DIED_IN"
	LivedIn        = "LIVED_IN"
	LocatedIn      = "LOCATED_IN"
	Created        = "CREATED"
	WorkedWith     = "WORKED_WITH"
	PartOf         = "PART_OF"
	AssociatedWith = "ASSOCIATED_WITH"
)

type predicateRule struct {
	phrase    string
	predicate string
}

// predicateRules maps free-text verb phrases to the controlled vocabulary.
// Matching is substring-based on the lowercased raw predicate. Order
// matters: more specific phrases must come before phrases they contain.
var predicateRules = []predicateRule{
	{phrase: "born in", predicate: BornIn},
	{phrase: "birthplace", predicate: BornIn},
	{phrase: "nacque", predicate: BornIn},
	{phrase: "nato a", predicate: BornIn},
	{phrase: "nata a", predicate: BornIn},
	{phrase: "nascita", predicate: BornIn},

	{phrase: "died in", predicate: DiedIn},
	{phrase: "death", predicate: DiedIn},
	{phrase: "morì", predicate: DiedIn},
	{phrase: "morto a", predicate: DiedIn},
	{phrase: "morta a", predicate: DiedIn},

	{phrase: "lived in", predicate: LivedIn},
	{phrase: "resided", predicate: LivedIn},
	{phrase: "visse", predicate: LivedIn},
	{phrase: "abitò", predicate: LivedIn},
	{phrase: "abitava", predicate: LivedIn},
	{phrase: "si trasferì", predicate: LivedIn},

	{phrase: "located in", predicate: LocatedIn},
	{phrase: "located at", predicate: LocatedIn},
	{phrase: "housed in", predicate: LocatedIn},
	{phrase: "si trova", predicate: LocatedIn},
	{phrase: "conservato", predicate: LocatedIn},
	{phrase: "conservata", predicate: LocatedIn},
	{phrase: "esposto", predicate: LocatedIn},
	{phrase: "esposta", predicate: LocatedIn},

	{phrase: "painted", predicate: Created},
	{phrase: "sculpted", predicate: Created},
	{phrase: "wrote", predicate: Created},
	{phrase: "composed", predicate: Created},
	{phrase: "created", predicate: Created},
	{phrase: "authored", predicate: Created},
	{phrase: "dipinse", predicate: Created},
	{phrase: "scolpì", predicate: Created},
	{phrase: "scrisse", predicate: Created},
	{phrase: "compose", predicate: Created},
	{phrase: "realizzò", predicate: Created},
	{phrase: "progettò", predicate: Created},
	{phrase: "costruì", predicate: Created},

	{phrase: "worked with", predicate: WorkedWith},
	{phrase: "collaborated", predicate: WorkedWith},
	{phrase: "apprentice", predicate: WorkedWith},
	{phrase: "lavorò con", predicate: WorkedWith},
	{phrase: "collaborò", predicate: WorkedWith},
	{phrase: "allievo", predicate: WorkedWith},

	{phrase: "part of", predicate: PartOf},
	{phrase: "belongs to", predicate: PartOf},
	{phrase: "parte di", predicate: PartOf},
	{phrase: "appartiene", predicate: PartOf},
}

// controlled is the set of valid normalized predicates, for inputs that
// arrive already normalized.
var controlled = map[string]struct{}{
	BornIn:         {},
	DiedIn:         {},
	LivedIn:        {},
	LocatedIn:      {},
	Created:        {},
	WorkedWith:     {},
	PartOf:         {},
	AssociatedWith: {},
}

// NormalizePredicate maps a free-text predicate to the controlled
// vocabulary. The second return reports whether a rule matched; phrases
// that match nothing come back as AssociatedWith so the relation survives
// with a generic label instead of being dropped.
func NormalizePredicate(raw string) (string, bool) {
	p := strings.ToLower(strings.TrimSpace(raw))
	if p == "" {
		return AssociatedWith, false
	}

	upper := strings.ToUpper(strings.ReplaceAll(p, " ", "_"))
	if _, ok := controlled[upper]; ok {
		return upper, true
	}

	for _, rule := range predicateRules {
		if p == rule.phrase || strings.Contains(p, rule.phrase) {
			return rule.predicate, true
		}
	}

	return AssociatedWith, false
}
