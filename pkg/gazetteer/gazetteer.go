// Package gazetteer embeds the static reference tables used across the
// pipeline: known place names with their metadata, a registry of culturally
// notable names, and a small table of historically verifiable facts. All
// lookups are exact, case-insensitive matches; the tables are read-only
// after init.
package gazetteer

import "strings"

// PlaceInfo describes a known place name.
type PlaceInfo struct {
	Name     string  `json:"name"`
	Region   string  `json:"region"`
	Province string  `json:"province"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

var places = map[string]PlaceInfo{
	"vinci":    {Name: "Vinci", Region: "Toscana", Province: "Firenze", Lat: 43.7836, Lon: 10.9254},
	"firenze":  {Name: "Firenze", Region: "Toscana", Province: "Firenze", Lat: 43.7696, Lon: 11.2558},
	"pisa":     {Name: "Pisa", Region: "Toscana", Province: "Pisa", Lat: 43.7228, Lon: 10.4017},
	"siena":    {Name: "Siena", Region: "Toscana", Province: "Siena", Lat: 43.3188, Lon: 11.3308},
	"arezzo":   {Name: "Arezzo", Region: "Toscana", Province: "Arezzo", Lat: 43.4633, Lon: 11.8797},
	"caprese":  {Name: "Caprese", Region: "Toscana", Province: "Arezzo", Lat: 43.6409, Lon: 11.9863},
	"roma":     {Name: "Roma", Region: "Lazio", Province: "Roma", Lat: 41.9028, Lon: 12.4964},
	"milano":   {Name: "Milano", Region: "Lombardia", Province: "Milano", Lat: 45.4642, Lon: 9.19},
	"mantova":  {Name: "Mantova", Region: "Lombardia", Province: "Mantova", Lat: 45.1564, Lon: 10.7913},
	"venezia":  {Name: "Venezia", Region: "Veneto", Province: "Venezia", Lat: 45.4408, Lon: 12.3155},
	"padova":   {Name: "Padova", Region: "Veneto", Province: "Padova", Lat: 45.4064, Lon: 11.8768},
	"napoli":   {Name: "Napoli", Region: "Campania", Province: "Napoli", Lat: 40.8518, Lon: 14.2681},
	"torino":   {Name: "Torino", Region: "Piemonte", Province: "Torino", Lat: 45.0703, Lon: 7.6869},
	"bologna":  {Name: "Bologna", Region: "Emilia-Romagna", Province: "Bologna", Lat: 44.4949, Lon: 11.3426},
	"urbino":   {Name: "Urbino", Region: "Marche", Province: "Pesaro e Urbino", Lat: 43.7262, Lon: 12.6365},
	"ravenna":  {Name: "Ravenna", Region: "Emilia-Romagna", Province: "Ravenna", Lat: 44.4184, Lon: 12.2035},
	"amboise":  {Name: "Amboise", Region: "Centre-Val de Loire", Province: "Indre-et-Loire", Lat: 47.4136, Lon: 0.9846},
	"ferrara":  {Name: "Ferrara", Region: "Emilia-Romagna", Province: "Ferrara", Lat: 44.8381, Lon: 11.6198},
	"certaldo": {Name: "Certaldo", Region: "Toscana", Province: "Firenze", Lat: 43.5473, Lon: 11.0414},
}

// figures lists culturally notable persons and works. Together with the
// place table it forms the relevance registry consulted when scoring
// relations between two known names.
var figures = set(
	"leonardo da vinci",
	"leonardo",
	"michelangelo",
	"raffaello",
	"botticelli",
	"giotto",
	"brunelleschi",
	"verrocchio",
	"dante alighieri",
	"dante",
	"petrarca",
	"boccaccio",
	"galileo galilei",
	"galileo",
	"machiavelli",
	"la gioconda",
	"monna lisa",
	"l'ultima cena",
	"il david",
	"la nascita di venere",
	"la divina commedia",
	"il principe",
	"il decameron",
	"la cupola del duomo",
	"uffizi",
	"galleria degli uffizi",
)

// facts holds historically verifiable triples keyed as
// subject|predicate|object, all lowercase.
var facts = set(
	"leonardo da vinci|BORN_IN|vinci",
	"leonardo|BORN_IN|vinci",
	"leonardo da vinci|DIED_IN|amboise",
	"leonardo da vinci|LIVED_IN|milano",
	"leonardo da vinci|CREATED|la gioconda",
	"leonardo|CREATED|la gioconda",
	"leonardo da vinci|CREATED|l'ultima cena",
	"leonardo da vinci|WORKED_WITH|verrocchio",
	"michelangelo|BORN_IN|caprese",
	"michelangelo|CREATED|il david",
	"raffaello|BORN_IN|urbino",
	"botticelli|CREATED|la nascita di venere",
	"botticelli|BORN_IN|firenze",
	"dante alighieri|BORN_IN|firenze",
	"dante|BORN_IN|firenze",
	"dante alighieri|DIED_IN|ravenna",
	"dante alighieri|CREATED|la divina commedia",
	"dante|CREATED|la divina commedia",
	"petrarca|BORN_IN|arezzo",
	"boccaccio|BORN_IN|certaldo",
	"boccaccio|CREATED|il decameron",
	"galileo galilei|BORN_IN|pisa",
	"galileo|BORN_IN|pisa",
	"galileo galilei|LIVED_IN|firenze",
	"machiavelli|BORN_IN|firenze",
	"machiavelli|CREATED|il principe",
	"brunelleschi|CREATED|la cupola del duomo",
	"giotto|LIVED_IN|firenze",
	"la gioconda|LOCATED_IN|parigi",
	"galleria degli uffizi|LOCATED_IN|firenze",
	"la nascita di venere|LOCATED_IN|galleria degli uffizi",
)

func set(keys ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Lookup returns place metadata for name.
func Lookup(name string) (PlaceInfo, bool) {
	info, ok := places[normalize(name)]
	return info, ok
}

// IsKnown reports whether name appears in the place table or the
// relevance registry.
func IsKnown(name string) bool {
	key := normalize(name)
	if _, ok := places[key]; ok {
		return true
	}
	_, ok := figures[key]
	return ok
}

// RelevantPair reports whether both names are culturally notable, which
// earns the relation between them a confidence boost.
func RelevantPair(subject, object string) bool {
	return IsKnown(subject) && IsKnown(object)
}

// KnownFact reports whether (subject, predicate, object) is in the
// verified-facts table. Subject and object match case-insensitively; the
// predicate is expected in its normalized controlled-vocabulary form.
func KnownFact(subject, predicate, object string) bool {
	key := normalize(subject) + "|" + predicate + "|" + normalize(object)
	_, ok := facts[key]
	return ok
}
