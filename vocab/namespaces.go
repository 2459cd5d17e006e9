/*
   Controlled vocabulary used to validate filter input and to compact the
   IRIs returned by the graph store.
*/

package vocab

import (
	"fmt"
	"strings"
)

// Namespace is a vocabulary prefix and the IRI it abbreviates.
type Namespace struct {
	Prefix string `json:"namespace_prefix"`
	IRI    string `json:"namespace_url"`
}

// namespaces known to the graph, in the order they are declared in queries
var namespaces = []Namespace{
	{"nb", "http://neurobagel.org/vocab/"},
	{"snomed", "http://purl.bioontology.org/ontology/SNOMEDCT/"},
	{"nidm", "http://purl.org/nidash/nidm#"},
	{"cogatlas", "https://www.cognitiveatlas.org/task/id/"},
	{"np", "https://github.com/nipoppy/pipeline-catalog/tree/main/processing/"},
	{"ncit", "http://purl.obolibrary.org/obo/NCIT_"},
}

// Namespaces returns a copy of the known namespaces.
func Namespaces() []Namespace {
	out := make([]Namespace, len(namespaces))
	copy(out, namespaces)
	return out
}

// LookupNamespace finds a namespace by prefix.
func LookupNamespace(prefix string) (Namespace, bool) {
	for _, ns := range namespaces {
		if ns.Prefix == prefix {
			return ns, true
		}
	}
	return Namespace{}, false
}

// CompactIRI rewrites a full IRI to prefix:id form.  IRIs outside the known
// namespaces are returned unchanged.
func CompactIRI(iri string) string {
	for _, ns := range namespaces {
		if strings.HasPrefix(iri, ns.IRI) && len(iri) > len(ns.IRI) {
			return ns.Prefix + ":" + iri[len(ns.IRI):]
		}
	}
	return iri
}

// SparqlPrefixes renders the PREFIX declarations for every known namespace.
func SparqlPrefixes() string {
	var sb strings.Builder
	for _, ns := range namespaces {
		fmt.Fprintf(&sb, "PREFIX %s: <%s>\n", ns.Prefix, ns.IRI)
	}
	return sb.String()
}
