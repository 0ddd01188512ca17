// Package query implements query expansion and the semantic result cache
// that sit in front of the retrieval engine.
package query

import (
	"regexp"
	"strings"
)

// acronyms maps a common domain/technology acronym to its expansion.
// Matching is case-insensitive on whole tokens only.
var acronyms = map[string]string{
	"API":   "application programming interface",
	"REST":  "representational state transfer",
	"HTTP":  "hypertext transfer protocol",
	"HTTPS": "hypertext transfer protocol secure",
	"JSON":  "javascript object notation",
	"XML":   "extensible markup language",
	"YAML":  "yaml ain't markup language",
	"SQL":   "structured query language",
	"NOSQL": "not only sql",
	"CRUD":  "create read update delete",
	"ORM":   "object relational mapping",
	"JWT":   "json web token",
	"SSO":   "single sign on",
	"OAUTH": "open authorization",
	"TLS":   "transport layer security",
	"SSL":   "secure sockets layer",
	"VPN":   "virtual private network",
	"DNS":   "domain name system",
	"CDN":   "content delivery network",
	"TCP":   "transmission control protocol",
	"UDP":   "user datagram protocol",
	"IP":    "internet protocol",
	"URL":   "uniform resource locator",
	"URI":   "uniform resource identifier",
	"CPU":   "central processing unit",
	"GPU":   "graphics processing unit",
	"RAM":   "random access memory",
	"SSD":   "solid state drive",
	"HDD":   "hard disk drive",
	"IO":    "input output",
	"UI":    "user interface",
	"UX":    "user experience",
	"CLI":   "command line interface",
	"SDK":   "software development kit",
	"IDE":   "integrated development environment",
	"CI":    "continuous integration",
	"CD":    "continuous delivery",
	"K8S":   "kubernetes",
	"AWS":   "amazon web services",
	"GCP":   "google cloud platform",
	"ML":    "machine learning",
	"AI":    "artificial intelligence",
	"NLP":   "natural language processing",
	"LLM":   "large language model",
	"RAG":   "retrieval augmented generation",
	"ANN":   "approximate nearest neighbor",
	"KNN":   "k nearest neighbors",
	"RRF":   "reciprocal rank fusion",
	"MMR":   "maximal marginal relevance",
	"BM25":  "best matching 25",
	"TTL":   "time to live",
	"LRU":   "least recently used",
	"RPC":   "remote procedure call",
	"GRPC":  "grpc remote procedure call",
	"ETL":   "extract transform load",
	"OLTP":  "online transaction processing",
	"OLAP":  "online analytical processing",
	"CSV":   "comma separated values",
	"PDF":   "portable document format",
}

// SynonymLexicon supplies additional, deployment-specific term expansions
// layered on top of the built-in acronym map.
type SynonymLexicon interface {
	Synonyms(term string) []string
}

var tokenRE = regexp.MustCompile(`[A-Za-z0-9_]+`)

// Expander expands acronyms (and, optionally, lexicon synonyms) found in a
// query into additional terms appended to the original text. Expansion is
// idempotent: re-expanding an already-expanded query yields the same set of
// terms, since every expansion is a deterministic function of the token set
// already present and is folded into that same set via deduplication.
type Expander struct {
	lexicon SynonymLexicon
}

func NewExpander(lexicon SynonymLexicon) *Expander {
	return &Expander{lexicon: lexicon}
}

// Expand returns the original query followed by any acronym/synonym
// expansions not already present as terms, space-joined.
func (e *Expander) Expand(queryText string) string {
	tokens := tokenRE.FindAllString(queryText, -1)
	if len(tokens) == 0 {
		return queryText
	}

	seen := make(map[string]bool, len(tokens)*2)
	ordered := make([]string, 0, len(tokens)*2)

	add := func(term string) {
		key := strings.ToLower(term)
		if seen[key] {
			return
		}
		seen[key] = true
		ordered = append(ordered, term)
	}

	for _, t := range tokens {
		add(t)
	}

	for _, t := range tokens {
		upper := strings.ToUpper(t)
		if expansion, ok := acronyms[upper]; ok {
			for _, w := range strings.Fields(expansion) {
				add(w)
			}
		}
		if e.lexicon != nil {
			for _, syn := range e.lexicon.Synonyms(strings.ToLower(t)) {
				add(syn)
			}
		}
	}

	return strings.Join(ordered, " ")
}
