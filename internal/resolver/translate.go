package resolver

import (
	"github.com/matsen/citethreads/internal/config"
	"github.com/matsen/citethreads/internal/paper"
)

// Translator maps an already-resolved paper to the ID a source expects for
// neighbor lookups. It returns false when the source cannot address the paper.
type Translator func(p paper.Paper) (string, bool)

// Translators is the per-source ID translation table. Adding a source means
// adding an entry here; the fallback loop does not change.
var Translators = map[string]Translator{
	config.SourceSemanticScholar: TranslateS2,
	config.SourceASTA:            TranslateS2,
	config.SourceOpenAlex:        TranslateOpenAlex,
	config.SourceCrossref:        TranslateDOI,
	config.SourceArXiv:           TranslateArXiv,
}

// TranslateS2 prefers the DOI, then the arXiv ID, then a native S2 ID.
func TranslateS2(p paper.Paper) (string, bool) {
	if p.DOI != "" {
		return paper.MakeID(paper.NamespaceDOI, paper.NormalizeDOI(p.DOI)), true
	}
	if p.ArXivID != "" {
		return paper.MakeID(paper.NamespaceArXiv, p.ArXivID), true
	}
	switch id := paper.ParseID(p.ID); id.Namespace {
	case paper.NamespaceS2, paper.NamespaceASTA:
		return id.String(), true
	}
	return "", false
}

// TranslateOpenAlex prefers a native OpenAlex work ID, then the DOI.
func TranslateOpenAlex(p paper.Paper) (string, bool) {
	if id := paper.ParseID(p.ID); id.Namespace == paper.NamespaceOpenAlex {
		return id.String(), true
	}
	if p.DOI != "" {
		return paper.MakeID(paper.NamespaceDOI, paper.NormalizeDOI(p.DOI)), true
	}
	return "", false
}

// TranslateDOI addresses the paper by DOI only.
func TranslateDOI(p paper.Paper) (string, bool) {
	if p.DOI != "" {
		return paper.MakeID(paper.NamespaceDOI, paper.NormalizeDOI(p.DOI)), true
	}
	return "", false
}

// TranslateArXiv addresses the paper by arXiv ID only.
func TranslateArXiv(p paper.Paper) (string, bool) {
	if p.ArXivID != "" {
		return paper.MakeID(paper.NamespaceArXiv, p.ArXivID), true
	}
	if id := paper.ParseID(p.ID); id.Namespace == paper.NamespaceArXiv {
		return id.String(), true
	}
	return "", false
}

// TranslatePassthrough uses the paper's own ID unchanged.
func TranslatePassthrough(p paper.Paper) (string, bool) {
	return p.ID, p.ID != ""
}

// translatorFor looks up the translator for a source name.
func translatorFor(name string) Translator {
	if t, ok := Translators[name]; ok {
		return t
	}
	return TranslatePassthrough
}
