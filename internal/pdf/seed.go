// Package pdf extracts seed identifiers from local PDF files.
package pdf

import (
	"errors"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/matsen/citethreads/internal/paper"
)

// seedPages is how many leading pages are searched for identifiers.
const seedPages = 3

// ErrNoIdentifier is returned when a PDF carries neither a DOI, an arXiv ID
// nor a usable title.
var ErrNoIdentifier = errors.New("no DOI, arXiv ID or title found in PDF")

// DOI pattern: 10.XXXX/... where XXXX is 4+ digits
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// arXiv stamps read "arXiv:2106.01234v2 [cs.LG] 3 Jun 2021".
var arxivPattern = regexp.MustCompile(`(?i)arXiv:\s*(\d{4}\.\d{4,5})(v\d+)?`)

// Seed holds the identifiers found in a PDF.
type Seed struct {
	DOI     string `json:"doi,omitempty"`
	ArXivID string `json:"arxiv_id,omitempty"`
	Title   string `json:"title,omitempty"`
}

// ID returns a namespaced paper ID for the seed, preferring the DOI.
// It is empty when only a title was found.
func (s Seed) ID() string {
	switch {
	case s.DOI != "":
		return paper.MakeID(paper.NamespaceDOI, s.DOI)
	case s.ArXivID != "":
		return paper.MakeID(paper.NamespaceArXiv, s.ArXivID)
	}
	return ""
}

// ExtractSeed reads the first pages of a PDF file and returns its identifiers.
func ExtractSeed(filePath string) (Seed, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return Seed{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Seed{}, err
	}
	return ExtractSeedReader(f, info.Size())
}

// ExtractSeedReader is ExtractSeed for an in-memory or uploaded PDF.
func ExtractSeedReader(r io.ReaderAt, size int64) (Seed, error) {
	pdfReader, err := pdf.NewReader(r, size)
	if err != nil {
		return Seed{}, err
	}

	maxPages := min(seedPages, pdfReader.NumPage())
	var pages []string
	for i := 1; i <= maxPages; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, text)
	}

	seed := SeedFromText(strings.Join(pages, "\n"))
	if seed == (Seed{}) {
		return seed, ErrNoIdentifier
	}
	return seed, nil
}

// SeedFromText finds identifiers in extracted page text.
func SeedFromText(text string) Seed {
	return Seed{
		DOI:     findDOI(text),
		ArXivID: findArXivID(text),
		Title:   findTitle(text),
	}
}

// findDOI finds a DOI in text.
func findDOI(text string) string {
	for _, match := range doiPattern.FindAllString(text, -1) {
		// Remove trailing punctuation
		match = strings.TrimRight(match, ".,;:)")
		if isValidDOI(match) {
			return paper.NormalizeDOI(match)
		}
	}
	return ""
}

func findArXivID(text string) string {
	m := arxivPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// isValidDOI performs basic validation on a DOI.
func isValidDOI(doi string) bool {
	if len(doi) < 10 || !strings.HasPrefix(doi, "10.") {
		return false
	}
	slashIdx := strings.Index(doi, "/")
	return slashIdx != -1 && slashIdx < len(doi)-1
}

// findTitle returns the first substantial line of the first page. This is a
// heuristic; running headers are skipped.
func findTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 20 && !isHeaderLine(line) {
			return line
		}
	}
	return ""
}

// isHeaderLine checks if a line is likely a header/footer.
func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "journal"),
		strings.Contains(lower, "copyright"),
		strings.Contains(lower, "doi"),
		strings.Contains(lower, "arxiv:"),
		strings.Contains(lower, "volume") && strings.Contains(lower, "issue"),
		strings.Contains(lower, "article") && strings.Contains(lower, "published"):
		return true
	}
	return false
}
