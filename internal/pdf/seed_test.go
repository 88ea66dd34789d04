package pdf

import (
	"bytes"
	"testing"
)

func TestFindDOI(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain", "Published as 10.1038/nature12373 in Nature", "10.1038/nature12373"},
		{"url", "https://doi.org/10.1126/Science.ABC123.", "10.1126/science.abc123"},
		{"trailing paren", "(see 10.1101/2020.01.01.123456)", "10.1101/2020.01.01.123456"},
		{"none", "no identifier here", ""},
		{"too short", "10.1234/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findDOI(tt.text); got != tt.want {
				t.Errorf("findDOI() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindArXivID(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"arXiv:1706.03762v5 [cs.CL] 6 Dec 2017", "1706.03762"},
		{"ARXIV: 2106.01234", "2106.01234"},
		{"1706.03762 without prefix", ""},
	}
	for _, tt := range tests {
		if got := findArXivID(tt.text); got != tt.want {
			t.Errorf("findArXivID(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestSeedFromText(t *testing.T) {
	text := "Journal of Things, Volume 3 Issue 2\n" +
		"arXiv:1706.03762v5 [cs.CL] 6 Dec 2017\n" +
		"Attention Is All You Need For Testing\n" +
		"Ashish Vaswani\n"

	seed := SeedFromText(text)

	if seed.DOI != "" {
		t.Errorf("DOI = %q, want empty", seed.DOI)
	}
	if seed.ArXivID != "1706.03762" {
		t.Errorf("ArXivID = %q", seed.ArXivID)
	}
	if seed.Title != "Attention Is All You Need For Testing" {
		t.Errorf("Title = %q", seed.Title)
	}
	if seed.ID() != "arXiv:1706.03762" {
		t.Errorf("ID() = %q", seed.ID())
	}
}

func TestSeedID(t *testing.T) {
	if got := (Seed{DOI: "10.1/x", ArXivID: "1706.03762"}).ID(); got != "DOI:10.1/x" {
		t.Errorf("ID() = %q, want DOI preferred", got)
	}
	if got := (Seed{Title: "Only a title"}).ID(); got != "" {
		t.Errorf("ID() = %q, want empty", got)
	}
}

func TestExtractSeedReaderInvalid(t *testing.T) {
	data := []byte("not a pdf")
	if _, err := ExtractSeedReader(bytes.NewReader(data), int64(len(data))); err == nil {
		t.Error("ExtractSeedReader() should fail on non-PDF input")
	}
}

func TestExtractSeedMissingFile(t *testing.T) {
	if _, err := ExtractSeed("/nonexistent/file.pdf"); err == nil {
		t.Error("ExtractSeed() should fail for a missing file")
	}
}
