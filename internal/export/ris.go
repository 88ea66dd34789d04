package export

import (
	"fmt"
	"strings"

	"github.com/matsen/citethreads/internal/paper"
)

// ToRIS converts a paper to an RIS record.
func ToRIS(p paper.Paper) string {
	var b strings.Builder
	line := func(tag, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s  - %s\n", tag, value)
		}
	}

	ty := "JOUR"
	if determineEntryType(p) == "inproceedings" {
		ty = "CONF"
	}
	line("TY", ty)
	line("TI", p.Title)
	for _, a := range p.Authors {
		line("AU", a)
	}
	if p.Year > 0 {
		line("PY", fmt.Sprint(p.Year))
	}
	line("JO", p.Venue)
	line("DO", p.DOI)
	line("UR", p.URL)
	line("AB", truncateAbstract(p.Abstract))
	b.WriteString("ER  - \n")
	return b.String()
}

// ToRISList converts multiple papers to RIS format.
func ToRISList(papers []paper.Paper) string {
	entries := make([]string, 0, len(papers))
	for _, p := range papers {
		entries = append(entries, ToRIS(p))
	}
	return strings.Join(entries, "\n")
}
