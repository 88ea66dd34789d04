package openalex

// Work is an OpenAlex work object.
type Work struct {
	ID                    string           `json:"id"`
	DisplayName           string           `json:"display_name"`
	PublicationYear       int              `json:"publication_year"`
	IDs                   WorkIDs          `json:"ids"`
	Authorships           []Authorship     `json:"authorships"`
	PrimaryLocation       *Location        `json:"primary_location"`
	CitedByCount          int              `json:"cited_by_count"`
	ReferencedWorks       []string         `json:"referenced_works"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
	Concepts              []Concept        `json:"concepts"`
}

type WorkIDs struct {
	OpenAlex string `json:"openalex"`
	DOI      string `json:"doi"`
	ArXiv    string `json:"arxiv"`
}

type Authorship struct {
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

type Location struct {
	LandingPageURL string `json:"landing_page_url"`
	Source         *struct {
		DisplayName string `json:"display_name"`
	} `json:"source"`
}

type Concept struct {
	DisplayName string  `json:"display_name"`
	Level       int     `json:"level"`
	Score       float64 `json:"score"`
}

// WorkList is the response from the /works list endpoint.
type WorkList struct {
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
	Results []Work `json:"results"`
}
