package models

// SiteConfig is the subset of the generator's _config.yml the CMS understands.
type SiteConfig struct {
	Title     string         `yaml:"title" json:"title"`
	URL       string         `yaml:"url" json:"url"`
	BaseURL   string         `yaml:"baseurl" json:"baseurl"`
	Permalink string         `yaml:"permalink" json:"permalink"`
	Timezone  string         `yaml:"timezone" json:"timezone"`
	Defaults  []ScopeDefault `yaml:"defaults" json:"defaults"`
	Exclude   []string       `yaml:"exclude" json:"exclude,omitempty"`
}

// ScopeDefault applies Values to every document whose path starts with Scope.Path
// and whose type matches Scope.Type (empty matches any).
type ScopeDefault struct {
	Scope struct {
		Path string `yaml:"path" json:"path"`
		Type string `yaml:"type" json:"type"`
	} `yaml:"scope" json:"scope"`
	Values map[string]any `yaml:"values" json:"values"`
}

// TaxonomyCount is one tag or category with the number of posts using it.
type TaxonomyCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}
