package model

// SourceCategory classifies where a mention was published. Categories carry
// different credibility weights during scoring.
type SourceCategory string

const (
	SourceNews    SourceCategory = "news"
	SourceReviews SourceCategory = "reviews"
	SourceForum   SourceCategory = "forum"
	SourceSocial  SourceCategory = "social"
	SourceBlog    SourceCategory = "blog"
)

// Weight returns the credibility weight for the category. Unknown categories
// weigh the same as blogs.
func (c SourceCategory) Weight() float64 {
	switch c {
	case SourceNews:
		return 1.0
	case SourceReviews:
		return 0.8
	case SourceForum:
		return 0.6
	case SourceSocial:
		return 0.5
	case SourceBlog:
		return 0.4
	default:
		return 0.4
	}
}

// Mention is a single web page that talks about the business.
type Mention struct {
	URL      string         `json:"url"`
	Title    string         `json:"title,omitempty"`
	Snippet  string         `json:"snippet,omitempty"`
	Source   SourceCategory `json:"source"`
	Domain   string         `json:"domain,omitempty"`
	Date     string         `json:"date,omitempty"`
	Provider string         `json:"provider,omitempty"`
}
