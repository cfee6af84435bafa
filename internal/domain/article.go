package domain

import "time"

// Article is a crawled, enriched article as persisted in the articles table.
type Article struct {
	ID            int64  `db:"id" json:"id"`
	Title         string `db:"news_title" json:"title"`
	Content       string `db:"news_content" json:"content"`
	ExternalIndex int64  `db:"current_index" json:"current_index"`
	Tags          string `db:"tag" json:"tag"`
	URL           string `db:"base_url" json:"url"`
}

// PageClass is the Fetcher's classification of a single source page.
type PageClass int

const (
	PageContent PageClass = iota
	PageMissing
	PagePending
	PageMalformed
	PageError
)

func (c PageClass) String() string {
	switch c {
	case PageContent:
		return "content"
	case PageMissing:
		return "missing"
	case PagePending:
		return "pending"
	case PageMalformed:
		return "malformed"
	case PageError:
		return "error"
	}
	return "unknown"
}

// Page is the result of fetching one external index. Title and Body are
// populated only when Class is PageContent.
type Page struct {
	Class     PageClass
	Title     string
	Body      string
	FetchedAt time.Time
}
