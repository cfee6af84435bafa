package aitimes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"news_crawler/internal/domain"
)

const (
	SourceID = "aitimes"

	// Sentinel phrases the site renders instead of a 404 page.
	phraseMissing = "존재하지 않는 링크"
	phrasePending = "노출대기중인 기사"

	selectorHeading = "h3.heading"
	selectorContent = "#article-view-content-div"
)

// Config holds AI Times source configuration.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Source fetches and classifies single article pages by external index.
type Source struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logger     *slog.Logger
}

// New creates a new AI Times source.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		logger:    logger.With("source", SourceID),
	}
}

// URL returns the canonical article URL for an external index.
func (s *Source) URL(externalIndex int64) string {
	return fmt.Sprintf("%s%d", s.baseURL, externalIndex)
}

// Fetch retrieves the page for one external index and classifies it.
// Network and parse failures are reported as PageError, never returned:
// the pipeline treats them like a missing page for cursor purposes.
func (s *Source) Fetch(ctx context.Context, externalIndex int64) domain.Page {
	doc, err := s.fetchDocument(ctx, s.URL(externalIndex))
	if err != nil {
		s.logger.Warn("fetch failed",
			"external_index", externalIndex,
			"error", err,
		)
		return domain.Page{Class: domain.PageError, FetchedAt: time.Now()}
	}

	return classify(doc)
}

func (s *Source) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func classify(doc *goquery.Document) domain.Page {
	now := time.Now()
	pageText := doc.Text()

	if strings.Contains(pageText, phraseMissing) {
		return domain.Page{Class: domain.PageMissing, FetchedAt: now}
	}
	if strings.Contains(pageText, phrasePending) {
		return domain.Page{Class: domain.PagePending, FetchedAt: now}
	}

	heading := doc.Find(selectorHeading).First()
	if heading.Length() == 0 {
		return domain.Page{Class: domain.PageMalformed, FetchedAt: now}
	}

	content := doc.Find(selectorContent).First()
	if content.Length() == 0 {
		return domain.Page{Class: domain.PageMalformed, FetchedAt: now}
	}

	var paragraphs []string
	content.Find("p").Each(func(_ int, p *goquery.Selection) {
		paragraphs = append(paragraphs, strings.TrimSpace(p.Text()))
	})

	return domain.Page{
		Class:     domain.PageContent,
		Title:     strings.TrimSpace(heading.Text()),
		Body:      strings.Join(paragraphs, "\n"),
		FetchedAt: now,
	}
}
