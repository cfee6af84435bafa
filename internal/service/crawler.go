package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"news_crawler/internal/config"
	"news_crawler/internal/domain"
	"news_crawler/internal/enrich"
)

// CrawlService advances a cursor through external article indexes, enriches
// found content and persists it. The cursor lives in memory only; it is
// recovered from the stored maximum index on the first run after a restart.
// The scheduler's single-flight guard is the only thing serializing access
// to it.
type CrawlService struct {
	source    Source
	articles  ArticleStore
	dedup     DuplicateRemover
	txManager TransactionManager
	enricher  Enricher
	publisher Publisher
	notifier  Notifier
	cache     PageCache
	logger    *slog.Logger
	config    config.CrawlConfig

	cursor int64
}

func NewCrawlService(
	source Source,
	articles ArticleStore,
	dedup DuplicateRemover,
	txManager TransactionManager,
	enricher Enricher,
	publisher Publisher,
	notifier Notifier,
	cache PageCache,
	logger *slog.Logger,
	cfg config.CrawlConfig,
) *CrawlService {
	return &CrawlService{
		source:    source,
		articles:  articles,
		dedup:     dedup,
		txManager: txManager,
		enricher:  enricher,
		publisher: publisher,
		notifier:  notifier,
		cache:     cache,
		logger:    logger.With("component", "crawler"),
		config:    cfg,
	}
}

// Cursor returns the next external index the crawler will try.
func (s *CrawlService) Cursor() int64 {
	return s.cursor
}

// RunOnce executes one pipeline cycle: a dedup pass, then up to MaxAttempts
// fetches starting at the cursor. A missing, pending or unreadable page
// advances the cursor; a persistence failure does not, so a transient
// database outage retries the same index on the next scheduled run.
func (s *CrawlService) RunOnce(ctx context.Context) domain.CrawlOutcome {
	if err := s.ensureCursor(ctx); err != nil {
		s.logger.Error("cursor recovery failed", "error", err)
		return domain.CrawlOutcome{Kind: domain.OutcomeFailed, Err: err}
	}

	if removed, err := s.dedup.RemoveDuplicates(ctx); err != nil {
		s.logger.Error("dedup pass failed", "error", err)
	} else if removed > 0 {
		s.logger.Info("removed duplicate articles", "count", removed)
	}

	attempts := 0
	for attempts < s.config.MaxAttempts {
		index := s.cursor
		page := s.source.Fetch(ctx, index)
		attempts++

		if page.Class != domain.PageContent {
			s.logger.Debug("no content at index",
				"external_index", index,
				"class", page.Class.String(),
			)
			s.cursor++
			continue
		}

		article, err := s.enrichAndStore(ctx, index, page)
		if err != nil {
			s.logger.Error("store failed, index will be retried",
				"external_index", index,
				"error", err,
			)
			return domain.CrawlOutcome{Kind: domain.OutcomeFailed, Attempted: attempts, Err: err}
		}

		s.cursor++
		s.afterStore(ctx, article)

		s.logger.Info("stored new article",
			"external_index", index,
			"title", article.Title,
		)
		return domain.CrawlOutcome{Kind: domain.OutcomeStored, Attempted: attempts, Article: article}
	}

	s.logger.Info("no new article found", "attempted", attempts, "next_index", s.cursor)
	return domain.CrawlOutcome{Kind: domain.OutcomeSkipped, Attempted: attempts}
}

func (s *CrawlService) ensureCursor(ctx context.Context) error {
	if s.cursor != 0 {
		return nil
	}

	maxIndex, ok, err := s.articles.MaxExternalIndex(ctx)
	if err != nil {
		return fmt.Errorf("load max external index: %w", err)
	}

	if ok {
		s.cursor = maxIndex + 1
	} else {
		s.cursor = s.config.StartIndex
	}

	s.logger.Info("cursor recovered", "cursor", s.cursor, "from_store", ok)
	return nil
}

func (s *CrawlService) enrichAndStore(ctx context.Context, index int64, page domain.Page) (*domain.Article, error) {
	title := enrich.Normalize(page.Title)
	body := enrich.Normalize(page.Body)

	// Summary and tag extraction are independent model calls; run them on
	// the bounded worker group. Failures surface as sentinel strings, not
	// errors, so the group never aborts.
	var summary, tags string
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	g.Go(func() error {
		summary = s.enricher.Summarize(gctx, body)
		return nil
	})
	g.Go(func() error {
		tags = s.enricher.ExtractTags(gctx, body)
		return nil
	})
	_ = g.Wait()

	article := &domain.Article{
		Title:         title,
		Content:       enrich.Normalize(summary),
		ExternalIndex: index,
		Tags:          enrich.Normalize(tags),
		URL:           s.source.URL(index),
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		id, err := s.articles.Insert(txCtx, article)
		if err != nil {
			return fmt.Errorf("insert article: %w", err)
		}
		article.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	return article, nil
}

// afterStore fans the new article out to listeners, the message broker and
// the read cache. None of these can fail the run; the article is already
// committed.
func (s *CrawlService) afterStore(ctx context.Context, article *domain.Article) {
	if s.notifier != nil {
		s.notifier.NotifyNewArticle(article)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, article); err != nil {
			s.logger.Error("publish failed", "external_index", article.ExternalIndex, "error", err)
		}
	}

	if s.cache != nil {
		if err := s.cache.InvalidatePages(ctx); err != nil {
			s.logger.Warn("cache invalidation failed", "error", err)
		}
	}
}
