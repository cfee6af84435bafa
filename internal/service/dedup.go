package service

import (
	"context"
	"fmt"
	"log/slog"
)

// Deduplicator removes later-inserted articles whose title or body exactly
// matches an earlier one. Runs as a full scan each pipeline cycle, which is
// fine at this table's scale; a concurrent insert during the scan stays
// undetected until the next pass.
type Deduplicator struct {
	articles  ArticleStore
	txManager TransactionManager
	logger    *slog.Logger
}

func NewDeduplicator(articles ArticleStore, txManager TransactionManager, logger *slog.Logger) *Deduplicator {
	return &Deduplicator{
		articles:  articles,
		txManager: txManager,
		logger:    logger.With("component", "dedup"),
	}
}

// RemoveDuplicates walks all articles in insertion order, first seen wins.
// All deletions happen in one transaction; on error nothing is removed.
func (d *Deduplicator) RemoveDuplicates(ctx context.Context) (int, error) {
	articles, err := d.articles.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list articles: %w", err)
	}

	seenTitles := make(map[string]struct{}, len(articles))
	seenBodies := make(map[string]struct{}, len(articles))
	var doomed []int64

	for _, article := range articles {
		_, titleSeen := seenTitles[article.Title]
		_, bodySeen := seenBodies[article.Content]

		if titleSeen || bodySeen {
			doomed = append(doomed, article.ID)
			continue
		}

		seenTitles[article.Title] = struct{}{}
		seenBodies[article.Content] = struct{}{}
	}

	if len(doomed) == 0 {
		return 0, nil
	}

	err = d.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		_, err := d.articles.DeleteByIDs(txCtx, doomed)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete duplicates: %w", err)
	}

	return len(doomed), nil
}
