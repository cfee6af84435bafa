package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"news_crawler/internal/domain"
)

type ArticleStore interface {
	Insert(ctx context.Context, article *domain.Article) (int64, error)
	MaxExternalIndex(ctx context.Context) (maxIndex int64, ok bool, err error)
	ListAll(ctx context.Context) ([]domain.Article, error)
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
}

type Source interface {
	URL(externalIndex int64) string
	Fetch(ctx context.Context, externalIndex int64) domain.Page
}

// Enricher wraps the generative-model capability. Every operation degrades
// to a sentinel string on failure instead of returning an error.
type Enricher interface {
	Summarize(ctx context.Context, body string) string
	ExtractTags(ctx context.Context, body string) string
	GenerateTitle(ctx context.Context, body string) string
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type DuplicateRemover interface {
	RemoveDuplicates(ctx context.Context) (int, error)
}

type Publisher interface {
	Publish(ctx context.Context, article *domain.Article) error
	Close() error
}

type Notifier interface {
	NotifyNewArticle(article *domain.Article)
}

type PageCache interface {
	InvalidatePages(ctx context.Context) error
}
