//go:build integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"news_crawler/internal/domain"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_articles.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM articles")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) insert(title, content string, index int64) int64 {
	store := NewArticleStore(s.db)
	id, err := store.Insert(s.ctx, &domain.Article{
		Title:         title,
		Content:       content,
		ExternalIndex: index,
		Tags:          "태그1, 태그2",
		URL:           "https://www.aitimes.com/news/articleView.html?idxno=169402",
	})
	s.Require().NoError(err)
	return id
}

func (s *PostgresIntegrationSuite) TestArticleStore_Insert() {
	id := s.insert("제목", "본문", 169402)
	s.Greater(id, int64(0))

	var count int
	err := s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM articles WHERE current_index = $1", 169402)
	s.NoError(err)
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestArticleStore_MaxExternalIndex_Empty() {
	store := NewArticleStore(s.db)

	_, ok, err := store.MaxExternalIndex(s.ctx)
	s.NoError(err)
	s.False(ok)
}

func (s *PostgresIntegrationSuite) TestArticleStore_MaxExternalIndex() {
	s.insert("a", "body a", 169400)
	s.insert("b", "body b", 169405)
	s.insert("c", "body c", 169402)

	store := NewArticleStore(s.db)
	maxIndex, ok, err := store.MaxExternalIndex(s.ctx)
	s.NoError(err)
	s.True(ok)
	s.Equal(int64(169405), maxIndex)
}

func (s *PostgresIntegrationSuite) TestArticleStore_ListPage_OrderedDescending() {
	for i := int64(0); i < 15; i++ {
		s.insert("기사", "본문", 169400+i)
	}

	store := NewArticleStore(s.db)

	page0, err := store.ListPage(s.ctx, 0, 10)
	s.NoError(err)
	s.Len(page0, 10)
	s.Equal(int64(169414), page0[0].ExternalIndex)
	s.Equal(int64(169405), page0[9].ExternalIndex)

	page1, err := store.ListPage(s.ctx, 10, 10)
	s.NoError(err)
	s.Len(page1, 5)
	s.Equal(int64(169404), page1[0].ExternalIndex)
}

func (s *PostgresIntegrationSuite) TestArticleStore_GetByExternalIndex() {
	s.insert("제목", "본문", 169402)

	store := NewArticleStore(s.db)

	article, err := store.GetByExternalIndex(s.ctx, 169402)
	s.NoError(err)
	s.Require().NotNil(article)
	s.Equal("제목", article.Title)

	missing, err := store.GetByExternalIndex(s.ctx, 999999)
	s.NoError(err)
	s.Nil(missing)
}

func (s *PostgresIntegrationSuite) TestArticleStore_ListAll_InsertionOrder() {
	first := s.insert("first", "body 1", 169405)
	second := s.insert("second", "body 2", 169401)

	store := NewArticleStore(s.db)
	all, err := store.ListAll(s.ctx)
	s.NoError(err)
	s.Require().Len(all, 2)
	s.Equal(first, all[0].ID)
	s.Equal(second, all[1].ID)
}

func (s *PostgresIntegrationSuite) TestArticleStore_DeleteByIDs() {
	keep := s.insert("keep", "body keep", 169400)
	drop1 := s.insert("drop1", "body drop1", 169401)
	drop2 := s.insert("drop2", "body drop2", 169402)

	store := NewArticleStore(s.db)
	removed, err := store.DeleteByIDs(s.ctx, []int64{drop1, drop2})
	s.NoError(err)
	s.Equal(int64(2), removed)

	all, err := store.ListAll(s.ctx)
	s.NoError(err)
	s.Require().Len(all, 1)
	s.Equal(keep, all[0].ID)
}

func (s *PostgresIntegrationSuite) TestTransaction_RollbackLeavesNoRows() {
	tm := NewTransactionManager(s.db)
	store := NewArticleStore(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		_, err := store.Insert(ctx, &domain.Article{
			Title:         "rollback me",
			Content:       "body",
			ExternalIndex: 169410,
			URL:           "https://example.com",
		})
		s.NoError(err)
		return context.Canceled
	})
	s.Error(err)

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM articles")
	s.NoError(err)
	s.Equal(0, count)
}

func (s *PostgresIntegrationSuite) TestTransaction_Commit() {
	tm := NewTransactionManager(s.db)
	store := NewArticleStore(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		_, err := store.Insert(ctx, &domain.Article{
			Title:         "committed",
			Content:       "body",
			ExternalIndex: 169411,
			URL:           "https://example.com",
		})
		return err
	})
	s.NoError(err)

	article, err := store.GetByExternalIndex(s.ctx, 169411)
	s.NoError(err)
	s.NotNil(article)
}
