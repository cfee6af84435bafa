package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"news_crawler/internal/domain"
)

type ArticleStore struct {
	db *sqlx.DB
}

func NewArticleStore(db *sqlx.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

func (s *ArticleStore) Insert(ctx context.Context, article *domain.Article) (int64, error) {
	query := `
		INSERT INTO articles (news_title, news_content, current_index, tag, base_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	exec := GetExecutor(ctx, s.db)

	var id int64
	err := exec.QueryRowxContext(ctx, query,
		article.Title,
		article.Content,
		article.ExternalIndex,
		article.Tags,
		article.URL,
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	return id, nil
}

// MaxExternalIndex returns the largest stored current_index. ok is false
// when the table is empty.
func (s *ArticleStore) MaxExternalIndex(ctx context.Context) (maxIndex int64, ok bool, err error) {
	var value sql.NullInt64
	err = s.db.GetContext(ctx, &value, "SELECT MAX(current_index) FROM articles")
	if err != nil {
		return 0, false, err
	}
	if !value.Valid {
		return 0, false, nil
	}
	return value.Int64, true, nil
}

// ListPage returns one page of articles ordered by current_index descending.
func (s *ArticleStore) ListPage(ctx context.Context, offset, limit int) ([]domain.Article, error) {
	query := `
		SELECT id, news_title, news_content, current_index, tag, base_url
		FROM articles
		ORDER BY current_index DESC
		OFFSET $1 LIMIT $2`

	articles := []domain.Article{}
	err := s.db.SelectContext(ctx, &articles, query, offset, limit)
	return articles, err
}

// GetByExternalIndex returns the article stored for one external index, or
// nil when none exists.
func (s *ArticleStore) GetByExternalIndex(ctx context.Context, externalIndex int64) (*domain.Article, error) {
	query := `
		SELECT id, news_title, news_content, current_index, tag, base_url
		FROM articles
		WHERE current_index = $1
		LIMIT 1`

	var article domain.Article
	err := s.db.GetContext(ctx, &article, query, externalIndex)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// ListAll returns every article in insertion order, for the dedup pass.
func (s *ArticleStore) ListAll(ctx context.Context) ([]domain.Article, error) {
	query := `
		SELECT id, news_title, news_content, current_index, tag, base_url
		FROM articles
		ORDER BY id ASC`

	articles := []domain.Article{}
	err := s.db.SelectContext(ctx, &articles, query)
	return articles, err
}

func (s *ArticleStore) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	exec := GetExecutor(ctx, s.db)

	res, err := exec.ExecContext(ctx, "DELETE FROM articles WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
