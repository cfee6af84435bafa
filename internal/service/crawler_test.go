package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"news_crawler/internal/config"
	"news_crawler/internal/domain"
	"news_crawler/internal/enrich"
	"news_crawler/internal/service/mocks"
)

type CrawlServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source    *mocks.MockSource
	articles  *mocks.MockArticleStore
	dedup     *mocks.MockDuplicateRemover
	txManager *mocks.MockTransactionManager
	enricher  *mocks.MockEnricher
	publisher *mocks.MockPublisher
	notifier  *mocks.MockNotifier
	cache     *mocks.MockPageCache

	service *CrawlService
	cfg     config.CrawlConfig
	logger  *slog.Logger
}

func (s *CrawlServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.source = mocks.NewMockSource(s.ctrl)
	s.articles = mocks.NewMockArticleStore(s.ctrl)
	s.dedup = mocks.NewMockDuplicateRemover(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)
	s.enricher = mocks.NewMockEnricher(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.cache = mocks.NewMockPageCache(s.ctrl)

	s.cfg = config.CrawlConfig{
		Interval:    30 * time.Minute,
		StartIndex:  169400,
		MaxAttempts: 3,
		Workers:     5,
	}

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.service = NewCrawlService(
		s.source,
		s.articles,
		s.dedup,
		s.txManager,
		s.enricher,
		s.publisher,
		s.notifier,
		s.cache,
		s.logger,
		s.cfg,
	)
}

func (s *CrawlServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestCrawlServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CrawlServiceTestSuite))
}

func (s *CrawlServiceTestSuite) expectEmptyStore() {
	s.articles.EXPECT().MaxExternalIndex(gomock.Any()).Return(int64(0), false, nil)
}

func (s *CrawlServiceTestSuite) expectDedup(removed int, err error) {
	s.dedup.EXPECT().RemoveDuplicates(gomock.Any()).Return(removed, err)
}

func (s *CrawlServiceTestSuite) expectTransaction() {
	s.txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
}

func contentPage(title, body string) domain.Page {
	return domain.Page{Class: domain.PageContent, Title: title, Body: body, FetchedAt: time.Now()}
}

func (s *CrawlServiceTestSuite) TestRunOnce_StoredAfterTwoMissing() {
	ctx := context.Background()

	s.expectEmptyStore()
	s.expectDedup(0, nil)

	s.source.EXPECT().Fetch(ctx, int64(169400)).Return(domain.Page{Class: domain.PageMissing})
	s.source.EXPECT().Fetch(ctx, int64(169401)).Return(domain.Page{Class: domain.PageMissing})
	s.source.EXPECT().Fetch(ctx, int64(169402)).Return(contentPage("Hello", "Hello world."))

	s.enricher.EXPECT().Summarize(gomock.Any(), "Hello world.").Return("Hello world summary.")
	s.enricher.EXPECT().ExtractTags(gomock.Any(), "Hello world.").Return("greeting, demo")
	s.source.EXPECT().URL(int64(169402)).Return("https://www.aitimes.com/news/articleView.html?idxno=169402")

	s.expectTransaction()
	var stored *domain.Article
	s.articles.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, article *domain.Article) (int64, error) {
			stored = article
			return 7, nil
		},
	)

	s.notifier.EXPECT().NotifyNewArticle(gomock.Any())
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
	s.cache.EXPECT().InvalidatePages(gomock.Any()).Return(nil)

	outcome := s.service.RunOnce(ctx)

	s.Equal(domain.OutcomeStored, outcome.Kind)
	s.Equal(3, outcome.Attempted)
	s.Require().NotNil(outcome.Article)
	s.Equal(int64(7), outcome.Article.ID)

	s.Require().NotNil(stored)
	s.Equal(int64(169402), stored.ExternalIndex)
	s.Equal("Hello world summary.", stored.Content)
	s.Equal("greeting, demo", stored.Tags)
	s.Equal("https://www.aitimes.com/news/articleView.html?idxno=169402", stored.URL)

	s.Equal(int64(169403), s.service.Cursor())
}

func (s *CrawlServiceTestSuite) TestRunOnce_AllMissingAdvancesCursorByThree() {
	ctx := context.Background()

	s.expectEmptyStore()
	s.expectDedup(0, nil)

	s.source.EXPECT().Fetch(ctx, int64(169400)).Return(domain.Page{Class: domain.PageMissing})
	s.source.EXPECT().Fetch(ctx, int64(169401)).Return(domain.Page{Class: domain.PagePending})
	s.source.EXPECT().Fetch(ctx, int64(169402)).Return(domain.Page{Class: domain.PageError})

	outcome := s.service.RunOnce(ctx)

	s.Equal(domain.OutcomeSkipped, outcome.Kind)
	s.Equal(3, outcome.Attempted)
	s.Nil(outcome.Article)
	s.Equal(int64(169403), s.service.Cursor())
}

func (s *CrawlServiceTestSuite) TestRunOnce_PersistFailureDoesNotAdvanceCursor() {
	ctx := context.Background()

	s.expectEmptyStore()
	s.expectDedup(0, nil)

	s.source.EXPECT().Fetch(ctx, int64(169400)).Return(contentPage("제목", "본문 내용"))
	s.enricher.EXPECT().Summarize(gomock.Any(), "본문 내용").Return("요약")
	s.enricher.EXPECT().ExtractTags(gomock.Any(), "본문 내용").Return("태그")
	s.source.EXPECT().URL(int64(169400)).Return("https://example.com/169400")

	s.txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

	outcome := s.service.RunOnce(ctx)

	s.Equal(domain.OutcomeFailed, outcome.Kind)
	s.Equal(1, outcome.Attempted)
	s.Error(outcome.Err)
	s.Equal(int64(169400), s.service.Cursor())
}

func (s *CrawlServiceTestSuite) TestRunOnce_CursorRecoveredFromStoredMax() {
	ctx := context.Background()

	s.articles.EXPECT().MaxExternalIndex(gomock.Any()).Return(int64(170000), true, nil)
	s.expectDedup(0, nil)

	s.source.EXPECT().Fetch(ctx, int64(170001)).Return(domain.Page{Class: domain.PageMissing})
	s.source.EXPECT().Fetch(ctx, int64(170002)).Return(domain.Page{Class: domain.PageMissing})
	s.source.EXPECT().Fetch(ctx, int64(170003)).Return(domain.Page{Class: domain.PageMissing})

	outcome := s.service.RunOnce(ctx)

	s.Equal(domain.OutcomeSkipped, outcome.Kind)
	s.Equal(int64(170004), s.service.Cursor())
}

func (s *CrawlServiceTestSuite) TestRunOnce_CursorRecoveryFailure() {
	ctx := context.Background()

	s.articles.EXPECT().MaxExternalIndex(gomock.Any()).Return(int64(0), false, errors.New("db down"))

	outcome := s.service.RunOnce(ctx)

	s.Equal(domain.OutcomeFailed, outcome.Kind)
	s.Error(outcome.Err)
	s.Equal(int64(0), s.service.Cursor())
}

func (s *CrawlServiceTestSuite) TestRunOnce_DedupFailureDoesNotBlockCrawl() {
	ctx := context.Background()

	s.expectEmptyStore()
	s.expectDedup(0, errors.New("dedup broke"))

	s.source.EXPECT().Fetch(ctx, int64(169400)).Return(domain.Page{Class: domain.PageMissing})
	s.source.EXPECT().Fetch(ctx, int64(169401)).Return(domain.Page{Class: domain.PageMissing})
	s.source.EXPECT().Fetch(ctx, int64(169402)).Return(domain.Page{Class: domain.PageMissing})

	outcome := s.service.RunOnce(ctx)
	s.Equal(domain.OutcomeSkipped, outcome.Kind)
}

func (s *CrawlServiceTestSuite) TestRunOnce_EnrichmentSentinelIsStoredVerbatim() {
	ctx := context.Background()

	s.expectEmptyStore()
	s.expectDedup(0, nil)

	s.source.EXPECT().Fetch(ctx, int64(169400)).Return(contentPage("제목", "본문"))
	s.enricher.EXPECT().Summarize(gomock.Any(), "본문").Return(enrich.SentinelCallFailed)
	s.enricher.EXPECT().ExtractTags(gomock.Any(), "본문").Return(enrich.SentinelCallFailed)
	s.source.EXPECT().URL(int64(169400)).Return("https://example.com/169400")

	s.expectTransaction()
	var stored *domain.Article
	s.articles.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, article *domain.Article) (int64, error) {
			stored = article
			return 1, nil
		},
	)
	s.notifier.EXPECT().NotifyNewArticle(gomock.Any())
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
	s.cache.EXPECT().InvalidatePages(gomock.Any()).Return(nil)

	outcome := s.service.RunOnce(ctx)

	s.Equal(domain.OutcomeStored, outcome.Kind)
	s.Require().NotNil(stored)
	s.Equal(enrich.SentinelCallFailed, stored.Content)
	s.Equal(int64(169401), s.service.Cursor())
}

func (s *CrawlServiceTestSuite) TestRunOnce_PublishFailureDoesNotFailRun() {
	ctx := context.Background()

	s.expectEmptyStore()
	s.expectDedup(0, nil)

	s.source.EXPECT().Fetch(ctx, int64(169400)).Return(contentPage("제목", "본문"))
	s.enricher.EXPECT().Summarize(gomock.Any(), "본문").Return("요약")
	s.enricher.EXPECT().ExtractTags(gomock.Any(), "본문").Return("태그")
	s.source.EXPECT().URL(int64(169400)).Return("https://example.com/169400")

	s.expectTransaction()
	s.articles.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(int64(1), nil)

	s.notifier.EXPECT().NotifyNewArticle(gomock.Any())
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
	s.cache.EXPECT().InvalidatePages(gomock.Any()).Return(nil)

	outcome := s.service.RunOnce(ctx)

	s.Equal(domain.OutcomeStored, outcome.Kind)
	s.Equal(int64(169401), s.service.Cursor())
}

func (s *CrawlServiceTestSuite) TestRunOnce_TitleAndBodyNormalizedBeforeEnrichment() {
	ctx := context.Background()

	s.expectEmptyStore()
	s.expectDedup(0, nil)

	s.source.EXPECT().Fetch(ctx, int64(169400)).Return(contentPage("  **제목**  ", "첫 문단.\n둘째   문단."))
	s.enricher.EXPECT().Summarize(gomock.Any(), "첫 문단. 둘째 문단.").Return("**요약**\n본문")
	s.enricher.EXPECT().ExtractTags(gomock.Any(), "첫 문단. 둘째 문단.").Return("태그1,\n태그2")
	s.source.EXPECT().URL(int64(169400)).Return("https://example.com/169400")

	s.expectTransaction()
	var stored *domain.Article
	s.articles.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, article *domain.Article) (int64, error) {
			stored = article
			return 1, nil
		},
	)
	s.notifier.EXPECT().NotifyNewArticle(gomock.Any())
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
	s.cache.EXPECT().InvalidatePages(gomock.Any()).Return(nil)

	outcome := s.service.RunOnce(ctx)

	s.Equal(domain.OutcomeStored, outcome.Kind)
	s.Require().NotNil(stored)
	s.Equal("제목", stored.Title)
	s.Equal("요약 본문", stored.Content)
	s.Equal("태그1, 태그2", stored.Tags)
}
