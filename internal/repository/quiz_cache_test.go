package repository

import (
	"lms_backend/internal/model"
	"lms_backend/pkg/logger"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

func newCacheRepo(t *testing.T, ttl time.Duration) (*QuizRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewQuizRepository(nil, rdb, ttl), mr
}

func cacheQuizFixture() *model.Quiz {
	return &model.Quiz{
		BaseModel:    model.BaseModel{ID: 42},
		Title:        "Networking basics",
		PassingScore: 70,
		Questions: []model.Question{
			{
				BaseModel:    model.BaseModel{ID: 1},
				QuestionType: model.QuestionSingle,
				Points:       5,
				Status:       model.QuestionActive,
				Options: []model.Option{
					{BaseModel: model.BaseModel{ID: 10}, Status: model.QuestionActive},
					{BaseModel: model.BaseModel{ID: 11}, IsCorrect: true, Status: model.QuestionActive},
				},
			},
		},
	}
}

func TestQuizCacheRoundTrip(t *testing.T) {
	repo, mr := newCacheRepo(t, time.Minute)
	quiz := cacheQuizFixture()

	require.Nil(t, repo.CachedQuiz(quiz.ID))

	repo.CacheQuiz(quiz)
	require.True(t, mr.Exists("quiz:def:42"))

	ttl := mr.TTL("quiz:def:42")
	require.Greater(t, ttl, time.Duration(0))
	require.LessOrEqual(t, ttl, time.Minute)

	cached := repo.CachedQuiz(quiz.ID)
	require.NotNil(t, cached)
	require.Equal(t, quiz.Title, cached.Title)
	require.Len(t, cached.Questions, 1)
	require.Len(t, cached.Questions[0].Options, 2)
	require.True(t, cached.Questions[0].Options[1].IsCorrect)
}

func TestQuizCacheInvalidate(t *testing.T) {
	repo, mr := newCacheRepo(t, time.Minute)
	quiz := cacheQuizFixture()

	repo.CacheQuiz(quiz)
	require.True(t, mr.Exists("quiz:def:42"))

	repo.InvalidateQuiz(quiz.ID)
	require.False(t, mr.Exists("quiz:def:42"))
	require.Nil(t, repo.CachedQuiz(quiz.ID))
}

func TestQuizCacheCorruptedEntry(t *testing.T) {
	repo, mr := newCacheRepo(t, time.Minute)

	// 脏缓存按未命中处理，由查库路径回填
	require.NoError(t, mr.Set("quiz:def:42", "not-json"))
	require.Nil(t, repo.CachedQuiz(42))
}

func TestQuizCacheDisabled(t *testing.T) {
	repo, mr := newCacheRepo(t, 0)

	repo.CacheQuiz(cacheQuizFixture())
	require.False(t, mr.Exists("quiz:def:42"))
}

func newMockedRepo(t *testing.T) (*QuizRepository, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewQuizRepository(db, rdb, time.Minute), mock, mr
}

func TestSaveOptionInvalidatesQuizCache(t *testing.T) {
	repo, mock, mr := newMockedRepo(t)
	repo.CacheQuiz(cacheQuizFixture())
	require.True(t, mr.Exists("quiz:def:42"))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `options`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT `quiz_id` FROM `questions`").
		WillReturnRows(sqlmock.NewRows([]string{"quiz_id"}).AddRow(42))

	// 改判正确答案后不能再吐旧缓存
	option := &model.Option{BaseModel: model.BaseModel{ID: 11}, QuestionID: 1, IsCorrect: false, Status: model.QuestionActive}
	require.NoError(t, repo.SaveOption(option))

	require.False(t, mr.Exists("quiz:def:42"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOptionInvalidatesQuizCache(t *testing.T) {
	repo, mock, mr := newMockedRepo(t)
	repo.CacheQuiz(cacheQuizFixture())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `options`").WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT `quiz_id` FROM `questions`").
		WillReturnRows(sqlmock.NewRows([]string{"quiz_id"}).AddRow(42))

	option := &model.Option{QuestionID: 1, OptionText: "record", Status: model.QuestionActive}
	require.NoError(t, repo.CreateOption(option))

	require.False(t, mr.Exists("quiz:def:42"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizCacheWithoutRedis(t *testing.T) {
	repo := NewQuizRepository(nil, nil, time.Minute)

	// 未配置 redis 时缓存静默跳过
	repo.CacheQuiz(cacheQuizFixture())
	repo.InvalidateQuiz(42)
	require.Nil(t, repo.CachedQuiz(42))
}
