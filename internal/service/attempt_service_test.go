package service

import (
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testUser   uint = 7
	testCourse uint = 1
	testLesson uint = 1
	testQuiz   uint = 100
)

type fixture struct {
	store    *fakeStore
	cascade  *fakeCascadeTx
	notifier *fakeNotifier
	quizzes  *fakeQuizzes
	svc      *AttemptService
	now      time.Time
}

// newFixture 选课用户 7，课程 1 含 lessonCount 个课时，
// 测验 100 挂在课时 1 下：单选 5 分 + 多选 5 分，及格线 70，限时 30 分钟，最多 2 次
func newFixture(t *testing.T, lessonCount int64) *fixture {
	t.Helper()

	q1 := question(1, model.QuestionSingle, 5, false, opt(10, false, 0), opt(11, true, 0))
	q2 := question(2, model.QuestionMultiple, 5, true,
		opt(21, true, 0), opt(22, true, 0), opt(23, false, 0))

	quiz := &model.Quiz{
		BaseModel:       model.BaseModel{ID: testQuiz},
		LessonID:        testLesson,
		Title:           "Networking basics",
		DurationMinutes: 30,
		PassingScore:    70,
		AttemptsAllowed: 2,
		IsPublished:     true,
		TotalPoints:     10,
		Questions:       []model.Question{q1, q2},
	}

	cascade := newFakeCascadeTx()
	cascade.lessonsPerCourse[testCourse] = lessonCount
	cascade.enrollments[pairKey{testUser, testCourse}] = &model.Enrollment{
		UserID:   testUser,
		CourseID: testCourse,
		Status:   model.EnrollmentActive,
	}

	store := newFakeStore(cascade)
	notifier := &fakeNotifier{}
	quizzes := &fakeQuizzes{quizzes: map[uint]*model.Quiz{testQuiz: quiz}}
	lessons := &fakeLessons{lessons: map[uint]*model.Lesson{
		testLesson: {BaseModel: model.BaseModel{ID: testLesson}, CourseID: testCourse},
		2:          {BaseModel: model.BaseModel{ID: 2}, CourseID: testCourse},
	}}

	f := &fixture{
		store:    store,
		cascade:  cascade,
		notifier: notifier,
		quizzes:  quizzes,
		now:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewAttemptService(store, quizzes, lessons, &fakeEnrollments{tx: cascade}, notifier, &Scorer{})
	f.svc.Now = func() time.Time { return f.now }
	return f
}

func (f *fixture) start(t *testing.T) *model.Attempt {
	t.Helper()
	attempt, _, err := f.svc.StartAttempt(testUser, testQuiz)
	require.NoError(t, err)
	return attempt
}

func (f *fixture) answer(t *testing.T, attemptID, questionID uint, answer interface{}) {
	t.Helper()
	_, err := f.svc.RecordAnswer(testUser, attemptID, questionID, rawJSON(t, answer))
	require.NoError(t, err)
}

func TestStartAttempt(t *testing.T) {
	f := newFixture(t, 2)

	attempt := f.start(t)
	require.Equal(t, 1, attempt.AttemptNumber)
	require.Equal(t, model.AttemptInProgress, attempt.Status)
	require.NotNil(t, attempt.ExpiresAt)
	require.Equal(t, f.now.Add(30*time.Minute), *attempt.ExpiresAt)

	second := f.start(t)
	require.Equal(t, 2, second.AttemptNumber)

	_, _, err := f.svc.StartAttempt(testUser, testQuiz)
	require.ErrorIs(t, err, util.ErrAttemptsExhausted)
}

func TestStartAttemptUntimedQuiz(t *testing.T) {
	f := newFixture(t, 2)
	f.quizzes.quizzes[testQuiz].DurationMinutes = 0

	attempt := f.start(t)
	require.Nil(t, attempt.ExpiresAt)
	require.Equal(t, 0, attempt.RemainingSeconds(f.now))
}

func TestStartAttemptRequiresEnrollment(t *testing.T) {
	f := newFixture(t, 2)

	_, _, err := f.svc.StartAttempt(99, testQuiz)
	require.ErrorIs(t, err, util.ErrNotEnrolled)
}

func TestStartAttemptRetriesOnConflict(t *testing.T) {
	f := newFixture(t, 2)

	f.store.conflictsLeft = 1
	attempt := f.start(t)
	require.Equal(t, 1, attempt.AttemptNumber)

	f.store.conflictsLeft = 2
	_, _, err := f.svc.StartAttempt(testUser, testQuiz)
	require.ErrorIs(t, err, util.ErrAttemptConflict)
}

func TestRecordAnswerLastWriteWins(t *testing.T) {
	f := newFixture(t, 2)
	attempt := f.start(t)

	f.answer(t, attempt.ID, 1, 10)
	f.answer(t, attempt.ID, 1, 11) // 改答案

	loaded, err := f.store.FindByID(attempt.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Answers, 1)
	require.JSONEq(t, "11", string(loaded.Answers[0].Answer))
}

func TestRecordAnswerValidation(t *testing.T) {
	f := newFixture(t, 2)
	attempt := f.start(t)

	_, err := f.svc.RecordAnswer(99, attempt.ID, 1, rawJSON(t, 11))
	require.ErrorIs(t, err, util.ErrPermissionDenied)

	_, err = f.svc.RecordAnswer(testUser, attempt.ID, 42, rawJSON(t, 11))
	require.ErrorIs(t, err, util.ErrInvalidQuestion)

	_, err = f.svc.RecordAnswer(testUser, attempt.ID, 1, rawJSON(t, 21))
	require.ErrorIs(t, err, util.ErrInvalidOption)

	_, err = f.svc.RecordAnswer(testUser, attempt.ID, 1, rawJSON(t, "oops"))
	require.ErrorIs(t, err, util.ErrInvalidAnswerFormat)
}

func TestRecordAnswerAfterDeadline(t *testing.T) {
	f := newFixture(t, 2)
	attempt := f.start(t)

	f.now = f.now.Add(31 * time.Minute)
	_, err := f.svc.RecordAnswer(testUser, attempt.ID, 1, rawJSON(t, 11))
	require.ErrorIs(t, err, util.ErrAttemptExpired)

	stored, _ := f.store.FindByID(attempt.ID)
	require.Equal(t, model.AttemptExpired, stored.Status)
}

func TestSubmitAttemptPass(t *testing.T) {
	f := newFixture(t, 2)
	attempt := f.start(t)

	f.answer(t, attempt.ID, 1, 11)
	f.answer(t, attempt.ID, 2, []uint{21, 22})
	f.now = f.now.Add(10 * time.Minute)

	submitted, cascade, err := f.svc.SubmitAttempt(testUser, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, model.AttemptCompleted, submitted.Status)
	require.Equal(t, 100.0, submitted.Score)
	require.Equal(t, 10.0, submitted.EarnedPoints)
	require.Equal(t, 600, submitted.TimeTaken)
	require.NotNil(t, submitted.CompletedAt)

	// 逐题得分落库
	require.Equal(t, 5.0, f.store.answers[attempt.ID][1].PointsAwarded)
	require.Equal(t, 5.0, f.store.answers[attempt.ID][2].PointsAwarded)

	// 级联：课时完成，课程过半，未发证书
	require.True(t, cascade.LessonCompleted)
	require.False(t, cascade.CourseCompleted)
	require.False(t, cascade.CertificateIssued)

	progress := f.cascade.progress[progressKey{testUser, testCourse, testLesson}]
	require.NotNil(t, progress)
	require.Equal(t, model.ProgressCompleted, progress.Status)
	require.Equal(t, 100.0, progress.Score)

	enrollment := f.cascade.enrollments[pairKey{testUser, testCourse}]
	require.Equal(t, 50.0, enrollment.Progress)
	require.Equal(t, model.EnrollmentActive, enrollment.Status)

	require.Equal(t, []model.NotificationKind{model.NotifyQuizPassed}, f.notifier.kinds())
}

func TestSubmitAttemptFail(t *testing.T) {
	f := newFixture(t, 2)
	attempt := f.start(t)

	f.answer(t, attempt.ID, 1, 10)
	f.answer(t, attempt.ID, 2, []uint{23})

	submitted, cascade, err := f.svc.SubmitAttempt(testUser, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, model.AttemptCompleted, submitted.Status)
	require.Equal(t, 0.0, submitted.Score)

	// 不及格不推进课时状态，但成绩留痕
	require.False(t, cascade.LessonCompleted)
	progress := f.cascade.progress[progressKey{testUser, testCourse, testLesson}]
	require.NotNil(t, progress)
	require.Equal(t, model.ProgressInProgress, progress.Status)

	require.Equal(t, []model.NotificationKind{model.NotifyQuizFailed}, f.notifier.kinds())
}

func TestSubmitMissingRequiredAnswer(t *testing.T) {
	f := newFixture(t, 2)
	attempt := f.start(t)

	f.answer(t, attempt.ID, 1, 11)
	_, _, err := f.svc.SubmitAttempt(testUser, attempt.ID)
	require.ErrorIs(t, err, util.ErrMissingRequiredAnswer)

	// 非必答题缺答不拦截
	f.quizzes.quizzes[testQuiz].Questions[1].IsRequired = false
	_, _, err = f.svc.SubmitAttempt(testUser, attempt.ID)
	require.NoError(t, err)
}

func TestSubmitIdempotent(t *testing.T) {
	f := newFixture(t, 2)
	attempt := f.start(t)
	f.answer(t, attempt.ID, 1, 11)
	f.answer(t, attempt.ID, 2, []uint{21, 22})

	first, _, err := f.svc.SubmitAttempt(testUser, attempt.ID)
	require.NoError(t, err)

	second, cascade, err := f.svc.SubmitAttempt(testUser, attempt.ID)
	require.NoError(t, err)
	require.Nil(t, cascade)
	require.Equal(t, first.Score, second.Score)
	require.Equal(t, 1, f.store.cascadeCalls)
}

func TestSubmitRetriesOnVersionConflict(t *testing.T) {
	f := newFixture(t, 2)
	attempt := f.start(t)
	f.answer(t, attempt.ID, 1, 11)
	f.answer(t, attempt.ID, 2, []uint{21, 22})

	f.store.finalizeFails = 1
	submitted, _, err := f.svc.SubmitAttempt(testUser, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, model.AttemptCompleted, submitted.Status)

	// 连续冲突只重试一次
	other := f.start(t)
	f.answer(t, other.ID, 1, 11)
	f.answer(t, other.ID, 2, []uint{21, 22})
	f.store.finalizeFails = 2
	_, _, err = f.svc.SubmitAttempt(testUser, other.ID)
	require.ErrorIs(t, err, util.ErrAttemptConflict)
}

func TestCourseCompletionIssuesSingleCertificate(t *testing.T) {
	f := newFixture(t, 1) // 单课时课程，通过即完课

	attempt := f.start(t)
	f.answer(t, attempt.ID, 1, 11)
	f.answer(t, attempt.ID, 2, []uint{21, 22})

	_, cascade, err := f.svc.SubmitAttempt(testUser, attempt.ID)
	require.NoError(t, err)
	require.True(t, cascade.CourseCompleted)
	require.True(t, cascade.CertificateIssued)
	require.NotNil(t, cascade.Certificate)
	require.NotEmpty(t, cascade.Certificate.CertificateNumber)

	enrollment := f.cascade.enrollments[pairKey{testUser, testCourse}]
	require.Equal(t, model.EnrollmentCompleted, enrollment.Status)
	require.Equal(t, 100.0, enrollment.Progress)

	require.Equal(t,
		[]model.NotificationKind{model.NotifyQuizPassed, model.NotifyCertificateIssued},
		f.notifier.kinds())

	// 再次通过不会重发证书
	again := f.start(t)
	f.answer(t, again.ID, 1, 11)
	f.answer(t, again.ID, 2, []uint{21, 22})
	_, cascade, err = f.svc.SubmitAttempt(testUser, again.ID)
	require.NoError(t, err)
	require.False(t, cascade.CertificateIssued)
	require.Len(t, f.cascade.certificates, 1)
}

func TestCancelAttempt(t *testing.T) {
	f := newFixture(t, 2)
	attempt := f.start(t)

	cancelled, err := f.svc.CancelAttempt(testUser, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, model.AttemptCancelled, cancelled.Status)

	// 取消后不能交卷，也不退还次数
	_, _, err = f.svc.SubmitAttempt(testUser, attempt.ID)
	require.ErrorIs(t, err, util.ErrAttemptNotActive)

	count, _ := f.store.CountByQuizUser(testQuiz, testUser)
	require.EqualValues(t, 1, count)
}

func TestGetAttempt(t *testing.T) {
	f := newFixture(t, 2)
	attempt := f.start(t)

	_, err := f.svc.GetAttempt(99, false, attempt.ID)
	require.ErrorIs(t, err, util.ErrPermissionDenied)

	got, err := f.svc.GetAttempt(99, true, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, attempt.ID, got.ID)

	// 读取时惰性过期
	f.now = f.now.Add(time.Hour)
	got, err = f.svc.GetAttempt(testUser, false, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, model.AttemptExpired, got.Status)
}

func TestSweepExpired(t *testing.T) {
	f := newFixture(t, 2)
	attempt := f.start(t)
	f.answer(t, attempt.ID, 1, 11) // 只答了一题

	f.now = f.now.Add(time.Hour)
	require.Equal(t, 1, f.svc.SweepExpired(10))

	stored, _ := f.store.FindByID(attempt.ID)
	require.Equal(t, model.AttemptExpired, stored.Status)
	require.NotNil(t, stored.CompletedAt)
	// 已答的题照常判分，缺答按 0 计
	require.Equal(t, 50.0, stored.Score)

	// 过期收卷不及格也会留进度痕迹
	progress := f.cascade.progress[progressKey{testUser, testCourse, testLesson}]
	require.NotNil(t, progress)
	require.Equal(t, model.ProgressInProgress, progress.Status)

	// 再跑一轮没有可收的
	require.Equal(t, 0, f.svc.SweepExpired(10))
}

func TestSweepFinalizesLazilyExpiredAttempt(t *testing.T) {
	f := newFixture(t, 2)
	attempt := f.start(t)
	f.answer(t, attempt.ID, 1, 11)
	f.answer(t, attempt.ID, 2, []uint{21, 22})

	// 读取先把它标成 expired，但还没判分
	f.now = f.now.Add(time.Hour)
	got, err := f.svc.GetAttempt(testUser, false, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, model.AttemptExpired, got.Status)
	require.Nil(t, got.CompletedAt)

	// sweep 要把这类纪录一并收卷：判分落库、级联照常
	require.Equal(t, 1, f.svc.SweepExpired(10))

	final, _ := f.store.FindByID(attempt.ID)
	require.Equal(t, model.AttemptExpired, final.Status)
	require.NotNil(t, final.CompletedAt)
	require.Equal(t, 100.0, final.Score)
	require.Equal(t, 1, f.store.cascadeCalls)

	progress := f.cascade.progress[progressKey{testUser, testCourse, testLesson}]
	require.NotNil(t, progress)
	require.Equal(t, model.ProgressCompleted, progress.Status)

	// 收完就不会再被捞出来
	require.Equal(t, 0, f.svc.SweepExpired(10))
}
