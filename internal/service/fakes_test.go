package service

import (
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"os"
	"sort"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

// 内存版存储，语义对齐 gorm 实现：唯一索引、乐观版本、状态守卫

type attemptKey struct {
	quizID, userID uint
	number         int
}

type fakeStore struct {
	attempts map[uint]*model.Attempt
	byKey    map[attemptKey]uint
	answers  map[uint]map[uint]model.AttemptAnswer
	nextID   uint

	conflictsLeft int // Create 返回冲突的剩余次数
	finalizeFails int // Finalize 返回版本冲突的剩余次数

	cascade      *fakeCascadeTx
	cascadeCalls int
}

func newFakeStore(cascade *fakeCascadeTx) *fakeStore {
	return &fakeStore{
		attempts: make(map[uint]*model.Attempt),
		byKey:    make(map[attemptKey]uint),
		answers:  make(map[uint]map[uint]model.AttemptAnswer),
		cascade:  cascade,
	}
}

func (f *fakeStore) Create(a *model.Attempt) error {
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return util.ErrAttemptConflict
	}
	key := attemptKey{a.QuizID, a.UserID, a.AttemptNumber}
	if _, dup := f.byKey[key]; dup {
		return util.ErrAttemptConflict
	}
	f.nextID++
	a.ID = f.nextID
	stored := *a
	f.attempts[a.ID] = &stored
	f.byKey[key] = a.ID
	return nil
}

func (f *fakeStore) CountByQuizUser(quizID, userID uint) (int64, error) {
	var count int64
	for _, a := range f.attempts {
		if a.QuizID == quizID && a.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) NextAttemptNumber(quizID, userID uint) (int, error) {
	max := 0
	for _, a := range f.attempts {
		if a.QuizID == quizID && a.UserID == userID && a.AttemptNumber > max {
			max = a.AttemptNumber
		}
	}
	return max + 1, nil
}

func (f *fakeStore) FindByID(id uint) (*model.Attempt, error) {
	stored, ok := f.attempts[id]
	if !ok {
		return nil, util.ErrAttemptNotFound
	}
	copy := *stored
	copy.Answers = nil
	ids := make([]uint, 0, len(f.answers[id]))
	for qid := range f.answers[id] {
		ids = append(ids, qid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, qid := range ids {
		copy.Answers = append(copy.Answers, f.answers[id][qid])
	}
	return &copy, nil
}

func (f *fakeStore) MarkExpired(a *model.Attempt) error {
	stored, ok := f.attempts[a.ID]
	if !ok {
		return util.ErrAttemptNotFound
	}
	if stored.Status == model.AttemptInProgress {
		stored.Status = model.AttemptExpired
	}
	a.Status = stored.Status
	return nil
}

func (f *fakeStore) MarkCancelled(a *model.Attempt) error {
	stored, ok := f.attempts[a.ID]
	if !ok {
		return util.ErrAttemptNotFound
	}
	if stored.Status != model.AttemptInProgress {
		return util.ErrAttemptNotActive
	}
	stored.Status = model.AttemptCancelled
	a.Status = model.AttemptCancelled
	return nil
}

func (f *fakeStore) UpsertAnswer(ans *model.AttemptAnswer) error {
	if f.answers[ans.AttemptID] == nil {
		f.answers[ans.AttemptID] = make(map[uint]model.AttemptAnswer)
	}
	f.answers[ans.AttemptID][ans.QuestionID] = *ans
	return nil
}

func (f *fakeStore) ListOverdue(now time.Time, limit int) ([]model.Attempt, error) {
	var out []model.Attempt
	for _, a := range f.attempts {
		if (a.Status == model.AttemptInProgress && a.Overdue(now)) ||
			(a.Status == model.AttemptExpired && a.CompletedAt == nil) {
			loaded, _ := f.FindByID(a.ID)
			out = append(out, *loaded)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) Finalize(a *model.Attempt, answers []model.AttemptAnswer, cascade func(tx repository.CascadeTx) error) error {
	if f.finalizeFails > 0 {
		f.finalizeFails--
		return util.ErrAttemptConflict
	}
	stored, ok := f.attempts[a.ID]
	if !ok {
		return util.ErrAttemptNotFound
	}
	if stored.Version != a.Version ||
		(stored.Status != model.AttemptInProgress && stored.Status != model.AttemptExpired) {
		return util.ErrAttemptConflict
	}

	stored.Status = a.Status
	stored.CompletedAt = a.CompletedAt
	stored.EarnedPoints = a.EarnedPoints
	stored.TotalPoints = a.TotalPoints
	stored.Score = a.Score
	stored.TimeTaken = a.TimeTaken
	stored.Version++
	a.Version = stored.Version

	for i := range answers {
		if err := f.UpsertAnswer(&answers[i]); err != nil {
			return err
		}
	}

	if cascade != nil {
		f.cascadeCalls++
		return cascade(f.cascade)
	}
	return nil
}

func (f *fakeStore) ListByUser(userID uint, page, limit int) ([]model.Attempt, int64, error) {
	var out []model.Attempt
	for _, a := range f.attempts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) ListByQuiz(quizID uint, page, limit int) ([]model.Attempt, int64, error) {
	var out []model.Attempt
	for _, a := range f.attempts {
		if a.QuizID == quizID {
			out = append(out, *a)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) StatsByQuiz(quizID uint, passingScore float64) (*repository.QuizStats, error) {
	stats := &repository.QuizStats{}
	var scoreSum float64
	for _, a := range f.attempts {
		if a.QuizID != quizID {
			continue
		}
		stats.TotalAttempts++
		if a.Status == model.AttemptCompleted {
			stats.CompletedAttempts++
			scoreSum += a.Score
			if a.Score >= passingScore {
				stats.PassedAttempts++
			}
		}
	}
	if stats.CompletedAttempts > 0 {
		stats.AverageScore = scoreSum / float64(stats.CompletedAttempts)
		stats.PassRate = float64(stats.PassedAttempts) / float64(stats.CompletedAttempts) * 100
	}
	return stats, nil
}

// fakeCascadeTx 内存版级联写入口

type progressKey struct{ userID, courseID, lessonID uint }
type pairKey struct{ userID, courseID uint }

type fakeCascadeTx struct {
	lessonsPerCourse map[uint]int64
	progress         map[progressKey]*model.Progress
	enrollments      map[pairKey]*model.Enrollment
	certificates     map[pairKey]*model.Certificate
	nextCertID       uint
}

func newFakeCascadeTx() *fakeCascadeTx {
	return &fakeCascadeTx{
		lessonsPerCourse: make(map[uint]int64),
		progress:         make(map[progressKey]*model.Progress),
		enrollments:      make(map[pairKey]*model.Enrollment),
		certificates:     make(map[pairKey]*model.Certificate),
	}
}

func (f *fakeCascadeTx) FindProgress(userID, courseID, lessonID uint) (*model.Progress, error) {
	if p, ok := f.progress[progressKey{userID, courseID, lessonID}]; ok {
		copy := *p
		return &copy, nil
	}
	return nil, nil
}

func (f *fakeCascadeTx) SaveProgress(p *model.Progress) error {
	copy := *p
	f.progress[progressKey{p.UserID, p.CourseID, p.LessonID}] = &copy
	return nil
}

func (f *fakeCascadeTx) CountCompletedLessons(userID, courseID uint) (int64, error) {
	var count int64
	for key, p := range f.progress {
		if key.userID == userID && key.courseID == courseID && p.Status == model.ProgressCompleted {
			count++
		}
	}
	return count, nil
}

func (f *fakeCascadeTx) CountLessons(courseID uint) (int64, error) {
	return f.lessonsPerCourse[courseID], nil
}

func (f *fakeCascadeTx) FindEnrollment(userID, courseID uint) (*model.Enrollment, error) {
	if e, ok := f.enrollments[pairKey{userID, courseID}]; ok {
		copy := *e
		return &copy, nil
	}
	return nil, nil
}

func (f *fakeCascadeTx) SaveEnrollment(e *model.Enrollment) error {
	copy := *e
	f.enrollments[pairKey{e.UserID, e.CourseID}] = &copy
	return nil
}

func (f *fakeCascadeTx) FindOrCreateCertificate(cert *model.Certificate) (bool, error) {
	key := pairKey{cert.UserID, cert.CourseID}
	if existing, ok := f.certificates[key]; ok {
		*cert = *existing
		return false, nil
	}
	f.nextCertID++
	cert.ID = f.nextCertID
	copy := *cert
	f.certificates[key] = &copy
	return true, nil
}

// 只读依赖

type fakeQuizzes struct {
	quizzes map[uint]*model.Quiz
}

func (f *fakeQuizzes) QuizWithQuestions(id uint) (*model.Quiz, error) {
	quiz, ok := f.quizzes[id]
	if !ok {
		return nil, util.ErrQuizNotFound
	}
	return quiz, nil
}

type fakeLessons struct {
	lessons map[uint]*model.Lesson
}

func (f *fakeLessons) LessonByID(id uint) (*model.Lesson, error) {
	lesson, ok := f.lessons[id]
	if !ok {
		return nil, util.ErrLessonNotFound
	}
	return lesson, nil
}

type fakeEnrollments struct {
	tx *fakeCascadeTx
}

func (f *fakeEnrollments) Find(userID, courseID uint) (*model.Enrollment, error) {
	e, err := f.tx.FindEnrollment(userID, courseID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, util.ErrNotEnrolled
	}
	return e, nil
}

type notifyCall struct {
	userID  uint
	kind    model.NotificationKind
	payload interface{}
}

type fakeNotifier struct {
	calls []notifyCall
}

func (f *fakeNotifier) Notify(userID uint, kind model.NotificationKind, payload interface{}) {
	f.calls = append(f.calls, notifyCall{userID, kind, payload})
}

func (f *fakeNotifier) kinds() []model.NotificationKind {
	out := make([]model.NotificationKind, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.kind)
	}
	return out
}
