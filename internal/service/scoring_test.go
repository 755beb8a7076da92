package service

import (
	"encoding/json"
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/require"
)

func opt(id uint, correct bool, score float64) model.Option {
	return model.Option{
		BaseModel: model.BaseModel{ID: id},
		IsCorrect: correct,
		Score:     score,
		Status:    model.QuestionActive,
	}
}

func question(id uint, qType model.QuestionType, points float64, partial bool, options ...model.Option) model.Question {
	return model.Question{
		BaseModel:     model.BaseModel{ID: id},
		QuestionType:  qType,
		Points:        points,
		PartialCredit: partial,
		IsRequired:    true,
		Status:        model.QuestionActive,
		Options:       options,
	}
}

func rawJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestScoreSingle(t *testing.T) {
	scorer := &Scorer{}
	q := question(1, model.QuestionSingle, 5, false, opt(10, false, 0), opt(11, true, 0))

	require.Equal(t, 5.0, scorer.Score(&q, rawJSON(t, 11)))
	require.Equal(t, 0.0, scorer.Score(&q, rawJSON(t, 10)))
	require.Equal(t, 0.0, scorer.Score(&q, rawJSON(t, 99)))
}

func TestScoreSingleInactiveCorrectOption(t *testing.T) {
	scorer := &Scorer{}
	q := question(1, model.QuestionSingle, 5, false, opt(10, false, 0), opt(11, true, 0))
	q.Options[1].Status = model.QuestionDeleted

	// 正确选项被停用后不再得分
	require.Equal(t, 0.0, scorer.Score(&q, rawJSON(t, 11)))
}

func TestScoreMultipleExactMatch(t *testing.T) {
	scorer := &Scorer{}
	q := question(1, model.QuestionMultiple, 6, false,
		opt(1, true, 0), opt(2, true, 0), opt(3, false, 0))

	require.Equal(t, 6.0, scorer.Score(&q, rawJSON(t, []uint{1, 2})))
	require.Equal(t, 6.0, scorer.Score(&q, rawJSON(t, []uint{2, 1})))

	// 非部分计分时任何偏差都是 0 分
	require.Equal(t, 0.0, scorer.Score(&q, rawJSON(t, []uint{1})))
	require.Equal(t, 0.0, scorer.Score(&q, rawJSON(t, []uint{1, 2, 3})))
	require.Equal(t, 0.0, scorer.Score(&q, rawJSON(t, []uint{3})))
}

func TestScoreMultiplePartialCredit(t *testing.T) {
	scorer := &Scorer{}
	q := question(1, model.QuestionMultiple, 6, true,
		opt(1, true, 0), opt(2, true, 0), opt(3, true, 0), opt(4, false, 0))

	require.InDelta(t, 2.0, scorer.Score(&q, rawJSON(t, []uint{1})), 1e-9)
	require.InDelta(t, 4.0, scorer.Score(&q, rawJSON(t, []uint{1, 2})), 1e-9)
	require.Equal(t, 6.0, scorer.Score(&q, rawJSON(t, []uint{1, 2, 3})))

	// 部分计分单调：多选对一个不会降分
	one := scorer.Score(&q, rawJSON(t, []uint{1}))
	two := scorer.Score(&q, rawJSON(t, []uint{1, 2}))
	require.GreaterOrEqual(t, two, one)
}

func TestScorePointsSignedSum(t *testing.T) {
	scorer := &Scorer{}
	q := question(1, model.QuestionPoints, 10, false,
		opt(1, false, 4), opt(2, false, 6), opt(3, false, -3))

	require.Equal(t, 10.0, scorer.Score(&q, rawJSON(t, []uint{1, 2})))
	require.Equal(t, 7.0, scorer.Score(&q, rawJSON(t, []uint{1, 2, 3})))
	require.Equal(t, -3.0, scorer.Score(&q, rawJSON(t, []uint{3})))
}

func TestScorePointsClamped(t *testing.T) {
	scorer := &Scorer{ClampPointsQuestions: true}
	q := question(1, model.QuestionPoints, 8, false,
		opt(1, false, 6), opt(2, false, 6), opt(3, false, -5))

	require.Equal(t, 8.0, scorer.Score(&q, rawJSON(t, []uint{1, 2})))
	require.Equal(t, 0.0, scorer.Score(&q, rawJSON(t, []uint{3})))
}

func textQuestion(t *testing.T, points float64, partial bool, v model.TextValidation) model.Question {
	t.Helper()
	meta := rawJSON(t, model.QuestionMetadata{Validation: &v})
	q := question(1, model.QuestionText, points, partial)
	q.Metadata = meta
	return q
}

func TestScoreTextExact(t *testing.T) {
	scorer := &Scorer{}
	q := textQuestion(t, 4, false, model.TextValidation{Type: "exact", Answer: "Gin"})

	require.Equal(t, 4.0, scorer.Score(&q, rawJSON(t, "Gin")))
	require.Equal(t, 4.0, scorer.Score(&q, rawJSON(t, "  Gin  ")))
	require.Equal(t, 0.0, scorer.Score(&q, rawJSON(t, "gin")))

	insensitive := textQuestion(t, 4, false, model.TextValidation{Type: "exact", Answer: "Gin", CaseInsensitive: true})
	require.Equal(t, 4.0, scorer.Score(&insensitive, rawJSON(t, "gIN")))
}

func TestScoreTextContains(t *testing.T) {
	scorer := &Scorer{}
	q := textQuestion(t, 6, false, model.TextValidation{
		Type: "contains", Required: []string{"goroutine", "channel"}, CaseInsensitive: true,
	})

	require.Equal(t, 6.0, scorer.Score(&q, rawJSON(t, "Goroutines talk over Channels")))
	require.Equal(t, 0.0, scorer.Score(&q, rawJSON(t, "only goroutine here")))

	partial := textQuestion(t, 6, true, model.TextValidation{
		Type: "contains", Required: []string{"goroutine", "channel", "select"},
	})
	require.InDelta(t, 4.0, scorer.Score(&partial, rawJSON(t, "goroutine and channel")), 1e-9)
}

func TestScoreTextRegex(t *testing.T) {
	scorer := &Scorer{}
	q := textQuestion(t, 3, false, model.TextValidation{Type: "regex", Pattern: `^\d{4}-\d{2}$`})

	require.Equal(t, 3.0, scorer.Score(&q, rawJSON(t, "2024-06")))
	require.Equal(t, 0.0, scorer.Score(&q, rawJSON(t, "June 2024")))

	insensitive := textQuestion(t, 3, false, model.TextValidation{Type: "regex", Pattern: "^go$", CaseInsensitive: true})
	require.Equal(t, 3.0, scorer.Score(&insensitive, rawJSON(t, "GO")))

	invalid := textQuestion(t, 3, false, model.TextValidation{Type: "regex", Pattern: "("})
	require.Equal(t, 0.0, scorer.Score(&invalid, rawJSON(t, "anything")))
}

func matchingQuestion(t *testing.T, points float64, partial bool, pairs ...model.MatchPair) model.Question {
	t.Helper()
	q := question(1, model.QuestionMatching, points, partial)
	q.Metadata = rawJSON(t, model.QuestionMetadata{Pairs: pairs})
	return q
}

func TestScoreMatching(t *testing.T) {
	scorer := &Scorer{}
	q := matchingQuestion(t, 8, false,
		model.MatchPair{Left: "TCP", Right: "transport"},
		model.MatchPair{Left: "IP", Right: "network"},
	)

	full := []model.MatchPair{{Left: "TCP", Right: "transport"}, {Left: "IP", Right: "network"}}
	require.Equal(t, 8.0, scorer.Score(&q, rawJSON(t, full)))

	swapped := []model.MatchPair{{Left: "TCP", Right: "network"}, {Left: "IP", Right: "transport"}}
	require.Equal(t, 0.0, scorer.Score(&q, rawJSON(t, swapped)))
}

func TestScoreMatchingPartialCredit(t *testing.T) {
	scorer := &Scorer{}
	q := matchingQuestion(t, 9, true,
		model.MatchPair{Left: "a", Right: "1"},
		model.MatchPair{Left: "b", Right: "2"},
		model.MatchPair{Left: "c", Right: "3"},
	)

	oneRight := []model.MatchPair{{Left: "a", Right: "1"}, {Left: "b", Right: "3"}}
	require.InDelta(t, 3.0, scorer.Score(&q, rawJSON(t, oneRight)), 1e-9)

	// 重复提交同一左项只计一次
	duplicated := []model.MatchPair{{Left: "a", Right: "1"}, {Left: "a", Right: "1"}}
	require.InDelta(t, 3.0, scorer.Score(&q, rawJSON(t, duplicated)), 1e-9)
}

func TestValidateAnswer(t *testing.T) {
	scorer := &Scorer{}
	single := question(1, model.QuestionSingle, 5, false, opt(10, false, 0), opt(11, true, 0))

	require.NoError(t, scorer.ValidateAnswer(&single, rawJSON(t, 10)))
	require.ErrorIs(t, scorer.ValidateAnswer(&single, rawJSON(t, 99)), util.ErrInvalidOption)
	require.ErrorIs(t, scorer.ValidateAnswer(&single, rawJSON(t, "not a number")), util.ErrInvalidAnswerFormat)

	// 单选兼容单元素数组，多元素数组报数量错误
	require.NoError(t, scorer.ValidateAnswer(&single, rawJSON(t, []uint{11})))
	require.ErrorIs(t, scorer.ValidateAnswer(&single, rawJSON(t, []uint{10, 11})), util.ErrInvalidOptionCount)
	require.Equal(t, 5.0, scorer.Score(&single, rawJSON(t, []uint{11})))

	multiple := question(2, model.QuestionMultiple, 5, false, opt(1, true, 0), opt(2, false, 0))
	require.NoError(t, scorer.ValidateAnswer(&multiple, rawJSON(t, []uint{1, 2})))
	require.ErrorIs(t, scorer.ValidateAnswer(&multiple, rawJSON(t, []uint{1, 7})), util.ErrInvalidOption)

	text := question(3, model.QuestionText, 5, false)
	require.NoError(t, scorer.ValidateAnswer(&text, rawJSON(t, "free form")))
	require.ErrorIs(t, scorer.ValidateAnswer(&text, rawJSON(t, 42)), util.ErrInvalidAnswerFormat)
}

func TestAggregate(t *testing.T) {
	scorer := &Scorer{}
	questions := []model.Question{
		question(1, model.QuestionSingle, 5, false, opt(10, true, 0), opt(11, false, 0)),
		question(2, model.QuestionSingle, 5, false, opt(20, true, 0), opt(21, false, 0)),
	}

	answers := map[uint]json.RawMessage{
		1: rawJSON(t, 10), // 对
		2: rawJSON(t, 21), // 错
	}

	result := scorer.Aggregate(questions, answers)
	require.Equal(t, 5.0, result.EarnedPoints)
	require.Equal(t, 10.0, result.TotalPoints)
	require.Equal(t, 50.0, result.Score)
	require.Equal(t, 5.0, result.PerQuestion[1])
	require.Equal(t, 0.0, result.PerQuestion[2])
}

func TestAggregateUnansweredCountsZero(t *testing.T) {
	scorer := &Scorer{}
	questions := []model.Question{
		question(1, model.QuestionSingle, 5, false, opt(10, true, 0)),
		question(2, model.QuestionSingle, 5, false, opt(20, true, 0)),
	}

	result := scorer.Aggregate(questions, map[uint]json.RawMessage{1: rawJSON(t, 10)})
	require.Equal(t, 50.0, result.Score)
	require.Equal(t, 0.0, result.PerQuestion[2])
}

func TestAggregateSkipsInactiveQuestions(t *testing.T) {
	scorer := &Scorer{}
	inactive := question(2, model.QuestionSingle, 100, false, opt(20, true, 0))
	inactive.Status = model.QuestionInactive
	questions := []model.Question{
		question(1, model.QuestionSingle, 5, false, opt(10, true, 0)),
		inactive,
	}

	result := scorer.Aggregate(questions, map[uint]json.RawMessage{1: rawJSON(t, 10)})
	require.Equal(t, 5.0, result.TotalPoints)
	require.Equal(t, 100.0, result.Score)
}

func TestAggregateZeroTotal(t *testing.T) {
	scorer := &Scorer{}
	result := scorer.Aggregate(nil, nil)
	require.Equal(t, 0.0, result.Score)
}

func TestAggregateNegativePointsClampedToZeroScore(t *testing.T) {
	scorer := &Scorer{}
	questions := []model.Question{
		question(1, model.QuestionPoints, 5, false, opt(1, false, -4)),
		question(2, model.QuestionSingle, 5, false, opt(20, true, 0)),
	}

	answers := map[uint]json.RawMessage{
		1: rawJSON(t, []uint{1}),
		2: rawJSON(t, 21),
	}
	result := scorer.Aggregate(questions, answers)
	require.Equal(t, -4.0, result.EarnedPoints)
	require.Equal(t, 0.0, result.Score)
}
