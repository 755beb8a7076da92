package service

import (
	"encoding/json"
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"regexp"
	"strings"
)

// Scorer 纯判分引擎，不依赖存储。
// 提交值的 JSON 形态按题型约定：
//
//	single   数字（选项 id）
//	multiple 数字数组（选项 id 集合）
//	points   数字数组（选项 id 集合）
//	text     字符串
//	matching 对象数组 [{"left": "...", "right": "..."}]
type Scorer struct {
	// ClampPointsQuestions 为 true 时 points 题得分收敛到 [0, 满分]
	ClampPointsQuestions bool
}

// ValidateAnswer 校验提交值的形态与引用合法性，判分前调用
func (s *Scorer) ValidateAnswer(q *model.Question, raw json.RawMessage) error {
	switch q.QuestionType {
	case model.QuestionSingle:
		optionID, err := decodeSingleOption(raw)
		if err != nil {
			return err
		}
		if !hasOption(q, optionID) {
			return util.ErrInvalidOption
		}
	case model.QuestionMultiple, model.QuestionPoints:
		var optionIDs []uint
		if err := json.Unmarshal(raw, &optionIDs); err != nil {
			return util.ErrInvalidAnswerFormat
		}
		for _, id := range optionIDs {
			if !hasOption(q, id) {
				return util.ErrInvalidOption
			}
		}
	case model.QuestionText:
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return util.ErrInvalidAnswerFormat
		}
	case model.QuestionMatching:
		var pairs []model.MatchPair
		if err := json.Unmarshal(raw, &pairs); err != nil {
			return util.ErrInvalidAnswerFormat
		}
	default:
		return util.ErrInvalidAnswerFormat
	}
	return nil
}

// Score 计算一题的得分。提交值形态非法时按 0 分处理而不是报错，
// 保证收卷阶段对历史脏数据也能给出确定结果。
func (s *Scorer) Score(q *model.Question, raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	switch q.QuestionType {
	case model.QuestionSingle:
		return s.scoreSingle(q, raw)
	case model.QuestionMultiple:
		return s.scoreMultiple(q, raw)
	case model.QuestionPoints:
		return s.scorePoints(q, raw)
	case model.QuestionText:
		return s.scoreText(q, raw)
	case model.QuestionMatching:
		return s.scoreMatching(q, raw)
	}
	return 0
}

// AggregateResult 整卷汇总
type AggregateResult struct {
	EarnedPoints float64
	TotalPoints  float64
	Score        float64 // 百分比，收敛到 [0, 100]
	PerQuestion  map[uint]float64
}

// Aggregate 对活跃题目整卷判分。未作答的题按 0 分计入，
// Score = 100 * earned / total，总分为 0 时 Score 为 0。
func (s *Scorer) Aggregate(questions []model.Question, answers map[uint]json.RawMessage) AggregateResult {
	result := AggregateResult{PerQuestion: make(map[uint]float64, len(questions))}
	for i := range questions {
		q := &questions[i]
		if q.Status != model.QuestionActive {
			continue
		}
		result.TotalPoints += q.Points

		raw, ok := answers[q.ID]
		if !ok {
			result.PerQuestion[q.ID] = 0
			continue
		}
		earned := s.Score(q, raw)
		result.PerQuestion[q.ID] = earned
		result.EarnedPoints += earned
	}

	if result.TotalPoints > 0 {
		result.Score = result.EarnedPoints / result.TotalPoints * 100
	}
	if result.Score < 0 {
		result.Score = 0
	}
	if result.Score > 100 {
		result.Score = 100
	}
	return result
}

// decodeSingleOption 单选提交值是一个选项 id，也兼容单元素数组
func decodeSingleOption(raw json.RawMessage) (uint, error) {
	var optionID uint
	if err := json.Unmarshal(raw, &optionID); err == nil {
		return optionID, nil
	}
	var optionIDs []uint
	if err := json.Unmarshal(raw, &optionIDs); err != nil {
		return 0, util.ErrInvalidAnswerFormat
	}
	if len(optionIDs) != 1 {
		return 0, util.ErrInvalidOptionCount
	}
	return optionIDs[0], nil
}

func hasOption(q *model.Question, optionID uint) bool {
	for _, o := range q.ActiveOptions() {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

func (s *Scorer) scoreSingle(q *model.Question, raw json.RawMessage) float64 {
	optionID, err := decodeSingleOption(raw)
	if err != nil {
		return 0
	}
	for _, o := range q.ActiveOptions() {
		if o.ID == optionID && o.IsCorrect {
			return q.Points
		}
	}
	return 0
}

func (s *Scorer) scoreMultiple(q *model.Question, raw json.RawMessage) float64 {
	var optionIDs []uint
	if err := json.Unmarshal(raw, &optionIDs); err != nil {
		return 0
	}
	selected := make(map[uint]bool, len(optionIDs))
	for _, id := range optionIDs {
		selected[id] = true
	}

	correct := make(map[uint]bool)
	for _, o := range q.ActiveOptions() {
		if o.IsCorrect {
			correct[o.ID] = true
		}
	}
	if len(correct) == 0 {
		return 0
	}

	exact := len(selected) == len(correct)
	correctSelected := 0
	for id := range selected {
		if correct[id] {
			correctSelected++
		} else {
			exact = false
		}
	}
	if exact && correctSelected == len(correct) {
		return q.Points
	}
	if q.PartialCredit {
		return q.Points * float64(correctSelected) / float64(len(correct))
	}
	return 0
}

// scorePoints 选中选项的带符号分值直接求和，负分选项可以把本题拉成负数。
// 开启收敛后结果落在 [0, 满分] 区间。
func (s *Scorer) scorePoints(q *model.Question, raw json.RawMessage) float64 {
	var optionIDs []uint
	if err := json.Unmarshal(raw, &optionIDs); err != nil {
		return 0
	}
	selected := make(map[uint]bool, len(optionIDs))
	for _, id := range optionIDs {
		selected[id] = true
	}

	var sum float64
	for _, o := range q.ActiveOptions() {
		if selected[o.ID] {
			sum += o.Score
		}
	}
	if s.ClampPointsQuestions {
		if sum < 0 {
			sum = 0
		}
		if sum > q.Points {
			sum = q.Points
		}
	}
	return sum
}

func (s *Scorer) scoreText(q *model.Question, raw json.RawMessage) float64 {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0
	}
	meta, err := q.ParseMetadata()
	if err != nil || meta.Validation == nil {
		return 0
	}
	v := meta.Validation

	normalize := func(s string) string { return s }
	if v.CaseInsensitive {
		normalize = strings.ToLower
	}

	switch v.Type {
	case "exact":
		if normalize(strings.TrimSpace(text)) == normalize(strings.TrimSpace(v.Answer)) {
			return q.Points
		}
	case "contains":
		if len(v.Required) == 0 {
			return 0
		}
		matched := 0
		haystack := normalize(text)
		for _, required := range v.Required {
			if strings.Contains(haystack, normalize(required)) {
				matched++
			}
		}
		if matched == len(v.Required) {
			return q.Points
		}
		if q.PartialCredit {
			return q.Points * float64(matched) / float64(len(v.Required))
		}
	case "regex":
		pattern := v.Pattern
		if v.CaseInsensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return 0
		}
		if re.MatchString(text) {
			return q.Points
		}
	}
	return 0
}

func (s *Scorer) scoreMatching(q *model.Question, raw json.RawMessage) float64 {
	var submitted []model.MatchPair
	if err := json.Unmarshal(raw, &submitted); err != nil {
		return 0
	}
	meta, err := q.ParseMetadata()
	if err != nil || len(meta.Pairs) == 0 {
		return 0
	}

	expected := make(map[string]string, len(meta.Pairs))
	for _, p := range meta.Pairs {
		expected[p.Left] = p.Right
	}

	seen := make(map[string]bool, len(submitted))
	correct := 0
	for _, p := range submitted {
		if seen[p.Left] {
			continue
		}
		seen[p.Left] = true
		if right, ok := expected[p.Left]; ok && right == p.Right {
			correct++
		}
	}

	if correct == len(expected) && len(seen) == len(expected) {
		return q.Points
	}
	if q.PartialCredit {
		return q.Points * float64(correct) / float64(len(expected))
	}
	return 0
}
