package model

import (
	"encoding/json"
	"time"
)

type QuestionType string

const (
	QuestionSingle   QuestionType = "single"   // 单选：恰好一个正确选项
	QuestionMultiple QuestionType = "multiple" // 多选：正确选项集合
	QuestionPoints   QuestionType = "points"   // 按选项计分：每个选项带符号分值
	QuestionText     QuestionType = "text"     // 文本：按 metadata 校验规则判分
	QuestionMatching QuestionType = "matching" // 连线：按 metadata 配对判分
)

type QuestionStatus string

const (
	QuestionActive   QuestionStatus = "active"
	QuestionInactive QuestionStatus = "inactive"
	QuestionDeleted  QuestionStatus = "deleted"
)

// swagger:model Quiz
type Quiz struct {
	BaseModel
	LessonID         uint       `gorm:"index;type:bigint unsigned;not null" json:"lessonId"`
	Title            string     `gorm:"size:200;not null" json:"title"`
	Description      string     `gorm:"type:text" json:"description"`
	DurationMinutes  int        `gorm:"default:0" json:"durationMinutes"` // 0 = 不限时
	PassingScore     float64    `gorm:"default:70" json:"passingScore"`   // 及格百分比 0-100
	AttemptsAllowed  int        `gorm:"default:1" json:"attemptsAllowed"` // 0 = 不限次数
	ShuffleQuestions bool       `gorm:"default:false" json:"shuffleQuestions"`
	IsPublished      bool       `gorm:"default:false" json:"isPublished"`
	AvailableFrom    *time.Time `json:"availableFrom,omitempty"`
	AvailableUntil   *time.Time `json:"availableUntil,omitempty"`
	TotalPoints      float64    `gorm:"default:0" json:"totalPoints"` // 派生值：活跃题目分值之和
	CreatedBy        uint       `gorm:"index;type:bigint unsigned" json:"createdBy"`

	Questions []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// swagger:model Question
type Question struct {
	BaseModel
	QuizID        uint            `gorm:"index;type:bigint unsigned;not null" json:"quizId"`
	QuestionType  QuestionType    `gorm:"size:20;not null;default:'single'" json:"questionType"`
	QuestionText  string          `gorm:"type:text;not null" json:"questionText"`
	Points        float64         `gorm:"default:1" json:"points"` // 本题满分
	PartialCredit bool            `gorm:"default:false" json:"partialCredit"`
	OrderIndex    int             `gorm:"default:0" json:"orderIndex"`
	IsRequired    bool            `gorm:"default:true" json:"isRequired"`
	Status        QuestionStatus  `gorm:"size:20;default:'active'" json:"status"`
	Metadata      json.RawMessage `gorm:"type:json" json:"metadata,omitempty"` // 题型相关数据：text 校验规则 / matching 配对
	Explanation   string          `gorm:"type:text" json:"explanation"`

	Options []Option `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// ActiveOptions 返回未被停用/删除的选项
func (q *Question) ActiveOptions() []Option {
	out := make([]Option, 0, len(q.Options))
	for _, o := range q.Options {
		if o.Status == QuestionActive {
			out = append(out, o)
		}
	}
	return out
}

// swagger:model Option
type Option struct {
	BaseModel
	QuestionID uint           `gorm:"index;type:bigint unsigned;not null" json:"questionId"`
	OptionText string         `gorm:"type:text;not null" json:"optionText"`
	IsCorrect  bool           `gorm:"default:false" json:"isCorrect"`
	Score      float64        `gorm:"default:0" json:"score"` // points 题型的带符号分值，可为负
	OrderIndex int            `gorm:"default:0" json:"orderIndex"`
	Status     QuestionStatus `gorm:"size:20;default:'active'" json:"status"`
}

func (Option) TableName() string {
	return "options"
}

// TextValidation text 题型的判分规则，存放于 Question.Metadata
type TextValidation struct {
	Type            string   `json:"type"` // exact | contains | regex
	Answer          string   `json:"answer,omitempty"`
	Required        []string `json:"required,omitempty"`
	Pattern         string   `json:"pattern,omitempty"`
	CaseInsensitive bool     `json:"caseInsensitive,omitempty"`
}

// MatchPair matching 题型的标准配对
type MatchPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// QuestionMetadata Question.Metadata 的结构化形式
type QuestionMetadata struct {
	Validation *TextValidation `json:"validation,omitempty"`
	Pairs      []MatchPair     `json:"pairs,omitempty"`
}

// ParseMetadata 解析题目的类型相关元数据
func (q *Question) ParseMetadata() (*QuestionMetadata, error) {
	meta := &QuestionMetadata{}
	if len(q.Metadata) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(q.Metadata, meta); err != nil {
		return nil, err
	}
	return meta, nil
}
