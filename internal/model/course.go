package model

// 课程/课时只读聚合：测验子系统只消费它们，增删改由课程管理模块负责

// swagger:model Course
type Course struct {
	BaseModel
	Title        string `gorm:"size:200;not null" json:"title"`
	Description  string `gorm:"type:text" json:"description"`
	InstructorID uint   `gorm:"index;type:bigint unsigned" json:"instructorId"`
	IsPublished  bool   `gorm:"default:false" json:"isPublished"`
}

func (Course) TableName() string {
	return "courses"
}

// swagger:model Lesson
type Lesson struct {
	BaseModel
	CourseID   uint   `gorm:"index;type:bigint unsigned;not null" json:"courseId"`
	Title      string `gorm:"size:200;not null" json:"title"`
	OrderIndex int    `gorm:"default:0" json:"orderIndex"`
}

func (Lesson) TableName() string {
	return "lessons"
}
