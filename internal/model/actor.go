package model

// Actor 演员
type Actor struct {
	ID     int     `json:"id" gorm:"primaryKey"`
	Name   string  `json:"name" gorm:"not null"`
	Age    *int    `json:"age"`
	Gender *string `json:"gender"`
}

// TableName 指定表名
func (Actor) TableName() string {
	return "actors"
}

// ActorInput 新增/修改演员的请求体，nil 表示未提供
type ActorInput struct {
	Name   *string `json:"name"`
	Age    *int    `json:"age" binding:"omitempty,gte=0"`
	Gender *string `json:"gender"`
}

// ApplyTo 仅覆盖提供了的字段
func (in *ActorInput) ApplyTo(a *Actor) {
	if in.Name != nil {
		a.Name = *in.Name
	}
	if in.Age != nil {
		a.Age = in.Age
	}
	if in.Gender != nil {
		a.Gender = in.Gender
	}
}
