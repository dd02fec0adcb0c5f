package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ReleaseLayout 对外输出的上映日期格式，如 "2008 May 02"
const ReleaseLayout = "2006 January 02"

// 可接受的上映日期输入格式
var releaseInputLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	ReleaseLayout,
}

// Movie 电影
type Movie struct {
	ID      int        `json:"id" gorm:"primaryKey"`
	Title   string     `json:"title" gorm:"not null"`
	Release *time.Time `json:"release" gorm:"type:date"`
}

// TableName 指定表名
func (Movie) TableName() string {
	return "movies"
}

// MarshalJSON 上映日期按 ReleaseLayout 输出，缺省为 null
func (m Movie) MarshalJSON() ([]byte, error) {
	var release *string
	if m.Release != nil {
		s := m.Release.UTC().Format(ReleaseLayout)
		release = &s
	}
	return json.Marshal(struct {
		ID      int     `json:"id"`
		Title   string  `json:"title"`
		Release *string `json:"release"`
	}{m.ID, m.Title, release})
}

// ParseRelease 解析上映日期
func ParseRelease(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range releaseInputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			// 只保留日期部分
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析上映日期 %q", s)
}

// MovieInput 新增/修改电影的请求体，nil 表示未提供
type MovieInput struct {
	Title   *string `json:"title"`
	Release *string `json:"release" binding:"omitempty,releasedate"`
}

// ApplyTo 仅覆盖提供了的字段；Release 应已通过 releasedate 校验
func (in *MovieInput) ApplyTo(m *Movie) error {
	if in.Title != nil {
		m.Title = *in.Title
	}
	if in.Release != nil {
		t, err := ParseRelease(*in.Release)
		if err != nil {
			return err
		}
		m.Release = &t
	}
	return nil
}
