// Package model はドメインモデルを定義する。
package model

import "time"

// ContentKind は管理画面で扱うコンテンツの種別。
type ContentKind string

const (
	KindProject    ContentKind = "projects"
	KindSkill      ContentKind = "skills"
	KindExperience ContentKind = "experience"
	KindLearning   ContentKind = "learning"
	KindProfile    ContentKind = "profile"
)

// ParseContentKind はURLパスの種別名をContentKindに変換する。
func ParseContentKind(s string) (ContentKind, bool) {
	switch k := ContentKind(s); k {
	case KindProject, KindSkill, KindExperience, KindLearning, KindProfile:
		return k, true
	default:
		return "", false
	}
}

// Proficiency はスキルの習熟度を表す。
type Proficiency string

// IsValid は定義済みの習熟度かどうかを返す。
func (p Proficiency) IsValid() bool {
	switch p {
	case ProficiencyBeginner, ProficiencyIntermediate, ProficiencyAdvanced, ProficiencyExpert:
		return true
	default:
		return false
	}
}

const (
	ProficiencyBeginner     Proficiency = "Beginner"
	ProficiencyIntermediate Proficiency = "Intermediate"
	ProficiencyAdvanced     Proficiency = "Advanced"
	ProficiencyExpert       Proficiency = "Expert"
)

// LearningStatus は学習項目の進捗状態を表す。
type LearningStatus string

const (
	LearningInProgress LearningStatus = "In Progress"
	LearningCompleted  LearningStatus = "Completed"
)

// Owner はコンテンツの作成者情報を表す。
type Owner struct {
	Email string `json:"email"`
}

// Project はポートフォリオのプロジェクトを表す。
type Project struct {
	ID           string   `json:"_id,omitempty"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	GithubURL    string   `json:"githubUrl,omitempty"`
	LiveURL      string   `json:"liveUrl,omitempty"`
	User         *Owner   `json:"user,omitempty"`
}

// Skill はスキルを表す。
type Skill struct {
	ID          string      `json:"_id,omitempty"`
	Name        string      `json:"name"`
	Proficiency Proficiency `json:"proficiency"`
	Category    string      `json:"category"`
}

// ExperienceItem は職務経歴を表す。日付はAPIから文字列で返される。
type ExperienceItem struct {
	ID          string `json:"_id,omitempty"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location,omitempty"`
	From        string `json:"from"`
	To          string `json:"to,omitempty"`
	Current     bool   `json:"current"`
	Description string `json:"description,omitempty"`
}

// Profile はポートフォリオ所有者のプロフィールを表す。
type Profile struct {
	ID              string `json:"_id,omitempty"`
	FullName        string `json:"fullName"`
	Title           string `json:"title"`
	Summary         string `json:"summary,omitempty"`
	Bio             string `json:"bio,omitempty"`
	Location        string `json:"location,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Email           string `json:"email,omitempty"`
	Website         string `json:"website,omitempty"`
	LinkedinURL     string `json:"linkedinUrl,omitempty"`
	GithubURL       string `json:"githubUrl,omitempty"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
	ResumeURL       string `json:"resumeUrl,omitempty"`
}

// LearningItem は学習中・学習済みの項目を表す。
type LearningItem struct {
	ID          string         `json:"_id,omitempty"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      LearningStatus `json:"status"`
	DateStarted string         `json:"dateStarted"`
	Link        string         `json:"link,omitempty"`
}

// LinkStatus はプロジェクトリンクの疎通確認結果を表す。
type LinkStatus struct {
	ProjectID  string
	URL        string
	StatusCode int
	Healthy    bool
	Error      string
	CheckedAt  time.Time
}
