package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hitoshi/folio/internal/model"
)

// Resource はバックエンドの1コレクション（/projects など）に対するCRUD操作。
type Resource[T any] struct {
	client *Client
	path   string
}

// NewResource はpath配下のコレクションに対するResourceを生成する。
func NewResource[T any](c *Client, path string) *Resource[T] {
	return &Resource[T]{client: c, path: path}
}

// List は一覧と件数を返す。queryはそのままクエリ文字列として付与する。
func (r *Resource[T]) List(ctx context.Context, query url.Values) ([]T, int, error) {
	p := r.path
	if len(query) > 0 {
		p += "?" + query.Encode()
	}
	var out Envelope[[]T]
	if err := r.client.do(ctx, http.MethodGet, p, nil, &out); err != nil {
		return nil, 0, err
	}
	return out.Data, out.Count, nil
}

// Get は1件を返す。
func (r *Resource[T]) Get(ctx context.Context, id string) (*T, error) {
	var out Envelope[*T]
	if err := r.client.do(ctx, http.MethodGet, r.itemPath(id), nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Create は新規作成する。
func (r *Resource[T]) Create(ctx context.Context, item T) (*T, error) {
	var out Envelope[*T]
	if err := r.client.do(ctx, http.MethodPost, r.path, item, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Update は既存の1件を更新する。
func (r *Resource[T]) Update(ctx context.Context, id string, item T) (*T, error) {
	var out Envelope[*T]
	if err := r.client.do(ctx, http.MethodPut, r.itemPath(id), item, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Delete は1件を削除する。
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	return r.client.do(ctx, http.MethodDelete, r.itemPath(id), nil, nil)
}

func (r *Resource[T]) itemPath(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

// ContentService はポートフォリオの各コンテンツをまとめて扱う。
type ContentService struct {
	Projects   *Resource[model.Project]
	Skills     *Resource[model.Skill]
	Experience *Resource[model.ExperienceItem]
	Learning   *Resource[model.LearningItem]
	Profiles   *Resource[model.Profile]
}

// NewContent はClientを共有するContentServiceを生成する。
func (c *Client) NewContent() *ContentService {
	return &ContentService{
		Projects:   NewResource[model.Project](c, "/projects"),
		Skills:     NewResource[model.Skill](c, "/skills"),
		Experience: NewResource[model.ExperienceItem](c, "/experience"),
		Learning:   NewResource[model.LearningItem](c, "/learning"),
		Profiles:   NewResource[model.Profile](c, "/profile"),
	}
}

// ListProjects はプロジェクト一覧を返す。
func (s *ContentService) ListProjects(ctx context.Context) ([]model.Project, error) {
	items, _, err := s.Projects.List(ctx, nil)
	return items, err
}

// ListSkills はカテゴリ・名前順のスキル一覧を返す。
func (s *ContentService) ListSkills(ctx context.Context) ([]model.Skill, error) {
	items, _, err := s.Skills.List(ctx, url.Values{"sort": {"category,name"}, "limit": {"1000"}})
	return items, err
}

// ListExperience は開始日の新しい順に職務経歴を返す。
func (s *ContentService) ListExperience(ctx context.Context) ([]model.ExperienceItem, error) {
	items, _, err := s.Experience.List(ctx, url.Values{"sort": {"-from"}})
	return items, err
}

// ListLearning は学習項目の一覧を返す。
func (s *ContentService) ListLearning(ctx context.Context) ([]model.LearningItem, error) {
	items, _, err := s.Learning.List(ctx, nil)
	return items, err
}

// GetProfile は先頭のプロフィールを返す。未登録の場合はnilを返す。
func (s *ContentService) GetProfile(ctx context.Context) (*model.Profile, error) {
	items, _, err := s.Profiles.List(ctx, nil)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

// SaveProject はidが空なら作成、そうでなければ更新する。
func (s *ContentService) SaveProject(ctx context.Context, id string, p model.Project) error {
	return save(ctx, s.Projects, id, p)
}

// SaveSkill はidが空なら作成、そうでなければ更新する。
func (s *ContentService) SaveSkill(ctx context.Context, id string, sk model.Skill) error {
	return save(ctx, s.Skills, id, sk)
}

// SaveExperience はidが空なら作成、そうでなければ更新する。
func (s *ContentService) SaveExperience(ctx context.Context, id string, e model.ExperienceItem) error {
	return save(ctx, s.Experience, id, e)
}

// SaveLearning はidが空なら作成、そうでなければ更新する。
func (s *ContentService) SaveLearning(ctx context.Context, id string, l model.LearningItem) error {
	return save(ctx, s.Learning, id, l)
}

// SaveProfile はプロフィールを更新する。/profile へのPUTはidを取らない。
func (s *ContentService) SaveProfile(ctx context.Context, p model.Profile) error {
	if p.ID == "" {
		_, err := s.Profiles.Create(ctx, p)
		return err
	}
	return s.Profiles.client.do(ctx, http.MethodPut, s.Profiles.path, p, nil)
}

// Delete は種別とidを指定してコンテンツを削除する。
func (s *ContentService) Delete(ctx context.Context, kind model.ContentKind, id string) error {
	switch kind {
	case model.KindProject:
		return s.Projects.Delete(ctx, id)
	case model.KindSkill:
		return s.Skills.Delete(ctx, id)
	case model.KindExperience:
		return s.Experience.Delete(ctx, id)
	case model.KindLearning:
		return s.Learning.Delete(ctx, id)
	case model.KindProfile:
		return s.Profiles.Delete(ctx, id)
	default:
		return model.NewUnknownContentError(string(kind))
	}
}

func save[T any](ctx context.Context, r *Resource[T], id string, item T) error {
	var err error
	if id == "" {
		_, err = r.Create(ctx, item)
	} else {
		_, err = r.Update(ctx, id, item)
	}
	return err
}
