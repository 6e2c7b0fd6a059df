package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/folio/internal/middleware"
	"github.com/hitoshi/folio/internal/model"
	"github.com/hitoshi/folio/internal/security"
	"github.com/hitoshi/folio/internal/session"
	"github.com/hitoshi/folio/internal/storage"
	"github.com/hitoshi/folio/internal/worker/linkcheck"
)

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	loginFn          func(ctx context.Context, email, password string) (*model.AuthResponse, error)
	registerFn       func(ctx context.Context, email, password string) (*model.AuthResponse, error)
	forgotPasswordFn func(ctx context.Context, email string) (string, error)
	resetPasswordFn  func(ctx context.Context, resetToken, password string) (*model.AuthResponse, error)
	updatePasswordFn func(ctx context.Context, currentPassword, newPassword string) (*model.AuthResponse, error)
	listUsersFn      func(ctx context.Context) ([]model.User, error)
	updateUserRoleFn func(ctx context.Context, userID string, role model.Role) (*model.User, error)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) Register(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	if m.forgotPasswordFn != nil {
		return m.forgotPasswordFn(ctx, email)
	}
	return "", nil
}

func (m *mockAuthService) ResetPassword(ctx context.Context, resetToken, password string) (*model.AuthResponse, error) {
	if m.resetPasswordFn != nil {
		return m.resetPasswordFn(ctx, resetToken, password)
	}
	return &model.AuthResponse{}, nil
}

func (m *mockAuthService) UpdatePassword(ctx context.Context, currentPassword, newPassword string) (*model.AuthResponse, error) {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(ctx, currentPassword, newPassword)
	}
	return nil, nil
}

func (m *mockAuthService) ListUsers(ctx context.Context) ([]model.User, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx)
	}
	return nil, nil
}

func (m *mockAuthService) UpdateUserRole(ctx context.Context, userID string, role model.Role) (*model.User, error) {
	if m.updateUserRoleFn != nil {
		return m.updateUserRoleFn(ctx, userID, role)
	}
	return nil, nil
}

// mockContentService はContentServiceInterfaceのモック実装。
type mockContentService struct {
	listProjectsFn   func(ctx context.Context) ([]model.Project, error)
	listSkillsFn     func(ctx context.Context) ([]model.Skill, error)
	listExperienceFn func(ctx context.Context) ([]model.ExperienceItem, error)
	listLearningFn   func(ctx context.Context) ([]model.LearningItem, error)
	getProfileFn     func(ctx context.Context) (*model.Profile, error)
	saveProjectFn    func(ctx context.Context, id string, p model.Project) error
	saveSkillFn      func(ctx context.Context, id string, s model.Skill) error
	saveExperienceFn func(ctx context.Context, id string, e model.ExperienceItem) error
	saveLearningFn   func(ctx context.Context, id string, l model.LearningItem) error
	saveProfileFn    func(ctx context.Context, p model.Profile) error
	deleteFn         func(ctx context.Context, kind model.ContentKind, id string) error
}

func (m *mockContentService) ListProjects(ctx context.Context) ([]model.Project, error) {
	if m.listProjectsFn != nil {
		return m.listProjectsFn(ctx)
	}
	return nil, nil
}

func (m *mockContentService) ListSkills(ctx context.Context) ([]model.Skill, error) {
	if m.listSkillsFn != nil {
		return m.listSkillsFn(ctx)
	}
	return nil, nil
}

func (m *mockContentService) ListExperience(ctx context.Context) ([]model.ExperienceItem, error) {
	if m.listExperienceFn != nil {
		return m.listExperienceFn(ctx)
	}
	return nil, nil
}

func (m *mockContentService) ListLearning(ctx context.Context) ([]model.LearningItem, error) {
	if m.listLearningFn != nil {
		return m.listLearningFn(ctx)
	}
	return nil, nil
}

func (m *mockContentService) GetProfile(ctx context.Context) (*model.Profile, error) {
	if m.getProfileFn != nil {
		return m.getProfileFn(ctx)
	}
	return nil, nil
}

func (m *mockContentService) SaveProject(ctx context.Context, id string, p model.Project) error {
	if m.saveProjectFn != nil {
		return m.saveProjectFn(ctx, id, p)
	}
	return nil
}

func (m *mockContentService) SaveSkill(ctx context.Context, id string, s model.Skill) error {
	if m.saveSkillFn != nil {
		return m.saveSkillFn(ctx, id, s)
	}
	return nil
}

func (m *mockContentService) SaveExperience(ctx context.Context, id string, e model.ExperienceItem) error {
	if m.saveExperienceFn != nil {
		return m.saveExperienceFn(ctx, id, e)
	}
	return nil
}

func (m *mockContentService) SaveLearning(ctx context.Context, id string, l model.LearningItem) error {
	if m.saveLearningFn != nil {
		return m.saveLearningFn(ctx, id, l)
	}
	return nil
}

func (m *mockContentService) SaveProfile(ctx context.Context, p model.Profile) error {
	if m.saveProfileFn != nil {
		return m.saveProfileFn(ctx, p)
	}
	return nil
}

func (m *mockContentService) Delete(ctx context.Context, kind model.ContentKind, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, kind, id)
	}
	return nil
}

// mockLinkChecker はLinkCheckerInterfaceのモック実装。
type mockLinkChecker struct {
	checkAllFn func(ctx context.Context, targets []linkcheck.Target) []model.LinkStatus
}

func (m *mockLinkChecker) CheckAll(ctx context.Context, targets []linkcheck.Target) []model.LinkStatus {
	if m.checkAllFn != nil {
		return m.checkAllFn(ctx, targets)
	}
	return nil
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	pingFn func(ctx context.Context) error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

// --- テスト環境 ---

const testCSRFToken = "test-csrf-token"

// testEnv はメモリストレージ上の実Storeとモックバックエンドでルーター全体を組み立てる。
type testEnv struct {
	store   *session.Store
	auth    *mockAuthService
	content *mockContentService
	links   *mockLinkChecker
	logs    *bytes.Buffer
	router  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))
	env := &testEnv{
		store:   session.NewStore(storage.NewMemoryStorage(), session.WithLogger(logger)),
		auth:    &mockAuthService{},
		content: &mockContentService{},
		links:   &mockLinkChecker{},
		logs:    logs,
	}

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(100))
	t.Cleanup(rl.Stop)

	router, err := NewRouter(&RouterDeps{
		Store:          env.store,
		AuthService:    env.auth,
		ContentService: env.content,
		LinkChecker:    env.links,
		LinkGuard:      security.NewLinkGuard(),
		Sanitizer:      security.NewDescriptionSanitizer(),
		RateLimiter:    rl,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "# metrics") }),
		Logger:         logger,
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	env.router = router
	return env
}

// loginAs は指定ロールのユーザーでStoreにログインする。
func (e *testEnv) loginAs(t *testing.T, role model.Role) *model.User {
	t.Helper()
	user := &model.User{ID: "u-" + string(role), Email: string(role) + "@example.com", Role: role}
	if err := e.store.Login(context.Background(), "tok-"+string(role), user); err != nil {
		t.Fatalf("Login: %v", err)
	}
	return user
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) getJSON(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// post はCSRFトークン（Cookieとフォームフィールド）付きでフォームを送信する。
func (e *testEnv) post(path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	form.Set(middleware.CSRFFormField, testCSRFToken)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, want, w.Body.String())
	}
}

func assertRedirect(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantLocation string) {
	t.Helper()
	assertStatus(t, w, wantStatus)
	if got := w.Header().Get("Location"); got != wantLocation {
		t.Errorf("Location = %q, want %q", got, wantLocation)
	}
}

func assertBodyContains(t *testing.T, w *httptest.ResponseRecorder, want string) {
	t.Helper()
	if !strings.Contains(w.Body.String(), want) {
		t.Errorf("body does not contain %q:\n%s", want, w.Body.String())
	}
}

func assertBodyNotContains(t *testing.T, w *httptest.ResponseRecorder, unwanted string) {
	t.Helper()
	if strings.Contains(w.Body.String(), unwanted) {
		t.Errorf("body should not contain %q:\n%s", unwanted, w.Body.String())
	}
}

func serve(e *testEnv, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}
