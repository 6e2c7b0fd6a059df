// Package session はクライアントインスタンスごとの認証セッション（トークンとユーザー）を管理する。
// メモリ上の状態と永続ストレージを橋渡しし、セッション変更の唯一の窓口となる。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/folio/internal/metrics"
	"github.com/hitoshi/folio/internal/model"
	"github.com/hitoshi/folio/internal/storage"
)

// 永続ストレージ上のキー。これらのキーに書き込むのはStoreのみ。
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// Recorder はセッション操作のメトリクス記録インターフェース。
type Recorder interface {
	RecordLogin()
	RecordLogout()
	RecordPersistFailure(op string)
	RecordCorruptedSession()
}

// Option はStoreの生成オプション。
type Option func(*Store)

// WithLogger はログ出力先を設定する。
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithMetrics はメトリクスの記録先を設定する。
func WithMetrics(rec Recorder) Option {
	return func(s *Store) { s.metrics = rec }
}

// WithClock はトークン期限判定に使う現在時刻の取得関数を設定する。
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store は認証セッションの唯一の保持者。
// 変更操作は「永続化 + メモリ更新」の間ミューテックスを保持するため、
// Login直後のIsAuthenticatedは必ずログイン後の状態を観測する。
type Store struct {
	storage  storage.Storage
	logger   *slog.Logger
	metrics  Recorder
	now      func() time.Time
	validate *validator.Validate

	mu      sync.RWMutex
	token   string
	user    *model.User
	loading bool

	subMu     sync.Mutex
	subs      map[int]func(Snapshot)
	nextSubID int
}

// NewStore は永続ストレージを指定してStoreを生成する。
// 生成直後は未認証状態で、永続化済みのセッションはInitializeで読み込む。
func NewStore(st storage.Storage, opts ...Option) *Store {
	s := &Store{
		storage:  st,
		logger:   slog.Default(),
		metrics:  metrics.Nop{},
		now:      time.Now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		subs:     make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize は永続ストレージからトークンとユーザーを読み込む。
// ユーザーが破損している場合はユーザーキーのみを削除してuser=absentで続行する。
// トークンの復元はユーザーの復元とは独立している。
// 読み込みエラーは「未保存」として扱い、起動を妨げない。
// トークンの読み込みに失敗した場合、永続化済みのユーザーは孤立とみなさず削除しない。
// 破損データの削除に失敗した場合はErrNotPersistedを返すが、メモリ上の状態は確定している。
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()

	token, tokenErr := s.read(ctx, KeyToken)
	rawUser, _ := s.read(ctx, KeyUser)

	var cleanupErrs []error
	var user *model.User
	if rawUser != "" {
		u, err := s.decodeUser(rawUser)
		if err != nil {
			s.logger.Warn("永続化されたユーザー情報が破損しているため破棄します",
				slog.String("error", err.Error()),
			)
			s.metrics.RecordCorruptedSession()
			cleanupErrs = append(cleanupErrs, s.storage.Remove(ctx, KeyUser))
		} else {
			user = u
		}
	}

	switch {
	case tokenErr != nil && user != nil:
		s.logger.Warn("トークンを読み込めないため、ユーザー情報を復元せずに保持します",
			slog.String("user_id", user.ID),
		)
		user = nil
	case token == "" && user != nil:
		s.logger.Warn("トークンのないユーザー情報を破棄します",
			slog.String("user_id", user.ID),
		)
		s.metrics.RecordCorruptedSession()
		cleanupErrs = append(cleanupErrs, s.storage.Remove(ctx, KeyUser))
		user = nil
	}

	if token != "" && tokenExpired(token, s.now()) {
		s.logger.Info("有効期限切れのトークンを破棄します")
		cleanupErrs = append(cleanupErrs,
			s.storage.Remove(ctx, KeyToken),
			s.storage.Remove(ctx, KeyUser),
		)
		token = ""
		user = nil
	}

	s.token = token
	s.user = user
	s.loading = false
	err := s.persistResult("initialize", errors.Join(cleanupErrs...))
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("セッションを初期化しました",
		slog.Bool("authenticated", snap.IsAuthenticated()),
		slog.String("user_id", snap.UserID()),
	)
	s.notify(snap)
	return err
}

// Login はトークンとユーザーを永続化し、メモリ上のセッションに設定する。
// トークンが空、またはユーザーにid/email/roleが揃っていない場合は
// ErrInvalidToken/ErrInvalidUserを返し、状態は一切変更しない。
// 永続化に失敗した場合もメモリ上はログイン済みとなり、ErrNotPersistedを返す。
// その際は永続ストレージからトークンとユーザーの両方を削除し、
// 別のログインのトークンとユーザーが組み合わさって残らないようにする。
func (s *Store) Login(ctx context.Context, token string, user *model.User) error {
	if strings.TrimSpace(token) == "" {
		return ErrInvalidToken
	}
	data, u, err := s.encodeUser(user)
	if err != nil {
		return err
	}

	s.mu.Lock()
	writeErr := s.storage.Set(ctx, KeyToken, token)
	if writeErr == nil {
		writeErr = s.storage.Set(ctx, KeyUser, data)
	}
	if writeErr != nil {
		writeErr = errors.Join(writeErr, s.rollbackLogin(ctx))
	}
	s.token = token
	s.user = u
	s.loading = false
	err = s.persistResult("login", writeErr)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.metrics.RecordLogin()
	s.logger.Info("ログインしました",
		slog.String("user_id", u.ID),
		slog.String("role", string(u.Role)),
	)
	s.notify(snap)
	return err
}

// Logout はメモリ上のセッションと永続化済みのトークン・ユーザーを削除する。
// 未ログイン状態で呼び出しても何も起きない（冪等）。
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	wasAuthenticated := s.token != ""
	err := s.clearLocked(ctx, "logout")
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if wasAuthenticated {
		s.metrics.RecordLogout()
		s.logger.Info("ログアウトしました")
	}
	s.notify(snap)
	return err
}

// InvalidateToken はtokenが現在のトークンと一致する場合のみログアウトする。
// バックエンドが401を返したときに使用し、古いリクエストの401が
// その後の新しいログインを取り消さないようにする。
// ログアウトした場合はtrueを返す。
func (s *Store) InvalidateToken(ctx context.Context, token string) (bool, error) {
	return s.invalidate(ctx, token, "invalidate", "バックエンドがトークンを拒否したためセッションを破棄しました")
}

// ExpireToken は現在のトークンがJWTとして期限切れであればセッションを破棄する。
// 破棄した場合はtrueを返す。不透明トークンは対象外。
func (s *Store) ExpireToken(ctx context.Context) (bool, error) {
	token := s.Token()
	if token == "" || !tokenExpired(token, s.now()) {
		return false, nil
	}
	return s.invalidate(ctx, token, "expire", "トークンの有効期限が切れたためセッションを破棄しました")
}

// invalidate はtokenが現在のトークンと一致する場合のみセッションを破棄する。
func (s *Store) invalidate(ctx context.Context, token, op, msg string) (bool, error) {
	s.mu.Lock()
	if token == "" || s.token != token {
		s.mu.Unlock()
		return false, nil
	}
	err := s.clearLocked(ctx, op)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.metrics.RecordLogout()
	s.logger.Warn(msg)
	s.notify(snap)
	return true, err
}

// SetUser はトークンに触れずにユーザーのみを置き換えて永続化する。
// 未認証時にも呼び出せるが、その場合は「トークンのないユーザー」という
// 異常な状態になるため、呼び出し側で認証済みであることを確認すること。
func (s *Store) SetUser(ctx context.Context, user *model.User) error {
	data, u, err := s.encodeUser(user)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.token == "" {
		s.logger.Warn("未認証のセッションにユーザーを設定しました",
			slog.String("user_id", u.ID),
		)
	}
	writeErr := s.storage.Set(ctx, KeyUser, data)
	s.user = u
	err = s.persistResult("set_user", writeErr)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return err
}

// SetLoading は認証操作の進行中フラグを設定する。
// トークン・ユーザー・認証状態には影響せず、並行するLogin/Logoutも直列化しない。
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// TryBeginLoading は進行中フラグが立っていなければ立ててtrueを返す。
// すでに立っている場合はfalseを返す。ログインの多重送信を呼び出し側で防ぐために使う。
func (s *Store) TryBeginLoading() bool {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return false
	}
	s.loading = true
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return true
}

// Snapshot は現在のセッション状態のコピーを返す。
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Token は現在のトークンを返す。未認証の場合は空文字列。
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User は現在のユーザーのコピーを返す。
func (s *Store) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

func (s *Store) IsAuthenticated() bool            { return s.Snapshot().IsAuthenticated() }
func (s *Store) IsLoading() bool                  { return s.Snapshot().IsLoading() }
func (s *Store) HasRole(roles ...model.Role) bool { return s.Snapshot().HasRole(roles...) }
func (s *Store) CanManageContent() bool           { return s.Snapshot().CanManageContent() }
func (s *Store) IsOwner() bool                    { return s.Snapshot().IsOwner() }
func (s *Store) IsAdmin() bool                    { return s.Snapshot().IsAdmin() }

// Subscribe はセッション変更時に呼ばれるリスナーを登録する。
// リスナーは変更確定後、ロックの外で新しいSnapshotとともに呼ばれる。
// 戻り値の関数を呼ぶと登録を解除する。
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	listeners := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.subMu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// clearLocked はメモリと永続ストレージの両方からセッションを削除する。
// 片方の削除に失敗してももう片方の削除は試みる。呼び出し側でmuを保持すること。
func (s *Store) clearLocked(ctx context.Context, op string) error {
	writeErr := errors.Join(
		s.storage.Remove(ctx, KeyToken),
		s.storage.Remove(ctx, KeyUser),
	)
	s.token = ""
	s.user = nil
	s.loading = false
	return s.persistResult(op, writeErr)
}

// persistResult は永続化エラーをログとメトリクスに記録し、ErrNotPersistedでラップして返す。
func (s *Store) persistResult(op string, err error) error {
	if err == nil {
		return nil
	}
	s.logger.Error("セッションの永続化に失敗しました。現在のセッションはこのプロセス内でのみ有効です",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	s.metrics.RecordPersistFailure(op)
	return fmt.Errorf("%w: %s: %w", ErrNotPersisted, op, err)
}

// rollbackLogin は書き込みに失敗したログインの永続化済みキーを削除する。
// 削除にも失敗した場合はそのエラーを返す。呼び出し側でmuを保持すること。
func (s *Store) rollbackLogin(ctx context.Context) error {
	err := errors.Join(
		s.storage.Remove(ctx, KeyToken),
		s.storage.Remove(ctx, KeyUser),
	)
	if err != nil {
		s.logger.Error("ログイン失敗後の永続化済みセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
	}
	return err
}

// read はキーの値を読み込む。未保存の場合は空文字列を返す。
// 読み込みエラーは空文字列とともにそのまま返し、呼び出し側で未保存と区別させる。
func (s *Store) read(ctx context.Context, key string) (string, error) {
	v, ok, err := s.storage.Get(ctx, key)
	if err != nil {
		s.logger.Warn("永続ストレージの読み込みに失敗しました",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return "", err
	}
	if !ok {
		return "", nil
	}
	return v, nil
}

func (s *Store) decodeUser(raw string) (*model.User, error) {
	var u model.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if err := s.validate.Struct(&u); err != nil {
		return nil, fmt.Errorf("validate user: %w", err)
	}
	return &u, nil
}

// encodeUser はユーザーを検証し、永続化用のJSONと内部保持用のコピーを返す。
func (s *Store) encodeUser(user *model.User) (string, *model.User, error) {
	if user == nil {
		return "", nil, fmt.Errorf("%w: user is nil", ErrInvalidUser)
	}
	if err := s.validate.Struct(user); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidUser, err)
	}
	u := user.Clone()
	data, err := json.Marshal(u)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidUser, err)
	}
	return string(data), u, nil
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{token: s.token, user: s.user, loading: s.loading}
}
