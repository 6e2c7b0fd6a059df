// Package guard はセッション状態に基づくルート保護と、権限に応じた表示制御を提供する。
package guard

import (
	"strings"

	"github.com/hitoshi/folio/internal/session"
)

// Decision はナビゲーション1回分のガード判定結果。
type Decision int

const (
	// Pending は未評価。
	Pending Decision = iota
	// Allowed はビューの表示を許可する（終端）。
	Allowed
	// Redirected はログイン画面へ誘導する（終端）。
	Redirected
	// Denied は認証済みだがロールが要件を満たさない（終端）。
	Denied
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case Allowed:
		return "allowed"
	case Redirected:
		return "redirected"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Requirement はビューが要求するセッション条件。
type Requirement int

const (
	// Authenticated はトークンを保持していること。
	Authenticated Requirement = iota
	// ContentManager はowner/adminであること。
	ContentManager
	// Owner はownerであること。
	Owner
)

func (r Requirement) String() string {
	switch r {
	case Authenticated:
		return "authenticated"
	case ContentManager:
		return "content_manager"
	case Owner:
		return "owner"
	default:
		return "unknown"
	}
}

// Evaluate はSnapshotと要件からガード判定を行う。
// 評価時点のSnapshotのみで決定し、進行中のログインの完了は待たない。
func Evaluate(snap session.Snapshot, req Requirement) Decision {
	if !snap.IsAuthenticated() {
		return Redirected
	}
	switch req {
	case Authenticated:
		return Allowed
	case ContentManager:
		if snap.CanManageContent() {
			return Allowed
		}
	case Owner:
		if snap.IsOwner() {
			return Allowed
		}
	}
	return Denied
}

// Navigation はナビゲーション1回分の判定状態を保持する。
// Pendingから始まり、Resolveで終端状態に遷移する。終端状態は変化しない。
// 新しいナビゲーションは新しいNavigationで評価する。
type Navigation struct {
	Path        string
	Requirement Requirement
	decision    Decision
}

// NewNavigation はPending状態のNavigationを生成する。
func NewNavigation(path string, req Requirement) *Navigation {
	return &Navigation{Path: path, Requirement: req, decision: Pending}
}

// Resolve はPendingの場合のみSnapshotで評価し、判定結果を返す。
func (n *Navigation) Resolve(snap session.Snapshot) Decision {
	if n.decision == Pending {
		n.decision = Evaluate(snap, n.Requirement)
	}
	return n.decision
}

// Decision は現在の判定状態を返す。
func (n *Navigation) Decision() Decision {
	return n.decision
}

// 未認証でもアクセスできる認証系ページ。
var publicAuthPaths = []string{"/login", "/register", "/forgot-password"}

// IsPublicAuthPath はパスが未認証で表示できる認証系ページかを返す。
// 401受信時にこれらのページにいる場合はログイン画面へのリダイレクトを行わない。
func IsPublicAuthPath(path string) bool {
	for _, p := range publicAuthPaths {
		if path == p {
			return true
		}
	}
	return strings.HasPrefix(path, "/reset-password/")
}
