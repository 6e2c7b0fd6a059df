package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はWebクライアントを起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はセッションストレージのマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandStatus は永続化済みセッションの状態をJSONで出力することを示す。
	CommandStatus Command = "status"
	// CommandLogout は永続化済みセッションを削除することを示す。
	CommandLogout Command = "logout"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	case "status":
		return CommandStatus
	case "logout":
		return CommandLogout
	default:
		return CommandServe
	}
}
