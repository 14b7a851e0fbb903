package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandRun はパイプラインを1回実行して終了することを示す。cronからの起動を想定する。
	CommandRun Command = "run"
	// CommandWorker はティッカーでパイプラインを定期実行し続けることを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandCleanup は失効した重複排除レコードを削除することを示す。
	CommandCleanup Command = "cleanup"
	// CommandPreview は通知せずにフィルタ通過後の出品を表示することを示す。
	CommandPreview Command = "preview"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空の場合はCommandRunを返す。サポート外のコマンドの場合はfalseを返す。
func ParseCommand(args []string) (Command, bool) {
	if len(args) == 0 {
		return CommandRun, true
	}

	switch cmd := Command(args[0]); cmd {
	case CommandRun, CommandWorker, CommandMigrate, CommandCleanup, CommandPreview, CommandHealthcheck:
		return cmd, true
	default:
		return "", false
	}
}
