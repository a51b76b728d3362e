package app

import (
	"fmt"
	"strconv"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はWebサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションの削除ワーカーとして起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandSeed は初期データを投入することを示す。
	CommandSeed Command = "seed"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(args[0]) {
	case CommandWorker, CommandServe, CommandMigrate, CommandSeed, CommandHealthcheck:
		return Command(args[0])
	default:
		return CommandServe
	}
}

// MigrateDirection はマイグレーションの適用方向。
type MigrateDirection string

const (
	MigrateUp   MigrateDirection = "up"
	MigrateDown MigrateDirection = "down"
)

// ParseMigrateArgs は migrate 以降の引数を解析する。
//
//	migrate            すべて適用
//	migrate up         すべて適用
//	migrate down [N]   N件（省略時1件）巻き戻す
func ParseMigrateArgs(args []string) (MigrateDirection, int, error) {
	if len(args) == 0 || args[0] == string(MigrateUp) {
		return MigrateUp, 0, nil
	}
	if args[0] != string(MigrateDown) {
		return "", 0, fmt.Errorf("unknown migrate direction: %s", args[0])
	}
	if len(args) < 2 {
		return MigrateDown, 1, nil
	}
	steps, err := strconv.Atoi(args[1])
	if err != nil || steps <= 0 {
		return "", 0, fmt.Errorf("invalid rollback steps: %s", args[1])
	}
	return MigrateDown, steps, nil
}

// ParseSeedArgs は seed 以降の引数からシードファイルのパスを決める。
// 省略時はdefaultFile（SEED_FILE）を使う。
func ParseSeedArgs(args []string, defaultFile string) (string, error) {
	switch len(args) {
	case 0:
		return defaultFile, nil
	case 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("too many seed arguments: %v", args)
	}
}
