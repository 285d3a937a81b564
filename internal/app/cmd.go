package app

import (
	"fmt"
	"strings"

	"github.com/hitoshi/sublink/internal/converter"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandValidate はソースリンクファイルを1回だけバッチ検証することを示す。
	CommandValidate Command = "validate"
	// CommandTrack は購読の追跡サイクルを1回だけ実行することを示す。
	CommandTrack Command = "track"
	// CommandPrune は保持期限を超過した購読の削除を1回だけ実行することを示す。
	CommandPrune Command = "prune"
	// CommandWorker はワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandServe は参照用APIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandConvert はプラットフォームに応じた変換ツールを実行することを示す。
	CommandConvert Command = "convert"
	// CommandStatus は購読ストアの状態を表形式で表示することを示す。
	CommandStatus Command = "status"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandWorkerを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandWorker
	}

	switch args[0] {
	case "validate":
		return CommandValidate
	case "track":
		return CommandTrack
	case "prune":
		return CommandPrune
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "convert":
		return CommandConvert
	case "status":
		return CommandStatus
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandWorker
	}
}

// ParseConvertArgs はconvertサブコマンド以降の引数を解析する。
// 先頭の "--set key=value" / "--set=key=value" は設定ファイルへの追記ペアとして取り出し、
// "--" 以降または最初の非 --set 引数以降を変換ツールにそのまま渡す。
func ParseConvertArgs(args []string) ([]converter.Pair, []string, error) {
	var pairs []converter.Pair

	i := 0
	for i < len(args) {
		arg := args[i]

		var kv string
		switch {
		case arg == "--":
			return pairs, args[i+1:], nil
		case arg == "--set":
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("--set requires key=value")
			}
			kv = args[i+1]
			i += 2
		case strings.HasPrefix(arg, "--set="):
			kv = strings.TrimPrefix(arg, "--set=")
			i++
		default:
			return pairs, args[i:], nil
		}

		key, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, nil, fmt.Errorf("invalid --set value: %q (expected key=value)", kv)
		}
		pairs = append(pairs, converter.Pair{Key: strings.TrimSpace(key), Value: value})
	}

	return pairs, nil, nil
}
