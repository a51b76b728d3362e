// Command warbler はWarblerのWebサーバー・ワーカー・管理コマンドを提供する。
//
//	warbler [serve]            Webサーバーを起動する
//	warbler worker             期限切れセッションの削除ワーカーを起動する
//	warbler migrate [up]       マイグレーションを適用する
//	warbler migrate down [N]   マイグレーションをN件巻き戻す
//	warbler seed               SEED_FILEの初期データを投入する
//	warbler healthcheck        /health を確認する（Docker用）
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/warbler/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
