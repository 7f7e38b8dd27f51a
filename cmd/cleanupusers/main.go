// Command cleanupusers はディレクトリと照合してアカウントの停止・削除・再有効化を行う。
//
// 使い方:
//
//	cleanupusers [worker|check|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/cleanupusers/internal/app"
)

func main() {
	// ログは標準エラーへ出し、check のレポートを標準出力に分離する
	if err := app.Run(os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "cleanupusers: %v\n", err)
		os.Exit(1)
	}
}
