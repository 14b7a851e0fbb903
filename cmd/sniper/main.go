// Command sniper は掲載サイトの新着出品を検知してTelegramへ通知する。
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/sniper/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
