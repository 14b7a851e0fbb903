// Package notify は新着出品の通知メッセージ生成と、重複排除付きの配信を提供する。
package notify

import (
	"fmt"
	"strings"

	"github.com/hitoshi/sniper/internal/model"
	"github.com/hitoshi/sniper/internal/price"
)

// MaxSubjectLength は件名の最大文字数（rune単位）。
const MaxSubjectLength = 99

var lineBreakRemover = strings.NewReplacer("\r", "", "\n", "")

// BuildNotification は出品から通知を組み立てる。
// 件名は "<タイトル> - $<価格>" から改行を取り除き、MaxSubjectLength文字で切り詰める。
// 本文はタイトル、説明、リンクを空行で区切って並べる。
func BuildNotification(l model.Listing) model.Notification {
	subject := fmt.Sprintf("%s - %s", l.Title, price.Format(l.Price))
	subject = truncateRunes(lineBreakRemover.Replace(subject), MaxSubjectLength)

	body := strings.Join([]string{l.Title, "", l.Description, "", l.Link}, "\n")

	return model.Notification{Subject: subject, Body: body}
}

// truncateRunes はsを先頭からmax文字（rune単位）に切り詰める。
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
