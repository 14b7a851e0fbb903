// Package security は外部から取得したデータを安全に扱うための機能を提供する。
//
// TextSanitizer は掲載サイトから取得したタイトル・説明文をプレーンテキストに変換する。
// SourceGuard は掲載サイトへのHTTPアクセスに使うクライアントを生成する。
package security

import (
	"errors"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// maxSanitizePasses は出力が安定するまで変換を繰り返す上限回数。
const maxSanitizePasses = 8

// TextSanitizer はHTMLを含みうる文字列をプレーンテキストに変換するインターフェース。
type TextSanitizer interface {
	// Sanitize はHTMLエンティティをデコードし、HTML要素のタグを除去し、前後の空白を除去する。
	// Sanitize(Sanitize(s)) == Sanitize(s) が成り立つ。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// "<CBR600RR>" のようにタグの形をしていてもHTML要素でないものはテキストとして残す。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は変換を出力が変化しなくなるまで繰り返す。
// "&amp;lt;b&amp;gt;" のような多重エスケープも最終的な形まで変換する。
func (s *textSanitizer) Sanitize(raw string) string {
	text := raw
	for range maxSanitizePasses {
		next := s.sanitizeOnce(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

// sanitizeOnce はエンティティデコード、タグ除去、前後の空白除去を1回ずつ適用する。
func (s *textSanitizer) sanitizeOnce(raw string) string {
	text := html.UnescapeString(raw)
	if hasMarkup(text) {
		// bluemondayはテキストをエスケープして返すため、再度デコードする
		text = html.UnescapeString(s.policy.Sanitize(escapeUnknownTags(text)))
	}
	return strings.TrimSpace(text)
}

// hasMarkup はHTML要素のタグまたはコメントを含むかどうかを返す。
func hasMarkup(text string) bool {
	z := html.NewTokenizer(strings.NewReader(text))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			if z.Token().DataAtom != 0 {
				return true
			}
		case html.CommentToken, html.DoctypeToken:
			return true
		}
	}
}

// escapeUnknownTags はHTML要素でないタグ状の文字列をエスケープし、
// bluemondayにテキストとして扱わせる。HTML要素のタグはそのまま残す。
func escapeUnknownTags(text string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(text))
	for {
		tt := z.Next()
		raw := string(z.Raw())
		switch tt {
		case html.ErrorToken:
			// 末尾の閉じていないタグはテキストとして残す
			if errors.Is(z.Err(), io.EOF) {
				b.WriteString(html.EscapeString(raw))
			}
			return b.String()
		case html.TextToken:
			b.WriteString(html.EscapeString(z.Token().Data))
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			if z.Token().DataAtom != 0 {
				b.WriteString(raw)
			} else {
				b.WriteString(html.EscapeString(raw))
			}
		case html.CommentToken, html.DoctypeToken:
		}
	}
}
