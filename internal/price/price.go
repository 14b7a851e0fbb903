// Package price は掲載サイトの通貨表記（"$1,234"）と整数価格の相互変換を提供する。
package price

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrNoDigits は価格文字列に数字が含まれないことを示す。
var ErrNoDigits = errors.New("価格に数字が含まれていません")

// Format は整数価格を "$" + 3桁区切りの文字列に変換する。
// 例: 1234 -> "$1,234"
func Format(n int) string {
	if n < 0 {
		return "-" + Format(-n)
	}

	digits := strconv.Itoa(n)
	var b strings.Builder
	b.Grow(len(digits) + len(digits)/3 + 1)
	b.WriteByte('$')

	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// Parse は通貨表記の価格文字列を整数に変換する。
// 先頭の通貨記号と3桁区切りのカンマを除去し、小数部を切り捨てる。
// 数字を含まない文字列や負の値はエラーとし、0として扱うことはしない。
// 例: "$1,234.00" -> 1234
func Parse(s string) (int, error) {
	s = strings.TrimSpace(s)

	// 先頭の通貨記号（$, ¥, € など）を1文字だけ除去
	if r, size := utf8.DecodeRuneInString(s); size > 0 && unicode.Is(unicode.Sc, r) {
		s = strings.TrimSpace(s[size:])
	}

	s = strings.ReplaceAll(s, ",", "")

	// 小数部（セント）は切り捨てる
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}

	if s == "" {
		return 0, ErrNoDigits
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("負の価格は扱えません: %q", s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			if !strings.ContainsFunc(s, unicode.IsDigit) {
				return 0, ErrNoDigits
			}
			return 0, fmt.Errorf("価格の形式が不正です: %q", s)
		}
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("価格の変換に失敗しました: %w", err)
	}
	return n, nil
}
