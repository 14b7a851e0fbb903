// Package filter は出品列に対する純粋な絞り込み処理を提供する。
package filter

import (
	"strings"

	"github.com/hitoshi/sniper/internal/model"
)

// RemoveAds は有料掲載（listingType が "featured" と完全一致）の出品を除外する。
// 検索クエリ側でも広告を除外しているが、ここでも必ず適用する。
func RemoveAds(listings []model.Listing) []model.Listing {
	result := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		if l.IsFeatured() {
			continue
		}
		result = append(result, l)
	}
	return result
}

// ByKeywords は包含語・除外語で出品を絞り込む。
//   - include が空でなければ、いずれかの語を含む出品のみを残す
//   - exclude が空でなければ、どの語も含まない出品のみを残す
//
// 照合はタイトルと説明を区切りなしで連結した文字列に対する大文字小文字を区別しない部分一致。
// 両方指定した場合は論理積となり、適用順序は結果に影響しない。空のリストは何も除外しない。
func ByKeywords(listings []model.Listing, include, exclude []string) []model.Listing {
	includeLower := lowerAll(include)
	excludeLower := lowerAll(exclude)

	result := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		text := searchText(l)
		if len(includeLower) > 0 && !containsAny(text, includeLower) {
			continue
		}
		if len(excludeLower) > 0 && containsAny(text, excludeLower) {
			continue
		}
		result = append(result, l)
	}
	return result
}

// ParseTerms はカンマ区切りの検索語を分割する。
// 空文字列の場合はnil（絞り込みなし）を返す。語の前後の空白も照合対象として残し、空の語だけを捨てる。
// 呼び出しごとに新しいスライスを返す。
func ParseTerms(csv string) []string {
	if csv == "" {
		return nil
	}

	var terms []string
	for _, term := range strings.Split(csv, ",") {
		if term == "" {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}

// searchText は照合対象の文字列を返す。
// タイトルと説明の間に区切り文字を入れないため、境界をまたいだ一致が起こりうる。
func searchText(l model.Listing) string {
	return strings.ToLower(l.Title + l.Description)
}

func lowerAll(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	lowered := make([]string, len(terms))
	for i, term := range terms {
		lowered[i] = strings.ToLower(term)
	}
	return lowered
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
