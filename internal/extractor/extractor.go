// Package extractor は掲載サイトから出品データを取得する。
// ページ形式の変化による影響をこのパッケージ内に閉じ込め、
// 型のない生データ（RawEntry）はNormalizerにのみ渡す。
package extractor

import (
	"context"
	"net/url"
	"strconv"

	"github.com/hitoshi/sniper/internal/price"
)

// RawEntry は掲載サイトが返す1件の出品データ。キーと値の型は掲載サイトの形式に依存する。
type RawEntry map[string]any

// SearchParams は検索条件を表す。
type SearchParams struct {
	Category    string
	Subcategory string
	MinPrice    int
	MaxPrice    int
	ZipCode     string
	RadiusMiles int
}

// Extractor は検索条件に一致する出品を1ページ分取得するインターフェース。
// 掲載サイトの形式は変化するため、取得戦略はこのインターフェースの実装として差し替える。
type Extractor interface {
	// FetchListings は出品データを取得する。
	// 通信・HTTPエラーは *model.FetchError、想定したデータ構造が見つからない場合は
	// *model.FormatError を返す。検索結果が0件の場合は空のスライスを返す。
	FetchListings(ctx context.Context, params SearchParams) ([]RawEntry, error)
}

// BuildSearchURL は検索ページのURLを組み立てる。
// 直近24時間の写真付き出品に絞り込む。価格は "$1,000" 形式で指定する。
func BuildSearchURL(baseURL string, params SearchParams) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("keyword", "")
	q.Set("category[]", params.Category)
	q.Set("subCategory[]", params.Subcategory)
	q.Set("hasPhotos[]", "Has Photos")
	q.Set("priceFrom", price.Format(params.MinPrice))
	q.Set("priceTo", price.Format(params.MaxPrice))
	q.Set("postedTimeFQ[]", "1DAY")
	q.Set("city", "")
	q.Set("state", "")
	q.Set("zip", params.ZipCode)
	q.Set("miles", strconv.Itoa(params.RadiusMiles))
	q.Set("sort", "0")
	u.RawQuery = q.Encode()

	return u.String(), nil
}
