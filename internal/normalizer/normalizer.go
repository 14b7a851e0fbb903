// Package normalizer は掲載サイトの生データ（extractor.RawEntry）を
// 型付きの model.Listing に変換する。不正な入力を弾くのはこのパッケージだけであり、
// 後続の処理は型のないデータを扱わない。
package normalizer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hitoshi/sniper/internal/extractor"
	"github.com/hitoshi/sniper/internal/model"
	"github.com/hitoshi/sniper/internal/price"
	"github.com/hitoshi/sniper/internal/security"
)

// 掲載サイトの埋め込みJSONのキー。
const (
	keyID          = "id"
	keyTitle       = "title"
	keyDescription = "description"
	keyPrice       = "price"
	keyPhoto       = "photo"
	keyListingType = "listingType"
)

// Normalizer はRawEntryをListingに変換する。
type Normalizer struct {
	detailBaseURL string
	sanitizer     security.TextSanitizer
}

// NewNormalizer はNormalizerの新しいインスタンスを生成する。
// detailBaseURLは詳細ページURLの導出に使用する（例: "https://www.ksl.com/classifieds/listing"）。
func NewNormalizer(detailBaseURL string, sanitizer security.TextSanitizer) *Normalizer {
	return &Normalizer{
		detailBaseURL: detailBaseURL,
		sanitizer:     sanitizer,
	}
}

// Normalize は1件の生データをListingに変換する。
// id と price が欠落または解析不能な場合は *model.ValidationError を返す。
func (n *Normalizer) Normalize(raw extractor.RawEntry) (model.Listing, error) {
	id, err := stringID(raw[keyID])
	if err != nil {
		return model.Listing{}, &model.ValidationError{Field: keyID, Reason: err.Error()}
	}

	p, err := parsePriceValue(raw[keyPrice])
	if err != nil {
		return model.Listing{}, &model.ValidationError{ListingID: id, Field: keyPrice, Reason: "価格を解析できません", Err: err}
	}

	return model.Listing{
		ID:          id,
		Title:       n.sanitizer.Sanitize(stringValue(raw[keyTitle])),
		Description: n.sanitizer.Sanitize(stringValue(raw[keyDescription])),
		Price:       p,
		PhotoURL:    NormalizePhotoURL(stringValue(raw[keyPhoto])),
		Link:        BuildLink(n.detailBaseURL, id),
		ListingType: stringValue(raw[keyListingType]),
	}, nil
}

// NormalizeAll は生データの列をListingに変換する。
// 変換に失敗した出品は除外し、そのエラーを errs に入力順で返す。
func (n *Normalizer) NormalizeAll(raws []extractor.RawEntry) (listings []model.Listing, errs []error) {
	listings = make([]model.Listing, 0, len(raws))
	for _, raw := range raws {
		l, err := n.Normalize(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		listings = append(listings, l)
	}
	return listings, errs
}

// NormalizePhotoURL は写真URLを絶対URLに正規化する。
// プロトコル相対URL（//host/path）には https: を付与し、
// サムネイルサイズ指定のクエリ文字列は最後の ? 以降を除去する。
func NormalizePhotoURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "//") {
		s = "https:" + s
	}
	if i := strings.LastIndex(s, "?"); i >= 0 {
		s = s[:i]
	}
	return s
}

// BuildLink は出品IDから詳細ページのURLを導出する。
// 掲載サイトのデータにリンクが含まれていても使用しない。
func BuildLink(detailBaseURL, id string) string {
	return strings.TrimRight(detailBaseURL, "/") + "/" + id
}

// stringID はIDの値を文字列に変換する。数値IDは10進表記にする。
func stringID(v any) (string, error) {
	var id string
	switch val := v.(type) {
	case nil:
		return "", fmt.Errorf("IDがありません")
	case string:
		id = strings.TrimSpace(val)
	case json.Number:
		id = val.String()
	case float64:
		if val != math.Trunc(val) {
			return "", fmt.Errorf("IDが整数ではありません: %v", val)
		}
		id = strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		id = strconv.Itoa(val)
	case int64:
		id = strconv.FormatInt(val, 10)
	default:
		return "", fmt.Errorf("IDの型が不正です: %T", v)
	}
	if id == "" {
		return "", fmt.Errorf("IDが空です")
	}
	return id, nil
}

// parsePriceValue は価格の値を整数に変換する。
// 通貨表記の文字列と、数値のどちらも受け付ける。
func parsePriceValue(v any) (int, error) {
	switch val := v.(type) {
	case nil:
		return 0, fmt.Errorf("価格がありません")
	case string:
		return price.Parse(val)
	case json.Number:
		return price.Parse(val.String())
	case float64:
		if val < 0 || val > math.MaxInt32 {
			return 0, fmt.Errorf("価格が範囲外です: %v", val)
		}
		return int(val), nil
	case int:
		if val < 0 {
			return 0, fmt.Errorf("価格が範囲外です: %d", val)
		}
		return val, nil
	default:
		return 0, fmt.Errorf("価格の型が不正です: %T", v)
	}
}

// stringValue はテキスト項目を文字列として取り出す。文字列以外は空として扱う。
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return ""
	}
}
