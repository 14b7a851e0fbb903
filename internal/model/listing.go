// Package model はドメインモデルを定義する。
package model

import "time"

// ListingTypeFeatured は有料掲載（広告枠）を示すlistingTypeの値。
// 比較は大文字小文字を区別する完全一致で行う。
const ListingTypeFeatured = "featured"

// Listing は掲載サイトから取得した1件の出品を表す。
// Normalizerで生成された後は値として扱い、変更しない。
type Listing struct {
	ID          string // 掲載サイト上の出品ID。重複排除のキー
	Title       string // サニタイズ済み
	Description string // サニタイズ済み
	Price       int    // ドル単位の整数
	PhotoURL    string // https: で始まる絶対URL（写真がない場合は空）
	Link        string // 詳細ページのURL。IDから常に導出する

	// ListingType は広告フィルタでのみ参照する抽出時の属性。
	// 永続化せず、通知にも含めない。
	ListingType string
}

// IsFeatured は有料掲載かどうかを返す。
func (l Listing) IsFeatured() bool {
	return l.ListingType == ListingTypeFeatured
}

// DedupeRecord は通知済みの出品を記録する重複排除レコード。
// ExpiresAtを過ぎたレコードは存在しないものとして扱う。
type DedupeRecord struct {
	ListingID string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired は指定時刻においてレコードが失効しているかを返す。
func (r DedupeRecord) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Notification は購読チャネルへ送信する1件の通知。
// 外部システムが依存する契約のため、件名と本文以外の情報は持たない。
type Notification struct {
	Subject string // 1行、最大99文字
	Body    string // タイトル / 空行 / 説明 / 空行 / リンク
}
