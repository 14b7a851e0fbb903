// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// 処理段階の名前。ログの stage 属性とメトリクスのラベルに使用する。
const (
	StageFetch    = "fetch"
	StageFormat   = "format"
	StageValidate = "validate"
	StageNotify   = "notify"
	StageStore    = "store"
)

// FetchError は掲載サイトへの到達に失敗したことを表す。
// ネットワークエラー、タイムアウト、2xx以外のHTTPステータスを含む。実行全体を中断する。
type FetchError struct {
	URL        string
	StatusCode int // HTTPレスポンスを受け取れなかった場合は0
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("掲載サイトの取得に失敗しました (status=%d, url=%s)", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("掲載サイトの取得に失敗しました (url=%s): %v", e.URL, e.Err)
}

// Unwrap は原因となったエラーを返す。
func (e *FetchError) Unwrap() error { return e.Err }

// FormatError は取得したページに想定したデータ構造が存在しないことを表す。
// 掲載サイトの形式変更を示すため、実行全体を中断する。
type FormatError struct {
	URL    string
	Reason string
	Err    error
}

// Error はerrorインターフェースを実装する。
func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ページ形式が想定と異なります: %s (url=%s): %v", e.Reason, e.URL, e.Err)
	}
	return fmt.Sprintf("ページ形式が想定と異なります: %s (url=%s)", e.Reason, e.URL)
}

// Unwrap は原因となったエラーを返す。
func (e *FormatError) Unwrap() error { return e.Err }

// ValidationError は1件の出品の必須フィールドが欠落または解析不能であることを表す。
// 該当の出品のみを除外し、実行は継続する。
type ValidationError struct {
	ListingID string // IDが取得できなかった場合は空
	Field     string
	Reason    string
	Err       error
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("出品データが不正です: field=%s: %s", e.Field, e.Reason)
	if e.ListingID != "" {
		msg = fmt.Sprintf("出品データが不正です: listing_id=%s field=%s: %s", e.ListingID, e.Field, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap は原因となったエラーを返す。
func (e *ValidationError) Unwrap() error { return e.Err }

// NotifyError は1件の出品の通知送信に失敗したことを表す。
type NotifyError struct {
	ListingID string
	Err       error
}

// Error はerrorインターフェースを実装する。
func (e *NotifyError) Error() string {
	return fmt.Sprintf("通知の送信に失敗しました (listing_id=%s): %v", e.ListingID, e.Err)
}

// Unwrap は原因となったエラーを返す。
func (e *NotifyError) Unwrap() error { return e.Err }

// StoreError は1件の出品の重複排除レコードの参照または書き込みに失敗したことを表す。
type StoreError struct {
	ListingID string
	Op        string // lookup / insert
	Err       error
}

// Error はerrorインターフェースを実装する。
func (e *StoreError) Error() string {
	return fmt.Sprintf("重複排除ストアの%sに失敗しました (listing_id=%s): %v", e.Op, e.ListingID, e.Err)
}

// Unwrap は原因となったエラーを返す。
func (e *StoreError) Unwrap() error { return e.Err }

// IsRunFatal は実行全体を中断すべきエラーかどうかを返す。
func IsRunFatal(err error) bool {
	var fetchErr *FetchError
	var formatErr *FormatError
	return errors.As(err, &fetchErr) || errors.As(err, &formatErr)
}

// StageOf はエラーが発生した処理段階を返す。該当しない場合は空文字列を返す。
func StageOf(err error) string {
	var (
		fetchErr    *FetchError
		formatErr   *FormatError
		validateErr *ValidationError
		notifyErr   *NotifyError
		storeErr    *StoreError
	)
	switch {
	case errors.As(err, &fetchErr):
		return StageFetch
	case errors.As(err, &formatErr):
		return StageFormat
	case errors.As(err, &validateErr):
		return StageValidate
	case errors.As(err, &notifyErr):
		return StageNotify
	case errors.As(err, &storeErr):
		return StageStore
	default:
		return ""
	}
}
