package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/sniper/internal/model"
)

const (
	// BrowserUserAgent は一般的なブラウザのUser-Agent。
	// 掲載サイトはブラウザ以外からのアクセスをブロックするため必須。
	BrowserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// listingsToken はscriptブロック内で出品配列の直前に置かれる識別子。
	listingsToken = "listings:"
)

// HTTPClientProvider は掲載サイトへのアクセスに使うHTTPクライアントを提供する。
type HTTPClientProvider interface {
	NewClient(timeout time.Duration) *http.Client
	ValidateURL(rawURL string) error
}

// EmbeddedJSONExtractor は検索結果ページのscriptブロックに埋め込まれた
// JSON配列（listings: [...]）から出品を取得する。
type EmbeddedJSONExtractor struct {
	baseURL     string
	clients     HTTPClientProvider
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
}

// NewEmbeddedJSONExtractor はEmbeddedJSONExtractorの新しいインスタンスを生成する。
func NewEmbeddedJSONExtractor(
	baseURL string,
	clients HTTPClientProvider,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *EmbeddedJSONExtractor {
	return &EmbeddedJSONExtractor{
		baseURL:     baseURL,
		clients:     clients,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// FetchListings は検索結果ページを取得し、埋め込みJSONから出品を取り出す。
func (e *EmbeddedJSONExtractor) FetchListings(ctx context.Context, params SearchParams) ([]RawEntry, error) {
	searchURL, err := BuildSearchURL(e.baseURL, params)
	if err != nil {
		return nil, &model.FetchError{URL: e.baseURL, Err: fmt.Errorf("検索URLの組み立てに失敗: %w", err)}
	}

	if err := e.clients.ValidateURL(searchURL); err != nil {
		return nil, &model.FetchError{URL: searchURL, Err: fmt.Errorf("URL検証に失敗: %w", err)}
	}

	body, err := e.fetch(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	entries, err := ParseEmbeddedListings(body)
	if err != nil {
		var formatErr *model.FormatError
		if errors.As(err, &formatErr) {
			formatErr.URL = searchURL
		}
		return nil, err
	}

	e.logger.Debug("埋め込みJSONから出品を取得しました",
		slog.String("url", searchURL),
		slog.Int("entries", len(entries)),
	)

	return entries, nil
}

// fetch は検索結果ページのHTMLを取得する。
func (e *EmbeddedJSONExtractor) fetch(ctx context.Context, searchURL string) ([]byte, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, &model.FetchError{URL: searchURL, Err: fmt.Errorf("リクエスト作成に失敗: %w", err)}
	}
	req.Header.Set("User-Agent", BrowserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	e.logger.Info("掲載サイトに問い合わせます", slog.String("url", searchURL))

	client := e.clients.NewClient(e.timeout)
	resp, err := client.Do(req)
	if err != nil {
		return nil, &model.FetchError{URL: searchURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &model.FetchError{
			URL:        searchURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBodySize))
	if err != nil {
		return nil, &model.FetchError{URL: searchURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("レスポンス読み取りに失敗: %w", err)}
	}

	e.logger.Debug("検索結果ページを取得しました",
		slog.String("url", searchURL),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("bytes", len(body)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return body, nil
}

// ParseEmbeddedListings はHTMLから "listings:" で始まる埋め込みJSON配列を取り出す。
// "listings:" が複数ある場合は、直後にJSON配列が続く最初のものを使う。
// トークンを含むscriptが存在しない場合やJSONとして解釈できない場合は *model.FormatError を返す。
// 配列が空の場合は空のスライスを返す（検索結果0件は正常）。
func ParseEmbeddedListings(page []byte) ([]RawEntry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, &model.FormatError{Reason: "HTMLとして解析できません", Err: err}
	}

	var script string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if strings.Contains(text, listingsToken) {
			script = text
			return false
		}
		return true
	})
	if script == "" {
		return nil, &model.FormatError{Reason: "listings: を含むscriptが見つかりません"}
	}

	rest, ok := findListingsArray(script)
	if !ok {
		return nil, &model.FormatError{Reason: "listings: の後にJSON配列がありません"}
	}

	// 配列1つ分だけをデコードし、後続のスクリプトは無視する
	dec := json.NewDecoder(strings.NewReader(rest))
	dec.UseNumber()

	var entries []RawEntry
	if err := dec.Decode(&entries); err != nil {
		return nil, &model.FormatError{Reason: "埋め込みJSONの解析に失敗しました", Err: err}
	}
	if entries == nil {
		entries = []RawEntry{}
	}

	return entries, nil
}

// findListingsArray はscript内で "listings:" の直後（空白は無視）に "[" が続く最初の位置を探し、
// その "[" 以降の文字列を返す。
func findListingsArray(script string) (string, bool) {
	for rest := script; ; {
		i := strings.Index(rest, listingsToken)
		if i < 0 {
			return "", false
		}
		rest = rest[i+len(listingsToken):]
		candidate := strings.TrimLeft(rest, " \t\r\n\f\v")
		if strings.HasPrefix(candidate, "[") {
			return candidate, true
		}
	}
}
