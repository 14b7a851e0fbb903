// Package report はpreviewコマンドの出品一覧を端末向けの表に整形する。
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/hitoshi/sniper/internal/model"
	"github.com/hitoshi/sniper/internal/price"
)

// 出品の通知状態。
const (
	StatusNew  = "new"
	StatusSeen = "seen"
)

// DefaultTitleWidth はタイトル列の最大表示幅。
const DefaultTitleWidth = 48

// Row は表の1行。Statusが空の場合は状態列を表示しない。
type Row struct {
	Listing model.Listing
	Status  string
}

// WriteTable は出品の一覧を列を揃えた表として書き出す。
// 列幅は表示幅で計算するため、全角文字を含むタイトルでも列がずれない。
func WriteTable(w io.Writer, rows []Row, titleWidth int) error {
	if titleWidth <= 0 {
		titleWidth = DefaultTitleWidth
	}

	withStatus := false
	for _, r := range rows {
		if r.Status != "" {
			withStatus = true
			break
		}
	}

	header := []string{"ID", "PRICE"}
	if withStatus {
		header = append(header, "STATUS")
	}
	header = append(header, "TITLE", "LINK")

	table := [][]string{header}
	for _, r := range rows {
		cells := []string{r.Listing.ID, price.Format(r.Listing.Price)}
		if withStatus {
			cells = append(cells, r.Status)
		}
		title := runewidth.Truncate(singleLine(r.Listing.Title), titleWidth, "…")
		cells = append(cells, title, r.Listing.Link)
		table = append(table, cells)
	}

	widths := make([]int, len(header))
	for _, cells := range table {
		for i, c := range cells {
			if cw := runewidth.StringWidth(c); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	for _, cells := range table {
		var sb strings.Builder
		for i, c := range cells {
			if i == len(cells)-1 {
				// 最終列は末尾に空白を付けない
				sb.WriteString(c)
				continue
			}
			sb.WriteString(runewidth.FillRight(c, widths[i]))
			sb.WriteString("  ")
		}
		if _, err := fmt.Fprintln(w, sb.String()); err != nil {
			return fmt.Errorf("表の書き出しに失敗しました: %w", err)
		}
	}

	if _, err := fmt.Fprintf(w, "\n%d件\n", len(rows)); err != nil {
		return fmt.Errorf("表の書き出しに失敗しました: %w", err)
	}
	return nil
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
