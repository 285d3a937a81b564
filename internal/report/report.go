// Package report は購読ストアの状態を端末向けの表形式で出力する。
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/hitoshi/sublink/internal/lifecycle"
	"github.com/hitoshi/sublink/internal/model"
)

// Options は出力の設定。
type Options struct {
	// Color が true の場合、状態をANSIカラーで表示する。
	Color bool
}

// Summary は状態別の件数。
type Summary struct {
	Total    int
	Healthy  int
	Failing  int
	Prunable int
}

// WriteSubscriptions は購読の一覧をストアの順序で表として書き出し、最後に集計行を出力する。
func WriteSubscriptions(w io.Writer, store *model.SubscriptionStore, now time.Time, opts Options) Summary {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)

	var sum Summary
	rows := make([][]string, 0, store.Len())
	for _, sub := range store.Subscriptions {
		state := lifecycle.StateOf(sub)
		prunable := lifecycle.EligibleForPruning(sub, sub.Origin, now)

		sum.Total++
		if state == lifecycle.StateHealthy {
			sum.Healthy++
		} else {
			sum.Failing++
		}
		if prunable {
			sum.Prunable++
		}

		rows = append(rows, []string{
			sub.URL,
			originLabel(sub.Origin),
			stateLabel(state, prunable, opts.Color),
			fmt.Sprintf("%d", sub.FailureCount),
			formatTime(sub.LastSuccess),
			formatTime(sub.FirstFailure),
			Remaining(sub, now),
		})
	}

	table.Header([]string{"URL", "Origin", "State", "Failures", "Last Success", "First Failure", "Remaining"})
	table.Bulk(rows)
	table.Render()

	fmt.Fprintf(w, "\n%d subscriptions: %d healthy, %d failing, %d prunable\n",
		sum.Total, sum.Healthy, sum.Failing, sum.Prunable)
	return sum
}

// Remaining は削除対象になるまでの残り時間を表示用の文字列で返す。
// 健全な購読と期限が無制限の購読は "-"、期限到達済みは "expired"。
func Remaining(sub *model.Subscription, now time.Time) string {
	if sub.FirstFailure == nil {
		return "-"
	}
	days := model.ExpiryDays(sub.Origin)
	if days < 0 {
		return "-"
	}

	left := sub.FirstFailure.Add(time.Duration(days) * 24 * time.Hour).Sub(now)
	if left <= 0 {
		return "expired"
	}
	d := int(left / (24 * time.Hour))
	h := int(left%(24*time.Hour)) / int(time.Hour)
	return fmt.Sprintf("%dd%dh", d, h)
}

func originLabel(origin string) string {
	if origin == "" {
		return "(none)"
	}
	return origin
}

func stateLabel(state lifecycle.State, prunable bool, useColor bool) string {
	label := string(state)
	if prunable {
		label += " (prunable)"
	}
	if !useColor {
		return label
	}

	switch {
	case prunable:
		return color.RedString(label)
	case state == lifecycle.StateFailing:
		return color.YellowString(label)
	default:
		return color.GreenString(label)
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
