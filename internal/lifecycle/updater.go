// Package lifecycle は購読ごとの健全性の状態遷移と、保持期限に基づく削除判定を提供する。
package lifecycle

import (
	"time"

	"github.com/hitoshi/sublink/internal/model"
)

// State は購読の健全性状態。
type State string

const (
	// StateHealthy は直近のチェックが成功している状態。
	StateHealthy State = "healthy"
	// StateFailing は直近のチェックから失敗が続いている状態。
	StateFailing State = "failing"
)

// StateOf は購読の現在の状態を返す。
func StateOf(sub *model.Subscription) State {
	if sub.FailureCount > 0 {
		return StateFailing
	}
	return StateHealthy
}

// Update はプローブ結果を現在時刻で購読に反映する。
// 戻り値はokをそのまま返す。
func Update(sub *model.Subscription, ok bool) bool {
	return UpdateAt(sub, ok, time.Now())
}

// UpdateAt はプローブ結果を指定時刻で購読に反映する。
//
// 成功時: last_success と last_check を now に、failure_count を0にし、first_failure をクリアする。
// 失敗時: failure_count を加算し、last_check を now にする。first_failure が未設定なら now を記録する。
//
// now が既存の last_check より前の場合は last_check を基準にする（時計の巻き戻り対策）。
func UpdateAt(sub *model.Subscription, ok bool, now time.Time) bool {
	if sub == nil {
		return ok
	}

	now = now.UTC()
	if sub.LastCheck != nil && now.Before(*sub.LastCheck) {
		now = sub.LastCheck.UTC()
	}

	if ok {
		ApplySuccess(sub, now)
	} else {
		ApplyFailure(sub, now)
	}
	return ok
}

// ApplySuccess は成功時の状態リセットを行う。
func ApplySuccess(sub *model.Subscription, now time.Time) {
	sub.LastSuccess = timePtr(now)
	sub.LastCheck = timePtr(now)
	sub.FailureCount = 0
	sub.FirstFailure = nil
}

// ApplyFailure は失敗回数を加算し、失敗が続いている期間の開始時刻を記録する。
func ApplyFailure(sub *model.Subscription, now time.Time) {
	sub.FailureCount++
	sub.LastCheck = timePtr(now)
	if sub.FirstFailure == nil {
		sub.FirstFailure = timePtr(now)
	}
}

// EligibleForPruning は購読が削除対象かを判定する。
// first_failure から発見元の保持期限以上経過していれば true。
// first_failure が未設定、または発見元の期限が無制限の場合は false。
// 判定のみを行い、購読の状態は変更しない。
func EligibleForPruning(sub *model.Subscription, originName string, now time.Time) bool {
	if sub == nil || sub.FirstFailure == nil {
		return false
	}

	days := model.ExpiryDays(originName)
	if days < 0 {
		return false
	}

	return now.Sub(*sub.FirstFailure) >= time.Duration(days)*24*time.Hour
}

// Prunable はストア内の削除対象購読を、ストアの順序のまま返す。
// 各購読は自身の発見元の期限で判定する。
func Prunable(store *model.SubscriptionStore, now time.Time) []*model.Subscription {
	var list []*model.Subscription
	for _, sub := range store.Subscriptions {
		if EligibleForPruning(sub, sub.Origin, now) {
			list = append(list, sub)
		}
	}
	return list
}

func timePtr(t time.Time) *time.Time {
	return &t
}
