package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Subscription は継続的に追跡する購読（フィードソース）を表す。
// FailureCount が 0 のとき FirstFailure は必ず nil。
type Subscription struct {
	URL          string
	Origin       string
	LastSuccess  *time.Time
	LastCheck    *time.Time
	FailureCount int
	FirstFailure *time.Time
}

// subscriptionJSON は永続化フォーマットでのフィールド名を定義する。
type subscriptionJSON struct {
	URL          string  `json:"url"`
	LastSuccess  *string `json:"last_success"`
	LastCheck    *string `json:"last_check"`
	FailureCount int     `json:"failure_count"`
	FirstFailure *string `json:"first_failure"`
	Origin       string  `json:"origin,omitempty"`
}

// timestampLayouts は読み込み時に受け付けるISO-8601の形式。
// タイムゾーン無しの値はUTCとして扱う。
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// MarshalJSON は購読をISO-8601タイムスタンプ付きのJSONに変換する。
func (s Subscription) MarshalJSON() ([]byte, error) {
	return json.Marshal(subscriptionJSON{
		URL:          s.URL,
		LastSuccess:  formatTimestamp(s.LastSuccess),
		LastCheck:    formatTimestamp(s.LastCheck),
		FailureCount: s.FailureCount,
		FirstFailure: formatTimestamp(s.FirstFailure),
		Origin:       s.Origin,
	})
}

// UnmarshalJSON はJSONから購読を復元する。
func (s *Subscription) UnmarshalJSON(data []byte) error {
	var raw subscriptionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	lastSuccess, err := parseTimestamp(raw.LastSuccess)
	if err != nil {
		return fmt.Errorf("last_success: %w", err)
	}
	lastCheck, err := parseTimestamp(raw.LastCheck)
	if err != nil {
		return fmt.Errorf("last_check: %w", err)
	}
	firstFailure, err := parseTimestamp(raw.FirstFailure)
	if err != nil {
		return fmt.Errorf("first_failure: %w", err)
	}

	*s = Subscription{
		URL:          raw.URL,
		Origin:       raw.Origin,
		LastSuccess:  lastSuccess,
		LastCheck:    lastCheck,
		FailureCount: raw.FailureCount,
		FirstFailure: firstFailure,
	}
	return nil
}

func formatTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(time.RFC3339Nano)
	return &v
}

func parseTimestamp(v *string) (*time.Time, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, *v)
		if err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid ISO-8601 timestamp: %q", *v)
}

// SubscriptionStore はURLをキーとした購読の集合。
// 永続化は常に全体の読み込み/全体の書き込みで行う。
type SubscriptionStore struct {
	Subscriptions []*Subscription `json:"subscriptions"`
}

// NewSubscriptionStore は空のSubscriptionStoreを生成する。
func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{Subscriptions: []*Subscription{}}
}

// Len は購読数を返す。
func (s *SubscriptionStore) Len() int {
	return len(s.Subscriptions)
}

// Get は指定URLの購読を返す。見つからない場合はnilを返す。
func (s *SubscriptionStore) Get(url string) *Subscription {
	for _, sub := range s.Subscriptions {
		if sub.URL == url {
			return sub
		}
	}
	return nil
}

// Ensure は指定URLの購読を返し、存在しなければ初期状態で作成する。
// 2番目の戻り値は新規作成した場合に true。
// 既存の購読に発見元が未設定で origin が指定された場合は発見元を補完する。
func (s *SubscriptionStore) Ensure(url, origin string) (*Subscription, bool) {
	if sub := s.Get(url); sub != nil {
		if sub.Origin == "" && origin != "" {
			sub.Origin = origin
		}
		return sub, false
	}
	sub := &Subscription{URL: url, Origin: origin}
	s.Subscriptions = append(s.Subscriptions, sub)
	return sub, true
}

// Remove は指定URLの購読を削除する。削除した場合に true を返す。
func (s *SubscriptionStore) Remove(url string) bool {
	for i, sub := range s.Subscriptions {
		if sub.URL == url {
			s.Subscriptions = append(s.Subscriptions[:i], s.Subscriptions[i+1:]...)
			return true
		}
	}
	return false
}

// Source は購読ソースファイルの1エントリ（URLと発見元）を表す。
type Source struct {
	URL    string `yaml:"url" json:"url"`
	Origin string `yaml:"origin" json:"origin"`
}
