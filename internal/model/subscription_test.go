package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestSubscription_MarshalJSON_NullTimestamps(t *testing.T) {
	data, err := json.Marshal(Subscription{URL: "https://a.example/sub"})
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	want := `{"url":"https://a.example/sub","last_success":null,"last_check":null,"failure_count":0,"first_failure":null}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}

func TestSubscription_MarshalJSON_UTC(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	ts := time.Date(2024, 1, 1, 9, 0, 0, 0, jst)
	data, err := json.Marshal(Subscription{URL: "u", LastCheck: &ts, Origin: OriginGithub})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"last_check":"2024-01-01T00:00:00Z"`) {
		t.Errorf("タイムスタンプがUTCで出力されていません: %s", data)
	}
	if !strings.Contains(string(data), `"origin":"GITHUB"`) {
		t.Errorf("originが出力されていません: %s", data)
	}
}

func TestSubscription_UnmarshalJSON_Layouts(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Time
	}{
		{"RFC3339", "2024-03-01T10:00:00Z", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"オフセット付き", "2024-03-01T19:00:00+09:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"タイムゾーン無し", "2024-03-01T10:00:00.5", time.Date(2024, 3, 1, 10, 0, 0, 500000000, time.UTC)},
		{"スペース区切り", "2024-03-01 10:00:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Subscription
			raw := `{"url":"u","last_check":"` + tt.value + `","failure_count":0}`
			if err := json.Unmarshal([]byte(raw), &s); err != nil {
				t.Fatalf("Unmarshal returned error: %v", err)
			}
			if s.LastCheck == nil || !s.LastCheck.Equal(tt.want) {
				t.Errorf("LastCheck = %v, want %v", s.LastCheck, tt.want)
			}
			if s.LastCheck.Location() != time.UTC {
				t.Errorf("LastCheck location = %v, want UTC", s.LastCheck.Location())
			}
		})
	}
}

func TestSubscription_UnmarshalJSON_InvalidTimestamp(t *testing.T) {
	var s Subscription
	err := json.Unmarshal([]byte(`{"url":"u","first_failure":"yesterday"}`), &s)
	if err == nil {
		t.Fatal("不正なタイムスタンプでエラーが返されませんでした")
	}
	if !strings.Contains(err.Error(), "first_failure") {
		t.Errorf("エラーにフィールド名が含まれていません: %v", err)
	}
}

func TestSubscriptionStore_Ensure(t *testing.T) {
	store := NewSubscriptionStore()

	sub, created := store.Ensure("https://a.example/sub", "")
	if !created || sub == nil {
		t.Fatal("新規購読が作成されませんでした")
	}
	if sub.FailureCount != 0 || sub.FirstFailure != nil || sub.LastSuccess != nil || sub.LastCheck != nil {
		t.Errorf("新規購読の初期状態が不正: %+v", sub)
	}

	again, created := store.Ensure("https://a.example/sub", OriginPage)
	if created {
		t.Error("既存の購読で created=true が返されました")
	}
	if again != sub {
		t.Error("既存の購読とは別のポインタが返されました")
	}
	if again.Origin != OriginPage {
		t.Errorf("未設定の発見元が補完されていません: %q", again.Origin)
	}

	store.Ensure("https://a.example/sub", OriginRepo)
	if sub.Origin != OriginPage {
		t.Errorf("設定済みの発見元が上書きされました: %q", sub.Origin)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestSubscriptionStore_Remove(t *testing.T) {
	store := NewSubscriptionStore()
	store.Ensure("a", "")
	store.Ensure("b", "")
	store.Ensure("c", "")

	if !store.Remove("b") {
		t.Fatal("Remove(b) = false, want true")
	}
	if store.Remove("b") {
		t.Error("2回目のRemove(b) = true, want false")
	}
	if store.Len() != 2 || store.Subscriptions[0].URL != "a" || store.Subscriptions[1].URL != "c" {
		t.Errorf("削除後の順序が不正: %+v", store.Subscriptions)
	}
	if store.Get("b") != nil {
		t.Error("削除済みの購読が取得できてしまいました")
	}
}
