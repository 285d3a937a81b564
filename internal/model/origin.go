// Package model はドメインモデルを定義する。
package model

import (
	"sort"
	"strings"
)

// UnboundedDays は期限なし（プルーニング対象にならない）を表す番兵値。
const UnboundedDays = -1

// Origin はリンク/購読の発見元カテゴリと、その有効期限（日数）を表す。
type Origin struct {
	Name       string `json:"name"`
	ExpireDays int    `json:"expire_days"`
}

// Unbounded は有効期限が無制限の発見元かを返す。
func (o Origin) Unbounded() bool {
	return o.ExpireDays == UnboundedDays
}

// 発見元カテゴリ名
const (
	OriginOwned     = "OWNED"
	OriginTelegram  = "TELEGRAM"
	OriginTwitter   = "TWITTER"
	OriginTemporary = "TEMPORARY"
	OriginPage      = "PAGE"
	OriginGoogle    = "GOOGLE"
	OriginYandex    = "YANDEX"
	OriginGithub    = "GITHUB"
	OriginFofa      = "FOFA"
	OriginV2raySE   = "V2RAYSE"
	OriginRepo      = "REPO"
	OriginRemaind   = "REMAIND"
)

// origins は発見元カテゴリの固定テーブル。
// パッケージ初期化時に1回だけ構築し、以降は読み取り専用。
var origins = map[string]Origin{
	OriginOwned:     {Name: OriginOwned, ExpireDays: UnboundedDays},
	OriginTelegram:  {Name: OriginTelegram, ExpireDays: 3},
	OriginTwitter:   {Name: OriginTwitter, ExpireDays: 3},
	OriginTemporary: {Name: OriginTemporary, ExpireDays: 6},
	OriginPage:      {Name: OriginPage, ExpireDays: 6},
	OriginGoogle:    {Name: OriginGoogle, ExpireDays: 10},
	OriginYandex:    {Name: OriginYandex, ExpireDays: 10},
	OriginGithub:    {Name: OriginGithub, ExpireDays: 20},
	OriginFofa:      {Name: OriginFofa, ExpireDays: 20},
	OriginV2raySE:   {Name: OriginV2raySE, ExpireDays: 45},
	OriginRepo:      {Name: OriginRepo, ExpireDays: 60},
	OriginRemaind:   {Name: OriginRemaind, ExpireDays: UnboundedDays},
}

// LookupOrigin は名前（大文字小文字を区別しない）で発見元を検索する。
// 未知の名前の場合はOWNEDと false を返す。
func LookupOrigin(name string) (Origin, bool) {
	o, ok := origins[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return origins[OriginOwned], false
	}
	return o, true
}

// ExpiryDays は発見元の有効期限（日数）を返す。
// 未知の名前はOWNEDの期限（無制限）にフォールバックする。
// そのため未知の発見元の購読は削除対象にならない。
func ExpiryDays(name string) int {
	o, _ := LookupOrigin(name)
	return o.ExpireDays
}

// Origins は発見元テーブルのコピーを名前順で返す。
func Origins() []Origin {
	list := make([]Origin, 0, len(origins))
	for _, o := range origins {
		list = append(list, o)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}
