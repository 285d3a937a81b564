package model

// LinkRecord はバッチ検証1回分の、1行のURLとその生存判定結果を表す。
// 検証実行ごとに生成され、生存リストを書き戻した後は破棄される。
type LinkRecord struct {
	Index int    // 入力リスト内の位置
	URL   string
	Alive bool
}
