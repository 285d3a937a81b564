// Package converter は外部の実行ファイル（プローバー、設定変換ツール）の選択と呼び出しを提供する。
// 変換ツール自体は実装せず、コマンド実行の狭いインターフェースだけを持つ。
package converter

import (
	"fmt"
	"runtime"
)

// Binaries はプラットフォームに対応する実行ファイル名の組。
type Binaries struct {
	Prober    string
	Converter string
}

// supportedArch はOSごとに同梱している実行ファイルのアーキテクチャ。
var supportedArch = map[string][]string{
	"linux":   {"amd64", "arm64", "arm", "386"},
	"darwin":  {"amd64", "arm64"},
	"windows": {"amd64", "arm64", "386"},
}

// ChooseBinaryForPlatform は実行中のプラットフォームに対応する実行ファイル名を返す。
func ChooseBinaryForPlatform() (Binaries, error) {
	return BinariesFor(runtime.GOOS, runtime.GOARCH)
}

// BinariesFor は指定されたOS/アーキテクチャに対応する実行ファイル名を返す。
// 同梱していない組み合わせの場合はエラーを返す。
func BinariesFor(goos, goarch string) (Binaries, error) {
	archs, ok := supportedArch[goos]
	if !ok {
		return Binaries{}, fmt.Errorf("unsupported platform: %s/%s", goos, goarch)
	}

	supported := false
	for _, a := range archs {
		if a == goarch {
			supported = true
			break
		}
	}
	if !supported {
		return Binaries{}, fmt.Errorf("unsupported platform: %s/%s", goos, goarch)
	}

	ext := ""
	if goos == "windows" {
		ext = ".exe"
	}

	return Binaries{
		Prober:    fmt.Sprintf("clash-%s-%s%s", goos, goarch, ext),
		Converter: fmt.Sprintf("subconverter-%s-%s%s", goos, goarch, ext),
	}, nil
}
