// Package main provides localization for the subband CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Output":                   "出力先",
		"Quality and Rate Control": "品質とレート制御",
		"Motion Search":            "動き探索",
		"Debug":                    "デバッグ",
		"Logging":                  "ログ",

		// Root command
		"Pyramid motion search video encoder": "ピラミッド動き探索による動画エンコーダ",
		"subband encodes raw video with hierarchical motion estimation and adaptive rate control.": "subbandは階層的動き推定と適応レート制御で非圧縮動画をエンコードします。",

		// Encode command
		"Encode a Y4M file or image sequence to MP4": "Y4Mファイルまたは連番画像をMP4にエンコード",
		"Encode raw frames from a YUV4MPEG2 file, an image directory or a glob pattern into a fragmented MP4 file.": "YUV4MPEG2ファイル、画像ディレクトリ、またはglobパターンのフレームをフラグメント化MP4にエンコードします。",

		// Inspect command
		"Print the stream parameters and pictures of an encoded file": "エンコード済みファイルのストリーム情報とピクチャを表示",
		"Read an MP4 file written by subband and list its pictures.":  "subbandが書き出したMP4ファイルを読み込み、ピクチャを一覧表示します。",
		"List every picture":                            "全ピクチャを一覧表示",
		"FILE argument is required":                     "FILE引数が必要です",
		"Stream: %dx%d %s at %.2f fps":                  "ストリーム: %dx%d %s, %.2f fps",
		"Pictures: %d (%d intra), %d payload bytes":     "ピクチャ: %d (イントラ %d), ペイロード %d バイト",

		// Version command
		"Show version information":          "バージョン情報を表示",
		"Display the version of subband.":   "subbandのバージョンを表示します。",
		"subband version %s":                "subband バージョン %s",

		// Output flags
		"Output MP4 file path (required)":                "出力MP4ファイルパス（必須）",
		"YAML configuration file":                        "YAML設定ファイル",
		"Output encode summary to file (Markdown format)": "エンコードサマリーをファイルに出力（Markdown形式）",
		"Stop after this many frames (0 = all)":          "このフレーム数で停止（0 = 全て）",

		// Quality flags
		"Quality preset (low, medium, high)":                     "品質プリセット（low, medium, high）",
		"CRF quality (0-100, higher is better, overrides preset)": "CRF品質（0-100、高いほど高品質、プリセットを上書き）",
		"Intra period: a frame count, inf or intra":              "イントラ周期: フレーム数、inf または intra",
		"Rate control mode (crf, abr)":                           "レート制御モード（crf, abr）",
		"Target bitrate in bits/sec for ABR":                     "ABRの目標ビットレート（bps）",
		"Disable temporal adaptive quantization":                 "時間方向の適応量子化を無効化",

		// Motion search flags
		"Motion search effort (0-10)":                    "動き探索の努力レベル（0-10）",
		"Pyramid levels for motion search":               "動き探索のピラミッド段数",
		"Motion search workers (default: number of CPUs)": "動き探索のワーカー数（デフォルト: CPU数）",
		"Disable scene change detection":                 "シーンチェンジ検出を無効化",
		"Disable texture-aware motion cost":              "テクスチャを考慮した動きコストを無効化",

		// Debug flags
		"Enable debug output":        "デバッグ出力を有効化",
		"Directory for debug output": "デバッグ出力のディレクトリ",

		// Logging flags
		"Log level (debug, info, warn, error)": "ログレベル（debug, info, warn, error）",
		"Suppress all log output":              "全てのログ出力を抑制",

		// Runtime messages
		"Encoding %s (%s preset)...":    "%s をエンコード中 (%s プリセット)...",
		"Output saved to %s (%s)":       "出力を %s に保存しました (%s)",
		"Interrupted, shutting down...": "中断されました。シャットダウン中...",
		"INPUT argument is required":    "INPUT引数が必要です",
		"output path is required (-o)":  "出力パスが必要です (-o)",

		// Summary output
		"Summary saved to %s":         "サマリーを %s に保存しました",
		"Failed to write summary: %s": "サマリーの書き込みに失敗しました: %s",

		// Summary content
		"Encode Summary":   "エンコードサマリー",
		"Stream ID":        "ストリームID",
		"Input":            "入力",
		"Settings":         "設定",
		"Item":             "項目",
		"Value":            "値",
		"Path":             "パス",
		"Resolution":       "解像度",
		"Chroma":           "色差サンプリング",
		"Frame Rate":       "フレームレート",
		"Preset":           "プリセット",
		"Rate Control":     "レート制御",
		"Quality":          "品質",
		"Target Bitrate":   "目標ビットレート",
		"Effort":           "努力レベル",
		"GOP":              "GOP",
		"Pyramid Levels":   "ピラミッド段数",
		"Block Size":       "ブロックサイズ",
		"Scene Detection":  "シーンチェンジ検出",
		"Temporal AQ":      "時間方向AQ",
		"on":               "有効",
		"off":              "無効",
		"Frames":           "フレーム数",
		"Intra Frames":     "イントラフレーム数",
		"Predicted Frames": "予測フレーム数",
		"Scene Changes":    "シーンチェンジ数",
		"Payload":          "ペイロード",
		"File Size":        "ファイルサイズ",
		"Duration":         "再生時間",
		"Average Bitrate":  "平均ビットレート",
		"Average P Quantizer": "P平均量子化",
		"Generated at":     "生成日時",
	})
}
