package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Orchestration level messages (info)
		"Starting pipeline for stream %s": "ストリーム %s のパイプラインを開始します",
		"Pipeline completed successfully": "パイプラインが正常に完了しました",
		"Input opened: %dx%d at %.2f fps":  "入力を開きました: %dx%d, %.2f fps",
		"Encoding with %s rate control":    "%s レート制御でエンコード中",
		"Encoded %d frames: %d intra, %d predicted": "%d フレームをエンコードしました: イントラ %d, 予測 %d",
		"Rendered %d motion fields":        "%d 枚の動きベクトル図を描画しました",
		"Interrupted, shutting down...":    "中断されました。シャットダウン中...",

		// Ingest stage
		"Opened %s: %dx%d %s at %.2f fps": "%s を開きました: %dx%d %s, %.2f fps",

		// Encoder
		"Stream %dx%d %s at %.2f fps, %dx%d blocks of %dx%d": "ストリーム %dx%d %s, %.2f fps, %dx%d ブロック (%dx%d)",
		"Reference does not match frame %d, coding intra: %v": "参照がフレーム %d と一致しないためイントラで符号化します: %v",
		"Frame %d: %s (%s), quant %d, %d bytes":                "フレーム %d: %s (%s), 量子化 %d, %d バイト",
		"Stream finished after %d frames":                      "%d フレームでストリームを終了しました",

		// Motion search
		"Motion search: %d blocks, %d unmatched, %d skipped": "動き探索: %d ブロック, 不一致 %d, スキップ %d",

		// Visualize stage
		"Rendering %d motion fields with %d workers": "%d 枚の動きベクトル図を %d ワーカーで描画中",

		// Mux stage
		"Muxed %d pictures into %d bytes": "%d ピクチャを %d バイトに多重化しました",

		// Errors
		"Transform failed on frame %d: %v":  "フレーム %d の変換に失敗しました: %v",
		"Failed to open input: %s":          "入力を開けませんでした: %s",
		"Failed to encode video: %s":        "動画のエンコードに失敗しました: %s",
		"Failed to render motion fields: %s": "動きベクトル図の描画に失敗しました: %s",
		"Failed to write container: %s":     "コンテナの書き込みに失敗しました: %s",
		"Failed to write output: %s":        "出力の書き込みに失敗しました: %s",
	})
}
