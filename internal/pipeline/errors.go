package pipeline

// AcceptThreshold is the evaluation score a receipt must exceed to be
// accepted. A score of exactly 75 is rejected.
const AcceptThreshold = 75

// User-facing failure messages recorded with failed receipts. The
// dashboard shows them verbatim, so they stay in Japanese like the
// extracted data itself.
const (
	MsgDuplicate     = "同じ名前のファイルは既に処理されています。"
	MsgLowConfidence = "評価スコアが低いため、処理に失敗しました。"
	MsgImageFailed   = "PDFからの画像抽出に失敗しました。"
	MsgVisionFailed  = "領収書データの読み取りに失敗しました。"
	MsgEvalFailed    = "抽出データの評価に失敗しました。"
	MsgInternalError = "内部エラーが発生しました。"
	MsgPersistFailed = "データベースへの保存に失敗しました。"
)
