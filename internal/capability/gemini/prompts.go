package gemini

// extractionPrompt instructs the vision model to read Japanese
// receipts and emit a single JSON object keyed with the original
// Japanese field labels.
const extractionPrompt = `あなたは領収書のデータを抽出し、構造化するエキスパートAIアシスタントです。
提供された領収書画像から以下の詳細を抽出してください。領収書は複数のページにわたる場合があります。
すべてのページからの情報を単一のJSONオブジェクトに統合してください。フィールドが見つからない場合は「null」を使用します。
出力は、JSONオブジェクト以外の余分なテキストやフォーマットを含まない、クリーンなJSONオブジェクトでなければなりません。

抽出するフィールド:
- "宛名" (Addressee): サービス/製品の受取人の名前。
- "日付" (Date): 取引の日付。YYYYMMDD形式で指定してください。
- "金額" (Amount): 取引の合計金額。数字のみ、カンマや通貨記号なしで返答してください。
- "消費税" (Consumption Tax): 取引に関連する消費税額。数字のみ、カンマや通貨記号なしで返答してください。
- "消費税率" (Consumption Tax Rate): 適用される消費税率。数字のみ、パーセント記号なしで返答してください。
- "相手先" (Vendor): ベンダー情報。辞書形式 { "名前"(Name), "住所" (Address), "電話番号" (Phone Number) }。
- "登録番号" (Invoice Registration Number): 日本のインボイス登録番号。
- "摘要" (Description): 簡単な説明または品目の詳細。リスト形式 [[名前, 数量, 単価, 合計]]。
- "カテゴリ" (Category): 内容に基づいて、交通費、食費、文具費のいずれかに分類してください。

結果を単一の、クリーンなJSONオブジェクトとして出力してください。`

// evaluationPromptTemplate takes the extracted data rendered as
// indented JSON and asks the model to score it 0-100 with Japanese
// feedback.
const evaluationPromptTemplate = `You are an expert AI assistant tasked with evaluating the accuracy and completeness
of structured data extracted from a receipt.

Here is the extracted data in JSON format:
%s

Please evaluate this extracted data based on the following criteria:
1. Completeness: Are all expected fields (日付, 金額, 消費税, 消費税率, 相手先) present?
2. Format: Are the values in the correct format (e.g., 日付 should be YYYYMMDD; 金額, 消費税, 消費税率 should be numeric)?
3. Accuracy: Do the values seem correct and plausible?
4. Consistency: Is the data consistent across fields (e.g., if 摘要 lists items, does the total amount make sense)?
5. Category check: Based on the data extracted, does カテゴリ (交通費, 食費, 文具費) match the content?

Based on your evaluation, provide a confidence score (an integer from 0 to 100)
indicating how confident you are that this data is accurate and complete.
Also, provide brief feedback on any potential issues or areas for improvement.

Return your response as a JSON object with two fields:
- "evaluation_score": (integer, 0-100) Your confidence score.
- "feedback": (string) Your textual feedback in Japanese.`
