// Package prompt assembles the generation instructions from the user's
// question and retrieved context.
package prompt

import (
	"fmt"
	"strings"

	"github.com/kxddry/wikirag/internal/domain"
)

const withContextTemplate = `あなたはScrapbox（Cosense）の情報を基に回答するAIアシスタントです。
以下のコンテキスト情報を使用して、ユーザーの質問に日本語で分かりやすく、かつ正確に答えてください。
回答には、参考にしたソースのタイトルを必ず含めてください。

# コンテキスト情報:
%s

# ユーザーの質問:
%s

# 回答:
`

const withoutContextTemplate = `ユーザーの質問: %s

関連する情報がナレッジベースで見つかりませんでした。一般的な知識で回答してください。`

// Build renders the instruction prompt. With retrieved context the hits are
// enumerated 1-indexed with title and URL; with none, the alternate
// instruction directs the generator to answer from general knowledge.
func Build(question string, hits []domain.SearchHit) string {
	if len(hits) == 0 {
		return fmt.Sprintf(withoutContextTemplate, question)
	}

	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = fmt.Sprintf("--- ソース: %d. %s (%s) ---\n%s", i+1, h.Title, h.URL, h.Content)
	}
	return fmt.Sprintf(withContextTemplate, strings.Join(blocks, "\n\n"), question)
}
