// internal/controller/messages.go
package controller

import (
	"fmt"

	"splitbill-bot/internal/amount"
	"splitbill-bot/internal/line"
	"splitbill-bot/internal/models"

	"github.com/shopspring/decimal"
)

const guideText = "レシートの写真を送ってください。合計金額を読み取って割り勘を計算します。"

func selectionReply(candidates []models.MonetaryCandidate) *models.Reply {
	return models.NewFlexReply(line.SelectionAltText(candidates), line.SelectionBubble(candidates))
}

func askPartySizeText(selected decimal.Decimal) string {
	return fmt.Sprintf("%s円ですね。何人で割りますか？", amount.FormatAmount(selected))
}

func resultText(result *models.SplitResult) string {
	return fmt.Sprintf(
		"%s円を%d人で割ると、1人あたり%s円です。",
		amount.FormatAmount(result.Total),
		result.People,
		amount.FormatAmount(result.PerPerson),
	)
}
