// internal/line/flex.go
package line

import (
	"fmt"

	"splitbill-bot/internal/amount"
	"splitbill-bot/internal/models"
)

const maxSelectionButtons = 5

// SelectionBubble builds the flex bubble asking the user which of the
// extracted amounts is the receipt total. One postback button per
// candidate, capped at five per flex footer limits.
func SelectionBubble(candidates []models.MonetaryCandidate) map[string]interface{} {
	if len(candidates) > maxSelectionButtons {
		candidates = candidates[:maxSelectionButtons]
	}

	buttons := make([]interface{}, 0, len(candidates))
	for _, c := range candidates {
		label := fmt.Sprintf("%d. %s円", c.Rank, amount.FormatAmount(c.Value))
		buttons = append(buttons, map[string]interface{}{
			"type":   "button",
			"style":  "primary",
			"height": "sm",
			"action": map[string]interface{}{
				"type":  "postback",
				"label": label,
				"data":  fmt.Sprintf("amount=%s", c.Value.String()),
			},
		})
	}

	return map[string]interface{}{
		"type": "bubble",
		"body": map[string]interface{}{
			"type":   "box",
			"layout": "vertical",
			"contents": []interface{}{
				map[string]interface{}{
					"type":   "text",
					"text":   "合計金額はどれですか？",
					"weight": "bold",
					"size":   "md",
					"wrap":   true,
				},
				map[string]interface{}{
					"type": "text",
					"text": "ボタンを押すか、番号か金額を送ってください。",
					"size": "sm",
					"wrap": true,
				},
			},
		},
		"footer": map[string]interface{}{
			"type":     "box",
			"layout":   "vertical",
			"spacing":  "sm",
			"contents": buttons,
		},
	}
}

// SelectionAltText is the fallback text shown by clients that cannot
// render flex messages.
func SelectionAltText(candidates []models.MonetaryCandidate) string {
	return fmt.Sprintf("金額の候補が%d件見つかりました。番号か金額を送ってください。", len(candidates))
}
