package common

import (
	"fmt"
	"strings"

	"vcard-wallet-go/internal/models"

	"github.com/shopspring/decimal"
)

// DefaultWidth is the separator width used by the report tools.
const DefaultWidth = 80

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintSeparatorNewline prints a separator with a newline before it
func PrintSeparatorNewline(char string, width int) {
	fmt.Println("\n" + strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// PrintBoxSeparator prints a box-drawing separator line (for sub-sections)
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix returns the prefix for detail lines under list items
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// FormatUsdt renders an amount with the token's six decimal places trimmed to two
// or more significant decimals.
func FormatUsdt(amount decimal.Decimal) string {
	s := amount.StringFixed(6)
	s = strings.TrimRight(s, "0")
	if i := strings.IndexByte(s, '.'); i >= 0 && len(s)-i-1 < 2 {
		s += strings.Repeat("0", 2-(len(s)-i-1))
	}
	return s + " USDT"
}

// CardLine renders a card as one list row.
func CardLine(c models.VirtualCard) string {
	return fmt.Sprintf("%s  exp %s  %-9s  %s", c.CardNumber, c.ExpiryDate, c.Status, c.Id)
}

// TransactionLine renders a wallet transaction as one list row.
func TransactionLine(tx models.CryptoTransaction) string {
	line := fmt.Sprintf("%s  %-10s %18s  %-9s", tx.CreatedAt.Local().Format("2006-01-02 15:04"), tx.Type, FormatUsdt(tx.Amount), tx.Status)
	if tx.ToAddress != nil {
		line += "  to " + *tx.ToAddress
	}
	if tx.TxHash != nil {
		line += "  tx " + *tx.TxHash
	}
	return line
}
