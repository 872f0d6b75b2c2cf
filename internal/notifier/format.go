package notifier

import (
	"fmt"
	"strings"

	"market_bot/internal/model"
)

const captionLimit = 1024

// FormatNew renders a new-listing notification.
func FormatNew(platformName, keyword string, l model.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Novo item no %s!\n\n", platformName)
	if l.Title != "" {
		b.WriteString(l.Title)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Preco: %s\n", orNA(l.Price))
	fmt.Fprintf(&b, "Link: %s\n\n", l.URL)
	fmt.Fprintf(&b, "Palavra-chave: %q", keyword)
	return b.String()
}

// FormatPriceDrop renders a price-drop notification.
func FormatPriceDrop(platformName, keyword string, l model.Listing, oldPrice string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Baixou o preco no %s!\n\n", platformName)
	if l.Title != "" {
		b.WriteString(l.Title)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "De %s por %s\n", orNA(oldPrice), orNA(l.Price))
	fmt.Fprintf(&b, "Link: %s\n\n", l.URL)
	fmt.Fprintf(&b, "Palavra-chave: %q", keyword)
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
