package bot

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"market_bot/internal/model"
	"market_bot/internal/price"
)

// WatchEntry is a watch with its display fields resolved.
type WatchEntry struct {
	Watch    model.Watch
	Platform string
	Filters  string
}

// FormatWatchList formats the watches of one owner for display.
func FormatWatchList(entries []WatchEntry, paused bool) string {
	if len(entries) == 0 {
		return "Voce ainda nao monitora nada. Use /adicionar <palavra> para comecar."
	}
	var b strings.Builder
	b.WriteString("Seus monitoramentos:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "\n#%d %q - %s", e.Watch.ID, e.Watch.Keyword, e.Platform)
		if e.Filters != "" {
			b.WriteString(" ")
			b.WriteString(e.Filters)
		}
		if e.Watch.MaxPrice != nil {
			fmt.Fprintf(&b, " (ate %s)", price.Format(*e.Watch.MaxPrice))
		}
	}
	if paused {
		b.WriteString("\n\nNotificacoes pausadas. Use /retomar.")
	}
	return b.String()
}

// FormatFilterHeader is the text above a filter keyboard.
func FormatFilterHeader(w *model.Watch, platformName, summary string) string {
	return fmt.Sprintf("Filtros de #%d %q no %s\nAtivos: %s", w.ID, w.Keyword, platformName, orDefault(summary, "nenhum"))
}

// FormatSummary formats a check cycle summary.
func FormatSummary(s model.CycleSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ultimo ciclo: %s (%s)\n", s.StartedAt.UTC().Format("2006-01-02 15:04 UTC"), s.Duration.Round(time.Second))
	fmt.Fprintf(&b, "Buscas: %d, falhas: %d\n", s.Groups, s.Failed)
	fmt.Fprintf(&b, "Itens novos: %d, quedas de preco: %d", s.TotalNew, s.PriceDrops)

	keys := make([]string, 0, len(s.ByPlatform))
	for k := range s.ByPlatform {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %d", k, s.ByPlatform[k])
	}
	return b.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
