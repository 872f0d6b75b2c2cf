package platform

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"market_bot/internal/filter"
	"market_bot/internal/model"
)

var mlItemRe = regexp.MustCompile(`(?i)MLB-?\d+`)

// NewMercadoLivre creates the Mercado Livre adapter.
func NewMercadoLivre(fetcher PageFetcher, opts Options, log *slog.Logger) *Scraper {
	s := newScraper(filter.PlatformMercadoLivre, "Mercado Livre", fetcher, opts, log)
	s.buildURL = mercadoLivreURL
	s.extract = mercadoLivreExtract
	return s
}

func mercadoLivreURL(keyword string, fs filter.Set) string {
	f, _ := fs.(filter.MercadoLivre)

	var b strings.Builder
	b.WriteString("https://lista.mercadolivre.com.br/")
	b.WriteString(url.PathEscape(slug(keyword)))

	switch f.Condition {
	case "usado":
		b.WriteString("_Desde_USADO")
	case "novo":
		b.WriteString("_Desde_NOVO")
	}
	switch f.Sort {
	case "price_asc":
		b.WriteString("_OrderId_PRICE")
	case "price_desc":
		b.WriteString("_OrderId_PRICE*DESC")
	}
	if f.FreeShipping {
		b.WriteString("_Frete_Gr%C3%A1tis")
	}
	if f.Sort == "" {
		b.WriteString("_OrderId_PriceAsc_PublishedToday")
	}
	return b.String()
}

func mercadoLivreExtract(doc *goquery.Document) []model.Listing {
	var out []model.Listing
	doc.Find("div.ui-search-result__content-wrapper").Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find("a.ui-search-link, a.poly-component__title").First().Attr("href")
		if !ok {
			return
		}
		id := mlItemRe.FindString(href)
		if id == "" {
			id = stripQuery(href)
		}

		title := strings.TrimSpace(card.Find("h2.ui-search-item__title, .poly-component__title").First().Text())

		var price string
		if frac := strings.TrimSpace(card.Find("span.andes-money-amount__fraction").First().Text()); frac != "" {
			price = "R$ " + frac
		}

		var image string
		img := card.Closest(".ui-search-result").Find("img").First()
		if v, ok := img.Attr("data-zoom"); ok && v != "" {
			image = v
		} else {
			image, _ = img.Attr("src")
		}

		out = append(out, model.Listing{
			ID:    strings.ToUpper(id),
			Title: title,
			Price: price,
			URL:   href,
			Image: image,
		})
	})
	return out
}
