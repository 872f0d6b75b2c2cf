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

const olxBase = "https://www.olx.com.br"

var olxIDRe = regexp.MustCompile(`(\d+)$`)

// NewOlx creates the OLX adapter.
func NewOlx(fetcher PageFetcher, opts Options, log *slog.Logger) *Scraper {
	s := newScraper(filter.PlatformOlx, "OLX", fetcher, opts, log)
	s.buildURL = olxURL
	s.extract = olxExtract
	return s
}

func olxURL(keyword string, fs filter.Set) string {
	f, _ := fs.(filter.Olx)

	q := url.Values{}
	q.Set("q", strings.Join(strings.Fields(keyword), " "))
	switch f.Sort {
	case "relevance":
	case "price_asc":
		q.Set("sf", "2")
	case "price_desc":
		q.Set("sf", "3")
	default:
		q.Set("sf", "1")
	}
	return olxBase + "/brasil?" + q.Encode()
}

func olxExtract(doc *goquery.Document) []model.Listing {
	var out []model.Listing
	seen := make(map[string]struct{})
	doc.Find(`a[href*="/d/"]`).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}

		title := strings.TrimSpace(link.Find(`h2, [data-ds-component="DS-Text"]`).First().Text())
		if title == "" {
			return
		}

		id := stripQuery(href)
		if m := olxIDRe.FindStringSubmatch(id); m != nil {
			id = m[1]
		}

		var price string
		link.Find(`[data-ds-component="DS-Text"], span, p`).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			price = priceRe.FindString(el.Text())
			return price == ""
		})

		image, _ := link.Find("img").First().Attr("src")

		out = append(out, model.Listing{
			ID:    id,
			Title: title,
			Price: price,
			URL:   absolute(olxBase, href),
			Image: image,
		})
	})
	return out
}
