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

const enjoeiBase = "https://www.enjoei.com.br"

var enjoeiProductRe = regexp.MustCompile(`/p/([^?#]+)`)

// NewEnjoei creates the Enjoei adapter.
func NewEnjoei(fetcher PageFetcher, opts Options, log *slog.Logger) *Scraper {
	s := newScraper(filter.PlatformEnjoei, "Enjoei", fetcher, opts, log)
	s.buildURL = enjoeiURL
	s.extract = enjoeiExtract
	return s
}

func enjoeiURL(keyword string, fs filter.Set) string {
	f, _ := fs.(filter.Enjoei)
	sl := slug(strings.ToLower(keyword))

	q := url.Values{}
	q.Set("q", sl)
	switch f.Recency {
	case "":
		q.Set("lp", filter.DefaultRecency)
	case "all":
	default:
		q.Set("lp", f.Recency)
	}
	if f.Used {
		q.Set("u", "true")
	}
	if f.Department != "" {
		q.Set("d", f.Department)
	}
	if f.Region != "" {
		q.Set("sr", f.Region)
	}
	if f.Size != "" {
		q.Set("st[sc]", f.Size)
	}
	if f.Sort != "" {
		q.Set("sort", f.Sort)
	}
	return enjoeiBase + "/" + url.PathEscape(sl) + "/s?" + q.Encode()
}

func enjoeiExtract(doc *goquery.Document) []model.Listing {
	var out []model.Listing
	doc.Find(".c-product-card").Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find(`a[href*="/p/"]`).First().Attr("href")
		if !ok {
			return
		}
		m := enjoeiProductRe.FindStringSubmatch(href)
		if m == nil {
			return
		}
		id := m[1]

		title := strings.TrimSpace(card.Find(`[data-test="div-nome-prod"], h2.c-product-card__title`).First().Text())
		if title == "" {
			title = id
		}

		var price string
		container := card.Find(`[data-test="div-preco"], .c-product-card__price`).First()
		container.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
			if span.HasClass("c-product-card__price-discount") || span.HasClass("c-product-card__price") {
				return true
			}
			if p := priceRe.FindString(span.Text()); p != "" {
				price = p
				return false
			}
			return true
		})
		if price == "" {
			price = priceRe.FindString(container.Text())
		}

		image, _ := card.Find("img.c-product-card__img").First().Attr("src")

		out = append(out, model.Listing{
			ID:    id,
			Title: title,
			Price: price,
			URL:   absolute(enjoeiBase, href),
			Image: image,
		})
	})
	return out
}
