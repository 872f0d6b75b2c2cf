package filter

import "strings"

// Enjoei filter values, stored by their URL parameter value.
type Enjoei struct {
	Recency    string `json:"lp,omitempty"`
	Used       bool   `json:"used,omitempty"`
	Department string `json:"dep,omitempty"`
	Size       string `json:"sz,omitempty"`
	Region     string `json:"sr,omitempty"`
	Sort       string `json:"sort,omitempty"`
}

// DefaultRecency is the listing period used when Recency is unset.
const DefaultRecency = "24h"

var (
	enjoeiRecency = map[string]string{"24h": "24h", "7d": "7d", "14d": "14d", "30d": "30d", "all": "all"}
	enjoeiDept    = map[string]string{"m": "masculino", "f": "feminino"}
	enjoeiSize    = map[string]string{"pp": "pp", "p": "p", "m": "m", "g": "g", "gg": "gg"}
	enjoeiRegion  = map[string]string{"near": "near_regions", "country": "same_country"}
	sortPrice     = map[string]string{"a": "price_asc", "d": "price_desc"}

	recencyLabels = map[string]string{"7d": "7 dias", "14d": "14 dias", "30d": "30 dias", "all": "qualquer data"}
)

func (Enjoei) Platform() string { return PlatformEnjoei }

func (e Enjoei) IsDefault() bool { return e == Enjoei{} }

func (e Enjoei) Toggle(key, value string) Set {
	switch key {
	case KeyClear:
		return Enjoei{}
	case "lp":
		if v, ok := enjoeiRecency[value]; ok {
			e.Recency = choose(e.Recency, v, DefaultRecency)
		}
	case "used":
		if value == "t" {
			e.Used = !e.Used
		}
	case "dep":
		if v, ok := enjoeiDept[value]; ok {
			e.Department = choose(e.Department, v, "")
		}
	case "sz":
		if v, ok := enjoeiSize[value]; ok {
			e.Size = choose(e.Size, v, "")
		}
	case "sr":
		if v, ok := enjoeiRegion[value]; ok {
			e.Region = choose(e.Region, v, "")
		}
	case "sort":
		if v, ok := sortPrice[value]; ok {
			e.Sort = choose(e.Sort, v, "")
		}
	}
	return e
}

func (e Enjoei) Summary() string {
	var parts []string
	if e.Recency != "" {
		parts = append(parts, "periodo: "+recencyLabels[e.Recency])
	}
	if e.Used {
		parts = append(parts, "usado")
	}
	if e.Department != "" {
		parts = append(parts, e.Department)
	}
	if e.Size != "" {
		parts = append(parts, "tam: "+strings.ToUpper(e.Size))
	}
	switch e.Region {
	case "near_regions":
		parts = append(parts, "perto de mim")
	case "same_country":
		parts = append(parts, "todo o Brasil")
	}
	parts = append(parts, sortLabel(e.Sort)...)
	return summarize(parts)
}

func (e Enjoei) View() View {
	recency := e.Recency
	if recency == "" {
		recency = DefaultRecency
	}
	return View{Rows: [][]Option{
		{
			{Key: "lp", Value: "24h", Label: "24h", Active: recency == "24h"},
			{Key: "lp", Value: "7d", Label: "7 dias", Active: recency == "7d"},
			{Key: "lp", Value: "14d", Label: "14 dias", Active: recency == "14d"},
			{Key: "lp", Value: "30d", Label: "30 dias", Active: recency == "30d"},
			{Key: "lp", Value: "all", Label: "Tudo", Active: recency == "all"},
		},
		{
			{Key: "used", Value: "t", Label: "Usado", Active: e.Used},
			{Key: "dep", Value: "m", Label: "Masculino", Active: e.Department == "masculino"},
			{Key: "dep", Value: "f", Label: "Feminino", Active: e.Department == "feminino"},
		},
		{
			{Key: "sz", Value: "pp", Label: "PP", Active: e.Size == "pp"},
			{Key: "sz", Value: "p", Label: "P", Active: e.Size == "p"},
			{Key: "sz", Value: "m", Label: "M", Active: e.Size == "m"},
			{Key: "sz", Value: "g", Label: "G", Active: e.Size == "g"},
			{Key: "sz", Value: "gg", Label: "GG", Active: e.Size == "gg"},
		},
		{
			{Key: "sr", Value: "near", Label: "Perto de mim", Active: e.Region == "near_regions"},
			{Key: "sr", Value: "country", Label: "Todo o Brasil", Active: e.Region == "same_country"},
		},
		sortRow(e.Sort),
		clearRow(),
	}}
}

func (e Enjoei) normalize() Enjoei {
	if e.Recency == DefaultRecency {
		e.Recency = ""
	}
	e.Recency = known(e.Recency, enjoeiRecency)
	e.Department = known(e.Department, enjoeiDept)
	e.Size = known(e.Size, enjoeiSize)
	e.Region = known(e.Region, enjoeiRegion)
	e.Sort = known(e.Sort, sortPrice)
	return e
}

func sortLabel(sort string) []string {
	switch sort {
	case "price_asc":
		return []string{"menor preco"}
	case "price_desc":
		return []string{"maior preco"}
	}
	return nil
}

func sortRow(sort string) []Option {
	return []Option{
		{Key: "sort", Value: "a", Label: "Menor preco", Active: sort == "price_asc"},
		{Key: "sort", Value: "d", Label: "Maior preco", Active: sort == "price_desc"},
	}
}
