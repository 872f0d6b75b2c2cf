package filter

// MercadoLivre filter values.
type MercadoLivre struct {
	Condition    string `json:"cond,omitempty"`
	Sort         string `json:"sort,omitempty"`
	FreeShipping bool   `json:"ship,omitempty"`
}

var mlCondition = map[string]string{"novo": "novo", "usado": "usado"}

func (MercadoLivre) Platform() string { return PlatformMercadoLivre }

func (m MercadoLivre) IsDefault() bool { return m == MercadoLivre{} }

func (m MercadoLivre) Toggle(key, value string) Set {
	switch key {
	case KeyClear:
		return MercadoLivre{}
	case "cond":
		if v, ok := mlCondition[value]; ok {
			m.Condition = choose(m.Condition, v, "")
		}
	case "sort":
		if v, ok := sortPrice[value]; ok {
			m.Sort = choose(m.Sort, v, "")
		}
	case "ship":
		if value == "t" {
			m.FreeShipping = !m.FreeShipping
		}
	}
	return m
}

func (m MercadoLivre) Summary() string {
	var parts []string
	if m.Condition != "" {
		parts = append(parts, m.Condition)
	}
	parts = append(parts, sortLabel(m.Sort)...)
	if m.FreeShipping {
		parts = append(parts, "frete gratis")
	}
	return summarize(parts)
}

func (m MercadoLivre) View() View {
	return View{Rows: [][]Option{
		{
			{Key: "cond", Value: "novo", Label: "Novo", Active: m.Condition == "novo"},
			{Key: "cond", Value: "usado", Label: "Usado", Active: m.Condition == "usado"},
		},
		sortRow(m.Sort),
		{
			{Key: "ship", Value: "t", Label: "Frete gratis", Active: m.FreeShipping},
		},
		clearRow(),
	}}
}

func (m MercadoLivre) normalize() MercadoLivre {
	m.Condition = known(m.Condition, mlCondition)
	m.Sort = known(m.Sort, sortPrice)
	return m
}
