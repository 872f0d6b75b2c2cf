package filter

// Olx filter values. An empty Sort means newest first.
type Olx struct {
	Sort string `json:"sort,omitempty"`
}

// DefaultOlxSort is the ordering used when Sort is unset.
const DefaultOlxSort = "date"

var olxSort = map[string]string{"rel": "relevance", "date": "date", "a": "price_asc", "d": "price_desc"}

func (Olx) Platform() string { return PlatformOlx }

func (o Olx) IsDefault() bool { return o == Olx{} }

func (o Olx) Toggle(key, value string) Set {
	switch key {
	case KeyClear:
		return Olx{}
	case "sort":
		if v, ok := olxSort[value]; ok {
			o.Sort = choose(o.Sort, v, DefaultOlxSort)
		}
	}
	return o
}

func (o Olx) Summary() string {
	switch o.Sort {
	case "relevance":
		return summarize([]string{"relevancia"})
	case "":
		return ""
	}
	return summarize(sortLabel(o.Sort))
}

func (o Olx) View() View {
	sort := o.Sort
	if sort == "" {
		sort = DefaultOlxSort
	}
	return View{Rows: [][]Option{
		{
			{Key: "sort", Value: "date", Label: "Mais recente", Active: sort == "date"},
			{Key: "sort", Value: "rel", Label: "Relevancia", Active: sort == "relevance"},
		},
		sortRow(o.Sort),
		clearRow(),
	}}
}

func (o Olx) normalize() Olx {
	if o.Sort == DefaultOlxSort {
		o.Sort = ""
	}
	o.Sort = known(o.Sort, olxSort)
	return o
}
