package engine

// Catalog lists the model names the engine accepts, split the way demucs
// reports them: single-signature models and bagged ensembles.
type Catalog struct {
	Single []string
	Bag    []string
}

// defaultBagModels is the demucs remote catalog shipped with the engine.
// Quantized variants (_q suffix) are listed because the engine knows them,
// even though the resolution policy always swaps them for the default.
var defaultBagModels = []string{
	"htdemucs",
	"htdemucs_ft",
	"htdemucs_6s",
	"hdemucs_mmi",
	"mdx",
	"mdx_extra",
	"mdx_q",
	"mdx_extra_q",
}

// DefaultCatalog returns the engine's shipped model catalog with any locally
// installed extras appended as single models.
func DefaultCatalog(extras ...string) Catalog {
	catalog := Catalog{
		Bag: append([]string{}, defaultBagModels...),
	}
	for _, extra := range extras {
		if extra == "" || catalog.Contains(extra) {
			continue
		}
		catalog.Single = append(catalog.Single, extra)
	}
	return catalog
}

// Contains reports whether name appears in either model list.
func (c Catalog) Contains(name string) bool {
	for _, model := range c.Single {
		if model == name {
			return true
		}
	}
	for _, model := range c.Bag {
		if model == name {
			return true
		}
	}
	return false
}

// Names returns every catalog model, singles first, in declaration order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c.Single)+len(c.Bag))
	names = append(names, c.Single...)
	names = append(names, c.Bag...)
	return names
}
