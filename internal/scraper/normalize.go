package scraper

import "strings"

// Icon sources the menu page uses for dietary labels. Matching is exact;
// the page has served the vegetarian icon from the www host historically.
var labelIcons = map[string]string{
	"https://www.nudining.com/img/icon_vegetarian.png":  "vegan",
	"https://nudining.com/img/icon_avoiding_gluten.png": "gluten",
	"https://nudining.com/img/icon_protein.png":         "protein",
}

// MatchLabel maps a known icon URL to its dietary label.
func MatchLabel(src string) (string, bool) {
	label, ok := labelIcons[src]
	return label, ok
}

// ParseNutritionLine splits one modal line like "Protein (g): 12g" on its
// first separator. The amount keeps its unit text verbatim; numeric parsing
// is deferred to consumers. Returns ok=false for lines without a separator
// or without a name, which callers drop.
func ParseNutritionLine(line string) (name, amount string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}

	name = strings.TrimSpace(line[:idx])
	name = strings.TrimSuffix(name, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", false
	}

	amount = strings.TrimSpace(line[idx+1:])
	return name, amount, true
}
