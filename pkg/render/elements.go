package render

// voidElements have no closing tag in HTML5.
var voidElements = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"link":   true,
	"meta":   true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

func isVoidElement(tag string) bool {
	return voidElements[tag]
}

// booleanAttrs render as a bare name when their value is empty.
var booleanAttrs = map[string]bool{
	"async":       true,
	"crossorigin": true,
	"defer":       true,
	"disabled":    true,
	"hidden":      true,
	"itemscope":   true,
	"nomodule":    true,
}

func isBooleanAttr(name string) bool {
	return booleanAttrs[name]
}
