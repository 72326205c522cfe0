package errors

// Template defines a registered error type.
type Template struct {
	Category Category
	Message  string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// ============================================
	// Configuration Errors (E100-E119)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},

	// ============================================
	// Rule Table Errors (E200-E219)
	// ============================================

	"E200": {
		Category: CategoryRules,
		Message:  "Rule table could not be parsed",
	},
	"E201": {
		Category: CategoryRules,
		Message:  "Invalid tag rule",
	},
	"E202": {
		Category: CategoryRules,
		Message:  "Duplicate tag rule",
	},

	// ============================================
	// Surface Errors (E300-E319)
	// ============================================

	"E300": {
		Category: CategorySurface,
		Message:  "Surface mutation failed",
	},
	"E301": {
		Category: CategorySurface,
		Message:  "Head publish failed",
	},
	"E302": {
		Category: CategorySurface,
		Message:  "Flush could not be scheduled",
	},

	// ============================================
	// CLI Errors (E400-E419)
	// ============================================

	"E400": {
		Category: CategoryCLI,
		Message:  "Declarations file could not be read",
	},
	"E401": {
		Category: CategoryCLI,
		Message:  "Unknown tag type in declarations file",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
