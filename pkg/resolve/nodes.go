package resolve

import "strings"

// Tree-sitter node types the body walker dispatches on.
const (
	nodeFunctionDef         = "function_definition"
	nodeClassDef            = "class_definition"
	nodeDecoratedDef        = "decorated_definition"
	nodeImportStatement     = "import_statement"
	nodeImportFromStatement = "import_from_statement"
	nodeAssignment          = "assignment"
	nodeCall                = "call"
	nodeAttribute           = "attribute"
	nodeIdentifier          = "identifier"
	nodeParenExpr           = "parenthesized_expression"
)

// annotationText reduces a type annotation to its base name for class
// lookup, mirroring the normalization done at extraction time.
func annotationText(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '['); idx >= 0 {
		text = text[:idx]
	}
	text = strings.Trim(text, `"'`)
	return strings.TrimSpace(text)
}
