package pysrc

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/tmajka/pyshake/pkg/parser"
)

// Node types and field names from the tree-sitter Python grammar.
const (
	nodeModule              = "module"
	nodeFunctionDefinition  = "function_definition"
	nodeClassDefinition     = "class_definition"
	nodeDecoratedDefinition = "decorated_definition"
	nodeDecorator           = "decorator"
	nodeImportStatement     = "import_statement"
	nodeImportFromStatement = "import_from_statement"
	nodeDottedName          = "dotted_name"
	nodeAliasedImport       = "aliased_import"
	nodeWildcardImport      = "wildcard_import"
	nodeRelativeImport      = "relative_import"
	nodeIdentifier          = "identifier"
	nodeTypedParameter      = "typed_parameter"
	nodeDefaultParameter    = "default_parameter"
	nodeTypedDefaultParam   = "typed_default_parameter"
)

// extract builds the declaration and import model for one parsed module.
func extract(m *Module) {
	root := m.Tree.RootNode()
	for _, child := range parser.NamedChildren(root) {
		switch child.Type() {
		case nodeFunctionDefinition, nodeClassDefinition, nodeDecoratedDefinition:
			if d := extractDecl(child, m.Source, ""); d != nil {
				m.Decls = append(m.Decls, d)
			}
		case nodeImportStatement, nodeImportFromStatement:
			m.Imports = append(m.Imports, extractImports(child, m.Source, m)...)
		}
	}
}

// extractDecl converts a definition node (possibly decorated) into a Decl.
// enclosingClass is non-empty when the declaration sits directly in a class
// body, which makes functions methods.
func extractDecl(node *sitter.Node, source []byte, enclosingClass string) *Decl {
	startByte := node.StartByte()
	pos := Position{Line: node.StartPoint().Row + 1, Col: node.StartPoint().Column}

	var decorators []Decorator
	def := node
	if node.Type() == nodeDecoratedDefinition {
		for _, child := range parser.NamedChildren(node) {
			if child.Type() == nodeDecorator {
				decorators = append(decorators, Decorator{
					Name: decoratorName(child, source),
					Pos:  Position{Line: child.StartPoint().Row + 1, Col: child.StartPoint().Column},
				})
			}
		}
		def = node.ChildByFieldName("definition")
		if def == nil {
			return nil
		}
	}

	nameNode := def.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	d := &Decl{
		Name:       parser.GetNodeText(nameNode, source),
		Decorators: decorators,
		Pos:        pos,
		End:        Position{Line: def.EndPoint().Row + 1, Col: def.EndPoint().Column},
		StartByte:  startByte,
		EndByte:    def.EndByte(),
		Node:       def,
		Body:       def.ChildByFieldName("body"),
	}

	switch def.Type() {
	case nodeFunctionDefinition:
		d.Kind = DeclFunction
		if enclosingClass != "" {
			d.Kind = DeclMethod
			d.Class = enclosingClass
		}
		d.Params = extractParams(def.ChildByFieldName("parameters"), source)
		d.Returns = annotationText(parser.GetNodeText(def.ChildByFieldName("return_type"), source))
		d.Children = extractNested(d.Body, source, "")
	case nodeClassDefinition:
		d.Kind = DeclClass
		if supers := def.ChildByFieldName("superclasses"); supers != nil {
			for _, base := range parser.NamedChildren(supers) {
				text := parser.GetNodeText(base, source)
				if text != "" && text != "object" {
					d.Bases = append(d.Bases, text)
				}
			}
		}
		d.Children = extractNested(d.Body, source, d.Name)
	default:
		return nil
	}

	return d
}

// extractNested collects declarations directly inside a body block.
func extractNested(body *sitter.Node, source []byte, enclosingClass string) []*Decl {
	if body == nil {
		return nil
	}
	var decls []*Decl
	for _, child := range parser.NamedChildren(body) {
		switch child.Type() {
		case nodeFunctionDefinition, nodeClassDefinition, nodeDecoratedDefinition:
			if d := extractDecl(child, source, enclosingClass); d != nil {
				decls = append(decls, d)
			}
		}
	}
	return decls
}

// decoratorName extracts the target name of a decorator, stripping the
// leading @ and any call arguments: "@app.route('/x')" yields "app.route".
func decoratorName(node *sitter.Node, source []byte) string {
	text := strings.TrimPrefix(parser.GetNodeText(node, source), "@")
	if idx := strings.IndexByte(text, '('); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// extractParams reads a parameters node into Param values.
func extractParams(params *sitter.Node, source []byte) []Param {
	if params == nil {
		return nil
	}
	var out []Param
	for _, p := range parser.NamedChildren(params) {
		switch p.Type() {
		case nodeIdentifier:
			out = append(out, Param{Name: parser.GetNodeText(p, source)})
		case nodeTypedParameter:
			// The name is the first named child; the annotation is the type field.
			name := ""
			if p.NamedChildCount() > 0 {
				name = parser.GetNodeText(p.NamedChild(0), source)
			}
			out = append(out, Param{
				Name:       name,
				Annotation: annotationText(parser.GetNodeText(p.ChildByFieldName("type"), source)),
			})
		case nodeDefaultParameter:
			out = append(out, Param{Name: parser.GetNodeText(p.ChildByFieldName("name"), source)})
		case nodeTypedDefaultParam:
			out = append(out, Param{
				Name:       parser.GetNodeText(p.ChildByFieldName("name"), source),
				Annotation: annotationText(parser.GetNodeText(p.ChildByFieldName("type"), source)),
			})
		}
	}
	return out
}

// annotationText normalizes a type annotation for class lookup: container
// generics are reduced to their base name ("list[int]" -> "list") and
// string-form forward references lose their quotes. Optional-style unions
// are not resolved.
func annotationText(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '['); idx >= 0 {
		text = text[:idx]
	}
	text = strings.Trim(text, `"'`)
	return strings.TrimSpace(text)
}

// extractImports converts an import statement node into bindings.
func extractImports(node *sitter.Node, source []byte, m *Module) []*Import {
	span := func(imp *Import) *Import {
		imp.StartByte = node.StartByte()
		imp.EndByte = node.EndByte()
		imp.Pos = Position{Line: node.StartPoint().Row + 1, Col: node.StartPoint().Column}
		return imp
	}

	var out []*Import
	switch node.Type() {
	case nodeImportStatement:
		// "import a.b.c" binds the first segment; "import a.b.c as x" binds x.
		for _, child := range parser.NamedChildren(node) {
			switch child.Type() {
			case nodeDottedName:
				module := parser.GetNodeText(child, source)
				alias := module
				if idx := strings.IndexByte(module, '.'); idx >= 0 {
					alias = module[:idx]
				}
				out = append(out, span(&Import{Alias: alias, Module: module}))
			case nodeAliasedImport:
				module := parser.GetNodeText(child.ChildByFieldName("name"), source)
				alias := parser.GetNodeText(child.ChildByFieldName("alias"), source)
				out = append(out, span(&Import{Alias: alias, Module: module}))
			}
		}
	case nodeImportFromStatement:
		moduleNode := node.ChildByFieldName("module_name")
		module := resolveImportModule(moduleNode, source, m)
		for _, child := range parser.NamedChildren(node) {
			if moduleNode != nil && child.StartByte() == moduleNode.StartByte() {
				continue
			}
			switch child.Type() {
			case nodeWildcardImport:
				out = append(out, span(&Import{Module: module, Wildcard: true, FromForm: true}))
			case nodeDottedName:
				symbol := parser.GetNodeText(child, source)
				out = append(out, span(&Import{Alias: symbol, Module: module, Symbol: symbol, FromForm: true}))
			case nodeAliasedImport:
				symbol := parser.GetNodeText(child.ChildByFieldName("name"), source)
				alias := parser.GetNodeText(child.ChildByFieldName("alias"), source)
				out = append(out, span(&Import{Alias: alias, Module: module, Symbol: symbol, FromForm: true}))
			}
		}
	}
	return out
}

// resolveImportModule returns the absolute dotted path of a from-import
// target, resolving relative imports against the importing module's package.
func resolveImportModule(node *sitter.Node, source []byte, m *Module) string {
	if node == nil {
		return ""
	}
	if node.Type() != nodeRelativeImport {
		return parser.GetNodeText(node, source)
	}

	text := parser.GetNodeText(node, source)
	dots := 0
	for dots < len(text) && text[dots] == '.' {
		dots++
	}
	rest := text[dots:]

	// One dot means the current package; each extra dot climbs one level.
	base := m.Name
	if !m.IsPackage {
		base = parentPackage(base)
	}
	for i := 1; i < dots; i++ {
		base = parentPackage(base)
	}

	switch {
	case base == "" && rest == "":
		return ""
	case base == "":
		return rest
	case rest == "":
		return base
	default:
		return base + "." + rest
	}
}

func parentPackage(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		return name[:idx]
	}
	return ""
}
