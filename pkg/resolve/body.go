package resolve

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/tmajka/pyshake/pkg/callgraph"
	"github.com/tmajka/pyshake/pkg/index"
	"github.com/tmajka/pyshake/pkg/parser"
	"github.com/tmajka/pyshake/pkg/pysrc"
)

// pythonBuiltins are names resolution ignores: they can never target a
// declaration in the analyzed set.
var pythonBuiltins = map[string]bool{
	"print": true, "len": true, "range": true, "str": true, "int": true,
	"float": true, "bool": true, "list": true, "dict": true, "set": true,
	"tuple": true, "isinstance": true, "issubclass": true, "super": true,
	"enumerate": true, "zip": true, "map": true, "filter": true,
	"sorted": true, "reversed": true, "sum": true, "min": true, "max": true,
	"abs": true, "round": true, "divmod": true, "open": true, "repr": true,
	"hash": true, "id": true, "type": true, "vars": true, "iter": true,
	"next": true, "callable": true, "format": true, "any": true, "all": true,
	"frozenset": true, "bytes": true, "bytearray": true, "object": true,
	"staticmethod": true, "classmethod": true, "property": true,
	"Exception": true, "ValueError": true, "TypeError": true,
	"KeyError": true, "IndexError": true, "AttributeError": true,
	"RuntimeError": true, "NotImplementedError": true, "StopIteration": true,
	"None": true, "True": true, "False": true, "NotImplemented": true,
}

// bodyResolver walks one symbol's body and accumulates its outgoing edges.
type bodyResolver struct {
	r   *Resolver
	env *moduleEnv
	sym *index.Symbol

	class      *index.Symbol            // enclosing class for methods
	localNames map[string]bool          // params and assigned locals
	localTypes map[string]*index.Symbol // local name -> inferred class
	localAlias map[string]uint32        // local name -> aliased symbol

	edges    []callgraph.Edge
	tainted  bool
	warnings []Warning
}

func (b *bodyResolver) text(n *sitter.Node) string {
	return parser.GetNodeText(n, b.env.m.Source)
}

func (b *bodyResolver) pos(n *sitter.Node) pysrc.Position {
	return pysrc.Position{Line: n.StartPoint().Row + 1, Col: n.StartPoint().Column}
}

func (b *bodyResolver) addEdge(kind callgraph.EdgeKind, to callgraph.Target, pos pysrc.Position) {
	b.edges = append(b.edges, callgraph.Edge{From: b.sym.ID, Kind: kind, To: to, Pos: pos})
}

func (b *bodyResolver) violation(code, message string, pos pysrc.Position) {
	b.tainted = true
	b.warnings = append(b.warnings, Warning{
		Code:    code,
		Message: message,
		Symbol:  b.sym.FQN(),
		File:    b.env.m.Path,
		Pos:     pos,
	})
}

// resolve dispatches on the symbol kind and walks the relevant spans.
func (b *bodyResolver) resolve() {
	b.localNames = make(map[string]bool)
	b.localTypes = make(map[string]*index.Symbol)
	b.localAlias = make(map[string]uint32)

	switch b.sym.Kind {
	case index.KindModule:
		b.resolveModuleScope()
	case index.KindClass:
		b.resolveClassDecl()
	case index.KindFunction, index.KindMethod:
		b.resolveCallable()
	}
}

// resolveModuleScope walks top-level statements, skipping declarations
// (separate symbols) and import statements (modeled by the import table).
func (b *bodyResolver) resolveModuleScope() {
	root := b.env.m.Tree.RootNode()
	for _, child := range parser.NamedChildren(root) {
		switch child.Type() {
		case nodeFunctionDef, nodeClassDef, nodeDecoratedDef,
			nodeImportStatement, nodeImportFromStatement:
			continue
		}
		b.collectAssignments(child)
		b.walk(child)
	}
}

// resolveClassDecl handles base classes, decorators, and class-level
// statements other than method definitions.
func (b *bodyResolver) resolveClassDecl() {
	d := b.sym.Decl
	for _, base := range d.Bases {
		if cls := b.r.resolveClassIn(b.sym.Module, base); cls != nil {
			b.addEdge(callgraph.EdgeInheritance, callgraph.Resolved(cls.ID, base), d.Pos)
		} else if !pythonBuiltins[base] && !strings.Contains(base, ".") {
			b.addEdge(callgraph.EdgeInheritance, callgraph.Unresolved(base, "unknown base class"), d.Pos)
		}
	}
	b.resolveDecorators(d)

	if d.Body != nil {
		for _, child := range parser.NamedChildren(d.Body) {
			switch child.Type() {
			case nodeFunctionDef, nodeClassDef, nodeDecoratedDef:
				continue
			}
			b.collectAssignments(child)
			b.walk(child)
		}
	}
}

// resolveCallable handles a function or method: decorators, parameter and
// return annotations, default values, and the body.
func (b *bodyResolver) resolveCallable() {
	d := b.sym.Decl
	b.resolveDecorators(d)

	if b.sym.Kind == index.KindMethod {
		classQual := strings.TrimSuffix(b.sym.QualName, "."+d.Name)
		if cls, ok := b.r.idx.LookupIn(b.sym.Module, classQual); ok {
			b.class = cls
			b.localTypes["self"] = cls
		}
	}

	for _, p := range d.Params {
		b.localNames[p.Name] = true
		if p.Annotation == "" {
			continue
		}
		if cls := b.r.resolveClassIn(b.sym.Module, p.Annotation); cls != nil {
			b.localTypes[p.Name] = cls
			b.addEdge(callgraph.EdgeAnnotation, callgraph.Resolved(cls.ID, p.Annotation), d.Pos)
		}
	}
	if d.Returns != "" {
		if cls := b.r.resolveClassIn(b.sym.Module, d.Returns); cls != nil {
			b.addEdge(callgraph.EdgeAnnotation, callgraph.Resolved(cls.ID, d.Returns), d.Pos)
		}
	}

	// Default parameter values are expressions evaluated at definition time.
	if params := d.Node.ChildByFieldName("parameters"); params != nil {
		for _, p := range parser.NamedChildren(params) {
			if value := p.ChildByFieldName("value"); value != nil {
				b.walk(value)
			}
		}
	}

	if d.Body != nil {
		b.collectAssignments(d.Body)
		b.walk(d.Body)
	}
}

func (b *bodyResolver) resolveDecorators(d *pysrc.Decl) {
	for _, dec := range d.Decorators {
		b.resolveDecorator(dec)
	}
}

func (b *bodyResolver) resolveDecorator(dec pysrc.Decorator) {
	name := dec.Name
	if pythonBuiltins[name] {
		return
	}

	if idx := strings.IndexByte(name, '.'); idx >= 0 {
		first, rest := name[:idx], name[idx+1:]
		if imp, ok := b.env.imports[first]; ok && imp.Symbol == "" {
			if sym, found := b.r.idx.LookupIn(imp.Module, rest); found {
				b.addEdge(callgraph.EdgeDecorator, callgraph.Resolved(sym.ID, name), dec.Pos)
				return
			}
		}
		b.addEdge(callgraph.EdgeDecorator, callgraph.Unresolved(name, "unknown decorator"), dec.Pos)
		return
	}

	target, emit := b.resolveName(name, dec.Pos)
	if emit {
		b.addEdge(callgraph.EdgeDecorator, target, dec.Pos)
	}
}

// collectAssignments prepasses a span for local type information:
// "x: C = ..." and "x = C(...)" bind x to class C; "x = f" aliases x to a
// declared symbol. Nested definitions are skipped, they are separate
// symbols.
func (b *bodyResolver) collectAssignments(node *sitter.Node) {
	if node == nil {
		return
	}
	switch node.Type() {
	case nodeFunctionDef, nodeClassDef, nodeDecoratedDef:
		return
	case nodeAssignment:
		b.collectAssignment(node)
	}
	for i := range int(node.NamedChildCount()) {
		b.collectAssignments(node.NamedChild(i))
	}
}

func (b *bodyResolver) collectAssignment(node *sitter.Node) {
	left := node.ChildByFieldName("left")
	if left == nil || left.Type() != nodeIdentifier {
		return
	}
	name := b.text(left)
	b.localNames[name] = true

	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		ann := annotationText(b.text(typeNode))
		if cls := b.r.resolveClassIn(b.sym.Module, ann); cls != nil {
			b.localTypes[name] = cls
			b.addEdge(callgraph.EdgeAnnotation, callgraph.Resolved(cls.ID, ann), b.pos(typeNode))
		}
	}

	right := node.ChildByFieldName("right")
	if right == nil {
		return
	}
	if cls := b.inferType(right); cls != nil {
		b.localTypes[name] = cls
	}
	if right.Type() == nodeIdentifier {
		if target, _ := b.resolveName(b.text(right), b.pos(right)); target.OK {
			b.localAlias[name] = target.Symbol
		}
	}
}

// walk recursively visits expression and statement nodes, emitting edges
// at reference sites. Nested definitions and imports are skipped.
func (b *bodyResolver) walk(node *sitter.Node) {
	if node == nil {
		return
	}
	switch node.Type() {
	case nodeFunctionDef, nodeClassDef, nodeDecoratedDef,
		nodeImportStatement, nodeImportFromStatement:
		return
	case nodeCall:
		b.handleCall(node)
		return
	case nodeAttribute:
		b.handleAttribute(node)
		return
	case nodeIdentifier:
		b.handleValueRef(node)
		return
	}
	for i := range int(node.NamedChildCount()) {
		b.walk(node.NamedChild(i))
	}
}

// handleCall resolves the callee of a call expression and then walks its
// arguments and any receiver subexpression.
func (b *bodyResolver) handleCall(call *sitter.Node) {
	fn := call.ChildByFieldName("function")
	args := call.ChildByFieldName("arguments")
	if args != nil {
		for i := range int(args.NamedChildCount()) {
			b.walk(args.NamedChild(i))
		}
	}
	if fn == nil {
		return
	}

	switch fn.Type() {
	case nodeIdentifier:
		b.handleNameCall(fn)
	case nodeAttribute:
		b.handleAttrCall(call, fn)
		if obj := fn.ChildByFieldName("object"); obj != nil {
			b.walk(obj)
		}
	default:
		b.walk(fn)
	}
}

func (b *bodyResolver) handleNameCall(fn *sitter.Node) {
	name := b.text(fn)
	pos := b.pos(fn)

	switch name {
	case "eval", "exec", "compile":
		b.violation(WarnDynamicExec, fmt.Sprintf("%s() executes code outside static analysis", name), pos)
		return
	case "__import__":
		b.violation(WarnDynamicImport, "__import__() resolves modules at runtime", pos)
		return
	case "getattr", "setattr", "delattr":
		b.violation(WarnDynamicAttribute, fmt.Sprintf("%s() dispatches attributes at runtime", name), pos)
		return
	case "super":
		return
	}

	target, emit := b.resolveName(name, pos)
	if emit {
		b.addEdge(callgraph.EdgeCall, target, pos)
	}
}

// handleAttrCall resolves x.m(...) call sites.
func (b *bodyResolver) handleAttrCall(call, fn *sitter.Node) {
	obj := fn.ChildByFieldName("object")
	attrNode := fn.ChildByFieldName("attribute")
	if obj == nil || attrNode == nil {
		return
	}
	attr := b.text(attrNode)
	pos := b.pos(fn)

	// importlib.import_module is a dynamic import in disguise.
	objText := b.text(obj)
	if objText == "importlib" && attr == "import_module" {
		b.violation(WarnDynamicImport, "importlib.import_module() resolves modules at runtime", pos)
		return
	}

	switch obj.Type() {
	case nodeIdentifier:
		name := b.text(obj)

		if name == "self" && b.class != nil {
			b.emitMethodCall(b.class, attr, pos)
			return
		}
		if imp, ok := b.env.imports[name]; ok && imp.Symbol == "" {
			b.emitModuleAttrCall(imp.Module, attr, pos)
			return
		}
		if cls := b.r.resolveClassIn(b.sym.Module, name); cls != nil && !b.localNames[name] {
			b.addEdge(callgraph.EdgeAttribute, callgraph.Resolved(cls.ID, name), pos)
			b.emitMethodCall(cls, attr, pos)
			return
		}
		if cls, ok := b.localTypes[name]; ok && cls != nil {
			b.emitMethodCall(cls, attr, pos)
			return
		}
		b.dynamicDispatch(attr, pos)
	case nodeAttribute:
		// Dotted module access: import a.b.c; a.b.c.f().
		if imp, ok := b.env.byModule[objText]; ok {
			b.emitModuleAttrCall(imp.Module, attr, pos)
			return
		}
		if cls := b.inferType(obj); cls != nil {
			b.emitMethodCall(cls, attr, pos)
			return
		}
		b.dynamicDispatch(attr, pos)
	case nodeCall:
		// super().m() dispatches along the base-class chain.
		if inner := obj.ChildByFieldName("function"); inner != nil &&
			inner.Type() == nodeIdentifier && b.text(inner) == "super" && b.class != nil {
			if m := b.r.lookupBaseMethod(b.class, attr); m != nil {
				b.addEdge(callgraph.EdgeCall, callgraph.Resolved(m.ID, attr), pos)
			} else {
				b.addEdge(callgraph.EdgeCall, callgraph.Unresolved(attr, "method not found statically"), pos)
			}
			return
		}
		if cls := b.inferType(obj); cls != nil {
			b.emitMethodCall(cls, attr, pos)
			return
		}
		b.dynamicDispatch(attr, pos)
	default:
		if cls := b.inferType(obj); cls != nil {
			b.emitMethodCall(cls, attr, pos)
			return
		}
		b.dynamicDispatch(attr, pos)
	}
}

// emitMethodCall adds a call edge to a method on the class, walking the
// base-class chain. A miss after exhausting the chain is unresolved but
// not a violation: the receiver type was known, the method simply is not
// declared statically.
func (b *bodyResolver) emitMethodCall(class *index.Symbol, attr string, pos pysrc.Position) {
	if m := b.r.lookupMethod(class, attr); m != nil {
		b.addEdge(callgraph.EdgeCall, callgraph.Resolved(m.ID, class.QualName+"."+attr), pos)
		return
	}
	b.addEdge(callgraph.EdgeCall, callgraph.Unresolved(class.QualName+"."+attr, "method not found statically"), pos)
}

// emitModuleAttrCall adds a call edge to module.attr().
func (b *bodyResolver) emitModuleAttrCall(module, attr string, pos pysrc.Position) {
	if !b.r.idx.HasModule(module) {
		b.addEdge(callgraph.EdgeCall, callgraph.Unresolved(module+"."+attr, "external module"), pos)
		return
	}
	if sym, ok := b.r.idx.LookupIn(module, attr); ok {
		b.addEdge(callgraph.EdgeCall, callgraph.Resolved(sym.ID, module+"."+attr), pos)
		return
	}
	b.addEdge(callgraph.EdgeCall, callgraph.Unresolved(module+"."+attr, "not found in module"), pos)
}

// dynamicDispatch handles an attribute call on a receiver whose type is
// unknown. When the method name matches declared methods, every candidate
// is kept alive and the caller is tainted; otherwise the call cannot hit
// analyzed code and is recorded unresolved without a warning.
func (b *bodyResolver) dynamicDispatch(attr string, pos pysrc.Position) {
	candidates := b.r.methodNames[attr]
	if len(candidates) == 0 {
		b.addEdge(callgraph.EdgeCall, callgraph.Unresolved(attr, "receiver type unknown"), pos)
		return
	}

	b.tainted = true
	b.warnings = append(b.warnings, Warning{
		Code:    WarnUntypedReceiver,
		Message: fmt.Sprintf("call to .%s() on untyped receiver; keeping %d candidate method(s)", attr, len(candidates)),
		Symbol:  b.sym.FQN(),
		File:    b.env.m.Path,
		Pos:     pos,
	})
	for _, id := range candidates {
		b.addEdge(callgraph.EdgeCall, callgraph.Resolved(id, attr), pos)
	}
}

// handleAttribute covers attribute access in value position: a function
// passed as mod.helper, or a bound method taken as a value. A bound
// method is called later through an untyped local, so the edge must be
// emitted here or the method is unsoundly pruned.
func (b *bodyResolver) handleAttribute(attrNode *sitter.Node) {
	obj := attrNode.ChildByFieldName("object")
	attr := attrNode.ChildByFieldName("attribute")
	if obj == nil || attr == nil {
		b.walk(obj)
		return
	}
	attrName := b.text(attr)
	pos := b.pos(attrNode)

	if obj.Type() == nodeIdentifier {
		name := b.text(obj)
		if imp, ok := b.env.imports[name]; ok && imp.Symbol == "" {
			if b.r.idx.HasModule(imp.Module) {
				if sym, found := b.r.idx.LookupIn(imp.Module, attrName); found {
					b.addEdge(callgraph.EdgeAttribute, callgraph.Resolved(sym.ID, attrName), pos)
				}
			}
			return
		}
		if cls := b.r.resolveClassIn(b.sym.Module, name); cls != nil && !b.localNames[name] {
			b.addEdge(callgraph.EdgeAttribute, callgraph.Resolved(cls.ID, name), pos)
			if m := b.r.lookupMethod(cls, attrName); m != nil {
				b.addEdge(callgraph.EdgeAttribute, callgraph.Resolved(m.ID, name+"."+attrName), pos)
			}
			return
		}
	}

	if cls := b.inferType(obj); cls != nil {
		if m := b.r.lookupMethod(cls, attrName); m != nil {
			b.addEdge(callgraph.EdgeAttribute, callgraph.Resolved(m.ID, cls.QualName+"."+attrName), pos)
		}
		b.walk(obj)
		return
	}

	// Unknown receiver: when the name matches declared methods this may be
	// a bound method of any of them, so all candidates stay alive.
	if len(b.r.methodNames[attrName]) > 0 {
		b.dynamicDispatch(attrName, pos)
	}
	b.walk(obj)
}

// handleValueRef covers a bare identifier in expression position: a
// declared function or class used as a value stays reachable.
func (b *bodyResolver) handleValueRef(id *sitter.Node) {
	name := b.text(id)
	if pythonBuiltins[name] || b.localNames[name] {
		return
	}
	if target, _ := b.resolveName(name, b.pos(id)); target.OK {
		b.addEdge(callgraph.EdgeAttribute, target, b.pos(id))
	}
}

// resolveName resolves a bare name against locals, import bindings, and
// top-level declarations, in that order. The bool reports whether an edge
// should be emitted at all.
func (b *bodyResolver) resolveName(name string, pos pysrc.Position) (callgraph.Target, bool) {
	if pythonBuiltins[name] {
		return callgraph.Target{}, false
	}
	if id, ok := b.localAlias[name]; ok {
		return callgraph.Resolved(id, name), true
	}
	if b.localNames[name] {
		return callgraph.Unresolved(name, "call through untyped local"), true
	}
	if imp, ok := b.env.imports[name]; ok {
		if imp.Symbol == "" {
			return callgraph.Unresolved(name, "module object"), true
		}
		if !b.r.idx.HasModule(imp.Module) {
			return callgraph.Unresolved(name, "external module"), true
		}
		if sym, found := b.r.idx.LookupIn(imp.Module, imp.Symbol); found {
			return callgraph.Resolved(sym.ID, name), true
		}
		return callgraph.Unresolved(name, "not found in module"), true
	}
	if id, ok := b.env.locals[name]; ok {
		return callgraph.Resolved(id, name), true
	}
	if len(b.env.wildcards) > 0 {
		b.violation(WarnWildcardImport,
			fmt.Sprintf("name %s may come from a wildcard import", name), pos)
		return callgraph.Unresolved(name, "wildcard import"), true
	}
	return callgraph.Unresolved(name, "unknown name"), true
}

// inferType statically infers the class of an expression, or nil.
func (b *bodyResolver) inferType(node *sitter.Node) *index.Symbol {
	if node == nil {
		return nil
	}
	switch node.Type() {
	case nodeIdentifier:
		return b.localTypes[b.text(node)]
	case nodeParenExpr:
		if node.NamedChildCount() > 0 {
			return b.inferType(node.NamedChild(0))
		}
	case nodeCall:
		return b.inferCallType(node)
	case nodeAttribute:
		obj := node.ChildByFieldName("object")
		attr := node.ChildByFieldName("attribute")
		if obj != nil && attr != nil && obj.Type() == nodeIdentifier {
			if imp, ok := b.env.imports[b.text(obj)]; ok && imp.Symbol == "" && b.r.idx.HasModule(imp.Module) {
				if sym, found := b.r.idx.LookupIn(imp.Module, b.text(attr)); found && sym.Kind == index.KindClass {
					return sym
				}
			}
		}
	}
	return nil
}

// inferCallType returns the class an invocation evaluates to: the class
// itself for constructor calls, or the class named by the callee's return
// annotation.
func (b *bodyResolver) inferCallType(call *sitter.Node) *index.Symbol {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return nil
	}

	var callee *index.Symbol
	switch fn.Type() {
	case nodeIdentifier:
		if target, _ := b.resolveName(b.text(fn), b.pos(fn)); target.OK {
			callee = b.r.idx.Symbol(target.Symbol)
		}
	case nodeAttribute:
		obj := fn.ChildByFieldName("object")
		attr := fn.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			return nil
		}
		var recv *index.Symbol
		if obj.Type() == nodeIdentifier {
			name := b.text(obj)
			if name == "self" && b.class != nil {
				recv = b.class
			} else if imp, ok := b.env.imports[name]; ok && imp.Symbol == "" && b.r.idx.HasModule(imp.Module) {
				if sym, found := b.r.idx.LookupIn(imp.Module, b.text(attr)); found {
					callee = sym
				}
			} else if cls, ok := b.localTypes[name]; ok {
				recv = cls
			}
		} else {
			recv = b.inferType(obj)
		}
		if callee == nil && recv != nil {
			callee = b.r.lookupMethod(recv, b.text(attr))
		}
	}

	if callee == nil {
		return nil
	}
	if callee.Kind == index.KindClass {
		return callee
	}
	if callee.Decl != nil && callee.Decl.Returns != "" {
		return b.r.resolveClassIn(callee.Module, callee.Decl.Returns)
	}
	return nil
}
