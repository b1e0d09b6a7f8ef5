package mcpserver

// Tool descriptions, kept out of the registration code so they read as
// prose.

func describeOptimize() string {
	return `Run a dry-run whole-program optimization over a Python source tree.

Builds the cross-module symbol index, resolves references into a call
graph, computes reachability from the given entrypoint, and reports which
symbols and modules would be pruned, the module rename map, and any
conservative-analysis warnings (wildcard imports, dynamic execution,
untyped receivers). Nothing is written to disk.

Requires a statically analyzable subset of Python: the entrypoint must be
a top-level function in module.path:function form, and method calls
resolve through type annotations.`
}

func describeListSymbols() string {
	return `List the declared symbols of a Python source tree.

Returns every function, class, and method with its fully-qualified name
(module.path:qualified.name), kind, file, and line. Filter by module or
kind to narrow the listing. Useful for picking an entrypoint before
running optimize.`
}

func describeCallGraph() string {
	return `Inspect the resolved reference graph of a Python source tree.

Returns typed edges (call, attribute-access, inheritance, decorator-use,
type-annotation-use) between declared symbols, including unresolved
references with the reason resolution failed. Restrict to one source
symbol or to unresolved edges only. Warnings list the places where the
analysis had to fall back to conservative assumptions.`
}
