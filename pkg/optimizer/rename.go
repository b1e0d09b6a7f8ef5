package optimizer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tmajka/pyshake/pkg/index"
	"github.com/tmajka/pyshake/pkg/pysrc"
)

// RenameMap is the bijection applied during bundling: every surviving
// module path segment gets the suffix appended, and the last segment of
// the entrypoint's qualified name gets it too. Suffixing is uniform, so distinct inputs
// stay distinct; the injectivity check guards against pathological module
// sets anyway.
type RenameMap struct {
	suffix  string
	modules map[string]string // original dotted path -> renamed dotted path

	EntryModule string
	EntryOld    string // original qualified name
	EntryNew    string // renamed qualified name
}

func buildRenameMap(surviving []string, suffix string, entry *index.Symbol) (*RenameMap, error) {
	rm := &RenameMap{
		suffix:      suffix,
		modules:     make(map[string]string, len(surviving)),
		EntryModule: entry.Module,
		EntryOld:    entry.QualName,
		EntryNew:    entry.QualName + suffix,
	}

	seen := make(map[string]string)
	for _, mod := range surviving {
		renamed := rm.renameDotted(mod)
		if prev, ok := seen[renamed]; ok {
			return nil, fmt.Errorf("rename collision: %s and %s both map to %s", prev, mod, renamed)
		}
		seen[renamed] = mod
		rm.modules[mod] = renamed
	}
	return rm, nil
}

// renameDotted suffixes every segment of a dotted module path.
func (rm *RenameMap) renameDotted(module string) string {
	segments := strings.Split(module, ".")
	for i, s := range segments {
		segments[i] = s + rm.suffix
	}
	return strings.Join(segments, ".")
}

// Module returns the renamed dotted path for a surviving module, or the
// original path unchanged when the module was not part of the bundle.
func (rm *RenameMap) Module(module string) string {
	if renamed, ok := rm.modules[module]; ok {
		return renamed
	}
	return module
}

// Has reports whether the module survived and is covered by the map.
func (rm *RenameMap) Has(module string) bool {
	_, ok := rm.modules[module]
	return ok
}

// Path returns the output-relative file path for a surviving module,
// mirroring the input layout with renamed segments.
func (rm *RenameMap) Path(m *pysrc.Module) string {
	renamed := rm.Module(m.Name)
	parts := strings.Split(renamed, ".")
	if m.IsPackage {
		parts = append(parts, "__init__.py")
	} else {
		parts[len(parts)-1] += ".py"
	}
	return filepath.Join(parts...)
}

// Mapping returns the module rename pairs for the diagnostic report.
func (rm *RenameMap) Mapping() map[string]string {
	out := make(map[string]string, len(rm.modules))
	for k, v := range rm.modules {
		out[k] = v
	}
	return out
}

// Inverse recovers original paths from renamed ones, for traceability.
func (rm *RenameMap) Inverse() map[string]string {
	out := make(map[string]string, len(rm.modules))
	for k, v := range rm.modules {
		out[v] = k
	}
	return out
}
