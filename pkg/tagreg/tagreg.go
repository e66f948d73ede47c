// Package tagreg implements the tag registry and @/# tag processor
// (spec.md §4.4): capability registration, @tag definition scanning,
// #tag instance expansion (deep-clone + property merge + child splice),
// and module property injection.
package tagreg

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/the-ox-studio/oxdef-sub002/pkg/ast"
	"github.com/the-ox-studio/oxdef-sub002/pkg/oxerrors"
	"github.com/the-ox-studio/oxdef-sub002/pkg/walker"
)

// AttrDescriptor describes one accepted tag argument attribute.
type AttrDescriptor struct {
	Type     string
	Required bool
}

// Getter produces a module-injected property value for a block.
type Getter func(block *ast.Block) (interface{}, error)

// Capability is the per-tag-name contract registered before parsing.
type Capability struct {
	CanReuse       bool
	CanOutput      bool
	AcceptChildren bool
	Descriptor     []AttrDescriptor
	Module         map[string]Getter
}

// Registry holds tag capabilities (set externally) and @tag definitions
// (scanned from source).
type Registry struct {
	capabilities map[string]Capability
	definitions  map[string]*ast.Block
}

func NewRegistry() *Registry {
	return &Registry{
		capabilities: make(map[string]Capability),
		definitions:  make(map[string]*ast.Block),
	}
}

func (r *Registry) SetCapability(name string, cap Capability) {
	r.capabilities[name] = cap
}

func (r *Registry) Capability(name string) (Capability, bool) {
	c, ok := r.capabilities[name]
	return c, ok
}

func (r *Registry) Definition(key string) (*ast.Block, bool) {
	b, ok := r.definitions[key]
	return b, ok
}

// Definitions exposes the raw table for the import processor to merge
// across files (spec.md §4.13).
func (r *Registry) Definitions() map[string]*ast.Block { return r.definitions }

// SetDefinition installs (or overwrites) a definition under key, used by
// the import processor when merging another file's tag definitions.
func (r *Registry) SetDefinition(key string, block *ast.Block) {
	r.definitions[key] = block
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ScanDefinitions walks doc collecting every @tag definition into the
// registry. A duplicate key within the document is a hard error; this
// does not yet account for cross-file namespacing, which the import
// processor handles separately via SetDefinition's override semantics.
func (r *Registry) ScanDefinitions(doc *ast.Document) []*oxerrors.Error {
	var errs []*oxerrors.Error
	walker.WalkPreOrder(doc, func(n ast.Node, _ []ast.Node) walker.Action {
		block, ok := n.(*ast.Block)
		if !ok {
			return walker.Continue
		}
		for _, tag := range block.Tags {
			if tag.Kind != ast.TagDefinition {
				continue
			}
			if tag.Argument != "" && !identPattern.MatchString(tag.Argument) {
				errs = append(errs, oxerrors.New(oxerrors.InvalidTagArgument, tag.Location,
					"tag argument %q is not a valid identifier", tag.Argument))
				continue
			}
			key := tag.Key()
			if _, exists := r.definitions[key]; exists {
				errs = append(errs, oxerrors.New(oxerrors.DuplicateTagDefinition, tag.Location,
					"duplicate tag definition %q", key))
				continue
			}
			r.definitions[key] = block
		}
		return walker.Continue
	})
	return errs
}

// ExpandInstances rewrites every #tag instance in doc into a clone of its
// registered definition, with instance properties overriding the
// definition's and children spliced per capability. Returns the rewritten
// node list (callers replace doc.Children) and any errors encountered.
func (r *Registry) ExpandInstances(nodes []ast.Node) ([]ast.Node, []*oxerrors.Error) {
	var errs []*oxerrors.Error
	out := make([]ast.Node, 0, len(nodes))
	for _, n := range nodes {
		block, ok := n.(*ast.Block)
		if !ok {
			out = append(out, n)
			continue
		}
		expanded, blockErrs := r.expandBlock(block)
		errs = append(errs, blockErrs...)
		out = append(out, expanded)
	}
	return out, errs
}

func (r *Registry) expandBlock(block *ast.Block) (*ast.Block, []*oxerrors.Error) {
	var errs []*oxerrors.Error
	result := block
	for _, tag := range block.Tags {
		if tag.Kind != ast.TagInstance {
			continue
		}
		if tag.Argument != "" && !identPattern.MatchString(tag.Argument) {
			errs = append(errs, oxerrors.New(oxerrors.InvalidTagArgument, tag.Location,
				"tag argument %q is not a valid identifier", tag.Argument))
			continue
		}
		if _, ok := r.Capability(tag.Name); !ok {
			errs = append(errs, oxerrors.New(oxerrors.UnresolvedTagInstance, tag.Location,
				"tag %q has no registered capability", tag.Name))
			continue
		}
		key := tag.Key()
		def, ok := r.definitions[key]
		if !ok {
			errs = append(errs, oxerrors.New(oxerrors.UnresolvedTagInstance, tag.Location,
				"tag instance %q has no registered definition", key))
			continue
		}
		cap := r.capabilities[tag.Name]
		clone := ast.CloneNode(def).(*ast.Block)

		merged := ast.NewPropertyList()
		if clone.Properties != nil {
			for _, k := range clone.Properties.Keys() {
				v, _ := clone.Properties.Get(k)
				merged.Set(k, v)
			}
		}
		if result.Properties != nil {
			for _, k := range result.Properties.Keys() {
				v, _ := result.Properties.Get(k)
				merged.Set(k, v)
			}
		}

		var children []ast.Node
		if cap.AcceptChildren {
			children = append(children, clone.Children...)
			children = append(children, result.Children...)
		} else {
			children = clone.Children
		}

		result = &ast.Block{
			ID:         result.ID,
			Tags:       result.Tags,
			Properties: merged,
			Children:   children,
			Location:   result.Location,
		}
	}
	// Recurse into children (instances may nest further instances).
	expandedChildren, childErrs := r.ExpandInstances(result.Children)
	errs = append(errs, childErrs...)
	result.Children = expandedChildren
	return result, errs
}

// InjectModuleProperties runs every tag's module getters against every
// block in doc, wrapping getter results as Literals (arrays recursively,
// objects as a JSON string per spec.md §4.4) and rejecting any name that
// would shadow a source-declared property.
func (r *Registry) InjectModuleProperties(root ast.Node) []*oxerrors.Error {
	var errs []*oxerrors.Error
	walker.WalkPreOrder(root, func(n ast.Node, _ []ast.Node) walker.Action {
		block, ok := n.(*ast.Block)
		if !ok {
			return walker.Continue
		}
		for _, tag := range block.Tags {
			cap, ok := r.capabilities[tag.Name]
			if !ok || cap.Module == nil {
				continue
			}
			if block.Properties == nil {
				block.Properties = ast.NewPropertyList()
			}
			for name, getter := range cap.Module {
				if block.Properties.Has(name) {
					errs = append(errs, oxerrors.New(oxerrors.ModulePropertyConflict, block.Location,
						"module property %q conflicts with a source-declared property", name))
					continue
				}
				raw, err := getter(block)
				if err != nil {
					errs = append(errs, oxerrors.New(oxerrors.ModulePropertyConflict, block.Location,
						"module property %q getter failed: %v", name, err))
					continue
				}
				lit, err := wrapValue(raw)
				if err != nil {
					errs = append(errs, oxerrors.New(oxerrors.ModulePropertyConflict, block.Location, "%v", err))
					continue
				}
				block.Properties.Set(name, lit)
			}
		}
		return walker.Continue
	})
	return errs
}

func wrapValue(v interface{}) (ast.Value, error) {
	switch x := v.(type) {
	case nil, bool, int64, float64, string:
		return &ast.Literal{Value: x}, nil
	case int:
		return &ast.Literal{Value: int64(x)}, nil
	case []interface{}:
		elems := make([]ast.Value, len(x))
		for i, e := range x {
			ev, err := wrapValue(e)
			if err != nil {
				return nil, err
			}
			elems[i] = ev
		}
		return &ast.Array{Elements: elems}, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("serializing module property value: %w", err)
		}
		return &ast.Literal{Value: string(b)}, nil
	}
}
