// Package model loads a hierarchy configuration from Go source. Struct
// embedding declares inheritance, a `//tpt:abstract` doc line marks an
// abstract type, a field tagged `tpt:"detail"` names an owned detail
// struct, a struct with two `tpt:"ref:Type"` fields declares an
// association between the two types, and a slice of an association
// struct tagged `tpt:"collection:table"` declares a collection of its
// records stored in that join table.
package model

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strconv"
	"strings"

	"github.com/mickamy/tptmap/hier"
	"github.com/mickamy/tptmap/internal/naming"
)

const abstractDirective = "//tpt:abstract"

type structDecl struct {
	name     string
	abstract bool
	st       *ast.StructType
}

type ref struct {
	field    string
	universe string
}

// Parse reads the Go file at filePath and returns the configuration its
// struct declarations describe. Types, details, associations and
// collections keep their declaration order.
func Parse(filePath string) (hier.Config, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filePath, nil, parser.ParseComments)
	if err != nil {
		return hier.Config{}, fmt.Errorf("parse file: %w", err)
	}

	structs, byName := collectStructs(file)
	tables := collectTableNames(file)

	// Detail structs are named by a tagged field of their owner.
	detailOf := make(map[string]string)
	for _, s := range structs {
		for _, field := range s.st.Fields.List {
			if tagValue(field, "tpt") != "detail" {
				continue
			}
			target := baseIdent(field.Type)
			if _, ok := byName[target]; !ok || len(field.Names) == 0 {
				return hier.Config{}, fmt.Errorf("%s: detail field must name a struct in this file", s.name)
			}
			detailOf[target] = s.name
		}
	}

	var cfg hier.Config
	for _, s := range structs {
		if _, isDetail := detailOf[s.name]; isDetail {
			continue
		}

		refs, err := parseRefs(s)
		if err != nil {
			return hier.Config{}, err
		}
		if refs != nil {
			cfg.Associations = append(cfg.Associations, hier.AssociationRule{
				Name:      naming.LowerCamel(s.name),
				Table:     tables[s.name],
				FieldA:    refs[0].field,
				FieldB:    refs[1].field,
				UniverseA: refs[0].universe,
				UniverseB: refs[1].universe,
			})
			continue
		}

		node := hier.TypeNode{Name: s.name, Table: tables[s.name], Abstract: s.abstract}
		for _, field := range s.st.Fields.List {
			if len(field.Names) == 0 {
				parent := baseIdent(field.Type)
				if _, ok := byName[parent]; !ok {
					continue // embedded type from elsewhere, skip
				}
				if node.Parent != "" {
					return hier.Config{}, fmt.Errorf("%s: embeds both %s and %s", s.name, node.Parent, parent)
				}
				node.Parent = parent
				continue
			}
			if table, ok := strings.CutPrefix(tagValue(field, "tpt"), "collection:"); ok {
				elem, isSlice := field.Type.(*ast.ArrayType)
				if !isSlice || len(field.Names) != 1 {
					return hier.Config{}, fmt.Errorf("%s: collection tag needs a single named slice field", s.name)
				}
				cfg.Collections = append(cfg.Collections, hier.CollectionRule{
					Name:        naming.LowerCamel(field.Names[0].Name),
					Table:       table,
					Owner:       s.name,
					Association: naming.LowerCamel(baseIdent(elem.Elt)),
				})
				continue
			}
			if tagValue(field, "tpt") == "detail" {
				target := baseIdent(field.Type)
				fields, err := parseFields(byName[target])
				if err != nil {
					return hier.Config{}, err
				}
				table := tables[target]
				if table == "" {
					table = naming.TableName(target)
				}
				cfg.Details = append(cfg.Details, hier.DetailRule{
					Owner:  s.name,
					Name:   naming.LowerCamel(field.Names[0].Name),
					Table:  table,
					Fields: fields,
				})
			}
		}
		if node.Fields, err = parseFields(s); err != nil {
			return hier.Config{}, err
		}
		cfg.Types = append(cfg.Types, node)
	}
	return cfg, nil
}

func collectStructs(file *ast.File) ([]structDecl, map[string]structDecl) {
	var structs []structDecl
	byName := make(map[string]structDecl)
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts := spec.(*ast.TypeSpec)
			st, ok := ts.Type.(*ast.StructType)
			if !ok {
				continue
			}
			doc := ts.Doc
			if doc == nil && len(gd.Specs) == 1 {
				doc = gd.Doc
			}
			s := structDecl{name: ts.Name.Name, abstract: hasDirective(doc), st: st}
			structs = append(structs, s)
			byName[s.name] = s
		}
	}
	return structs, byName
}

func hasDirective(doc *ast.CommentGroup) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		if strings.TrimSpace(c.Text) == abstractDirective {
			return true
		}
	}
	return false
}

// collectTableNames finds methods of the form
//
//	func (T) TableName() string { return "name" }
func collectTableNames(file *ast.File) map[string]string {
	tables := make(map[string]string)
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv == nil || fd.Name.Name != "TableName" || fd.Body == nil {
			continue
		}
		if len(fd.Recv.List) != 1 || len(fd.Body.List) != 1 {
			continue
		}
		ret, ok := fd.Body.List[0].(*ast.ReturnStmt)
		if !ok || len(ret.Results) != 1 {
			continue
		}
		lit, ok := ret.Results[0].(*ast.BasicLit)
		if !ok || lit.Kind != token.STRING {
			continue
		}
		name, err := strconv.Unquote(lit.Value)
		if err != nil {
			continue
		}
		tables[baseIdent(fd.Recv.List[0].Type)] = name
	}
	return tables
}

func parseRefs(s structDecl) ([]ref, error) {
	var refs []ref
	for _, field := range s.st.Fields.List {
		universe, ok := strings.CutPrefix(tagValue(field, "tpt"), "ref:")
		if !ok {
			continue
		}
		if len(field.Names) != 1 {
			return nil, fmt.Errorf("%s: ref tag needs a single named field", s.name)
		}
		refs = append(refs, ref{field: naming.LowerCamel(field.Names[0].Name), universe: universe})
	}
	if refs != nil && len(refs) != 2 {
		return nil, fmt.Errorf("%s: association needs exactly two ref fields, found %d", s.name, len(refs))
	}
	return refs, nil
}

// parseFields maps the exported, non-key fields of s to field descriptors.
func parseFields(s structDecl) ([]hier.Field, error) {
	fields := make([]hier.Field, 0, len(s.st.Fields.List))
	for _, field := range s.st.Fields.List {
		if len(field.Names) == 0 {
			continue // embedded field, skip
		}
		if tagValue(field, "tpt") != "" {
			continue // detail, ref, or skipped
		}

		var column string
		if dbTag, ok := lookupTag(field, "db"); ok {
			if dbTag == "-" {
				continue // explicitly skipped
			}
			column = dbTag
		}
		if _, isSlice := field.Type.(*ast.ArrayType); isSlice {
			continue // collections are not columns
		}

		kind, nullable, err := kindOf(field.Type)
		for _, ident := range field.Names {
			if !ident.IsExported() || ident.Name == "ID" {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", s.name, ident.Name, err)
			}
			fields = append(fields, hier.Field{
				Name:     naming.LowerCamel(ident.Name),
				Column:   column,
				Kind:     kind,
				Nullable: nullable,
			})
		}
	}
	return fields, nil
}

func kindOf(expr ast.Expr) (hier.Kind, bool, error) {
	nullable := false
	if star, ok := expr.(*ast.StarExpr); ok {
		nullable = true
		expr = star.X
	}
	ident, ok := expr.(*ast.Ident)
	if !ok {
		return 0, false, fmt.Errorf("unsupported type %s", typeToString(expr))
	}
	switch ident.Name {
	case "int", "int8", "int16", "int32", "int64", "uint8", "uint16", "uint32":
		return hier.Int, nullable, nil
	case "float32", "float64":
		return hier.Float, nullable, nil
	case "bool":
		return hier.Bool, nullable, nil
	case "string":
		return hier.String, nullable, nil
	default:
		return 0, false, fmt.Errorf("unsupported type %s", ident.Name)
	}
}

func lookupTag(field *ast.Field, key string) (string, bool) {
	if field.Tag == nil {
		return "", false
	}
	tag := reflect.StructTag(strings.Trim(field.Tag.Value, "`"))
	return tag.Lookup(key)
}

func tagValue(field *ast.Field, key string) string {
	v, _ := lookupTag(field, key)
	return v
}

func baseIdent(expr ast.Expr) string {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	if ident, ok := expr.(*ast.Ident); ok {
		return ident.Name
	}
	return ""
}

func typeToString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		return typeToString(t.X) + "." + t.Sel.Name
	case *ast.StarExpr:
		return "*" + typeToString(t.X)
	case *ast.ArrayType:
		return "[]" + typeToString(t.Elt)
	case *ast.MapType:
		return "map[" + typeToString(t.Key) + "]" + typeToString(t.Value)
	default:
		return fmt.Sprintf("%T", expr)
	}
}
