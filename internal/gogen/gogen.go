// Package gogen lowers registered builders into Go source.
//
// One file is produced per package. Its content depends only on the members
// passed in, sorted by declaration identity, so identical input yields
// identical bytes.
package gogen

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"text/template"
	"unicode/utf8"

	"golang.org/x/tools/imports"

	"piecemeal/internal/decl"
	"piecemeal/internal/naming"
	"piecemeal/internal/registry"
	"piecemeal/internal/synth"
)

// RuntimeImport is the import path of the runtime support package.
const RuntimeImport = "piecemeal/runtime"

// DefaultOutput is the generated file name used when none is configured.
const DefaultOutput = "piecemeal_gen.go"

// Header is the first line of every generated file.
const Header = "// Code generated by piecemeal. DO NOT EDIT."

// ErrNoMembers is returned by Generate for a package without builders.
var ErrNoMembers = errors.New("gogen: nothing to generate")

//go:embed templates/*.tmpl
var templateFS embed.FS

var fileTemplate = template.Must(template.ParseFS(templateFS, "templates/file.go.tmpl"))

// Package is the input for one generated file.
type Package struct {
	Name    string
	Path    string
	Members []registry.Members
}

// Generate renders and formats the file for pkg.
func Generate(pkg Package) ([]byte, error) {
	if len(pkg.Members) == 0 {
		return nil, ErrNoMembers
	}
	for _, m := range pkg.Members {
		if m.Descriptor == nil {
			return nil, fmt.Errorf("gogen: %s: nil descriptor", pkg.Path)
		}
	}
	members := slices.Clone(pkg.Members)
	slices.SortFunc(members, func(a, b registry.Members) int {
		return strings.Compare(string(a.Descriptor.ID), string(b.Descriptor.ID))
	})

	fv := fileView{Package: pkg.Name}
	table := newImportTable(members)
	for _, m := range members {
		d := m.Descriptor
		if d.PkgPath != pkg.Path {
			return nil, fmt.Errorf("gogen: %s belongs to %s, not %s", d.ID, d.PkgPath, pkg.Path)
		}
		tv, err := newTypeView(m, table.renames(d.Imports))
		if err != nil {
			return nil, err
		}
		fv.Types = append(fv.Types, tv)
	}
	fv.Imports = table.views()

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, fv); err != nil {
		return nil, fmt.Errorf("gogen: %s: %w", pkg.Path, err)
	}
	out, err := imports.Process(DefaultOutput, buf.Bytes(), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, &FormatError{Pkg: pkg.Path, Source: buf.Bytes(), Err: err}
	}
	return out, nil
}

// FormatError carries the unformatted source so callers can show what failed to parse.
type FormatError struct {
	Pkg    string
	Source []byte
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("gogen: %s: generated source does not format: %v", e.Pkg, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

func newTypeView(m registry.Members, rename map[string]string) (typeView, error) {
	d := m.Descriptor
	params := make([]string, len(d.Slots))
	for i, s := range d.Slots {
		params[i] = s.Name
	}
	q := requalifier{rename: rename, params: params}
	tps, err := q.typeParams(d.TypeParams)
	if err != nil {
		return typeView{}, fmt.Errorf("gogen: %s: %w", d.ID, err)
	}
	tv := typeView{
		TypeName:      d.TypeName,
		Builder:       d.BuilderName,
		Ctor:          d.Build.Constructor,
		TypeArgs:      d.TypeArgs(),
		TypeParams:    tps,
		ReturnsError:  d.Build.ReturnsError,
		PointerResult: d.Build.Result == decl.ResultPointer,
		Recv:          builderRecv(d.Slots),
	}
	tv.Result = d.TypeName + tv.TypeArgs
	if tv.PointerResult {
		tv.Result = "*" + tv.Result
	}

	fields := slotFields(d)
	args := make([]string, len(d.Slots))
	for i, s := range d.Slots {
		field := fields[i]
		typ, err := q.spell(s.Type.String())
		if err != nil {
			return typeView{}, fmt.Errorf("gogen: %s: type of %q: %w", d.ID, s.Name, err)
		}
		tv.Slots = append(tv.Slots, slotView{Field: field, Type: typ})

		st, ok := d.SetterFor(i)
		if !ok {
			return typeView{}, fmt.Errorf("gogen: %s: %w: slot %q has no setter", d.ID, synth.ErrInvariant, s.Name)
		}
		sv := setterView{Name: st.Name, Param: s.Name, Field: field, Type: typ}
		if s.Variadic {
			if s.Type.Kind != decl.KindSlice || s.Type.Elem == nil {
				return typeView{}, fmt.Errorf("gogen: %s: %w: variadic slot %q is %s", d.ID, synth.ErrInvariant, s.Name, s.Type)
			}
			elem, err := q.spell(s.Type.Elem.String())
			if err != nil {
				return typeView{}, fmt.Errorf("gogen: %s: type of %q: %w", d.ID, s.Name, err)
			}
			sv.Type = "..." + elem
		}
		tv.Setters = append(tv.Setters, sv)

		lv := localView{Name: s.Name, Field: field}
		if !s.Required {
			if s.Default == nil {
				return typeView{}, fmt.Errorf("gogen: %s: %w: optional slot %q has no default", d.ID, synth.ErrInvariant, s.Name)
			}
			if lv.Default, err = q.spell(s.Default.Expr); err != nil {
				return typeView{}, fmt.Errorf("gogen: %s: default of %q: %w", d.ID, s.Name, err)
			}
		}
		tv.Locals = append(tv.Locals, lv)

		args[i] = s.Name
		if s.Variadic {
			args[i] += "..."
		}
	}
	tv.Call = d.Build.Constructor
	if len(d.TypeParams) > 0 {
		tv.Call += tv.TypeArgs
	}
	tv.Call += "(" + strings.Join(args, ", ") + ")"

	if len(d.Build.Required) > 0 {
		names := make([]string, len(d.Build.Required))
		set := make([]string, len(d.Build.Required))
		for k, i := range d.Build.Required {
			names[k] = fmt.Sprintf("%q", d.Slots[i].Name)
			set[k] = tv.Recv + "." + tv.Slots[i].Field + ".IsSet()"
		}
		tv.Required = d.Build.Required
		tv.RequiredNames = strings.Join(names, ", ")
		tv.RequiredSet = strings.Join(set, ", ")
	}

	if m.Inline.Name != "" {
		tv.Inline = &inlineView{Name: m.Inline.Name}
	}
	if tb := d.ToBuilder; tb != nil {
		if len(tb.Fields) != len(d.Slots) {
			return typeView{}, fmt.Errorf("gogen: %s: %w: ToBuilder maps %d fields for %d slots", d.ID, synth.ErrInvariant, len(tb.Fields), len(d.Slots))
		}
		bv := &toBuilderView{Recv: instanceRecv(d.TypeName), RecvType: d.TypeName + tv.TypeArgs}
		if tv.PointerResult {
			bv.RecvType = "*" + bv.RecvType
		}
		for i, f := range tb.Fields {
			bv.Seeds = append(bv.Seeds, seedView{Field: tv.Slots[i].Field, Source: f})
		}
		tv.ToBuilder = bv
	}
	return tv, nil
}

// builderRecv picks a receiver name no parameter local shadows.
func builderRecv(slots []synth.FieldSlot) string {
	for _, cand := range []string{"b", "bld", "builder"} {
		if !slices.ContainsFunc(slots, func(s synth.FieldSlot) bool { return s.Name == cand }) {
			return cand
		}
	}
	return "builder_"
}

// instanceRecv is the receiver of ToBuilder and Copy; "b" is taken by the local builder.
func instanceRecv(typeName string) string {
	r, _ := utf8.DecodeRuneInString(naming.Unexport(typeName))
	if r == 'b' || r == '_' || r == utf8.RuneError {
		return "src"
	}
	return string(r)
}

// slotFields names the builder's struct fields. A field never shares its
// name with a setter, with Build or with another field; the unexported
// parameter name is used unless it is taken, e.g. for "_x" whose setter is
// "_x" as well.
func slotFields(d *synth.Descriptor) []string {
	taken := map[string]bool{"Build": true}
	for i := range d.Slots {
		if st, ok := d.SetterFor(i); ok {
			taken[st.Name] = true
		}
	}
	out := make([]string, len(d.Slots))
	for i, s := range d.Slots {
		base := naming.Unexport(s.Name)
		field := base
		for n := 1; taken[field]; n++ {
			field = base + "Arg"
			if n > 1 {
				field += strconv.Itoa(n)
			}
		}
		taken[field] = true
		out[i] = field
	}
	return out
}
