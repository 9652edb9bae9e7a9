package gogen

type fileView struct {
	Package string
	Imports []importView
	Types   []typeView
}

type importView struct {
	Name string
	Path string
}

type typeView struct {
	TypeName      string
	Builder       string
	Ctor          string
	TypeParams    string // "[T any]"
	TypeArgs      string // "[T]"
	Result        string
	PointerResult bool
	ReturnsError  bool
	Recv          string

	Slots   []slotView
	Setters []setterView
	Locals  []localView
	Call    string

	Required      []int
	RequiredNames string
	RequiredSet   string

	Inline    *inlineView
	ToBuilder *toBuilderView
}

type slotView struct {
	Field string
	Type  string
}

type setterView struct {
	Name  string
	Param string
	Field string
	Type  string
}

type localView struct {
	Name    string
	Field   string
	Default string
}

type inlineView struct {
	Name string
}

type toBuilderView struct {
	Recv     string
	RecvType string
	Seeds    []seedView
}

type seedView struct {
	Field  string
	Source string
}
