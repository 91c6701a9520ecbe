package gen

import "context"

// Unit is one object file with its rendered compile command.
type Unit struct {
	Source  string
	Object  string
	Command []string
	// Prerequisites are the object directories, local headers and the source.
	Prerequisites []string
}

// Plan is a fully rendered build: nothing in it touches the toolchain again.
type Plan struct {
	Root       string
	ObjectDirs []string
	Units      []Unit
	Output     string
	OutputDir  string
	// OutputCommand links or archives every object into Output.
	OutputCommand []string
	Lib           bool
	Jobs          int
}

// Objects lists every unit's object, in unit order.
func (p *Plan) Objects() []string {
	objs := make([]string, len(p.Units))
	for i, u := range p.Units {
		objs[i] = u.Object
	}
	return objs
}

type Generator interface {
	// Generate renders the build file. An empty result means none is needed.
	Generate(plan *Plan) (string, error)
	BuildFile() string
	Invoke(ctx context.Context, plan *Plan, buildDir string) error
}
