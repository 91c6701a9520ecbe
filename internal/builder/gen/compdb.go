package gen

import (
	"context"
	"encoding/json"
)

// compileCommand is one entry of a JSON compilation database.
type compileCommand struct {
	Directory string   `json:"directory"`
	Arguments []string `json:"arguments"`
	File      string   `json:"file"`
	Output    string   `json:"output"`
}

// CompdbGen writes compile_commands.json for clangd and friends.
type CompdbGen struct{}

func (g *CompdbGen) BuildFile() string { return "compile_commands.json" }

func (g *CompdbGen) Generate(plan *Plan) (string, error) {
	entries := make([]compileCommand, 0, len(plan.Units))
	for _, unit := range plan.Units {
		entries = append(entries, compileCommand{
			Directory: plan.Root,
			Arguments: unit.Command,
			File:      unit.Source,
			Output:    unit.Object,
		})
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

// Invoke does nothing: the database is the whole result.
func (g *CompdbGen) Invoke(context.Context, *Plan, string) error { return nil }
