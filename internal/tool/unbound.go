package tool

import "regexp"

// Unbound tools stand in until a family is selected. They accept options so
// that configuration order does not matter, but refuse to render commands.

type UnboundCompiler struct{ Base }

func NewUnboundCompiler() *UnboundCompiler {
	return &UnboundCompiler{Base{kind: KindCompiler}}
}

func (c *UnboundCompiler) Compile(string, string) ([]string, error) { return nil, ErrNoFamily }
func (c *UnboundCompiler) ScanIncludes(string) ([]string, error)    { return nil, ErrNoFamily }
func (c *UnboundCompiler) SourcePattern() (*regexp.Regexp, error)   { return nil, ErrNoFamily }
func (c *UnboundCompiler) HeaderPattern() (*regexp.Regexp, error)   { return nil, ErrNoFamily }
func (c *UnboundCompiler) ObjectExtension() string                  { return DefaultObjectExtension }
func (c *UnboundCompiler) SetOption(k Option, v any) (bool, error)  { return c.setOption(k, v) }

type UnboundLinker struct{ Base }

func NewUnboundLinker() *UnboundLinker {
	return &UnboundLinker{Base{kind: KindLinker}}
}

func (l *UnboundLinker) Link([]string, string) ([]string, error) { return nil, ErrNoFamily }
func (l *UnboundLinker) Libraries() []string                     { return nil }
func (l *UnboundLinker) SetOption(k Option, v any) (bool, error) { return l.setOption(k, v) }

type UnboundArchiver struct{ Base }

func NewUnboundArchiver() *UnboundArchiver {
	return &UnboundArchiver{Base{kind: KindArchiver}}
}

func (a *UnboundArchiver) Archive([]string, string) ([]string, error) { return nil, ErrNoFamily }
func (a *UnboundArchiver) SetOption(k Option, v any) (bool, error)    { return a.setOption(k, v) }
