package console

import "context"

// Func adapts a function into a Command.
type Func struct {
	CommandName string
	Summary     string
	Action      func(ctx context.Context, args []string) error
}

func (f *Func) Name() string        { return f.CommandName }
func (f *Func) Description() string { return f.Summary }

func (f *Func) Run(ctx context.Context, args []string) error {
	return f.Action(ctx, args)
}
