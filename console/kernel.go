// Package console resolves and runs the commands registered by service providers.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"text/tabwriter"

	"github.com/pitabwire/translation-manager/container"
)

var (
	ErrCommandNotFound  = errors.New("command not found")
	ErrDuplicateCommand = errors.New("duplicate command name")
	ErrNotACommand      = errors.New("binding is not a console command")
)

// Command is a named console action.
type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, args []string) error
}

// Kernel keeps the container ids of console commands and resolves them on demand.
type Kernel struct {
	container *container.Container
	out       io.Writer

	mu  sync.Mutex
	ids []string
}

// NewKernel creates a kernel resolving commands from c and printing to out (stdout when nil).
func NewKernel(c *container.Container, out io.Writer) *Kernel {
	if out == nil {
		out = os.Stdout
	}
	return &Kernel{container: c, out: out}
}

// Commands registers container ids holding commands. Re-registering an id is a no-op.
func (k *Kernel) Commands(ids ...string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, id := range ids {
		if !slices.Contains(k.ids, id) {
			k.ids = append(k.ids, id)
		}
	}
}

// Add binds an already built command and registers it.
func (k *Kernel) Add(cmd Command) {
	id := "command." + cmd.Name()
	k.container.Instance(id, cmd)
	k.Commands(id)
}

// IDs returns the registered container ids in registration order.
func (k *Kernel) IDs() []string {
	k.mu.Lock()
	defer k.mu.Unlock()

	out := make([]string, len(k.ids))
	copy(out, k.ids)
	return out
}

// All resolves every registered command.
func (k *Kernel) All(ctx context.Context) ([]Command, error) {
	ids := k.IDs()
	commands := make([]Command, 0, len(ids))
	seen := make(map[string]string, len(ids))

	for _, id := range ids {
		cmd, err := k.resolve(ctx, id)
		if err != nil {
			return nil, err
		}

		if other, dup := seen[cmd.Name()]; dup {
			return nil, fmt.Errorf("%w: %s bound by %s and %s", ErrDuplicateCommand, cmd.Name(), other, id)
		}
		seen[cmd.Name()] = id
		commands = append(commands, cmd)
	}
	return commands, nil
}

func (k *Kernel) resolve(ctx context.Context, id string) (Command, error) {
	value, err := k.container.Make(ctx, id)
	if err != nil {
		return nil, err
	}

	cmd, ok := value.(Command)
	if !ok {
		return nil, fmt.Errorf("%w: %s holds %T", ErrNotACommand, id, value)
	}
	return cmd, nil
}

// Find resolves the command called name.
func (k *Kernel) Find(ctx context.Context, name string) (Command, error) {
	commands, err := k.All(ctx)
	if err != nil {
		return nil, err
	}

	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrCommandNotFound, name)
}

// Run executes the command named by args[0] with the remaining arguments.
// No arguments, "list" or "help" print the command table.
func (k *Kernel) Run(ctx context.Context, args []string) error {
	ctx = WithOutput(ctx, k.out)

	if len(args) == 0 {
		return k.List(ctx)
	}

	switch args[0] {
	case "list", "help", "-h", "--help":
		return k.List(ctx)
	}

	cmd, err := k.Find(ctx, args[0])
	if err != nil {
		return err
	}
	return cmd.Run(ctx, args[1:])
}

// List prints every command with its description.
func (k *Kernel) List(ctx context.Context) error {
	commands, err := k.All(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(k.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "Available commands:")
	for _, cmd := range commands {
		_, _ = fmt.Fprintf(tw, "  %s\t%s\n", cmd.Name(), cmd.Description())
	}
	return tw.Flush()
}

type outputKey struct{}

// WithOutput stores the writer commands print their results to.
func WithOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, outputKey{}, w)
}

// Output returns the writer stored by WithOutput, stdout otherwise.
func Output(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(outputKey{}).(io.Writer); ok && w != nil {
		return w
	}
	return os.Stdout
}
