package console_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pitabwire/translation-manager/console"
	"github.com/pitabwire/translation-manager/container"
)

func echoCommand(name string, calls *[]string) *console.Func {
	return &console.Func{
		CommandName: name,
		Summary:     "echo " + name,
		Action: func(ctx context.Context, args []string) error {
			*calls = append(*calls, name)
			_, err := console.Output(ctx).Write([]byte(name + ":" + joinArgs(args)))
			return err
		},
	}
}

func joinArgs(args []string) string {
	var b bytes.Buffer
	for i, a := range args {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(a)
	}
	return b.String()
}

func TestKernelResolvesLazily(t *testing.T) {
	c := container.New()
	var out bytes.Buffer
	kernel := console.NewKernel(c, &out)

	var calls []string
	builds := 0
	c.Singleton("command.greet", func(context.Context, *container.Container) (any, error) {
		builds++
		return echoCommand("greet", &calls), nil
	})
	kernel.Commands("command.greet", "command.greet")

	require.Equal(t, []string{"command.greet"}, kernel.IDs())
	require.Equal(t, 0, builds)

	require.NoError(t, kernel.Run(context.Background(), []string{"greet", "a", "b"}))
	require.Equal(t, "greet:a b", out.String())
	require.Equal(t, []string{"greet"}, calls)
	require.Equal(t, 1, builds)
}

func TestKernelList(t *testing.T) {
	c := container.New()
	var out bytes.Buffer
	kernel := console.NewKernel(c, &out)

	var calls []string
	kernel.Add(echoCommand("translations:import", &calls))
	kernel.Add(echoCommand("migrate", &calls))

	require.NoError(t, kernel.Run(context.Background(), nil))
	require.Contains(t, out.String(), "translations:import")
	require.Contains(t, out.String(), "echo migrate")
	require.Empty(t, calls)
}

func TestKernelErrors(t *testing.T) {
	c := container.New()
	kernel := console.NewKernel(c, &bytes.Buffer{})

	err := kernel.Run(context.Background(), []string{"nope"})
	require.ErrorIs(t, err, console.ErrCommandNotFound)

	kernel.Commands("command.unbound")
	err = kernel.Run(context.Background(), []string{"anything"})
	require.ErrorIs(t, err, container.ErrUnresolvable)
}

func TestKernelDuplicateAndInvalid(t *testing.T) {
	c := container.New()
	kernel := console.NewKernel(c, &bytes.Buffer{})
	var calls []string

	c.Instance("a", echoCommand("same", &calls))
	c.Instance("b", echoCommand("same", &calls))
	kernel.Commands("a", "b")
	_, err := kernel.All(context.Background())
	require.ErrorIs(t, err, console.ErrDuplicateCommand)

	other := console.NewKernel(c, &bytes.Buffer{})
	c.Instance("not-a-command", 42)
	other.Commands("not-a-command")
	_, err = other.All(context.Background())
	require.ErrorIs(t, err, console.ErrNotACommand)
}

func TestCommandErrorPropagates(t *testing.T) {
	c := container.New()
	kernel := console.NewKernel(c, &bytes.Buffer{})
	boom := errors.New("boom")
	kernel.Add(&console.Func{CommandName: "fail", Action: func(context.Context, []string) error { return boom }})

	require.ErrorIs(t, kernel.Run(context.Background(), []string{"fail"}), boom)
}
