package publish

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/pitabwire/util"

	"github.com/pitabwire/translation-manager/console"
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

// Command is the vendor:publish console command.
type Command struct {
	publisher *Publisher
}

var _ console.Command = (*Command)(nil)

func NewCommand(publisher *Publisher) *Command {
	return &Command{publisher: publisher}
}

func (c *Command) Name() string { return "vendor:publish" }

func (c *Command) Description() string {
	return "Publish any publishable assets from service providers"
}

func (c *Command) Run(ctx context.Context, args []string) error {
	var opts Options

	flags := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.Var((*stringList)(&opts.Tags), "tag", "tag(s) to publish")
	flags.Var((*stringList)(&opts.Providers), "provider", "provider(s) to publish")
	flags.BoolVar(&opts.Force, "force", false, "overwrite existing files")
	if err := flags.Parse(args); err != nil {
		return err
	}

	written, err := c.publisher.Publish(ctx, opts)
	out := console.Output(ctx)
	for _, p := range written {
		_, _ = fmt.Fprintf(out, "Copied %s\n", p)
	}
	if err != nil {
		return err
	}

	util.Log(ctx).WithField("files", len(written)).Info("publishing complete")
	return nil
}
