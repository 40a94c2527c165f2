package translationmanager

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/pitabwire/util"

	"github.com/pitabwire/translation-manager/console"
)

var ErrMissingArgument = errors.New("missing argument")

const commandPrefix = "translations:"

// commandTable lists the console commands in registration order.
var commandTable = []struct {
	name  string
	build func(m *Manager) console.Command
}{
	{"reset", func(m *Manager) console.Command { return NewResetCommand(m) }},
	{"import", func(m *Manager) console.Command { return NewImportCommand(m) }},
	{"find", func(m *Manager) console.Command { return NewFindCommand(m) }},
	{"export", func(m *Manager) console.Command { return NewExportCommand(m) }},
	{"clean", func(m *Manager) console.Command { return NewCleanCommand(m) }},
	{"clone", func(m *Manager) console.Command { return NewCloneCommand(m) }},
	{"suffix", func(m *Manager) console.Command { return NewSuffixCommand(m) }},
}

// CommandID is the container id of the named translations command.
func CommandID(name string) string {
	return "command." + ServiceID + "." + name
}

func newFlags(name string) *flag.FlagSet {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	return flags
}

func report(ctx context.Context, format string, args ...any) {
	_, _ = fmt.Fprintf(console.Output(ctx), format+"\n", args...)
}

type ResetCommand struct{ manager *Manager }

func NewResetCommand(m *Manager) *ResetCommand { return &ResetCommand{manager: m} }

func (c *ResetCommand) Name() string        { return commandPrefix + "reset" }
func (c *ResetCommand) Description() string { return "Delete all translations from the database" }

func (c *ResetCommand) Run(ctx context.Context, _ []string) error {
	if err := c.manager.TruncateTranslations(ctx); err != nil {
		return err
	}
	util.Log(ctx).Info("all translations deleted")
	report(ctx, "All translations are deleted")
	return nil
}

type ImportCommand struct{ manager *Manager }

func NewImportCommand(m *Manager) *ImportCommand { return &ImportCommand{manager: m} }

func (c *ImportCommand) Name() string        { return commandPrefix + "import" }
func (c *ImportCommand) Description() string { return "Import translations from the lang disk" }

func (c *ImportCommand) Run(ctx context.Context, args []string) error {
	flags := newFlags(c.Name())
	replace := flags.Bool("replace", false, "replace existing translations")
	base := flags.String("base", "", "only import this locale")
	if err := flags.Parse(args); err != nil {
		return err
	}

	counter, err := c.manager.ImportTranslations(ctx, *replace, *base)
	if err != nil {
		return err
	}
	util.Log(ctx).WithField("counter", counter).Info("translations import finished")
	report(ctx, "Done importing, processed %d items!", counter)
	return nil
}

type FindCommand struct{ manager *Manager }

func NewFindCommand(m *Manager) *FindCommand { return &FindCommand{manager: m} }

func (c *FindCommand) Name() string        { return commandPrefix + "find" }
func (c *FindCommand) Description() string { return "Find translations in source files" }

func (c *FindCommand) Run(ctx context.Context, args []string) error {
	flags := newFlags(c.Name())
	if err := flags.Parse(args); err != nil {
		return err
	}

	counter, err := c.manager.FindTranslations(ctx, flags.Arg(0))
	if err != nil {
		return err
	}
	util.Log(ctx).WithField("counter", counter).Info("translations search finished")
	report(ctx, "Done importing, processed %d items!", counter)
	return nil
}

type ExportCommand struct{ manager *Manager }

func NewExportCommand(m *Manager) *ExportCommand { return &ExportCommand{manager: m} }

func (c *ExportCommand) Name() string        { return commandPrefix + "export" }
func (c *ExportCommand) Description() string { return "Export translations to the lang disk" }

func (c *ExportCommand) Run(ctx context.Context, args []string) error {
	flags := newFlags(c.Name())
	all := flags.Bool("all", false, "export every group")
	if err := flags.Parse(args); err != nil {
		return err
	}

	group := flags.Arg(0)
	switch {
	case *all || group == "*":
		if err := c.manager.ExportAllTranslations(ctx); err != nil {
			return err
		}
		util.Log(ctx).Info("all translations exported")
		report(ctx, "Done writing language files for ALL groups")
	case group != "":
		if err := c.manager.ExportTranslations(ctx, group); err != nil {
			return err
		}
		util.Log(ctx).WithField("group", group).Info("translations exported")
		report(ctx, "Done writing language files for group %s", group)
	default:
		return fmt.Errorf("%w: specify a group or --all", ErrMissingArgument)
	}
	return nil
}

type CleanCommand struct{ manager *Manager }

func NewCleanCommand(m *Manager) *CleanCommand { return &CleanCommand{manager: m} }

func (c *CleanCommand) Name() string        { return commandPrefix + "clean" }
func (c *CleanCommand) Description() string { return "Clean empty translations" }

func (c *CleanCommand) Run(ctx context.Context, _ []string) error {
	deleted, err := c.manager.CleanTranslations(ctx)
	if err != nil {
		return err
	}
	util.Log(ctx).WithField("deleted", deleted).Info("empty translations cleaned")
	report(ctx, "Done cleaning translations, removed %d rows", deleted)
	return nil
}

type CloneCommand struct{ manager *Manager }

func NewCloneCommand(m *Manager) *CloneCommand { return &CloneCommand{manager: m} }

func (c *CloneCommand) Name() string        { return commandPrefix + "clone" }
func (c *CloneCommand) Description() string { return "Clone translations from one locale to another" }

func (c *CloneCommand) Run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: usage %s <from> <to>", ErrMissingArgument, c.Name())
	}

	counter, err := c.manager.CloneTranslations(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	util.Log(ctx).WithField("from", args[0]).WithField("to", args[1]).
		WithField("counter", counter).Info("translations cloned")
	report(ctx, "Done cloning %s to %s, created %d rows", args[0], args[1], counter)
	return nil
}

type SuffixCommand struct{ manager *Manager }

func NewSuffixCommand(m *Manager) *SuffixCommand { return &SuffixCommand{manager: m} }

func (c *SuffixCommand) Name() string { return commandPrefix + "suffix" }
func (c *SuffixCommand) Description() string {
	return "Append a suffix to every translation of a locale"
}

func (c *SuffixCommand) Run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: usage %s <locale> <suffix>", ErrMissingArgument, c.Name())
	}

	changed, err := c.manager.SuffixTranslations(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	util.Log(ctx).WithField("locale", args[0]).WithField("changed", changed).Info("translations suffixed")
	report(ctx, "Done suffixing %s, changed %d rows", args[0], changed)
	return nil
}
