package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stratustools/core/tui/theme"
	"golang.org/x/term"
)

const (
	maxHelpWidth = 72
	minHelpWidth = 40
)

// helpWidth returns the terminal width clamped to a readable range.
func helpWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return maxHelpWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width < minHelpWidth {
		return maxHelpWidth
	}
	if width > maxHelpWidth {
		return maxHelpWidth
	}
	return width
}

// wrapText wraps text at width, keeping existing line breaks.
func wrapText(text string, width int) []string {
	var out []string
	for _, paragraph := range strings.Split(text, "\n") {
		if len(paragraph) <= width {
			out = append(out, paragraph)
			continue
		}
		var line string
		for _, word := range strings.Fields(paragraph) {
			switch {
			case line == "":
				line = word
			case len(line)+1+len(word) <= width:
				line += " " + word
			default:
				out = append(out, line)
				line = word
			}
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// ApplyStyledHelp installs the styled help function on cmd and every
// subcommand. Call it after all subcommands have been added.
func ApplyStyledHelp(cmd *cobra.Command) {
	cmd.SetHelpFunc(func(c *cobra.Command, _ []string) {
		fmt.Fprint(c.OutOrStdout(), RenderHelp(c, theme.DefaultTheme, helpWidth(c.OutOrStdout())))
	})
	for _, sub := range cmd.Commands() {
		ApplyStyledHelp(sub)
	}
}

// PrintError prints a styled error with a pointer to --help.
func PrintError(cmd *cobra.Command, err error) {
	t := theme.DefaultTheme
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", t.Error.Render("Error:"), err.Error())
	fmt.Fprintln(cmd.ErrOrStderr(), t.Muted.Render(fmt.Sprintf("Run '%s --help' for usage.", cmd.CommandPath())))
}

// RenderHelp renders the help page of cmd.
func RenderHelp(cmd *cobra.Command, t *theme.Theme, width int) string {
	var b strings.Builder
	width -= 2

	b.WriteString(" " + t.Header.Render(strings.ToUpper(cmd.CommandPath())) + "\n")
	description, examples := splitExamples(cmd.Long)
	if cmd.Short != "" {
		for _, line := range wrapText(cmd.Short, width) {
			b.WriteString(" " + t.Italic.Render(line) + "\n")
		}
	}
	if description != "" && description != cmd.Short {
		b.WriteString("\n")
		for _, line := range wrapText(description, width) {
			b.WriteString(" " + line + "\n")
		}
	}

	if cmd.Runnable() || cmd.HasSubCommands() {
		b.WriteString("\n " + t.Section.Render("USAGE") + "\n")
		if cmd.Runnable() {
			b.WriteString(" " + cmd.UseLine() + "\n")
		}
		if cmd.HasSubCommands() {
			b.WriteString(" " + cmd.CommandPath() + " [command]\n")
		}
	}

	if cmd.HasAvailableSubCommands() {
		b.WriteString("\n " + t.Section.Render("COMMANDS") + "\n")
		pad := 0
		for _, sub := range cmd.Commands() {
			if sub.IsAvailableCommand() && len(sub.Name()) > pad {
				pad = len(sub.Name())
			}
		}
		for _, sub := range cmd.Commands() {
			if !sub.IsAvailableCommand() {
				continue
			}
			gap := strings.Repeat(" ", pad-len(sub.Name()))
			b.WriteString(fmt.Sprintf(" %s%s  %s\n", t.Command.Render(sub.Name()), gap, sub.Short))
		}
	}

	var flags []*pflag.Flag
	cmd.NonInheritedFlags().VisitAll(func(f *pflag.Flag) {
		if !f.Hidden {
			flags = append(flags, f)
		}
	})
	if len(flags) > 0 {
		b.WriteString("\n " + t.Section.Render("FLAGS") + "\n")
		pad := 0
		for _, f := range flags {
			if n := len(flagName(f)); n > pad {
				pad = n
			}
		}
		for _, f := range flags {
			name := flagName(f)
			usage := f.Usage
			if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "[]" && f.DefValue != "0" {
				usage += t.Muted.Render(fmt.Sprintf(" (default: %s)", f.DefValue))
			}
			b.WriteString(fmt.Sprintf(" %s%s  %s\n", t.Flag.Render(name), strings.Repeat(" ", pad-len(name)), usage))
		}
	}

	if cmd.Example != "" {
		examples = cmd.Example
	}
	if examples != "" {
		b.WriteString("\n " + t.Section.Render("EXAMPLES") + "\n")
		for _, line := range strings.Split(examples, "\n") {
			trimmed := strings.TrimSpace(line)
			switch {
			case trimmed == "":
				b.WriteString("\n")
			case strings.HasPrefix(trimmed, "#"):
				b.WriteString("  " + t.Muted.Render(trimmed) + "\n")
			default:
				b.WriteString("  " + trimmed + "\n")
			}
		}
	}

	if cmd.HasAvailableSubCommands() {
		b.WriteString(fmt.Sprintf("\n Use \"%s [command] --help\" for more information.\n", cmd.CommandPath()))
	}
	return b.String()
}

// splitExamples separates an "Examples:" block from a long description.
func splitExamples(long string) (string, string) {
	for _, marker := range []string{"\nExamples:\n", "\nExample:\n"} {
		if idx := strings.Index(long, marker); idx != -1 {
			return strings.TrimSpace(long[:idx]), strings.TrimSpace(long[idx+len(marker):])
		}
	}
	return strings.TrimSpace(long), ""
}

func flagName(f *pflag.Flag) string {
	if f.Shorthand != "" {
		return fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	}
	return "    --" + f.Name
}
