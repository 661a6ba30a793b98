package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"typelens"
	"typelens/internal/watch"
)

// command describes a CLI subcommand.
type command struct {
	name  string
	short string
	usage string
	long  string
	run   func(args []string) error
}

var commands = []command{
	{
		name:  "info",
		short: "Load a directory and summarize its environment",
		usage: "typelens info [dir]",
		long: `Load the Go packages under dir (default ".") and print the
packages indexed in the resulting environment.
`,
		run: runInfo,
	},
	{
		name:  "query",
		short: "Evaluate a type relation",
		usage: "typelens query <same|subtype|assignable> <typeA> <typeB> [dir]",
		long: `Resolve two qualified type names (import/path.Name) in the
environment loaded from dir (default ".") and evaluate the relation.
`,
		run: runQuery,
	},
	{
		name:  "describe",
		short: "Print a package's declaration report",
		usage: "typelens describe <package> [dir]",
		long: `Walk a package's top-level declarations through the facade and
print a markdown bundle with a YAML frontmatter inventory.
`,
		run: runDescribe,
	},
	{
		name:  "explore",
		short: "Interactive query prompt",
		usage: "typelens explore [dir]",
		long: `Open an interactive prompt against the environment loaded from
dir (default "."). Commands:

  lookup <path.Name>            resolve a declaration
  kind <path.Name>              report a construct's category
  same <path.A> <path.B>        same-type relation
  subtype <path.A> <path.B>     subtype relation
  assignable <path.A> <path.B>  assignability relation
  quit                          leave the prompt
`,
		run: runExplore,
	},
	{
		name:  "watch",
		short: "Rebuild the environment when sources change",
		usage: "typelens watch [dir]",
		long: `Load dir (default "."), then watch its tree for .go changes.
Each change releases the held environment so the next query rebuilds it.
Interrupt to stop.
`,
		run: runWatch,
	},
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "typelens — thread-safe queries over a Go program model\n\n")
	fmt.Fprintf(w, "Usage:\n  typelens <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.short)
	}
	fmt.Fprintf(w, "\nRun 'typelens help <command>' for details on a specific command.\n")
}

func printCommandHelp(w io.Writer, name string) {
	for _, cmd := range commands {
		if cmd.name == name {
			fmt.Fprintf(w, "Usage: %s\n\n%s", cmd.usage, cmd.long)
			return
		}
	}
	fmt.Fprintf(w, "typelens: unknown command %q\n\nRun 'typelens help' for usage.\n", name)
}

func dispatch(args []string) error {
	if len(args) == 0 || args[0] == "--help" || args[0] == "-h" {
		printUsage(os.Stdout)
		return nil
	}
	if args[0] == "help" {
		if len(args) >= 2 {
			printCommandHelp(os.Stdout, args[1])
		} else {
			printUsage(os.Stdout)
		}
		return nil
	}
	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(args[1:])
		}
	}
	return fmt.Errorf("unknown command %q\n\nRun 'typelens help' for usage.", args[0])
}

// openDomain builds a deferred domain over a supplier for dir.
func openDomain(dir string) (*typelens.Domain, *typelens.Supplier, error) {
	settings, err := typelens.LoadSettings(dir)
	if err != nil {
		return nil, nil, err
	}
	sup := typelens.NewSupplier(typelens.LoadSpec{Dir: dir}, settings, nil)
	return typelens.NewDeferredDomain(sup, typelens.NewCompleter()), sup, nil
}

func argDir(args []string, at int) string {
	if len(args) > at {
		return args[at]
	}
	return "."
}

// ---------------------------------------------------------------------------
// info
// ---------------------------------------------------------------------------

func runInfo(args []string) error {
	dir := argDir(args, 0)
	_, sup, err := openDomain(dir)
	if err != nil {
		return err
	}
	defer sup.Close()

	env, err := sup.Get()
	if err != nil {
		return err
	}
	paths := env.Packages()
	fmt.Printf("%d package(s) indexed from %s\n", len(paths), dir)
	for _, p := range paths {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

// ---------------------------------------------------------------------------
// query
// ---------------------------------------------------------------------------

func runQuery(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: typelens query <same|subtype|assignable> <typeA> <typeB> [dir]")
	}
	relation, qa, qb := args[0], args[1], args[2]
	dom, sup, err := openDomain(argDir(args, 3))
	if err != nil {
		return err
	}
	defer sup.Close()

	result, err := evalRelation(dom, relation, qa, qb)
	if err != nil {
		return err
	}
	fmt.Println(result)
	return nil
}

func evalRelation(dom *typelens.Domain, relation, qa, qb string) (bool, error) {
	a, err := dom.LookupType(qa)
	if err != nil {
		return false, err
	}
	b, err := dom.LookupType(qb)
	if err != nil {
		return false, err
	}
	switch relation {
	case "same":
		return dom.SameType(a, b)
	case "subtype":
		return dom.Subtype(a, b)
	case "assignable":
		return dom.AssignableTo(a, b)
	default:
		return false, fmt.Errorf("unknown relation %q (want same, subtype, or assignable)", relation)
	}
}

// ---------------------------------------------------------------------------
// describe
// ---------------------------------------------------------------------------

func runDescribe(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: typelens describe <package> [dir]")
	}
	pkgPath := args[0]
	dom, sup, err := openDomain(argDir(args, 1))
	if err != nil {
		return err
	}
	defer sup.Close()

	report, err := typelens.Describe(dom, pkgPath)
	if err != nil {
		return err
	}
	out, err := report.Bundle(fmt.Sprintf("# %s\n", report.Package))
	if err != nil {
		return err
	}
	os.Stdout.Write(out)
	return nil
}

// ---------------------------------------------------------------------------
// watch
// ---------------------------------------------------------------------------

func runWatch(args []string) error {
	dir := argDir(args, 0)
	_, sup, err := openDomain(dir)
	if err != nil {
		return err
	}
	defer sup.Close()

	env, err := sup.Get()
	if err != nil {
		return err
	}
	fmt.Printf("watching %s (%d packages); interrupt to stop\n", dir, len(env.Packages()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := log.New(os.Stderr, "typelens: ", log.LstdFlags)
	return watch.Run(ctx, dir, sup, logger)
}

// ---------------------------------------------------------------------------
// explore TUI
// ---------------------------------------------------------------------------

// exploreModel is a bubbletea model: one input line, a scrollback of
// evaluated queries.
type exploreModel struct {
	dom   *typelens.Domain
	input textinput.Model
	lines []string
	done  bool
}

func newExploreModel(dom *typelens.Domain) exploreModel {
	ti := textinput.New()
	ti.Placeholder = "same path.A path.B | lookup path.Name | quit"
	ti.CharLimit = 512
	ti.Focus()
	return exploreModel{dom: dom, input: ti}
}

func (m exploreModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m exploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.done = true
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "quit" || line == "exit" {
				m.done = true
				return m, tea.Quit
			}
			if line != "" {
				m.lines = append(m.lines, "> "+line, m.eval(line))
				if len(m.lines) > 20 {
					m.lines = m.lines[len(m.lines)-20:]
				}
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m exploreModel) eval(line string) string {
	fields := strings.Fields(line)
	switch {
	case len(fields) == 2 && fields[0] == "lookup":
		w, err := m.dom.Lookup(fields[1])
		if err != nil {
			return "error: " + err.Error()
		}
		return w.String()
	case len(fields) == 2 && fields[0] == "kind":
		w, err := m.dom.Lookup(fields[1])
		if err != nil {
			return "error: " + err.Error()
		}
		return w.Kind().String()
	case len(fields) == 3:
		ok, err := evalRelation(m.dom, fields[0], fields[1], fields[2])
		if err != nil {
			return "error: " + err.Error()
		}
		return fmt.Sprintf("%v", ok)
	default:
		return "error: unrecognized query (try 'same path.A path.B')"
	}
}

func (m exploreModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	for _, l := range m.lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	return b.String()
}

func runExplore(args []string) error {
	dom, sup, err := openDomain(argDir(args, 0))
	if err != nil {
		return err
	}
	defer sup.Close()

	// Resolve before entering the TUI so the first prompt isn't a stall.
	if _, err := sup.Get(); err != nil {
		return err
	}

	p := tea.NewProgram(newExploreModel(dom))
	_, err = p.Run()
	return err
}

func main() {
	if err := dispatch(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
