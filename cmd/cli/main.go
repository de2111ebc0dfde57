package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/nickyhof/PagerDB"
	"github.com/nickyhof/PagerDB/core"
	"github.com/nickyhof/PagerDB/db"
	"github.com/nickyhof/PagerDB/internal/logging"
	"github.com/nickyhof/PagerDB/ps"
)

const (
	PromptColor  = "\033[36m" // Cyan
	ErrorColor   = "\033[31m" // Red
	SuccessColor = "\033[32m" // Green
	ResetColor   = "\033[0m"
	BoldColor    = "\033[1m"
)

// Version is set at build time via -ldflags
var Version = "dev"

const maxHistory = 1000

// Args are the command line flags.
type Args struct {
	Snapshots string `name:"snapshots" help:"Directory of the Git snapshot store (in memory when empty)" type:"path"`
	Remote    string `name:"remote" help:"Git URL to clone the snapshot store from"`
	Name      string `name:"name" default:"PagerDB" help:"Author name for snapshots"`
	Email     string `name:"email" default:"cli@pagerdb.local" help:"Author email for snapshots"`
	LogLevel  string `name:"log-level" default:"warn" enum:"debug,info,warn,error" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" default:"text" enum:"text,json" help:"Log format (text, json)"`

	Version kong.VersionFlag `name:"version" help:"Print version information"`

	Database string   `arg:"" optional:"" help:"Database to open: path, file://, http(s)://, s3:// or snapshot://"`
	Command  []string `arg:"" optional:"" help:"Command to run once, e.g. .dbinfo or .tables"`
}

// CLI holds the CLI state
type CLI struct {
	engine      *db.Engine
	out         io.Writer
	history     []string
	historyFile string
}

func main() {
	var args Args
	kong.Parse(&args,
		kong.Name("pagerdb"),
		kong.Description("Inspect SQLite-format database images and parse SELECT statements"),
		kong.UsageOnError(),
		kong.Vars{"version": Version},
	)

	level, _ := logging.ParseLevel(args.LogLevel)
	format, _ := logging.ParseFormat(args.LogFormat)
	logging.InitLogger(os.Stderr, level, format)

	persistence, err := openPersistence(args.Snapshots, args.Remote)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	engine := PagerDB.Open(persistence).Engine(core.Identity{
		Name:  args.Name,
		Email: args.Email,
	})

	cli := &CLI{
		engine:      engine,
		out:         os.Stdout,
		history:     make([]string, 0),
		historyFile: getHistoryPath(),
	}

	if len(args.Command) > 0 {
		if err := cli.runOnce(context.Background(), args.Database, strings.Join(args.Command, " ")); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	printBanner(cli.out)
	if args.Database != "" {
		cli.execute(".open " + args.Database)
	}

	cli.loadHistory()
	cli.run(os.Stdin)
	cli.saveHistory()
}

func openPersistence(baseDir, gitUrl string) (*ps.Persistence, error) {
	if baseDir == "" {
		return ps.NewMemoryPersistence()
	}

	var gitUrlPtr *string
	if gitUrl != "" {
		gitUrlPtr = &gitUrl
	}
	return ps.NewFilePersistence(baseDir, gitUrlPtr)
}

// runOnce opens database, runs one command and prints its result.
func (cli *CLI) runOnce(ctx context.Context, database, command string) error {
	if database != "" {
		if _, err := cli.engine.Open(ctx, database); err != nil {
			return err
		}
	}

	result, err := cli.engine.ExecuteContext(ctx, command)
	if err != nil {
		return err
	}
	result.Display(cli.out)
	return nil
}

func printBanner(w io.Writer) {
	fmt.Fprintln(w)
	bannerWidth := 39 // inner width of the banner box
	versionLine := fmt.Sprintf("PagerDB v%s", Version)
	padding := max(bannerWidth-len(versionLine)-2, 0)
	leftPad := padding / 2
	rightPad := padding - leftPad

	fmt.Fprintf(w, "%s%s╔═══════════════════════════════════════╗%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintf(w, "%s%s║ %*s%s%*s ║%s\n", BoldColor, PromptColor, leftPad, "", versionLine, rightPad, "", ResetColor)
	fmt.Fprintf(w, "%s%s║   SQLite Catalog Reader and Parser    ║%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintf(w, "%s%s╚═══════════════════════════════════════╝%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Type .help for commands, .quit to exit")
	fmt.Fprintln(w)
}

// run reads commands until EOF or .quit. Dot commands run on their own line;
// SQL accumulates until a line ends with a semicolon.
func (cli *CLI) run(in io.Reader) {
	reader := bufio.NewReader(in)
	var multiLineBuffer strings.Builder

	for {
		fmt.Fprint(cli.out, cli.getPrompt(multiLineBuffer.Len() > 0))

		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			fmt.Fprintf(cli.out, "\n%sGoodbye!%s\n", SuccessColor, ResetColor)
			return
		}

		input = strings.TrimSuffix(input, "\n")
		input = strings.TrimSuffix(input, "\r")

		if strings.TrimSpace(input) == "" {
			continue
		}

		if multiLineBuffer.Len() == 0 && strings.HasPrefix(strings.TrimSpace(input), ".") {
			if !cli.handleCommand(strings.TrimSpace(input)) {
				fmt.Fprintf(cli.out, "%sGoodbye!%s\n", SuccessColor, ResetColor)
				return
			}
			continue
		}

		multiLineBuffer.WriteString(input)

		trimmed := strings.TrimSpace(multiLineBuffer.String())
		if !strings.HasSuffix(trimmed, ";") {
			multiLineBuffer.WriteString(" ")
			continue
		}

		sql := strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
		multiLineBuffer.Reset()

		if sql == "" {
			continue
		}

		cli.addToHistory(sql + ";")
		cli.execute(sql)
	}
}

func (cli *CLI) getPrompt(multiLine bool) string {
	if multiLine {
		return fmt.Sprintf("%s   ...>%s ", PromptColor, ResetColor)
	}

	dbPart := ""
	if database := cli.engine.Database(); database != nil {
		dbPart = fmt.Sprintf(" (%s)", filepath.Base(database.Source))
	}

	return fmt.Sprintf("%spagerdb%s>%s ", PromptColor, dbPart, ResetColor)
}

// handleCommand runs a dot command and reports whether the REPL should
// continue.
func (cli *CLI) handleCommand(input string) bool {
	parts := strings.Fields(input)
	cli.addToHistory(input)

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit", ".q":
		return false

	case ".help", ".h", ".?":
		cli.printHelp()

	case ".clear", ".cls":
		fmt.Fprint(cli.out, "\033[H\033[2J")

	case ".version":
		fmt.Fprintf(cli.out, "PagerDB version %s\n", Version)

	case ".history":
		if len(parts) == 1 {
			cli.printHistory()
		} else {
			cli.execute(input)
		}

	default:
		cli.execute(input)
	}

	return true
}

func (cli *CLI) execute(command string) {
	result, err := cli.engine.Execute(command)
	if err != nil {
		fmt.Fprintf(cli.out, "%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
		return
	}
	result.Display(cli.out)
}

func (cli *CLI) printHelp() {
	fmt.Fprintln(cli.out)
	fmt.Fprintf(cli.out, "%s%sSpecial Commands:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(cli.out, "  .help, .h          Show this help message")
	fmt.Fprintln(cli.out, "  .quit, .exit       Exit the CLI")
	fmt.Fprintln(cli.out, "  .history           Show command history")
	fmt.Fprintln(cli.out, "  .clear             Clear the screen")
	fmt.Fprintln(cli.out, "  .version           Show version info")
	fmt.Fprintln(cli.out)
	fmt.Fprintf(cli.out, "%s%sDatabase Commands:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(cli.out, "  .open <source>     Open a path, file://, http(s)://, s3:// or snapshot:// source")
	fmt.Fprintln(cli.out, "  .dbinfo            Show page size and number of tables")
	fmt.Fprintln(cli.out, "  .tables            List tables")
	fmt.Fprintln(cli.out, "  .export <dest>     Write the open database to a path or s3:// URL")
	fmt.Fprintln(cli.out, "  .cache             Show catalog cache statistics")
	fmt.Fprintln(cli.out)
	fmt.Fprintf(cli.out, "%s%sSnapshot Commands:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(cli.out, "  .snapshot <name>   Save the open database")
	fmt.Fprintln(cli.out, "  .snapshots         List snapshots")
	fmt.Fprintln(cli.out, "  .history <name>    Show the transactions of a snapshot")
	fmt.Fprintln(cli.out, "  .forget <name>     Delete a snapshot")
	fmt.Fprintln(cli.out, "  .remote add <name> <url> | list | remove <name>")
	fmt.Fprintln(cli.out, "                     Manage Git remotes")
	fmt.Fprintln(cli.out, "  .push [remote]     Push snapshots to a Git remote")
	fmt.Fprintln(cli.out, "  .pull [remote]     Pull snapshots from a Git remote")
	fmt.Fprintln(cli.out)
	fmt.Fprintf(cli.out, "%s%sSQL:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(cli.out, "  SELECT <cols> FROM <table> [JOIN ...] [WHERE ...] [ORDER BY ...] [LIMIT n];")
	fmt.Fprintln(cli.out, "  Statements are parsed and shown as a plan, not executed.")
	fmt.Fprintln(cli.out)
	fmt.Fprintf(cli.out, "%s%sAggregates:%s SUM, AVG, MIN, MAX, COUNT\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintf(cli.out, "%s%sJoins:%s INNER JOIN, LEFT JOIN, RIGHT JOIN\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(cli.out)
}

func (cli *CLI) addToHistory(cmd string) {
	// Don't add duplicates of the last command
	if len(cli.history) > 0 && cli.history[len(cli.history)-1] == cmd {
		return
	}
	cli.history = append(cli.history, cmd)

	if len(cli.history) > maxHistory {
		cli.history = cli.history[len(cli.history)-maxHistory:]
	}
}

func (cli *CLI) printHistory() {
	if len(cli.history) == 0 {
		fmt.Fprintln(cli.out, "No command history")
		return
	}

	start := max(len(cli.history)-20, 0)
	for i := start; i < len(cli.history); i++ {
		fmt.Fprintf(cli.out, "  %3d  %s\n", i+1, cli.history[i])
	}
}

func getHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pagerdb_history")
}

func (cli *CLI) loadHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Open(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		cli.history = append(cli.history, scanner.Text())
	}
}

func (cli *CLI) saveHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Create(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	start := max(len(cli.history)-maxHistory, 0)
	for i := start; i < len(cli.history); i++ {
		_, _ = file.WriteString(cli.history[i] + "\n")
	}
}
