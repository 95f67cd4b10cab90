package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cairnsoft/ndiff/config"
	"github.com/cairnsoft/ndiff/diag"
	"github.com/cairnsoft/ndiff/engine"
	"github.com/cairnsoft/ndiff/linesource"
	"github.com/cairnsoft/ndiff/numlit"
	"github.com/cairnsoft/ndiff/rule"
	"github.com/cairnsoft/ndiff/tools"
	"github.com/cairnsoft/ndiff/tui"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"     // Version number (set by git tag at build time)
	Commit  = "unknown" // Git commit hash
	Date    = "unknown" // Build date
)

func main() {
	// Command-line flags
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")
		rulesFile   = flag.String("rules", "", "Rule file (TOML) selecting tolerances per row/column")
		configFile  = flag.String("config", "", "Configuration file (default: platform config path)")
		tuiMode     = flag.Bool("tui", false, "Step through the comparison in a TUI viewer")

		// Comparison flags
		keep      = flag.Int("keep", 0, "Maximum diagnostics to print (default from config: 10)")
		blankMode = flag.Bool("blank", false, "Consume runs of blanks in lockstep")
		checkMode = flag.Bool("check", false, "Cross-validate incremental rule lookup (debug)")
		registers = flag.Int("registers", 0, "Register-file size (default from config: 100)")
		bufSize   = flag.Int("buffer", 0, "Initial line buffer capacity in bytes (default: 64 KiB)")
		keptChars = flag.String("kept", "", "Punctuation characters kept as identifier bytes")
		testID    = flag.String("test-id", "", "Label printed in the diagnostic header")

		// Output flags
		echoMode = flag.Bool("echo", false, "Echo matching lines to stdout")
		lhsOut   = flag.String("out-lhs", "", "Write matching left-hand lines to file")
		rhsOut   = flag.String("out-rhs", "", "Write matching right-hand lines to file")

		// Tracing flags
		enableTrace = flag.Bool("trace", false, "Enable rule evaluation trace")
		traceFile   = flag.String("trace-file", "", "Trace output file (default: stderr)")

		// Rule file tooling
		lintRules = flag.Bool("lint-rules", false, "Lint the rule file and exit")
		fmtRules  = flag.Bool("fmt-rules", false, "Print a formatted listing of the rule file and exit")
		fmtStyle  = flag.String("fmt-style", "default", "Rule listing style: default, compact, expanded")
		saveRules = flag.String("save-rules", "", "Rewrite the rule file canonically to FILE and exit")
	)

	flag.Parse()

	// Show version
	if *showVersion {
		fmt.Printf("ndiff %s\n", Version)
		if Commit != "unknown" {
			fmt.Printf("Commit: %s\n", Commit)
		}
		if Date != "unknown" {
			fmt.Printf("Built: %s\n", Date)
		}
		os.Exit(0)
	}

	// Show help
	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	// Load configuration, then let explicitly-set flags override it
	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadFrom(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "keep":
			cfg.Compare.MaxDiffs = *keep
		case "blank":
			cfg.Compare.Blank = *blankMode
		case "check":
			cfg.Compare.Check = *checkMode
		case "registers":
			cfg.Compare.Registers = *registers
		case "buffer":
			cfg.Compare.BufferSize = *bufSize
		case "kept":
			cfg.Compare.KeptChars = *keptChars
		case "test-id":
			cfg.Diagnostics.TestID = *testID
		case "trace":
			cfg.Diagnostics.EnableTrace = *enableTrace
		case "trace-file":
			cfg.Diagnostics.TraceFile = *traceFile
		case "echo":
			cfg.Display.EchoMatching = *echoMode
		}
	})

	// Load the rule file
	rules := rule.Default()
	regCount := cfg.Compare.Registers
	if *rulesFile != "" {
		var fileRegs int
		rules, fileRegs, err = rule.Load(*rulesFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading rule file: %v\n", err)
			os.Exit(1)
		}
		if fileRegs > 0 {
			regCount = fileRegs
		}
	}

	// Rule file tooling modes
	if *lintRules {
		issues := tools.NewLinter(tools.DefaultLintOptions()).Lint(rules, regCount)
		for _, issue := range issues {
			fmt.Println(issue)
		}
		if tools.HasErrors(issues) {
			os.Exit(1)
		}
		os.Exit(0)
	}
	if *saveRules != "" {
		if err := rule.Save(*saveRules, rules, regCount); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving rule file: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	if *fmtRules {
		opts := tools.DefaultFormatOptions()
		switch *fmtStyle {
		case "compact":
			opts = tools.CompactFormatOptions()
		case "expanded":
			opts = tools.ExpandedFormatOptions()
		case "default":
		default:
			fmt.Fprintf(os.Stderr, "Unknown format style: %s\n", *fmtStyle)
			os.Exit(1)
		}
		fmt.Print(tools.FormatRules(rules, regCount, opts))
		os.Exit(0)
	}

	// Require exactly the two files to compare
	if flag.NArg() != 2 {
		printHelp()
		os.Exit(0)
	}
	lhsPath, rhsPath := flag.Arg(0), flag.Arg(1)

	lhsFile, err := os.Open(lhsPath) // #nosec G304 -- user-provided input path
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = lhsFile.Close() }()

	rhsFile, err := os.Open(rhsPath) // #nosec G304 -- user-provided input path
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rhsFile.Close() }()

	// Trace destination
	var traceOut io.Writer = os.Stderr
	if cfg.Diagnostics.EnableTrace && cfg.Diagnostics.TraceFile != "" {
		tracePath := cfg.Diagnostics.TraceFile
		if !filepath.IsAbs(tracePath) {
			tracePath = filepath.Join(config.GetLogPath(), tracePath)
		}
		tw, err := os.Create(tracePath) // #nosec G304 -- user-specified trace output path
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating trace file: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = tw.Close() }()
		traceOut = tw
	}

	// Assemble the engine
	ctx := rule.NewSet(rules)
	eng := engine.New(
		linesource.NewFileSource(lhsFile),
		linesource.NewFileSource(rhsFile),
		ctx,
		cfg.Compare.BufferSize,
		regCount,
	)
	if err := eng.SetOptions(engine.Options{
		MaxDiffs: cfg.Compare.MaxDiffs,
		Blank:    cfg.Compare.Blank,
		Check:    cfg.Compare.Check,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	eng.SetKeptSet(numlit.KeptSet(cfg.KeptSet()))

	// Echo destinations for matching lines
	var echoLHS, echoRHS io.Writer
	if cfg.Display.EchoMatching {
		echoLHS = os.Stdout
	}
	if *lhsOut != "" {
		f, err := os.Create(*lhsOut) // #nosec G304 -- user-specified output path
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		echoLHS = f
	}
	if *rhsOut != "" {
		f, err := os.Create(*rhsOut) // #nosec G304 -- user-specified output path
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		echoRHS = f
	}

	// Run, in the viewer or straight through
	if *tuiMode {
		viewer := tui.New(eng)
		sink := diag.New(viewer.OutputWriter(), viewer.OutputWriter(), cfg.Diagnostics.EnableTrace)
		eng.SetSink(sink)
		eng.SetFileNames(lhsPath, rhsPath)
		sink.SetHeader(lhsPath, rhsPath, cfg.Diagnostics.TestID)
		if err := viewer.Run(echoLHS, echoRHS); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	} else {
		sink := diag.New(os.Stderr, traceOut, cfg.Diagnostics.EnableTrace)
		eng.SetSink(sink)
		eng.SetFileNames(lhsPath, rhsPath)
		sink.SetHeader(lhsPath, rhsPath, cfg.Diagnostics.TestID)
		if err := eng.Run(echoLHS, echoRHS); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	_, _, cnt, num := eng.GetInfo()
	if cnt > 0 {
		fmt.Fprintf(os.Stderr, "ndiff: %d of %d compared numbers differ\n", cnt, num)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Printf(`ndiff %s - numerical file comparison

Usage: ndiff [options] <lhs-file> <rhs-file>
       ndiff -lint-rules -rules FILE
       ndiff -fmt-rules -rules FILE

Compares two text files numerically: numbers embedded in the text are
checked against per-row, per-column tolerance rules while everything
else must match exactly.

Options:
  -help              Show this help message
  -version           Show version information
  -rules FILE        Rule file (TOML) selecting tolerances per row/column
  -config FILE       Configuration file (default: platform config path)
  -tui               Step through the comparison in a TUI viewer

Comparison Options:
  -keep N            Maximum diagnostics to print (default: 10)
  -blank             Consume runs of blanks in lockstep
  -check             Cross-validate incremental rule lookup (debug)
  -registers N       Register-file size (default: 100)
  -buffer N          Initial line buffer capacity in bytes (default: 64 KiB)
  -kept CHARS        Punctuation characters kept as identifier bytes
  -test-id LABEL     Label printed in the diagnostic header

Output Options:
  -echo              Echo matching lines to stdout
  -out-lhs FILE      Write matching left-hand lines to file
  -out-rhs FILE      Write matching right-hand lines to file

Tracing Options:
  -trace             Enable rule evaluation trace
  -trace-file FILE   Trace output file (default: stderr)

Rule File Tooling:
  -lint-rules        Lint the rule file and exit
  -fmt-rules         Print a formatted listing of the rule file and exit
  -fmt-style STYLE   Listing style: default, compact, expanded
  -save-rules FILE   Rewrite the rule file canonically to FILE and exit

Examples:
  # Compare two simulation outputs under a rule file
  ndiff -rules tolerances.toml run1.out run2.out

  # Keep going past the first diffs, print up to 50
  ndiff -rules tolerances.toml -keep 50 run1.out run2.out

  # Step through the comparison interactively
  ndiff -tui -rules tolerances.toml run1.out run2.out

  # Echo every matching line, writing each side to its own file
  ndiff -out-lhs left.ok -out-rhs right.ok run1.out run2.out

  # Check a rule file for mistakes before a long run
  ndiff -lint-rules -rules tolerances.toml

  # Normalize a hand-edited rule file
  ndiff -save-rules clean.toml -rules tolerances.toml

Exit status is 0 when the files compare clean, 1 otherwise.
`, Version)
}
