// Command x64asm is the CLI front end for the x64asm assembler: it reads
// one Intel/NASM-like source file and writes a statically-linked ELF64
// executable, per spec.md §6's external-interface contract.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Urethramancer/x64asm/diag"
	"github.com/Urethramancer/x64asm/lexer"
	"github.com/Urethramancer/x64asm/parser"
	"github.com/Urethramancer/x64asm/pipeline"
)

// Exit codes from spec.md §6.
const (
	exitSuccess     = 0
	exitAssembly    = 1
	exitBadArgs     = 2
	exitInputRead   = 3
	exitOutputWrite = 4
)

var opts struct {
	output       string
	format       string
	verbose      bool
	execute      bool
	chmodX       bool
	stopOnFirst  bool
	silent       bool
	parseOnly    bool
	tokenizeOnly bool
	dumpTokens   bool
	dumpAST      bool
}

func main() {
	root := &cobra.Command{
		Use:           "x64asm <input.asm>",
		Short:         "Assemble x86-64 Intel-syntax source into a Linux ELF64 executable",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	flags := root.Flags()
	flags.StringVarP(&opts.output, "output", "o", "a.out", "output file")
	flags.StringVarP(&opts.format, "format", "f", "elf", "output format: elf (only elf is implemented)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose logging")
	flags.BoolVarP(&opts.execute, "execute", "x", false, "execute the output after a successful assembly")
	flags.BoolVarP(&opts.chmodX, "chmod-x", "e", false, "set the executable bit on the output file")
	flags.BoolVarP(&opts.stopOnFirst, "stop-on-first", "s", false, "stop at the first diagnostic instead of accumulating")
	flags.BoolVar(&opts.silent, "silent", false, "suppress non-error output")
	flags.BoolVar(&opts.parseOnly, "parse-only", false, "stop after parsing and report diagnostics")
	flags.BoolVar(&opts.tokenizeOnly, "tokenize-only", false, "stop after lexing and report diagnostics")
	flags.BoolVar(&opts.dumpTokens, "dump-tokens", false, "print the token stream")
	flags.BoolVar(&opts.dumpAST, "dump-ast", false, "print the parsed statement list")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitBadArgs)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	if opts.verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	if opts.silent {
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.ErrorLevel)
	}

	if opts.format != "elf" {
		fmt.Fprintf(os.Stderr, "x64asm: format %q is not implemented; only 'elf' is supported\n", opts.format)
		os.Exit(exitBadArgs)
	}

	inputFile := args[0]
	src, err := os.ReadFile(inputFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, errors.Wrapf(err, "reading %s", inputFile))
		os.Exit(exitInputRead)
	}
	log.Debugf("read %d bytes from %s", len(src), inputFile)

	toks := lexer.New(inputFile, src).Tokenize()
	if opts.dumpTokens {
		dumpTokens(toks)
	}
	if opts.tokenizeOnly {
		for _, t := range toks {
			if t.Kind == lexer.KindError {
				fmt.Fprintln(os.Stderr, t.Diag.Error())
				os.Exit(exitAssembly)
			}
		}
		os.Exit(exitSuccess)
	}

	prog := parser.Parse(toks, opts.stopOnFirst)
	if opts.dumpAST {
		dumpAST(prog)
	}
	if opts.parseOnly {
		if printDiags(prog.Diags) {
			os.Exit(exitAssembly)
		}
		os.Exit(exitSuccess)
	}

	result := pipeline.Assemble(inputFile, src, opts.stopOnFirst)
	if printDiags(result.Diags) {
		os.Exit(exitAssembly)
	}

	mode := os.FileMode(0o644)
	if opts.chmodX || opts.execute {
		mode = 0o755
	}
	if err := os.WriteFile(opts.output, result.ELF, mode); err != nil {
		fmt.Fprintln(os.Stderr, errors.Wrapf(err, "writing %s", opts.output))
		os.Exit(exitOutputWrite)
	}
	log.Debugf("wrote %d bytes to %s", len(result.ELF), opts.output)

	if opts.execute {
		abs, aerr := filepath.Abs(opts.output)
		if aerr != nil {
			return errors.Wrap(aerr, "resolving output path")
		}
		c := exec.Command(abs)
		c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
		if err := c.Run(); err != nil {
			return errors.Wrap(err, "executing output")
		}
	}

	return nil
}

// printDiags reports every accumulated diagnostic and returns true if any
// of them means the overall run failed (spec.md §7 exit-code contract).
func printDiags(diags *diag.List) bool {
	for _, d := range diags.Items() {
		fmt.Fprintln(os.Stderr, d.Error())
		if d.Help != "" {
			fmt.Fprintf(os.Stderr, "  help: %s\n", d.Help)
		}
		if d.Note != "" {
			fmt.Fprintf(os.Stderr, "  note: %s\n", d.Note)
		}
	}
	return diags.HasErrors()
}

func dumpTokens(toks []lexer.Token) {
	for _, t := range toks {
		fmt.Printf("%-12s %-20q %s\n", kindName(t.Kind), t.Lexeme, t.Pos.String())
	}
}

func kindName(k lexer.Kind) string {
	names := map[lexer.Kind]string{
		lexer.KindEOF: "eof", lexer.KindNewline: "newline", lexer.KindIdent: "ident",
		lexer.KindLabelDef: "label", lexer.KindImmediate: "imm", lexer.KindString: "string",
		lexer.KindComma: "comma", lexer.KindColon: "colon", lexer.KindLBracket: "lbracket",
		lexer.KindRBracket: "rbracket", lexer.KindPlus: "plus", lexer.KindMinus: "minus",
		lexer.KindStar: "star", lexer.KindDollar: "dollar", lexer.KindError: "error",
	}
	if n, ok := names[k]; ok {
		return n
	}
	return "?"
}

func dumpAST(prog *parser.Program) {
	for _, s := range prog.Statements {
		fmt.Printf("%s: %s\n", s.Pos.String(), statementSummary(s))
	}
}

func statementSummary(s parser.Statement) string {
	switch s.Kind {
	case parser.StmtLabelDef:
		return fmt.Sprintf("label %s:", s.Label)
	case parser.StmtSectionSwitch:
		return fmt.Sprintf("section %s", s.SectionName)
	case parser.StmtInstruction:
		return fmt.Sprintf("instr %s (%d operands)", s.Instr.Mnemonic, len(s.Instr.Operands))
	case parser.StmtData:
		return fmt.Sprintf("data unit=%d items=%d", s.Unit, len(s.Items))
	case parser.StmtEqu:
		return fmt.Sprintf("equ %s", s.EquName)
	case parser.StmtTimes:
		return fmt.Sprintf("times %d", s.Count)
	case parser.StmtGlobal:
		return fmt.Sprintf("global %v", s.Names)
	case parser.StmtExtern:
		return fmt.Sprintf("extern %v", s.Names)
	default:
		return "?"
	}
}
