// Package cli wires the cobra command and zap logger the aspif-cli binary
// runs. It mirrors original_source/app/lpconvert.cpp's run(): peek the
// input's leading byte to tell aspif from smodels numeric format, then
// drive the chosen parser into either the opposite format's writer or,
// when -t/--text is set, straight into the text writer.
package cli

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"aspif/internal/aspif"
	"aspif/internal/convert"
	"aspif/internal/errkit"
	"aspif/internal/smodels"
	"aspif/internal/text"
)

// options collects the lpconvert-equivalent flags, per SPEC_FULL.md §6.4.
type options struct {
	input    string
	output   string
	potassco bool
	filter   bool
	textOut  bool
	verbose  bool
	stats    bool
}

// NewRootCmd builds the aspif-cli root command.
func NewRootCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "aspif-cli [file]",
		Short: "Convert between aspif, smodels, and ground text formats",
		Long: `aspif-cli reads a program in aspif or smodels numeric format from a
file or standard input and rewrites it in the other wire format, or, with
--text, in ground text form.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				o.input = args[0]
			}
			return run(cmd.ErrOrStderr(), o)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.input, "input", "i", "", "Input file (default: stdin)")
	flags.StringVarP(&o.output, "output", "o", "", "Output file (default: stdout)")
	flags.BoolVarP(&o.potassco, "potassco", "p", false, "Enable potassco/clasp extensions")
	flags.BoolVarP(&o.filter, "filter", "f", false, "Hide converted potassco predicates")
	flags.BoolVarP(&o.textOut, "text", "t", false, "Convert to ground text format")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVar(&o.stats, "stats", false, "Print theory-store and converter statistics to stderr")
	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.TimeKey = ""
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	return cfg.Build()
}

func run(stderr io.Writer, o *options) error {
	log, err := newLogger(o.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	name := o.input
	if name == "" || name == "-" {
		name = "<stdin>"
	}

	src, err := readInput(o.input)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(o.output, o.input)
	if err != nil {
		return err
	}
	defer closeOut()

	if len(src) == 0 {
		return errkit.Precondition("empty input")
	}

	var stats fmt.Stringer
	switch {
	case src[0] == 'a':
		stats, err = runAspifInput(bytes.NewReader(src), out, o, log)
	case src[0] >= '0' && src[0] <= '9':
		stats, err = runSmodelsInput(bytes.NewReader(src), out, o, log)
	default:
		err = errkit.Precondition("unrecognized input format %q - expected 'aspif' or <digit>", string(src[0]))
	}
	if err != nil {
		reporter := errkit.NewReporter(name, string(src))
		fmt.Fprint(stderr, reporter.Report(err))
		return err
	}
	if o.stats && stats != nil {
		fmt.Fprintln(stderr, stats.String())
	}
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errkit.IO(fmt.Errorf("could not open input file: %w", err))
	}
	return b, nil
}

func openOutput(path, input string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	if path == input {
		return nil, nil, errkit.Precondition("input and output must be different")
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, errkit.IO(fmt.Errorf("could not open output file: %w", err))
	}
	bw := bufio.NewWriter(f)
	return bw, func() { bw.Flush(); f.Close() }, nil
}

// statsString is a fixed string that satisfies fmt.Stringer, used so the
// two format branches can hand back whatever statistics their own writer
// exposes.
type statsString string

func (s statsString) String() string { return string(s) }

func runAspifInput(in io.Reader, out io.Writer, o *options, log *zap.Logger) (fmt.Stringer, error) {
	if o.textOut {
		tw := text.New(text.WithWriter(out))
		if err := aspif.NewParser(in, tw).Parse(); err != nil {
			return nil, err
		}
		st := tw.Stats()
		return statsString(fmt.Sprintf("terms=%d elements=%d atoms=%d", st.Terms, st.Elements, st.Atoms)), nil
	}

	var wopts []smodels.WriterOption
	if o.potassco {
		wopts = append(wopts, smodels.WithClaspExt())
	}
	w := smodels.NewWriter(out, wopts...)

	var copts []convert.Option
	copts = append(copts, convert.WithLogger(log))
	if o.potassco {
		copts = append(copts, convert.WithClaspExtensions())
	}
	conv := convert.New(w, copts...)
	if err := aspif.NewParser(in, conv).Parse(); err != nil {
		return nil, err
	}
	return statsString(fmt.Sprintf("max atom=%d", conv.MaxAtom())), nil
}

func runSmodelsInput(in io.Reader, out io.Writer, o *options, _ *zap.Logger) (fmt.Stringer, error) {
	var popts []smodels.ParserOption
	if o.potassco {
		popts = append(popts, smodels.WithClaspExtParsing(), smodels.WithEdgeNames(), smodels.WithHeuristicNames())
		if o.filter {
			popts = append(popts, smodels.WithFilter())
		}
	}

	if o.textOut {
		tw := text.New(text.WithWriter(out))
		if err := smodels.NewParser(in, tw, popts...).Parse(); err != nil {
			return nil, err
		}
		st := tw.Stats()
		return statsString(fmt.Sprintf("terms=%d elements=%d atoms=%d", st.Terms, st.Elements, st.Atoms)), nil
	}

	w := aspif.NewWriter(out, 0)
	if err := smodels.NewParser(in, w, popts...).Parse(); err != nil {
		return nil, err
	}
	return nil, nil
}
