// Command decaf runs the symbolic execution engine over a single function
// of a textual IR module, reporting any feasible division-by-zero, signed
// division overflow, or failing decaf_assert.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	yices2bindings "github.com/ianamason/yices2_go_bindings/yices_api"

	"github.com/insufficiently-caffeinated/decaf"
	"github.com/insufficiently-caffeinated/decaf/ir"
	"github.com/insufficiently-caffeinated/decaf/smt"
	"github.com/insufficiently-caffeinated/decaf/smt/yices2"
	"github.com/insufficiently-caffeinated/decaf/smt/z3"
)

var (
	solverName        string
	expectFailure     bool
	dumpPathCondition bool
	verbosity         int
)

var rootCmd = &cobra.Command{
	Use:   "decaf <input-file> <function-name>",
	Short: "decaf, a symbolic execution engine for a minimal SSA IR",
	Args:  cobra.ExactArgs(2),
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&solverName, "solver", "z3", "SMT backend to use (z3|yices2)")
	rootCmd.Flags().BoolVar(&expectFailure, "expect-failure", false, "flip exit-code semantics: 0 if at least one failure was found, 1 if none")
	rootCmd.Flags().BoolVar(&dumpPathCondition, "dump-path-condition", false, "print each failing path's SMT-LIB2 assertion set")
	rootCmd.Flags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity")
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fatal, ok := r.(*decaf.FatalError)
			if !ok {
				panic(r)
			}
			fmt.Fprintf(os.Stderr, "%+v\n", fatal)
			os.Exit(255)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	configureLogging()

	inputFile, functionName := args[0], args[1]

	f, err := os.Open(inputFile)
	if err != nil {
		return errors.Wrapf(err, "opening %q", inputFile)
	}
	defer f.Close()

	module, err := ir.Parse(f)
	if err != nil {
		return errors.Wrapf(err, "parsing %q", inputFile)
	}

	fn := module.Lookup(functionName)
	if fn == nil {
		return errors.Errorf("no function named %q in %q", functionName, inputFile)
	}
	if fn.Declared() {
		return errors.Errorf("%q is only declared, not defined, in %q", functionName, inputFile)
	}

	smtCtx, cleanup, err := newSolverContext(solverName)
	if err != nil {
		return err
	}
	defer cleanup()

	tracker := newTracker()
	decaf.Run(smtCtx, fn, tracker)

	return exitForFailureCount(tracker)
}

func configureLogging() {
	switch {
	case verbosity >= 2:
		log.SetLevel(log.TraceLevel)
	case verbosity == 1:
		log.SetLevel(log.DebugLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

func newSolverContext(name string) (smt.Context, func(), error) {
	switch name {
	case "z3":
		ctx := z3.NewContext()
		return ctx, func() { ctx.Close() }, nil
	case "yices2":
		yices2bindings.Init()
		ctx := yices2.NewContext()
		return ctx, func() { yices2bindings.Exit() }, nil
	default:
		return nil, nil, errors.Errorf("unknown --solver %q (want z3 or yices2)", name)
	}
}

func newTracker() *decaf.CountingFailureTracker {
	t := decaf.NewCountingFailureTracker(os.Stdout)
	t.DumpAssertions = dumpPathCondition
	return t
}

func exitForFailureCount(t *decaf.CountingFailureTracker) error {
	found := t.Count > 0

	if expectFailure {
		if !found {
			os.Exit(1)
		}
		return nil
	}

	if found {
		os.Exit(1)
	}
	return nil
}
