package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ssakit/grammar"
	"ssakit/internal/brainhack"
	"ssakit/internal/engine"
	"ssakit/internal/fib"
	"ssakit/internal/ir"
	"ssakit/internal/samples"
)

var selftestJobs int

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Build, verify and run every sample module on both engines",
	Long: `Build every sample module in its own session, concurrently, verify it and run it
on the interpreter and the JIT, checking results and output.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		results, err := selftest(cmd.Context(), selftestSamples(), selftestJobs)

		out := cmd.OutOrStdout()
		for _, r := range results {
			status := color.GreenString("ok")
			if r.err != nil {
				status = color.RedString("FAIL")
			}
			fmt.Fprintf(out, "%-4s %-12s %-11s %s\n", status, r.sample, r.kind, r.elapsed.Round(time.Microsecond))
			if r.err != nil {
				fmt.Fprintf(out, "     %s\n", r.err)
			}
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d runs passed in %s\n", len(results), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	selftestCmd.Flags().IntVarP(&selftestJobs, "jobs", "j", runtime.NumCPU(), "samples run at once")
}

const helloWorld = `++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++.`

// selftestSamples is samples.All plus the two demo front ends
func selftestSamples() []samples.Sample {
	return append(samples.All(),
		samples.Sample{Name: "fib", Build: fib.Build, Entry: "main", Output: "55\n"},
		samples.Sample{
			Name: "brainhack",
			Build: func(ctx *ir.Context) *ir.Module {
				program, err := grammar.Parse("hello.bf", helloWorld)
				if err != nil {
					panic(err)
				}
				m, err := brainhack.Compile(ctx, "brainhack", program)
				if err != nil {
					panic(err)
				}
				return m
			},
			Entry:  "main",
			Output: "Hello World!\n",
		},
	)
}

type result struct {
	sample  string
	kind    engine.Kind
	elapsed time.Duration
	err     error
}

// selftest runs every sample on both engine kinds. Each run builds its own
// Context, so runs share nothing. Results keep the order of the input. A
// failing run does not stop the others; cancelling ctx stops runs that
// have not started yet and is returned as the error.
func selftest(ctx context.Context, all []samples.Sample, jobs int) ([]result, error) {
	kinds := []engine.Kind{engine.Interpreter, engine.JIT}
	results := make([]result, len(all)*len(kinds))

	var g errgroup.Group
	g.SetLimit(max(jobs, 1))
	for i, s := range all {
		for j, kind := range kinds {
			slot := &results[i*len(kinds)+j]
			slot.sample, slot.kind = s.Name, kind
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					slot.err = err
					return err
				}
				start := time.Now()
				slot.err = runSample(s, kind)
				slot.elapsed = time.Since(start)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("selftest interrupted: %w", err)
	}

	var failed []error
	for _, r := range results {
		if r.err != nil {
			failed = append(failed, fmt.Errorf("%s/%s: %w", r.sample, r.kind, r.err))
		}
	}
	if len(failed) > 0 {
		return results, fmt.Errorf("%d of %d runs failed:\n%w", len(failed), len(results), errors.Join(failed...))
	}
	return results, nil
}

func runSample(s samples.Sample, kind engine.Kind) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("building %s panicked: %v", s.Name, r)
		}
	}()

	ctx := ir.NewContext()
	defer ctx.Dispose()
	m := s.Build(ctx)
	if err := m.Verify(); err != nil {
		return err
	}

	var out bytes.Buffer
	e, err := engine.New(kind, m, engine.WithOptions(engineOptions()), engine.WithStdout(&out))
	if err != nil {
		return err
	}
	defer e.Dispose()

	r, err := e.RunNamed(s.Entry)
	if err != nil {
		return err
	}
	if !r.IsVoid() && s.Output == "" && r.SInt() != s.Result {
		return fmt.Errorf("@%s returned %d, want %d", s.Entry, r.SInt(), s.Result)
	}
	if out.String() != s.Output {
		return fmt.Errorf("@%s printed %q, want %q", s.Entry, out.String(), s.Output)
	}
	return nil
}
