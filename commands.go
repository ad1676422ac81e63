package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	rtdebug "runtime/debug"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ssplus/debug"
	"ssplus/program"
)

// sessionOptions describes one hasher session.
type sessionOptions struct {
	Template string // JSON template path, empty for the self-test job
	Emulate  bool
	Duration time.Duration // zero runs until interrupted
	Reload   bool          // re-read Template on SIGHUP
	Label    string
}

func loadTemplate(path string) (*program.Template, error) {
	if path == "" {
		return program.CanonicalTemplate(), nil
	}
	return program.LoadTemplate(path)
}

// runSession programs the first job, runs until the duration elapses or a
// signal arrives, then prints the job counters.
func runSession(cmd *cobra.Command, root *rootOptions, so sessionOptions) error {
	log := debug.Logger()

	tmpl, err := loadTemplate(so.Template)
	if err != nil {
		return err
	}

	b, err := openBridge(root.cfg, log, so.Emulate, so.Label)
	if err != nil {
		debug.DropError("INIT", err)
		return err
	}
	defer b.Close()

	if err := b.svc.UpdateJob(tmpl); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if so.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, so.Duration)
		defer cancel()
	}

	// PHASE 3: settle the heap before the busy loops start
	runtime.GC()
	rtdebug.FreeOSMemory()

	reload := ""
	if so.Reload {
		reload = so.Template
	}
	log.Info("running", zap.String("label", so.Label), zap.Duration("duration", so.Duration))
	if err := b.run(ctx, reload); err != nil {
		return err
	}

	b.summary(cmd.OutOrStdout())
	return nil
}

func newRunCommand(root *rootOptions) *cobra.Command {
	so := sessionOptions{Label: "run"}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the hasher through /dev/mem",
		Long: `Maps the hasher windows, programs the job from --template and hands out
collision pairs until interrupted. Send SIGHUP to re-read the template and
start a new job.

Example:
  ssplus run --template job.json
  ssplus run --config /etc/ssplus.yaml --template job.json -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			so.Reload = so.Template != ""
			return runSession(cmd, root, so)
		},
	}
	cmd.Flags().StringVarP(&so.Template, "template", "t", "", "JSON work template (default: self-test job)")
	return cmd
}

func newSimulateCommand(root *rootOptions) *cobra.Command {
	so := sessionOptions{Label: "simulate", Emulate: true}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the bridge against the software hasher",
		Long: `Runs the full bridge on heap-backed windows filled by the emulated hasher.
Every pair is checked against the emulated tails.

Example:
  ssplus simulate --duration 10s
  ssplus simulate --template job.json --duration 1m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, root, so)
		},
	}
	cmd.Flags().StringVarP(&so.Template, "template", "t", "", "JSON work template (default: self-test job)")
	cmd.Flags().DurationVarP(&so.Duration, "duration", "d", 5*time.Second, "how long to run")
	return cmd
}

func newSelftestCommand(root *rootOptions) *cobra.Command {
	so := sessionOptions{Label: "selftest"}

	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Run the built-in self-test job",
		Long: `Programs the built-in self-test job (154-byte coinbase, nonce2 at offset 97,
twelve merkle branches) and reports the pairs found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, root, so)
		},
	}
	cmd.Flags().BoolVar(&so.Emulate, "emulate", false, "use the software hasher")
	cmd.Flags().DurationVarP(&so.Duration, "duration", "d", 10*time.Second, "how long to run")
	return cmd
}

func newProgramCommand(root *rootOptions) *cobra.Command {
	var (
		path   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "program",
		Short: "Print the instruction program for a template",
		Long: `Builds the hasher program for --template (default: self-test job) and prints
one line per instruction: index, opcode and payload in hex. With --json the
template itself is printed instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := loadTemplate(path)
			if err != nil {
				return err
			}
			if asJSON {
				data, err := program.EncodeTemplate(tmpl)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}

			prog, err := program.Build(tmpl)
			if err != nil {
				return err
			}
			return program.Dump(cmd.OutOrStdout(), prog)
		},
	}
	cmd.Flags().StringVarP(&path, "template", "t", "", "JSON work template (default: self-test job)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the template as JSON")
	return cmd
}
