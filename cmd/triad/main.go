package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/triad-labs/triad/pkg/chain"
	"github.com/triad-labs/triad/pkg/config"
	"github.com/triad-labs/triad/pkg/workflow"
)

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "run":
		return runRun(args[2:], stdout, stderr)
	case "step":
		return runStep(args[2:], stdout, stderr)
	case "state":
		return runState(args[2:], stdout, stderr)
	case "doctor":
		return runDoctor(stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorBlue  = "\033[34m"
	ColorGray  = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sTRIAD %s%s\n", ColorBold+ColorBlue, "v0.1.0", ColorReset)
	fmt.Fprintf(w, "%sThree agents, one proof, one reputation.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  triad <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	fmt.Fprintln(w, "  run      Execute the workflow end to end, switching wallets as needed")
	fmt.Fprintln(w, "  step     Execute a single workflow step as one role")
	fmt.Fprintln(w, "  state    Print the persisted workflow state")
	fmt.Fprintln(w, "  doctor   Check configuration, deployment file and RPC reachability")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Steps, in order: %s\n", strings.Join(workflow.StepIDs(), " -> "))
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func runRun(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	profile := fs.String("profile", "", "optional YAML run profile")
	start := fs.String("start", "", "step id to resume from")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	d, err := newDriver(*profile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer d.close()

	state, err := d.loadState()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx := context.Background()

	// Registration runs once per role before the ordered walk.
	if *start == "" || *start == workflow.StepRegisterAgents {
		for _, role := range []workflow.Role{workflow.RoleProposer, workflow.RoleValidator, workflow.RoleClient} {
			res, next := d.runAs(ctx, workflow.StepRegisterAgents, state, role)
			if !res.OK() {
				return d.report(res, state, stdout, stderr)
			}
			state = next
		}
		if err := d.saveState(state); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "%-24s ok\n", workflow.StepRegisterAgents)
	}

	active := workflow.RoleProposer
	started := *start == "" || *start == workflow.StepRegisterAgents
	for _, stepID := range workflow.StepIDs()[1:] {
		if !started {
			if stepID != *start {
				continue
			}
			started = true
		}

		res, next := d.runAs(ctx, stepID, state, active)
		if res.Outcome == workflow.OutcomeWalletSwitchRequired && res.WalletSwitch != nil {
			active = res.WalletSwitch.Role
			_, _ = fmt.Fprintf(stdout, "%-24s switching wallet to %s (%s)\n",
				stepID, res.WalletSwitch.To.Hex(), active)
			res, next = d.runAs(ctx, stepID, state, active)
		}
		if !res.OK() {
			return d.report(res, state, stdout, stderr)
		}
		state = next
		if err := d.saveState(state); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "%-24s ok\n", stepID)
	}

	printSummary(stdout, state)
	return 0
}

func runStep(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("step", flag.ContinueOnError)
	fs.SetOutput(stderr)
	profile := fs.String("profile", "", "optional YAML run profile")
	role := fs.String("role", string(workflow.RoleProposer), "role to sign as (proposer|validator|client)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: triad step [flags] <step-id>")
		return 2
	}
	stepID := fs.Arg(0)

	d, err := newDriver(*profile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer d.close()

	state, err := d.loadState()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	res, next := d.runAs(context.Background(), stepID, state, workflow.Role(*role))
	if !res.OK() {
		return d.report(res, state, stdout, stderr)
	}
	if err := d.saveState(next); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "%-24s ok (state v%d)\n", stepID, next.Version)
	return 0
}

func runState(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("state", flag.ContinueOnError)
	fs.SetOutput(stderr)
	profile := fs.String("profile", "", "optional YAML run profile")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := config.Load()
	if *profile != "" {
		if err := config.LoadProfile(*profile, cfg); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	raw, err := os.ReadFile(cfg.StatePath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "No state at %s: %v\n", cfg.StatePath, err)
		return 1
	}
	_, _ = stdout.Write(raw)
	return 0
}

func runDoctor(stdout, stderr io.Writer) int {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)
	failures := 0

	check := func(name string, err error) {
		if err != nil {
			failures++
			_, _ = fmt.Fprintf(stdout, "  FAIL %-20s %v\n", name, err)
			return
		}
		_, _ = fmt.Fprintf(stdout, "  ok   %s\n", name)
	}

	_, _ = fmt.Fprintln(stdout, "triad doctor")

	_, err := chain.LoadDeployment(cfg.DeploymentPath)
	check("deployment", err)

	check("proposer key", keyCheck(cfg.ProposerKey))
	check("validator key", keyCheck(cfg.ValidatorKey))
	check("client key", keyCheck(cfg.ClientKey))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	check("rpc", rpcCheck(ctx, cfg))

	if _, err := os.Stat(cfg.SnarkJSBindir); err != nil {
		check("snarkjs artifacts", err)
	} else {
		check("snarkjs artifacts", nil)
	}

	if failures > 0 {
		_, _ = fmt.Fprintf(stderr, "%d check(s) failed\n", failures)
		return 1
	}
	return 0
}

func keyCheck(hexKey string) error {
	if hexKey == "" {
		return fmt.Errorf("not set")
	}
	_, err := chain.NewWallet(hexKey)
	return err
}

func rpcCheck(ctx context.Context, cfg *config.Config) error {
	w, err := chain.NewWallet(firstKey(cfg))
	if err != nil {
		return err
	}
	client, err := chain.Dial(ctx, cfg.RPCURL, w)
	if err != nil {
		return err
	}
	_, err = client.ChainID(ctx)
	return err
}

func firstKey(cfg *config.Config) string {
	for _, k := range []string{cfg.ProposerKey, cfg.ValidatorKey, cfg.ClientKey} {
		if k != "" {
			return k
		}
	}
	return ""
}

func printSummary(w io.Writer, state workflow.State) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sWorkflow complete.%s\n", ColorBold, ColorReset)
	fmt.Fprintf(w, "  proof package  %s\n", state.DataDigest)
	if state.Report != nil {
		fmt.Fprintf(w, "  validation     %d/100 (proof valid: %v, constraints: %v)\n",
			state.Report.OverallScore, state.Report.ProofValid, state.Report.MeetsConstraints)
	}
	fmt.Fprintf(w, "  feedback score %d/100\n", state.FeedbackScore)
	if state.Reputation != nil {
		fmt.Fprintf(w, "  reputation     %d submissions, average %d/100\n",
			state.Reputation.Count, state.Reputation.Average)
	}
}

// report prints a non-OK result with resume guidance and maps it to an
// exit code.
func (d *driver) report(res workflow.Result, state workflow.State, stdout, stderr io.Writer) int {
	switch res.Outcome {
	case workflow.OutcomeWalletSwitchRequired:
		_, _ = fmt.Fprintf(stderr, "%s: switch the active wallet to %s (%s) and resume with -start %s\n",
			res.Step, res.WalletSwitch.To.Hex(), res.WalletSwitch.Role, res.Step)
	case workflow.OutcomeRPCError:
		_, _ = fmt.Fprintf(stderr, "%s: ambiguous rpc failure: %v\n", res.Step, res.Err)
		_, _ = fmt.Fprintf(stderr, "the transaction may still confirm; resume with -start %s after checking the chain\n", res.Step)
	default:
		_, _ = fmt.Fprintf(stderr, "%s: %s: %v\n", res.Step, res.Outcome, res.Err)
	}
	if err := d.saveState(state); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return 1
}
