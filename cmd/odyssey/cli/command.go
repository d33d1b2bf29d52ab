package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
)

// Deps supplies lazily-built resources so commands only connect to what they use.
type Deps struct {
	Stdout     io.Writer
	Stderr     io.Writer
	Principals func(ctx context.Context) (rbac.PrincipalLoader, func(), error)
	Jobs       func() (*JobsCLI, error)
}

// IsCommand reports whether args name an ops subcommand rather than server flags.
func IsCommand(args []string) bool {
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "check-access", "jobs", "help":
		return true
	}
	return false
}

// Run dispatches an ops subcommand and returns the process exit code.
func Run(ctx context.Context, args []string, deps Deps) int {
	if len(args) == 0 {
		printUsage(deps.Stderr)
		return ExitError
	}
	switch args[0] {
	case "check-access":
		return runCheckAccess(ctx, args[1:], deps)
	case "jobs":
		return runJobs(ctx, args[1:], deps)
	case "help":
		printUsage(deps.Stdout)
		return ExitOK
	default:
		_, _ = fmt.Fprintf(deps.Stderr, "unknown command %q\n", args[0])
		printUsage(deps.Stderr)
		return ExitError
	}
}

func runCheckAccess(ctx context.Context, args []string, deps Deps) int {
	var opts CheckOptions
	flags := pflag.NewFlagSet("check-access", pflag.ContinueOnError)
	flags.SetOutput(deps.Stderr)
	flags.Int64Var(&opts.UserID, "user", 0, "user id to evaluate")
	flags.StringVar(&opts.Operation, "op", "", "operation name, e.g. users.delete")
	flags.BoolVar(&opts.JSONOutput, "json", false, "print the decision as JSON")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return ExitOK
		}
		return ExitError
	}
	if deps.Principals == nil {
		_, _ = fmt.Fprintln(deps.Stderr, "check-access: no principal source configured")
		return ExitError
	}
	loader, release, err := deps.Principals(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(deps.Stderr, "check-access: %v\n", err)
		return ExitError
	}
	if release != nil {
		defer release()
	}
	access, err := NewAccessCLI(loader)
	if err != nil {
		_, _ = fmt.Fprintf(deps.Stderr, "check-access: %v\n", err)
		return ExitError
	}
	opts.Stdout, opts.Stderr = deps.Stdout, deps.Stderr
	return access.CheckCommand(ctx, opts)
}

func runJobs(ctx context.Context, args []string, deps Deps) int {
	flags := pflag.NewFlagSet("jobs", pflag.ContinueOnError)
	flags.SetOutput(deps.Stderr)
	size := flags.Int("size", 10, "page size for scheduled listing")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return ExitOK
		}
		return ExitError
	}
	rest := flags.Args()
	if len(rest) == 0 {
		_, _ = fmt.Fprintln(deps.Stderr, "jobs: expected stats, scheduled or trigger <task>")
		return ExitError
	}
	if deps.Jobs == nil {
		_, _ = fmt.Fprintln(deps.Stderr, "jobs: no queue configured")
		return ExitError
	}
	client, err := deps.Jobs()
	if err != nil {
		_, _ = fmt.Fprintf(deps.Stderr, "jobs: %v\n", err)
		return ExitError
	}
	defer func() { _ = client.Close() }()

	enc := json.NewEncoder(deps.Stdout)
	enc.SetIndent("", "  ")
	switch rest[0] {
	case "stats":
		stats, err := client.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(deps.Stderr, "jobs stats: %v\n", err)
			return ExitError
		}
		_ = enc.Encode(stats)
	case "scheduled":
		tasks, err := client.ListScheduled(ctx, *size)
		if err != nil {
			_, _ = fmt.Fprintf(deps.Stderr, "jobs scheduled: %v\n", err)
			return ExitError
		}
		for _, task := range tasks {
			_, _ = fmt.Fprintf(deps.Stdout, "%s\t%s\t%s\n", task.ID, task.Type, task.NextProcessAt.Format("2006-01-02T15:04:05Z07:00"))
		}
	case "trigger":
		if len(rest) < 2 {
			_, _ = fmt.Fprintln(deps.Stderr, "jobs trigger: task name required")
			return ExitError
		}
		info, err := client.Trigger(ctx, rest[1])
		if err != nil {
			_, _ = fmt.Fprintf(deps.Stderr, "jobs trigger: %v\n", err)
			return ExitError
		}
		_, _ = fmt.Fprintf(deps.Stdout, "enqueued %s as %s\n", info.Type, info.ID)
	default:
		_, _ = fmt.Fprintf(deps.Stderr, "jobs: unknown action %q\n", rest[0])
		return ExitError
	}
	return ExitOK
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprint(w, `usage: odyssey [command]

Without a command the HTTP server starts.

commands:
  check-access --user ID --op OPERATION [--json]   explain an authorization decision
  jobs stats | scheduled [--size N] | trigger TASK  inspect or drive the audit queue
  help                                             show this message
`)
}
