package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// Exit codes shared by the ops commands.
const (
	ExitOK     = 0
	ExitError  = 1
	ExitDenied = 10
)

// AccessCLI explains authorization decisions for operators.
type AccessCLI struct {
	principals rbac.PrincipalLoader
}

// NewAccessCLI constructs the helper.
func NewAccessCLI(principals rbac.PrincipalLoader) (*AccessCLI, error) {
	if principals == nil {
		return nil, errors.New("access cli: principal loader required")
	}
	return &AccessCLI{principals: principals}, nil
}

// CheckOptions defines flags for the check-access command.
type CheckOptions struct {
	UserID     int64
	Operation  string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// CheckSummary is the JSON form of a decision.
type CheckSummary struct {
	UserID      int64    `json:"user_id"`
	Username    string   `json:"username"`
	Active      bool     `json:"active"`
	Operation   string   `json:"operation"`
	Known       bool     `json:"known_operation"`
	Requirement []string `json:"requirement"`
	Authorities []string `json:"authorities"`
	Allowed     bool     `json:"allowed"`
}

// CheckCommand resolves the user's authorities and evaluates the operation.
// Exit code 10 means the decision was a denial.
func (c *AccessCLI) CheckCommand(ctx context.Context, opts CheckOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.UserID <= 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "check-access: --user is required and must be positive")
		return ExitError
	}
	op := rbac.Operation(strings.TrimSpace(opts.Operation))
	if op == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "check-access: --op is required")
		return ExitError
	}
	principal, err := c.principals.LoadPrincipal(ctx, opts.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			_, _ = fmt.Fprintf(opts.Stderr, "check-access: user %d not found\n", opts.UserID)
		} else {
			_, _ = fmt.Fprintf(opts.Stderr, "check-access: %v\n", err)
		}
		return ExitError
	}

	set := rbac.Resolve(principal)
	allowed := principal.Active && rbac.Check(set, op) == nil
	summary := CheckSummary{
		UserID:      principal.ID,
		Username:    principal.Username,
		Active:      principal.Active,
		Operation:   string(op),
		Known:       op.Known(),
		Requirement: []string(op.Requirement()),
		Authorities: set.Slice(),
		Allowed:     allowed,
	}
	if summary.Requirement == nil {
		summary.Requirement = []string{}
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "check-access: encode json: %v\n", err)
			return ExitError
		}
	} else {
		renderCheckHuman(opts.Stdout, summary)
	}
	if !allowed {
		return ExitDenied
	}
	return ExitOK
}

func renderCheckHuman(w io.Writer, s CheckSummary) {
	verdict := "DENIED"
	if s.Allowed {
		verdict = "ALLOWED"
	}
	_, _ = fmt.Fprintf(w, "%s %s for %s (#%d)\n", verdict, s.Operation, s.Username, s.UserID)
	if !s.Known {
		_, _ = fmt.Fprintln(w, "  operation is not registered; only the super-authority passes")
	}
	if !s.Active {
		_, _ = fmt.Fprintln(w, "  account is disabled")
	}
	requirement := "none"
	if len(s.Requirement) > 0 {
		requirement = "any of " + strings.Join(s.Requirement, ", ")
	}
	_, _ = fmt.Fprintf(w, "  requires:    %s\n", requirement)
	_, _ = fmt.Fprintf(w, "  authorities: %s\n", strings.Join(s.Authorities, ", "))
}
