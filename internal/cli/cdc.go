package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/sluice/internal/cdc"
	"github.com/roach88/sluice/internal/migration"
	"github.com/roach88/sluice/internal/store"
)

// JobView is the CLI rendering of a migration job.
type JobView struct {
	Scope      string `json:"scope"`
	JobID      string `json:"job_id"`
	DataSource string `json:"data_source"`
	State      string `json:"state"`
	Position   string `json:"position,omitempty"`
	Slot       *Slot  `json:"slot,omitempty"`
}

// Slot is the live state of a replication slot.
type Slot struct {
	Name       string `json:"name"`
	Exists     bool   `json:"exists"`
	Plugin     string `json:"plugin,omitempty"`
	Active     bool   `json:"active"`
	RestartLSN string `json:"restart_lsn,omitempty"`
}

func newJobView(job store.Job) JobView {
	v := JobView{Scope: job.Scope, JobID: job.JobID, DataSource: job.DataSource, State: string(job.State)}
	if !job.Position.IsZero() {
		v.Position = job.Position.String()
	}
	return v
}

func newSlot(st cdc.SlotStatus) *Slot {
	s := &Slot{Name: st.Name, Exists: st.Exists, Plugin: st.Plugin, Active: st.Active}
	if !st.RestartLSN.IsZero() {
		s.RestartLSN = st.RestartLSN.String()
	}
	return s
}

// JobsResult lists jobs.
type JobsResult struct {
	Jobs []JobView `json:"jobs"`
}

func (r JobsResult) renderText(w io.Writer) {
	if len(r.Jobs) == 0 {
		fmt.Fprintln(w, "No migration jobs.")
		return
	}
	for _, j := range r.Jobs {
		pos := j.Position
		if pos == "" {
			pos = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", j.Scope, j.State, pos, j.DataSource, j.JobID)
		if j.Slot != nil {
			state := "absent"
			if j.Slot.Exists {
				state = "present"
				if j.Slot.Active {
					state = "active"
				}
			}
			fmt.Fprintf(w, "  slot %s: %s", j.Slot.Name, state)
			if j.Slot.RestartLSN != "" {
				fmt.Fprintf(w, " (restart %s)", j.Slot.RestartLSN)
			}
			fmt.Fprintln(w)
		}
	}
}

// NewCDCCommand creates the cdc command group.
func NewCDCCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cdc",
		Short: "Manage replication slots and checkpoints of migration jobs",
		Long: `Manage the replication side of online migrations.

Each migration scope owns one logical replication slot on its PostgreSQL
source. 'init' creates the slot and records the starting position in the
checkpoint store; 'advance' moves the durable position forward; 'destroy'
drops the slot once the migration is done.`,
	}

	cmd.AddCommand(newCDCInitCommand(rootOpts))
	cmd.AddCommand(newCDCStatusCommand(rootOpts))
	cmd.AddCommand(newCDCAdvanceCommand(rootOpts))
	cmd.AddCommand(newCDCDestroyCommand(rootOpts))
	return cmd
}

func newCDCInitCommand(rootOpts *RootOptions) *cobra.Command {
	var dataSource string

	cmd := &cobra.Command{
		Use:   "init <scope>...",
		Short: "Create replication slots and record starting positions",
		Long: `Create the replication slot of each scope and record the source's current
position. A scope that is already initialized is resumed from the store
without contacting the source.

Examples:
  sluice cdc init orders --dsn postgres://localhost/shop
  sluice cdc init orders users --data-source ds_1`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			reqs := make([]migration.Request, len(args))
			for i, scope := range args {
				reqs[i] = migration.Request{Scope: scope, DataSource: dataSource}
			}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			jobs, err := s.manager.PrepareAll(cmd.Context(), reqs)
			if err != nil {
				return out.Error(err)
			}
			result := JobsResult{Jobs: make([]JobView, len(jobs))}
			for i, job := range jobs {
				result.Jobs[i] = newJobView(job)
			}
			return out.Success(result)
		},
	}

	cmd.Flags().StringVar(&dataSource, "data-source", "ds_0", "logical data source name recorded on new jobs")
	return cmd
}

func newCDCStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var live bool

	cmd := &cobra.Command{
		Use:   "status [scope]",
		Short: "Show migration jobs",
		Long: `Show recorded migration jobs. With --live, also inspect each job's
replication slot on its source.

Examples:
  sluice cdc status
  sluice cdc status orders --live --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			var jobs []store.Job
			if len(args) == 1 {
				job, err := s.manager.Job(ctx, args[0])
				if errors.Is(err, store.ErrNotFound) {
					return out.Error(WrapExitError(ExitCommandError, "unknown scope", err))
				}
				if err != nil {
					return out.Error(err)
				}
				jobs = []store.Job{job}
			} else if jobs, err = s.manager.Jobs(ctx); err != nil {
				return out.Error(err)
			}

			result := JobsResult{Jobs: make([]JobView, len(jobs))}
			for i, job := range jobs {
				result.Jobs[i] = newJobView(job)
				if live && job.State != store.StateDestroyed {
					st, err := s.manager.SlotStatus(ctx, job.Scope)
					if err != nil {
						return out.Error(err)
					}
					result.Jobs[i].Slot = newSlot(st)
				}
			}
			return out.Success(result)
		},
	}

	cmd.Flags().BoolVar(&live, "live", false, "inspect replication slots on the source")
	return cmd
}

func newCDCAdvanceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "advance <scope> <position>",
		Short: "Record a new durable position",
		Long: `Record that everything up to position has been applied. Positions are
PostgreSQL LSNs ("0/16B3748") and never move backwards.

Examples:
  sluice cdc advance orders 0/16B3748`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := cdc.ParsePosition(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid position", err)
			}
			s, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if err := s.manager.Advance(ctx, args[0], pos); err != nil {
				return out.Error(err)
			}
			job, err := s.manager.Job(ctx, args[0])
			if err != nil {
				return out.Error(err)
			}
			return out.Success(JobsResult{Jobs: []JobView{newJobView(job)}})
		},
	}
}

func newCDCDestroyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy <scope>...",
		Short: "Drop replication slots of finished migrations",
		Long: `Drop the replication slot of each scope and mark its job destroyed.
Destroying a scope twice is a no-op.

Examples:
  sluice cdc destroy orders`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			result := JobsResult{Jobs: make([]JobView, 0, len(args))}
			for _, scope := range args {
				if err := s.manager.Complete(ctx, scope); err != nil {
					return out.Error(err)
				}
				job, err := s.manager.Job(ctx, scope)
				if err != nil {
					return out.Error(err)
				}
				result.Jobs = append(result.Jobs, newJobView(job))
			}
			return out.Success(result)
		},
	}
}
