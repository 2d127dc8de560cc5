package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/skybit/internal/client"
	"github.com/aatumaykin/skybit/internal/config"
	"github.com/aatumaykin/skybit/internal/schedule"
	"github.com/aatumaykin/skybit/internal/tasks"
)

var tasksCmd = newTasksCmd()

// tasksOptions are the flags shared by every tasks subcommand.
type tasksOptions struct {
	server string
	output string
}

// client builds a task API client from the configuration file, with
// --server taking precedence over client.base_url.
func (o *tasksOptions) client() (*client.Client, error) {
	cfg, err := config.LoadOrDefault(resolveConfigPath(nil))
	if err != nil {
		return nil, err
	}
	base := cfg.Client.BaseURL
	if o.server != "" {
		base = o.server
	}
	return client.New(base, client.WithHTTPClient(&http.Client{Timeout: cfg.Client.Timeout()})), nil
}

// scheduleFlags describe a schedule on the command line.
type scheduleFlags struct {
	interval int
	unit     string
	cron     string
	disabled bool
}

func (f *scheduleFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.interval, "interval", tasks.DefaultIntervalMinutes, "Interval amount")
	cmd.Flags().StringVar(&f.unit, "unit", string(schedule.UnitMinutes), "Interval unit (minutes, hours)")
	cmd.Flags().StringVar(&f.cron, "cron", "", "Five-field cron expression")
	cmd.Flags().BoolVar(&f.disabled, "disabled", false, "Create the schedule disabled")
	cmd.MarkFlagsMutuallyExclusive("interval", "cron")
}

// schedule validates the flags through the schedule constructors.
func (f *scheduleFlags) schedule() (schedule.Schedule, error) {
	if f.cron != "" {
		return schedule.New(schedule.Input{Mode: schedule.KindCron, CronText: f.cron, Enabled: !f.disabled})
	}
	unit, err := schedule.ParseUnit(f.unit)
	if err != nil {
		return schedule.Schedule{}, err
	}
	return schedule.New(schedule.Input{Mode: schedule.KindInterval, Amount: f.interval, Unit: unit, Enabled: !f.disabled})
}

func newTasksCmd() *cobra.Command {
	opts := &tasksOptions{}

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage agent tasks on a running Skybit server",
	}
	cmd.PersistentFlags().StringVar(&opts.server, "server", "", "Task store URL (default: client.base_url)")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputTable, "Output format (table, json, yaml)")

	cmd.AddCommand(
		newTasksListCmd(opts),
		newTasksGetCmd(opts),
		newTasksCreateCmd(opts),
		newTasksDeleteCmd(opts),
		newTasksRunCmd(opts),
		newTasksSetEnabledCmd(opts, "enable", true),
		newTasksSetEnabledCmd(opts, "disable", false),
		newTasksToggleCmd(opts),
		newTasksStepsCmd(opts),
		newTasksDescribeCmd(),
	)
	return cmd
}

func newTasksListCmd(opts *tasksOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			list, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 && opts.output == outputTable {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks found.")
				return nil
			}
			return render(cmd.OutOrStdout(), opts.output, list, taskTable(list))
		},
	}
}

func newTasksGetCmd(opts *tasksOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			t, err := c.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, t, taskDetail(t))
		},
	}
}

func newTasksCreateCmd(opts *tasksOptions) *cobra.Command {
	var (
		req   tasks.CreateRequest
		sched scheduleFlags
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sched.schedule()
			if err != nil {
				return err
			}
			w := schedule.ToWire(s)
			req.ScheduleType = w.ScheduleType
			req.IntervalMinutes = w.IntervalMinutes
			req.CronExpression = w.CronExpression
			req.Enabled = &w.Enabled

			if err := req.Validate(); err != nil {
				return err
			}

			c, err := opts.client()
			if err != nil {
				return err
			}
			t, err := c.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, t, taskDetail(t))
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Task name")
	cmd.Flags().StringVar(&req.Prompt, "prompt", "", "Prompt sent to the agent")
	cmd.Flags().StringVar(&req.Description, "description", "", "Task description")
	cmd.Flags().StringVar(&req.SystemPrompt, "system-prompt", "", "System prompt override")
	cmd.Flags().StringVar(&req.InstanceType, "instance", tasks.InstanceUbuntu, "Instance type (ubuntu, browser)")
	cmd.Flags().StringVar(&req.ModelProvider, "provider", tasks.ProviderOpenAI, "Model provider (openai, anthropic)")
	sched.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func newTasksDeleteCmd(opts *tasksOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if err := c.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s deleted\n", args[0])
			return nil
		},
	}
}

func newTasksRunCmd(opts *tasksOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <id>",
		Short: "Run a task now in the background",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

func newTasksSetEnabledCmd(opts *tasksOptions, use string, enabled bool) *cobra.Command {
	short := "Disable a task's schedule"
	if enabled {
		short = "Enable a task's schedule"
	}

	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			var t tasks.Task
			if enabled {
				t, err = c.Enable(cmd.Context(), args[0])
			} else {
				t, err = c.Disable(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, t, taskDetail(t))
		},
	}
}

func newTasksToggleCmd(opts *tasksOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip a task between active and inactive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			current, err := c.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res, err := c.Toggle(cmd.Context(), current, time.Now())
			if err != nil {
				return err
			}
			t := res.View()
			return render(cmd.OutOrStdout(), opts.output, t, taskDetail(t))
		},
	}
}

func newTasksStepsCmd(opts *tasksOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "steps <id>",
		Short: "Show the steps of a task's latest run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			steps, err := c.Steps(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, steps, stepTable(steps))
		},
	}
}

func newTasksDescribeCmd() *cobra.Command {
	var sched scheduleFlags

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Describe a schedule without contacting the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sched.schedule()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), schedule.Describe(s))
			return nil
		},
	}
	sched.register(cmd)
	return cmd
}
