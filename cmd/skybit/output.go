package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/aatumaykin/skybit/internal/tasks"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// render writes v in the requested format. table is used for the table
// format.
func render(w io.Writer, format string, v any, table func(*tabwriter.Writer)) error {
	switch format {
	case outputJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case outputTable, "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q (expected: table, json, yaml)", format)
	}
}

func activeLabel(t tasks.Task) string {
	if t.Active() {
		return "active"
	}
	return "inactive"
}

func lastRunLabel(t tasks.Task) string {
	if t.LastRun == nil {
		return "Never"
	}
	return fmt.Sprintf("%s (%s)", tasks.FormatTime(t.LastRun, "Never"), t.LastStatus.Label())
}

func taskTable(list []tasks.Task) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tNAME\tSCHEDULE\tPROVIDER\tLAST RUN\tNEXT RUN\tSTATE")
		for _, t := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				t.ID,
				t.Name,
				t.ScheduleDescription(),
				tasks.ProviderLabel(t.ModelProvider),
				lastRunLabel(t),
				tasks.FormatTime(t.NextRun, "Not scheduled"),
				activeLabel(t))
		}
	}
}

func taskDetail(t tasks.Task) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		rows := [][2]string{
			{"ID", t.ID},
			{"Name", t.Name},
			{"Description", t.Description},
			{"Schedule", t.ScheduleDescription()},
			{"Instance", tasks.InstanceLabel(t.InstanceType)},
			{"Provider", tasks.ProviderLabel(t.ModelProvider)},
			{"Last run", lastRunLabel(t)},
			{"Next run", tasks.FormatTime(t.NextRun, "Not scheduled")},
			{"State", activeLabel(t)},
		}
		if t.LastError != nil {
			rows = append(rows, [2]string{"Last error", t.LastError.Message})
		}
		for _, r := range rows {
			fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1])
		}
	}
}

func stepTable(steps []tasks.Step) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "TIME\tSTEP\tTOOLS")
		for _, s := range steps {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", s.Timestamp.Format(tasks.TimeLayout), s.Text, len(s.ToolCalls))
		}
	}
}
