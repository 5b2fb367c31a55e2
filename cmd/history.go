package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"ray/runner/storage"
)

// History prints the most recent runs, optionally of one project only.
func History(env *Env, project string, limit int, out io.Writer) error {
	store, err := env.OpenStorage()
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("run history is disabled")
	}
	defer store.Close()

	var runs []*storage.Run
	if project != "" {
		runs, err = store.GetRunsByProject(project, limit)
	} else {
		runs, err = store.GetRuns(limit)
	}
	if err != nil {
		return err
	}

	return printRuns(out, runs)
}

func printRuns(out io.Writer, runs []*storage.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(out, "no runs recorded")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROJECT\tSTATUS\tFAILED AT\tSTARTED\tDURATION")
	for _, r := range runs {
		duration := "-"
		if r.Duration != nil {
			duration = *r.Duration
		}
		failedAt := r.FailedAt
		if failedAt == "" {
			failedAt = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.ProjectName, r.Status, failedAt, r.StartedAt.Format("2006-01-02 15:04:05"), duration)
	}
	return w.Flush()
}
