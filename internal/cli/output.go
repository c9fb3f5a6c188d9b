package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"jobconsole/internal/job"
)

const timeLayout = "2006-01-02 15:04:05"

type format string

const (
	formatTable format = "table"
	formatJSON  format = "json"
	formatYAML  format = "yaml"
)

type printer struct {
	w      io.Writer
	format format
}

func newPrinter(w io.Writer, name string) (*printer, error) {
	switch f := format(strings.ToLower(strings.TrimSpace(name))); f {
	case formatTable, formatJSON, formatYAML:
		return &printer{w: w, format: f}, nil
	case "":
		return &printer{w: w, format: formatTable}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want table, json or yaml)", name)
	}
}

// structured writes v as JSON or YAML. It reports false for table output.
func (p *printer) structured(v any) (bool, error) {
	switch p.format {
	case formatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	default:
		return false, nil
	}
}

func (p *printer) images(images []string) error {
	if ok, err := p.structured(images); ok {
		return err
	}
	for _, img := range images {
		if _, err := fmt.Fprintln(p.w, img); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) jobs(jobs []job.Job) error {
	if ok, err := p.structured(jobs); ok {
		return err
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tIMAGE\tSTATUS\tCREATED")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", j.ID, j.Name, j.Image, j.Status, formatTime(&j.Created))
	}
	return tw.Flush()
}

func (p *printer) job(j *job.Job) error {
	if ok, err := p.structured(j); ok {
		return err
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", j.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", j.Name)
	fmt.Fprintf(tw, "Image:\t%s\n", j.Image)
	fmt.Fprintf(tw, "Status:\t%s\n", j.Status)
	fmt.Fprintf(tw, "Created:\t%s\n", formatTime(&j.Created))
	fmt.Fprintf(tw, "Started:\t%s\n", formatTime(j.Started))
	fmt.Fprintf(tw, "Finished:\t%s\n", formatTime(j.Finished))
	if len(j.Config.Command) > 0 {
		fmt.Fprintf(tw, "Command:\t%s\n", strings.Join(j.Config.Command, " "))
	}
	if len(j.Config.Ports) > 0 {
		fmt.Fprintf(tw, "Ports:\t%s\n", strings.Join(j.Config.Ports, ", "))
	}
	if len(j.Config.Volumes) > 0 {
		fmt.Fprintf(tw, "Volumes:\t%s\n", strings.Join(j.Config.Volumes, ", "))
	}
	for _, k := range slices.Sorted(maps.Keys(j.Config.Env)) {
		fmt.Fprintf(tw, "Env:\t%s=%s\n", k, j.Config.Env[k])
	}
	if r := j.Config.Resources; r != nil {
		fmt.Fprintf(tw, "Resources:\tcpus=%g memory=%s\n", r.CPUs, r.Memory)
	}
	return tw.Flush()
}

func (p *printer) logs(text string) error {
	if ok, err := p.structured(text); ok {
		return err
	}
	_, err := fmt.Fprintln(p.w, text)
	return err
}

func (p *printer) message(format string, args ...any) error {
	if p.format != formatTable {
		return nil
	}
	_, err := fmt.Fprintf(p.w, format+"\n", args...)
	return err
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}
