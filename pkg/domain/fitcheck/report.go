package fitcheck

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
)

// WriteReport renders a human-readable validation report. Used by the CLI
// tools; the web collaborator consumes the JSON form instead.
func (r *Result) WriteReport(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Valid:\t%v\n", r.IsValid)
	fmt.Fprintf(tw, "Compatibility score:\t%d/100 (compatible: %v)\n", r.CompatibilityScore, r.IsCompatible)
	fmt.Fprintf(tw, "Total messages:\t%d\n", r.TotalMessages)
	fmt.Fprintf(tw, "File size:\t%d bytes\n", r.FileSizeBytes)
	tw.Flush()

	if len(r.MessageCounts) > 0 {
		fmt.Fprintln(w, "\nMessage counts:")
		names := make([]string, 0, len(r.MessageCounts))
		for name := range r.MessageCounts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(tw, "  %s\t%d\n", name, r.MessageCounts[name])
		}
		tw.Flush()
	}

	if len(r.Issues) == 0 {
		fmt.Fprintln(w, "\nNo issues found.")
		return
	}
	fmt.Fprintf(w, "\nIssues (%d):\n", len(r.Issues))
	for _, is := range r.Issues {
		loc := is.MessageType
		if is.Field != "" {
			loc += "." + is.Field
		}
		if loc != "" {
			fmt.Fprintf(tw, "  [%s]\t%s\t%s\n", is.Severity, loc, is.Message)
		} else {
			fmt.Fprintf(tw, "  [%s]\t\t%s\n", is.Severity, is.Message)
		}
	}
	tw.Flush()
}
