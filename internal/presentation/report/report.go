// Package report turns a finished run into a human-readable summary.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/voltlab/electric/pkg/domain"
)

// Build renders the run result as markdown.
func Build(res *domain.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Run %s\n\n", res.RunID)
	fmt.Fprintf(&b, "- **Outcome**: %s\n", domain.StatusOf(res.Status))
	fmt.Fprintf(&b, "- **Iterations**: %d\n", len(res.History))
	if res.State != nil {
		fmt.Fprintf(&b, "- **Particles**: %d\n", res.State.Len())
	}
	if len(res.History) > 0 {
		fmt.Fprintf(&b, "- **Final residual**: %.3e\n", res.History[len(res.History)-1].Residual)
	}
	if res.Cause != nil {
		fmt.Fprintf(&b, "- **Cause**: %v\n", res.Cause)
	}

	if len(res.History) > 0 {
		b.WriteString("\n## Iterations\n\n")
		b.WriteString("| # | Residual | Retried | Wall time |\n")
		b.WriteString("|---|----------|---------|-----------|\n")
		for _, rec := range res.History {
			retried := ""
			if rec.Retried {
				retried = "yes"
			}
			fmt.Fprintf(&b, "| %d | %.3e | %s | %s |\n", rec.Index, rec.Residual, retried, rec.WallTime.Round(10*time.Millisecond))
		}
	}

	return b.String()
}
