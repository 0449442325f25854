package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/calwatch/warchest/internal/ingest"
	"github.com/calwatch/warchest/internal/model"
)

// RenderImportReport formats the outcome of an import run.
func RenderImportReport(report *ingest.Report) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Import Run " + report.RunID))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Created:  %d\n", report.Created))
	b.WriteString(fmt.Sprintf("  Updated:  %d\n", report.Updated))
	b.WriteString(fmt.Sprintf("  Skipped:  %d\n", report.Skipped))
	b.WriteString(fmt.Sprintf("  Rejected: %d\n", report.Rejected))
	b.WriteString(SubtleStyle.Render(fmt.Sprintf("  Took %s", report.Duration().Round(time.Millisecond))))
	b.WriteString("\n")

	if report.Rejected > 0 {
		b.WriteString("\n")
		b.WriteString(WarningStyle.Render("Rejections by reason:"))
		b.WriteString("\n")
		for reason, count := range report.ReasonCounts() {
			b.WriteString(fmt.Sprintf("  %-24s %d\n", reason, count))
		}
	}
	if len(report.Warnings) > 0 {
		b.WriteString(SubtleStyle.Render(fmt.Sprintf("%d rows accepted with unresolved target references; run `warchest repair`", len(report.Warnings))))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderCandidateAggregate formats one candidate's IE totals.
func RenderCandidateAggregate(agg *model.CandidateAggregate) string {
	var b strings.Builder
	title := agg.CandidateName
	if title == "" {
		title = "(unnamed candidate)"
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n")
	if agg.Office != "" {
		b.WriteString(SubtleStyle.Render(fmt.Sprintf("  %s, %d cycle", agg.Office, agg.Cycle)))
		b.WriteString("\n")
	}
	b.WriteString("  Support: " + SupportStyle.Render("$"+agg.Support.StringFixed(2)) + "\n")
	b.WriteString("  Oppose:  " + OpposeStyle.Render("$"+agg.Oppose.StringFixed(2)) + "\n")
	b.WriteString("  Total:   " + BoldStyle.Render("$"+agg.Total().StringFixed(2)) + "\n")
	if agg.Incomplete {
		b.WriteString(FormatWarning("totals are partial; some records could not be read"))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderRaceAggregate formats a race rollup, leading spender first.
func RenderRaceAggregate(race *model.RaceAggregate) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s %d", race.Office, race.Cycle)))
	b.WriteString("\n")
	if len(race.Candidates) == 0 {
		b.WriteString(SubtleStyle.Render("  no independent expenditure activity"))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("  %-30s %14s %14s %14s", "Candidate", "Support", "Oppose", "Total")))
	b.WriteString("\n")
	for _, c := range race.Candidates {
		b.WriteString(fmt.Sprintf("  %-30s %14s %14s %14s\n",
			c.CandidateName,
			"$"+c.Support.StringFixed(2),
			"$"+c.Oppose.StringFixed(2),
			"$"+c.Total().StringFixed(2)))
	}
	if race.Incomplete {
		b.WriteString(FormatWarning("rollup is partial; one or more candidates could not be aggregated"))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderDonorTrace formats the two-hop donor attribution for a candidate.
func RenderDonorTrace(trace *model.DonorTrace) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Donor trace: " + trace.CandidateName))
	b.WriteString("\n")
	if len(trace.Links) == 0 {
		b.WriteString(SubtleStyle.Render("  no independent expenditure activity to trace"))
		b.WriteString("\n")
		return b.String()
	}

	for _, link := range trace.Links {
		direction := "mixed"
		switch link.SpenderSupport {
		case model.True:
			direction = SupportStyle.Render("supporting")
		case model.False:
			direction = OpposeStyle.Render("opposing")
		}
		donor := link.DonorName
		if donor == "" {
			donor = fmt.Sprintf("entity %d", link.DonorID)
		}
		committee := link.CommitteeName
		if committee == "" {
			committee = fmt.Sprintf("committee %d", link.SpenderID)
		}
		b.WriteString(fmt.Sprintf("  %s gave $%s to %s, which spent $%s %s\n",
			BoldStyle.Render(donor),
			link.Given.StringFixed(2),
			committee,
			link.Spent.StringFixed(2),
			direction))
	}
	return b.String()
}

// RenderThresholdReport formats the threshold classification table.
func RenderThresholdReport(report *model.ThresholdReport) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Spending vs $" + report.Threshold.StringFixed(2) + " threshold"))
	b.WriteString("\n")
	if len(report.Entries) == 0 {
		b.WriteString(SubtleStyle.Render("  no candidates with independent expenditure activity"))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("  %-30s %14s %8s %6s", "Candidate", "Total", "×", "Over")))
	b.WriteString("\n")
	for _, entry := range report.Entries {
		over := SubtleStyle.Render("no")
		if entry.Over {
			over = SuccessStyle.Render("yes")
		}
		b.WriteString(fmt.Sprintf("  %-30s %14s %8s %6s\n",
			entry.CandidateName,
			"$"+entry.Total.StringFixed(2),
			entry.Multiple.String()+"x",
			over))
	}
	return b.String()
}

// RenderResolution formats an identity resolution pass: proposed
// corrections first, then anything a human has to look at.
func RenderResolution(resolution *model.Resolution) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Identity resolution"))
	b.WriteString("\n")

	multi := 0
	for _, group := range resolution.Groups {
		if len(group.CommitteeIDs) > 1 {
			multi++
		}
	}
	b.WriteString(fmt.Sprintf("  %d identity groups (%d spanning multiple committees)\n",
		len(resolution.Groups), multi))

	if len(resolution.Corrections) > 0 {
		b.WriteString("\n")
		b.WriteString(BoldStyle.Render("Proposed corrections:"))
		b.WriteString("\n")
		for _, c := range resolution.Corrections {
			b.WriteString(fmt.Sprintf("  committee %d: %s → %q (from committee %d)\n",
				c.CommitteeID, c.Field, c.Value, c.SourceCommittee))
		}
	}

	if len(resolution.Ambiguities) > 0 {
		b.WriteString("\n")
		b.WriteString(WarningStyle.Render("Ambiguities requiring review:"))
		b.WriteString("\n")
		for _, a := range resolution.Ambiguities {
			b.WriteString(fmt.Sprintf("  committee %d: %s candidates: %s\n",
				a.CommitteeID, a.Field, strings.Join(a.Values, ", ")))
		}
	}

	if len(resolution.CycleFlags) > 0 {
		b.WriteString("\n")
		b.WriteString(WarningStyle.Render("Cycle mismatches:"))
		b.WriteString("\n")
		for _, f := range resolution.CycleFlags {
			b.WriteString(fmt.Sprintf("  committee %d: assigned %d, formation date implies %d\n",
				f.CommitteeID, f.AssignedCycle, f.InferredCycle))
		}
	}
	return b.String()
}
