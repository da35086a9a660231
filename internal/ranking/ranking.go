// Package ranking orders historical reports that answer the same RFQ.
//
// Ranking is a pure function of the report set. Callers that observe a
// changing set call Rank again on every snapshot; nothing is carried over.
package ranking

import (
	"context"
	"sort"

	"github.com/Lllllllleong/rfqcompliance/internal/compliance"
	"github.com/Lllllllleong/rfqcompliance/internal/models"
)

// Entry is one ranked report.
type Entry struct {
	Report     models.StoredReport `json:"report"`
	Percentage float64             `json:"percentage"`
	Rank       int                 `json:"rank"`
}

// Group holds the standings for one RFQ name.
type Group struct {
	RFQName string  `json:"rfqName"`
	Entries []Entry `json:"entries"`
}

// Rank groups reports by exact RFQ name and ranks each group by compliance
// percentage, highest first. Equal percentages share a rank and the next
// distinct percentage skips ahead (1, 1, 3). Among equal percentages the
// earlier submission is listed first. Groups are ordered by RFQ name.
func Rank(reports []models.StoredReport) []Group {
	byName := make(map[string][]Entry)
	for _, r := range reports {
		byName[r.RFQName] = append(byName[r.RFQName], Entry{
			Report:     r,
			Percentage: compliance.ComputeCompliancePercentage(r.Report),
		})
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	groups := make([]Group, 0, len(names))
	for _, name := range names {
		entries := byName[name]
		sortEntries(entries)
		assignRanks(entries)
		groups = append(groups, Group{RFQName: name, Entries: entries})
	}
	return groups
}

// sortEntries orders by percentage desc, then timestamp asc. ID and bid name
// only break exact duplicates so the order never depends on input order.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Percentage != b.Percentage {
			return a.Percentage > b.Percentage
		}
		if a.Report.Timestamp != b.Report.Timestamp {
			return a.Report.Timestamp < b.Report.Timestamp
		}
		if a.Report.ID != b.Report.ID {
			return a.Report.ID < b.Report.ID
		}
		return a.Report.BidName < b.Report.BidName
	})
}

// assignRanks expects sorted entries. The rank advances to the 1-based
// position only on a strict drop in percentage.
func assignRanks(entries []Entry) {
	rank := 1
	for i := range entries {
		if i > 0 && entries[i].Percentage < entries[i-1].Percentage {
			rank = i + 1
		}
		entries[i].Rank = rank
	}
}

// ByRFQ indexes groups by RFQ name.
func ByRFQ(groups []Group) map[string][]Entry {
	out := make(map[string][]Entry, len(groups))
	for _, g := range groups {
		out[g.RFQName] = g.Entries
	}
	return out
}

// Filter keeps only the group named rfqName. An empty name keeps all.
func Filter(groups []Group, rfqName string) []Group {
	if rfqName == "" {
		return groups
	}
	for _, g := range groups {
		if g.RFQName == rfqName {
			return []Group{g}
		}
	}
	return []Group{}
}

// Stream ranks every report set received on in and emits the result. The
// output channel is closed when in is closed or ctx is done.
func Stream(ctx context.Context, in <-chan []models.StoredReport) <-chan []Group {
	out := make(chan []Group)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case reports, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- Rank(reports):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
