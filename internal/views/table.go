// Package views holds the pure renderers behind the dashboard's detail
// panels. They derive display rows from whatever subset the explorer
// currently holds and own no state of their own.
package views

import (
	"github.com/Maria-Liakata-NLP-Group/social-media-timeline-dashboard/internal/models"
)

// Row is one rendered post-table row.
type Row struct {
	PostID string        `json:"post_id"`
	Date   string        `json:"date"`
	Time   string        `json:"time"`
	Title  string        `json:"title"`
	Body   string        `json:"body"`
	Label  string        `json:"label"`
	Moment models.Moment `json:"moment"`
}

// Table row date formats, en-GB style: "2 January 2006" and "15:04:05".
const (
	dateLayout = "2 January 2006"
	timeLayout = "15:04:05"
)

// TableRows renders the ordered id sequence against the post mapping. Ids
// that fail to resolve are skipped. The moment column uses the same
// switch-before-escalation precedence as the chart overlays.
func TableRows(set *models.PostSet, ids []string) []Row {
	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		p, ok := set.Get(id)
		if !ok {
			continue
		}
		created := p.Created()
		label := ""
		if len(p.Label) > 0 {
			label = p.Label[0]
		}
		rows = append(rows, Row{
			PostID: id,
			Date:   created.Format(dateLayout),
			Time:   created.Format(timeLayout),
			Title:  p.Title,
			Body:   p.Body,
			Label:  label,
			Moment: p.Moment(),
		})
	}
	return rows
}
