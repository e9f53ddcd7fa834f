package views

// SummaryStatus names the three mutually exclusive summary-panel states.
type SummaryStatus string

const (
	// SummaryReady: text exists and is shown.
	SummaryReady SummaryStatus = "ready"
	// SummaryGenerating: a generation is in flight, panel shows a busy
	// indicator.
	SummaryGenerating SummaryStatus = "generating"
	// SummaryEmpty: no text and nothing in flight, panel offers generation.
	SummaryEmpty SummaryStatus = "empty"
)

// Summary is the rendered summary-panel view.
type Summary struct {
	Status SummaryStatus `json:"status"`
	Text   string        `json:"text,omitempty"`
}

// SummaryView maps (text, in-flight flag) to exactly one panel state.
// Existing text wins over an in-flight generation so a finished summary is
// never hidden behind a spinner.
func SummaryView(text string, generating bool) Summary {
	switch {
	case text != "":
		return Summary{Status: SummaryReady, Text: text}
	case generating:
		return Summary{Status: SummaryGenerating}
	default:
		return Summary{Status: SummaryEmpty}
	}
}
