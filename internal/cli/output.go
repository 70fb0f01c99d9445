package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/mcoot/whistbroker/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

// PrintLeaderboard outputs player stats
func (o *Output) PrintLeaderboard(entries []model.LeaderboardEntry) {
	if o.format == "json" {
		data, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(data))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tWON\tPLAYED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%d\n", e.Name, e.GamesWon, e.GamesPlayed)
	}
	_ = w.Flush()
}
