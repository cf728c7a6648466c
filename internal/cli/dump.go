package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	colada "github.com/87xie/pinia-colada"
)

// dataPreviewLen caps the rendered data column.
const dataPreviewLen = 48

var headerStyle = lipgloss.NewStyle().Bold(true) //nolint:gochecknoglobals // render style

// newDumpCmd creates the "dump" command: hydrate a snapshot file into a
// fresh store and print its entries.
func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <snapshot.json>",
		Short: "Inspect a serialized cache snapshot",
		Long: "Hydrate a snapshot produced by Serialize into a fresh store and " +
			"list every entry with its status, age and data.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}

			store := colada.NewStore(colada.WithLogger(logger))
			if err := store.Hydrate(data); err != nil {
				return err
			}
			logger.Debug().Int("entries", store.Len()).Msg("snapshot hydrated")

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, headerStyle.Render("KEY\tSTATUS\tAGE\tDATA"))
			store.Walk(func(path []string, e *colada.Entry) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					strings.Join(path, "/"),
					e.Status(),
					formatAge(e.When(), time.Now()),
					dataPreview(e),
				)
			})
			return w.Flush()
		},
	}
}

func formatAge(when, now time.Time) string {
	if when.IsZero() {
		return "never"
	}
	return now.Sub(when).Truncate(time.Millisecond).String()
}

func dataPreview(e *colada.Entry) string {
	if err := e.Err(); err != nil {
		return "error: " + err.Error()
	}
	data, ok := e.Data()
	if !ok {
		return "-"
	}
	var s string
	if raw, isRaw := data.(json.RawMessage); isRaw {
		s = string(raw)
	} else {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Sprintf("%v", data)
		}
		s = string(b)
	}
	if len(s) > dataPreviewLen {
		s = s[:dataPreviewLen] + "..."
	}
	return s
}
