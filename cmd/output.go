package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/spf13/viper"
)

var stdout io.Writer = os.Stdout

// printResult writes v as indented JSON with --json, else as a table
func printResult(v interface{}, header []string, rows func(add func(cols ...interface{}))) error {
	if viper.GetBool("output.json") {
		return printJSON(v)
	}

	return printTable(header, rows)
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(stdout, string(b))
	return err
}

func printTable(header []string, rows func(add func(cols ...interface{}))) error {
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))

	rows(func(cols ...interface{}) {
		out := make([]string, len(cols))
		for i, c := range cols {
			out[i] = cell(c)
		}
		fmt.Fprintln(w, strings.Join(out, "\t"))
	})

	return w.Flush()
}

func cell(v interface{}) string {
	switch c := v.(type) {
	case nil:
		return "-"
	case string:
		if c == "" {
			return "-"
		}
		return c
	case strfmt.DateTime:
		return formatTime(time.Time(c))
	case *strfmt.DateTime:
		if c == nil {
			return "-"
		}
		return formatTime(time.Time(*c))
	case time.Time:
		return formatTime(c)
	default:
		return fmt.Sprint(c)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}
