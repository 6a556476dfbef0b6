package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/internal/httpc"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/recorder"
	"github.com/teslashibe/go-gaze/pkg/store"
)

const timeLayout = "January 02, 2006 03:04:05 PM"

func printTable(w io.Writer, data [][]string) {
	table := pterm.DefaultTable
	table.Boxed = true

	str, err := table.WithHasHeader().WithData(data).Srender()
	if err != nil {
		pterm.Error.Printfln("Failed to render table: %s", err.Error())
		return
	}

	fmt.Fprintln(w, str)
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64) + "s"
}

func inspectAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("inspect needs exactly one session file")
	}

	sess, err := recorder.Load(ctx.Args().First())
	if err != nil {
		return err
	}

	printTable(os.Stdout, summaryRows(sess))

	if ctx.Bool("fixations") && len(sess.Fixations) > 0 {
		rows := [][]string{{"#", "START", "END", "DURATION", "X", "Y"}}
		for i, f := range sess.Fixations {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				strconv.FormatFloat(f.StartTime, 'f', 3, 64),
				strconv.FormatFloat(f.EndTime, 'f', 3, 64),
				seconds(f.Duration()),
				strconv.Itoa(f.X),
				strconv.Itoa(f.Y),
			})
		}
		printTable(os.Stdout, rows)
	}
	return nil
}

// summaryRows renders the headline numbers of a session
func summaryRows(sess *gaze.Session) [][]string {
	var total float64
	for _, f := range sess.Fixations {
		total += f.Duration()
	}
	mean := 0.0
	if n := len(sess.Fixations); n > 0 {
		mean = total / float64(n)
	}

	span := 0.0
	if n := len(sess.GazePoints); n > 1 {
		span = sess.GazePoints[n-1].Timestamp - sess.GazePoints[0].Timestamp
	}

	return [][]string{
		{"FIELD", "VALUE"},
		{"Session start", sess.SessionStart},
		{"Frames", strconv.Itoa(sess.Metadata.FrameCount)},
		{"Gaze samples", strconv.Itoa(len(sess.GazePoints))},
		{"Sample span", seconds(span)},
		{"Fixations", strconv.Itoa(len(sess.Fixations))},
		{"Mean fixation", seconds(mean)},
		{"Blinks", strconv.Itoa(len(sess.Blinks))},
	}
}

func sessionsAction(ctx *cli.Context) error {
	path := ctx.String("db")
	if path == "" {
		cfg, err := config.Load(ctx.String("config"))
		if err != nil {
			return err
		}
		path = cfg.Store.Path
	}
	if path == "" {
		return errors.New("no archive configured: set store.path or pass --db")
	}

	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if key := ctx.String("delete"); key != "" {
		if err := db.Delete(key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		pterm.Success.Printfln("Deleted snapshot %s", key)
		return nil
	}

	list, err := db.List(ctx.Int("limit"))
	if err != nil {
		return err
	}
	if len(list) == 0 {
		pterm.Info.Println("No archived sessions")
		return nil
	}

	rows := [][]string{{"STAMP", "SESSION", "SAVED", "FORMATS", "FRAMES", "SAMPLES", "FIXATIONS", "BLINKS"}}
	for _, s := range list {
		rows = append(rows, []string{
			s.Stamp,
			s.SessionID,
			s.SavedAt.Local().Format(timeLayout),
			strings.Join(s.Formats, ","),
			strconv.Itoa(s.Stats.FrameCount),
			strconv.Itoa(s.Stats.GazeSamples),
			strconv.Itoa(s.Stats.Fixations),
			strconv.Itoa(s.Stats.Blinks),
		})
	}
	printTable(os.Stdout, rows)
	return nil
}

func saveAction(ctx *cli.Context) error {
	format, err := recorder.ParseFormat(ctx.String("format"))
	if err != nil {
		return err
	}

	u := url.URL{
		Scheme:   "http",
		Host:     ctx.String("addr"),
		Path:     "/api/save",
		RawQuery: url.Values{"format": {string(format)}}.Encode(),
	}

	resp, err := httpc.Post(u.String(), "application/json", nil)
	if err != nil {
		return fmt.Errorf("save request failed: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Stamp string `json:"stamp"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding save response failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if body.Stamp != "" {
			pterm.Warning.Printfln("Files written as %s", body.Stamp)
		}
		return fmt.Errorf("save failed (%d): %s", resp.StatusCode, body.Error)
	}

	pterm.Success.Printfln("Saved %s session as %s", format, body.Stamp)
	return nil
}

func configAction(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return err
	}

	out, err := cfg.YAML()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}
