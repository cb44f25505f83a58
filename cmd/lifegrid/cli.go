package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/lifegrid/internal/calendar"
	"github.com/hpungsan/lifegrid/internal/config"
	"github.com/hpungsan/lifegrid/internal/db"
	"github.com/hpungsan/lifegrid/internal/engine"
	"github.com/hpungsan/lifegrid/internal/errors"
	"github.com/hpungsan/lifegrid/internal/grid"
	"github.com/hpungsan/lifegrid/internal/logger"
	"github.com/hpungsan/lifegrid/internal/ops"
	"github.com/hpungsan/lifegrid/internal/period"
	"github.com/hpungsan/lifegrid/internal/web"
)

// maxMemoBytes bounds memo text read from stdin.
const maxMemoBytes = 1 << 20

// deps carries what the commands act on. It is nil for --help and --version.
type deps struct {
	eng   *engine.Engine
	store *db.DocumentStore
	cfg   *config.Config
	log   *logger.Logger
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(d *deps) *cli.App {
	app := &cli.App{
		Name:    "lifegrid",
		Usage:   "A life drawn in squares: years, months, weeks and days",
		Version: Version,
		Commands: []*cli.Command{
			setupCmd(d),
			profileCmd(d),
			periodsCmd(d),
			resolveCmd(d),
			memoCmd(d),
			topCmd(d),
			gridCmd(d),
			statsCmd(d),
			themeCmd(d),
			exportCmd(d),
			importCmd(d),
			resetCmd(d),
			snapshotsCmd(d),
			serveCmd(d),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// setupCmd creates the setup command.
func setupCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Record birth date and life expectancy (and optionally education periods)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "birth", Aliases: []string{"b"}, Required: true, Usage: "Birth date, YYYY-MM-DD"},
			&cli.IntFlag{Name: "life", Aliases: []string{"l"}, Usage: "Life expectancy in years (default from config)"},
			&cli.StringFlag{Name: "periods-file", Usage: "JSON file with education periods"},
		},
		Action: func(c *cli.Context) error {
			birth, err := calendar.ParseDate(c.String("birth"))
			if err != nil {
				return outputError(errors.NewInvalidRequest("birth must be YYYY-MM-DD"))
			}
			life := c.Int("life")
			if life == 0 {
				life = d.cfg.DefaultLifeExpectancy
			}

			var periods *period.EducationPeriods
			if path := c.String("periods-file"); path != "" {
				p, err := readPeriodsFile(path, d.cfg)
				if err != nil {
					return outputError(err)
				}
				periods = &p
			}

			if err := d.eng.CompleteSetup(c.Context, birth, life, periods); err != nil {
				return outputError(err)
			}
			return outputJSON(c, d.eng.Summary(c.Context))
		},
	}
}

// profileCmd creates the profile command.
func profileCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Show the profile, current age and grid span",
		Action: func(c *cli.Context) error {
			return outputJSON(c, d.eng.Summary(c.Context))
		},
	}
}

// periodsCmd creates the periods command with get and set subcommands.
func periodsCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "periods",
		Usage: "Show or change education periods",
		Subcommands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Show all education periods",
				Action: func(c *cli.Context) error {
					return outputJSON(c, d.eng.Periods())
				},
			},
			{
				Name:  "set",
				Usage: "Replace all periods from --file, or change one --stage",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "JSON file with all education periods"},
					&cli.StringFlag{Name: "stage", Aliases: []string{"s"}, Usage: "Stage id, e.g. elementary, university, other"},
					&cli.StringFlag{Name: "start", Usage: "Start month, YYYY-MM"},
					&cli.StringFlag{Name: "end", Usage: "End month, YYYY-MM"},
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Label for university or other entries"},
					&cli.BoolFlag{Name: "clear", Usage: "Remove every entry of --stage"},
					&cli.BoolFlag{Name: "custom", Usage: "Allow a --stage outside the known set"},
				},
				Action: func(c *cli.Context) error {
					next, err := nextPeriods(c, d)
					if err != nil {
						return outputError(err)
					}
					if err := next.Validate(); err != nil {
						return outputError(errors.NewInvalidRequest(err.Error()))
					}
					if err := d.eng.SetPeriods(c.Context, next); err != nil {
						return outputError(err)
					}
					return outputJSON(c, d.eng.Periods())
				},
			},
		},
	}
}

// nextPeriods builds the periods `periods set` should store. A dated entry on
// a repeatable stage is appended; on a singleton stage it replaces the value.
func nextPeriods(c *cli.Context, d *deps) (period.EducationPeriods, error) {
	file, name := c.String("file"), c.String("stage")
	switch {
	case file != "" && name != "":
		return period.EducationPeriods{}, errors.NewInvalidRequest("pass either --file or --stage, not both")
	case file != "":
		return readPeriodsFile(file, d.cfg)
	case name == "":
		return period.EducationPeriods{}, errors.NewInvalidRequest("--file or --stage is required")
	}

	stage, err := period.ParseInputStage(name, c.Bool("custom"))
	if err != nil {
		return period.EducationPeriods{}, errors.NewInvalidRequest(err.Error())
	}
	next := d.eng.Periods()
	if c.Bool("clear") {
		next.SetEntries(stage, nil)
		return next, nil
	}

	entry := period.Period{
		Start: calendar.YearMonth(c.String("start")),
		End:   calendar.YearMonth(c.String("end")),
		Name:  c.String("name"),
	}
	if entry.Start.IsZero() || entry.End.IsZero() {
		return period.EducationPeriods{}, errors.NewInvalidRequest("--start and --end are required with --stage")
	}
	entries := []period.Period{entry}
	if stage.Repeatable() || !stage.Known() {
		entries = append(next.Entries(stage), entry)
	}
	next.SetEntries(stage, entries)
	return next, nil
}

// resolveOutput is printed by the resolve command.
type resolveOutput struct {
	Date    calendar.Date  `json:"date"`
	Periods []period.Match `json:"periods"`
	Primary *period.Match  `json:"primary"`
}

// resolveCmd creates the resolve command.
func resolveCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "List the education periods covering a month, week or day",
		ArgsUsage: "<YYYY-MM | YYYY-MM-Wn | YYYY-MM-DD>",
		Action: func(c *cli.Context) error {
			key, err := keyArg(c)
			if err != nil {
				return outputError(err)
			}

			day := 1
			switch key.Level {
			case calendar.LevelDay:
				day = key.Day
			case calendar.LevelWeek:
				day, _, _ = calendar.WeekRange(key.Year, key.Month, key.Week)
			}

			out := resolveOutput{Date: calendar.NewDate(key.Year, key.Month, day), Periods: []period.Match{}}
			if matches := d.eng.Resolve(key.Year, key.Month, day); len(matches) > 0 {
				out.Periods = matches
				out.Primary = &matches[0]
			}
			return outputJSON(c, out)
		},
	}
}

// memoOutput is printed by the memo commands.
type memoOutput struct {
	Level      calendar.Level `json:"level"`
	Key        string         `json:"key"`
	Memo       string         `json:"memo"`
	Importance *int           `json:"importance,omitempty"`
}

// memoCmd creates the memo command with get and set subcommands.
func memoCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "memo",
		Usage: "Read or write month, week and day memos",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Show a memo",
				ArgsUsage: "<YYYY-MM | YYYY-MM-Wn | YYYY-MM-DD>",
				Action: func(c *cli.Context) error {
					key, err := keyArg(c)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, readMemo(d.eng, key))
				},
			},
			{
				Name:      "set",
				Usage:     "Write a memo (reads text from stdin unless --text is given)",
				ArgsUsage: "<YYYY-MM | YYYY-MM-Wn | YYYY-MM-DD>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Memo text; empty clears the memo"},
					&cli.IntFlag{Name: "importance", Aliases: []string{"i"}, Usage: "Day importance, 0-5"},
				},
				Action: func(c *cli.Context) error {
					key, err := keyArg(c)
					if err != nil {
						return outputError(err)
					}
					if c.IsSet("importance") && key.Level != calendar.LevelDay {
						return outputError(errors.NewInvalidRequest("--importance only applies to day memos"))
					}

					text := c.String("text")
					if !c.IsSet("text") {
						if text, err = readInput(c); err != nil {
							return outputError(err)
						}
					}

					switch key.Level {
					case calendar.LevelMonth:
						err = d.eng.SetMonthMemo(c.Context, key.Year, key.Month, text)
					case calendar.LevelWeek:
						err = d.eng.SetWeekMemo(c.Context, key.Year, key.Month, key.Week, text)
					case calendar.LevelDay:
						_, importance := d.eng.DayMemo(key.Year, key.Month, key.Day)
						if c.IsSet("importance") {
							importance = c.Int("importance")
						}
						err = d.eng.SetDayMemo(c.Context, key.Year, key.Month, key.Day, text, importance)
					}
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, readMemo(d.eng, key))
				},
			},
		},
	}
}

func readMemo(eng *engine.Engine, key calendar.Key) memoOutput {
	out := memoOutput{Level: key.Level, Key: key.String()}
	switch key.Level {
	case calendar.LevelMonth:
		out.Memo = eng.MonthMemo(key.Year, key.Month)
	case calendar.LevelWeek:
		out.Memo = eng.WeekMemo(key.Year, key.Month, key.Week)
	case calendar.LevelDay:
		memo, importance := eng.DayMemo(key.Year, key.Month, key.Day)
		out.Memo = memo
		out.Importance = &importance
	}
	return out
}

// topCmd creates the top command.
func topCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "top",
		Usage:     "Show the most important days of a month or week",
		ArgsUsage: "<YYYY-MM | YYYY-MM-Wn>",
		Action: func(c *cli.Context) error {
			key, err := keyArg(c)
			if err != nil {
				return outputError(err)
			}

			var days []engine.ImportantDay
			switch key.Level {
			case calendar.LevelMonth:
				days = d.eng.TopImportantDaysInMonth(key.Year, key.Month)
			case calendar.LevelWeek:
				days = d.eng.TopImportantDaysInWeek(key.Year, key.Month, key.Week)
			default:
				return outputError(errors.NewInvalidRequest("top takes a month or week key"))
			}
			return outputJSON(c, map[string]any{"days": days})
		},
	}
}

// gridCmd creates the grid command with year, month and week views.
func gridCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "grid",
		Usage: "Print a grid view as JSON",
		Subcommands: []*cli.Command{
			{
				Name:      "year",
				Usage:     "The 12 months of a year",
				ArgsUsage: "<YYYY>",
				Action: func(c *cli.Context) error {
					if !d.eng.SetupCompleted() {
						return outputError(errors.NewSetupRequired())
					}
					year, err := strconv.Atoi(c.Args().First())
					if err != nil || year < 1 || year > 9999 {
						return outputError(errors.NewInvalidRequest("year must be between 1 and 9999"))
					}
					return outputJSON(c, grid.Year(d.eng, year))
				},
			},
			{
				Name:      "month",
				Usage:     "The four weeks of a month",
				ArgsUsage: "<YYYY-MM>",
				Action: func(c *cli.Context) error {
					key, err := gridArg(c, d, calendar.LevelMonth)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, grid.Month(d.eng, key.Year, key.Month))
				},
			},
			{
				Name:      "week",
				Usage:     "The days of one week",
				ArgsUsage: "<YYYY-MM-Wn>",
				Action: func(c *cli.Context) error {
					key, err := gridArg(c, d, calendar.LevelWeek)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, grid.Week(d.eng, key.Year, key.Month, key.Week))
				},
			},
		},
	}
}

// statsCmd creates the stats command.
func statsCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show months lived and remaining, memo counts and completion rate",
		Action: func(c *cli.Context) error {
			stats := d.eng.Statistics()
			if stats == nil {
				return outputError(errors.NewSetupRequired())
			}
			return outputJSON(c, stats)
		},
	}
}

// themeCmd creates the theme command.
func themeCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "theme",
		Usage:     "Show or set the UI theme",
		ArgsUsage: "[light|dark]",
		Action: func(c *cli.Context) error {
			if c.NArg() > 0 {
				if err := d.eng.SetTheme(c.Context, c.Args().First()); err != nil {
					return outputError(err)
				}
			}
			return outputJSON(c, map[string]string{"theme": d.eng.Theme()})
		},
	}
}

// exportCmd creates the export command.
func exportCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the whole document to a JSON file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.lifegrid/exports/)"},
			&cli.StringFlag{Name: "label", Usage: "Label added to the default file name"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ExportFile(c.Context, d.eng, d.cfg, ops.ExportInput{
				Path:  c.String("path"),
				Label: c.String("label"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Merge a JSON export into the current document",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ImportFile(c.Context, d.eng, d.cfg, ops.ImportInput{Path: c.String("path")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// resetCmd creates the reset command.
func resetCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Discard all data (a snapshot is kept)",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm the reset"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				return outputError(errors.NewInvalidRequest("reset discards all data; pass --yes to confirm"))
			}
			if err := d.eng.Reset(c.Context); err != nil {
				return outputError(err)
			}
			return outputJSON(c, map[string]bool{"reset": true})
		},
	}
}

// snapshotsCmd creates the snapshots command with list and restore subcommands.
func snapshotsCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "snapshots",
		Usage: "List or restore the copies kept before imports and resets",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List snapshots, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum snapshots to list (0 = all)"},
				},
				Action: func(c *cli.Context) error {
					snaps, err := d.store.ListSnapshots(c.Context, c.Int("limit"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, map[string]any{"snapshots": snaps})
				},
			},
			{
				Name:      "restore",
				Usage:     "Restore a snapshot (the current document is snapshotted first)",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id := c.Args().First()
					if id == "" {
						return outputError(errors.NewInvalidRequest("snapshot id is required"))
					}
					body, err := d.store.GetSnapshot(c.Context, id)
					if err != nil {
						return outputError(err)
					}
					if err := d.eng.Import(c.Context, body); err != nil {
						return outputError(err)
					}
					return outputJSON(c, map[string]string{"restored": id})
				},
			},
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Address to bind (default from config)"},
			&cli.IntFlag{Name: "port", Usage: "Port to listen on (default from config)"},
		},
		Action: func(c *cli.Context) error {
			bind := c.String("bind")
			if bind == "" {
				bind = d.cfg.WebBind
			}
			port := c.Int("port")
			if port == 0 {
				port = d.cfg.WebPort
			}
			if port < 1 || port > 65535 {
				return outputError(errors.NewInvalidRequest("port must be between 1 and 65535"))
			}

			srv := web.NewServer(d.eng, d.cfg, d.log, Version, bind, port)
			if err := web.Run(srv, d.log); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// readPeriodsFile loads education periods from a JSON file.
func readPeriodsFile(path string, cfg *config.Config) (period.EducationPeriods, error) {
	data, err := ops.ReadBounded(path, ops.MaxImportBytes(cfg))
	if err != nil {
		return period.EducationPeriods{}, err
	}
	p := period.Empty()
	if err := json.Unmarshal(data, &p); err != nil {
		return period.EducationPeriods{}, errors.NewInvalidRequest(fmt.Sprintf("periods file: %v", err))
	}
	p.Normalize()
	return p, nil
}

// keyArg parses the first positional argument as a date key.
func keyArg(c *cli.Context) (calendar.Key, error) {
	if c.NArg() < 1 {
		return calendar.Key{}, errors.NewInvalidRequest("a key is required: YYYY-MM, YYYY-MM-Wn or YYYY-MM-DD")
	}
	key, err := calendar.ParseKey(c.Args().First())
	if err != nil {
		return calendar.Key{}, errors.NewInvalidRequest(err.Error())
	}
	return key, nil
}

// gridArg is keyArg restricted to one level. Grid views need a completed setup.
func gridArg(c *cli.Context, d *deps, level calendar.Level) (calendar.Key, error) {
	if !d.eng.SetupCompleted() {
		return calendar.Key{}, errors.NewSetupRequired()
	}
	key, err := keyArg(c)
	if err != nil {
		return key, err
	}
	if key.Level != level {
		return key, errors.NewInvalidRequest(fmt.Sprintf("expected a %s key, got %s", level, key))
	}
	return key, nil
}

// outputJSON writes v as indented JSON to the app's writer.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	gErr := errors.As(err)
	return cli.Exit(fmt.Sprintf("[%s] %s", gErr.Code, gErr.Message), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readInput reads memo text from the app's reader. Reading from an
// interactive terminal is refused.
func readInput(c *cli.Context) (string, error) {
	r := c.App.Reader
	if r == nil || (r == os.Stdin && !stdinHasData()) {
		return "", errors.NewInvalidRequest("memo text must be given with --text or piped via stdin")
	}
	data, err := ops.ReadLimited(r, maxMemoBytes)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
