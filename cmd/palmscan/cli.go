package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/palmscan/palmscan/internal/errors"
	"github.com/palmscan/palmscan/internal/mcp"
	"github.com/palmscan/palmscan/internal/ops"
	"github.com/palmscan/palmscan/internal/web"
)

// newCLIApp creates the CLI application with all commands. env may be nil
// when only help or version output is needed.
func newCLIApp(env *ops.Env) *cli.App {
	app := &cli.App{
		Name:    "palmscan",
		Usage:   "Palm scan fortunes: parse, store and browse",
		Version: Version,
		Commands: []*cli.Command{
			parseCmd(env),
			previewCmd(env),
			dateCmd(env),
			saveCmd(env),
			fetchCmd(env),
			historyCmd(env),
			latestCmd(env),
			searchCmd(env),
			deleteCmd(env),
			purgeCmd(env),
			exportCmd(env),
			importCmd(env),
			scanCmd(env),
			predictCmd(env),
			webCmd(env),
			mcpCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// userFlag is shared by every command that works on one user's fortunes.
func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		EnvVars: []string{"PALMSCAN_USER"},
		Usage:   "User id",
	}
}

func predictFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "language", Aliases: []string{"l"}, Usage: "th|en (default from config)"},
		&cli.StringFlag{Name: "style", Usage: "Reading style (default from config)"},
		&cli.StringFlag{Name: "model", Usage: "Model name (default from config)"},
		&cli.StringFlag{Name: "period", Usage: "Prediction period (default today)"},
	}
}

func predictOptions(c *cli.Context) ops.PredictOptions {
	return ops.PredictOptions{
		Language: c.String("language"),
		Style:    c.String("style"),
		Model:    c.String("model"),
		Period:   c.String("period"),
	}
}

// parseCmd creates the parse command.
func parseCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "parse",
		Usage: "Split a fortune answer into sections, tips and cautions (reads stdin)",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max", Usage: "Preview length (default from config)"},
		},
		Action: func(c *cli.Context) error {
			answer, err := requireStdin(c, "answer")
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, env.Parse(answer, c.Int("max")))
		},
	}
}

// previewCmd creates the preview command.
func previewCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "Print the one-line preview of a fortune answer (reads stdin)",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max", Usage: "Maximum preview length in characters (default from config)"},
		},
		Action: func(c *cli.Context) error {
			if c.Int("max") < 0 {
				return outputError(errors.NewInvalidRequest("--max must be >= 0"))
			}
			answer, err := requireStdin(c, "answer")
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, map[string]string{"preview": env.Parse(answer, c.Int("max")).Preview})
		},
	}
}

// dateCmd creates the date command.
func dateCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "date",
		Usage:     "Format a timestamp (ISO string or epoch milliseconds)",
		ArgsUsage: "<value>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "locale", Usage: "en|en-GB|th (default from config)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("a date value is required"))
			}
			return outputJSON(c, map[string]string{"text": env.FormatDate(c.Args().First(), c.String("locale"))})
		},
	}
}

// saveCmd creates the save command.
func saveCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "save",
		Usage: "Store a fortune (reads a JSON document or the raw answer from stdin)",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{Name: "id", Usage: "Fortune id (generated when omitted)"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace"},
			&cli.StringFlag{Name: "language", Aliases: []string{"l"}, Usage: "Language of the answer"},
		},
		Action: func(c *cli.Context) error {
			text, err := requireStdin(c, "fortune")
			if err != nil {
				return outputError(err)
			}

			payload := payloadFromText(text)
			if lang := c.String("language"); lang != "" {
				payload["language"] = lang
			}

			output, err := ops.Save(c.Context, env, ops.SaveInput{
				UserID:  c.String("user"),
				ID:      c.String("id"),
				Payload: payload,
				Mode:    ops.SaveMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// fetchCmd creates the fetch command.
func fetchCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch one fortune, parsed",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			userFlag(),
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted fortunes"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Fetch(c.Context, env, ops.FetchInput{
				UserID:         c.String("user"),
				ID:             c.Args().First(),
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List a user's fortunes, newest first",
		Flags: []cli.Flag{
			userFlag(),
			&cli.IntFlag{Name: "limit", Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Usage: "Pagination offset"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted fortunes"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.History(c.Context, env, ops.HistoryInput{
				UserID:         c.String("user"),
				Limit:          c.Int("limit"),
				Offset:         c.Int("offset"),
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// latestCmd creates the latest command.
func latestCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "latest",
		Usage: "Show a user's most recent fortune",
		Flags: []cli.Flag{userFlag()},
		Action: func(c *cli.Context) error {
			output, err := ops.Latest(c.Context, env, c.String("user"))
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// searchCmd creates the search command.
func searchCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search a user's fortunes",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			userFlag(),
			&cli.IntFlag{Name: "limit", Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Search(c.Context, env, ops.SearchInput{
				UserID: c.String("user"),
				Query:  strings.Join(c.Args().Slice(), " "),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Soft-delete a fortune",
		ArgsUsage: "<id>",
		Flags:     []cli.Flag{userFlag()},
		Action: func(c *cli.Context) error {
			output, err := ops.Delete(c.Context, env, ops.DeleteInput{
				UserID: c.String("user"),
				ID:     c.Args().First(),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete soft-deleted fortunes",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "Only purge this user's fortunes"},
			&cli.StringFlag{Name: "older-than", Usage: "Only purge if deleted more than N days ago (e.g., 7d)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.PurgeInput{}

			if user := c.String("user"); user != "" {
				input.UserID = &user
			}
			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = &days
			}

			output, err := ops.Purge(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export fortunes to JSONL (.jsonl or .jsonl.zst)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output file path"},
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "Only export this user's fortunes"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted fortunes"},
			&cli.BoolFlag{Name: "compress", Aliases: []string{"z"}, Usage: "zstd-compress the default output file"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ExportInput{
				Path:           c.String("path"),
				IncludeDeleted: c.Bool("include-deleted"),
				Compress:       c.Bool("compress"),
			}
			if user := c.String("user"); user != "" {
				input.UserID = &user
			}

			output, err := ops.Export(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import fortunes from an export file",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace|skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(c.Context, env, ops.ImportInput{
				Path: c.Args().First(),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// scanCmd creates the scan command.
func scanCmd(env *ops.Env) *cli.Command {
	flags := []cli.Flag{
		userFlag(),
		&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Required: true, Usage: "Palm photo (JPEG or PNG)"},
		&cli.StringSliceFlag{Name: "param", Usage: "Analyze parameter override, key=value (repeatable)"},
		&cli.StringFlag{Name: "facing", Value: "back", Usage: "Camera facing recorded with the scan"},
	}
	return &cli.Command{
		Name:  "scan",
		Usage: "Analyze a palm photo and store the resulting fortune",
		Flags: append(flags, predictFlags()...),
		Action: func(c *cli.Context) error {
			params, err := parseParams(c.StringSlice("param"))
			if err != nil {
				return outputError(err)
			}

			path := c.String("image")
			f, err := os.Open(path)
			if err != nil {
				if os.IsNotExist(err) {
					return outputError(errors.NewFileNotFound(path))
				}
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("open image: %v", err)))
			}
			defer f.Close()

			output, err := ops.Scan(c.Context, env, ops.ScanInput{
				UserID:   c.String("user"),
				Image:    f,
				Filename: filepath.Base(path),
				Params:   params,
				Meta: map[string]any{
					"device": "cli",
					"facing": c.String("facing"),
					"flash":  false,
					"torch":  false,
				},
				PredictOptions: predictOptions(c),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// predictCmd creates the predict command.
func predictCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "predict",
		Usage:     "Request a new fortune for a saved scan",
		ArgsUsage: "<scan-id>",
		Flags:     append([]cli.Flag{userFlag()}, predictFlags()...),
		Action: func(c *cli.Context) error {
			output, err := ops.Predict(c.Context, env, ops.PredictInput{
				UserID:         c.String("user"),
				ScanID:         c.Args().First(),
				PredictOptions: predictOptions(c),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// webCmd creates the web command.
func webCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Serve the fortune history UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8420, Usage: "Port to listen on"},
			userFlag(),
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(env, web.Options{
				Version: Version,
				Bind:    c.String("bind"),
				Port:    c.Int("port"),
				User:    c.String("user"),
			})
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(c.Context, srv, env)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve MCP tools over stdio",
		Action: func(c *cli.Context) error {
			return mcp.Run(c.Context, env, Version)
		},
	}
}

// Helper functions

// outputJSON writes v to the app's writer as indented JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	fe := errors.Wrap(err)
	return cli.Exit(fmt.Sprintf("[%s] %s", fe.Code, fe.Message), 1)
}

// requireStdin reads the piped input, refusing an interactive terminal or
// blank input.
func requireStdin(c *cli.Context, what string) (string, error) {
	r := c.App.Reader
	if f, ok := r.(*os.File); ok && isCharDevice(f) {
		return "", errors.NewInvalidRequest(what + " must be piped via stdin")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.NewInvalidRequest(what + " is required")
	}
	return text, nil
}

func isCharDevice(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// payloadFromText accepts a JSON fortune document or a bare answer.
func payloadFromText(text string) map[string]any {
	if strings.HasPrefix(text, "{") {
		var doc map[string]any
		if json.Unmarshal([]byte(text), &doc) == nil {
			return doc
		}
	}
	return map[string]any{"answer": text}
}

// parseParams splits key=value pairs.
func parseParams(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("--param must be key=value, got %q", p))
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
