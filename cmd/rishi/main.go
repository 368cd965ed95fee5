package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"rishi/config"
	"rishi/engine"
	"rishi/epub"
	"rishi/misc"
)

type envKey struct{}

// localEnv keeps everything the command handlers need in a single
// place, carried through the command context.
type localEnv struct {
	Cfg *config.Config
	Log *zap.Logger
	Eng *engine.Engine

	restoreStdLog func()
}

func envFromContext(ctx context.Context) *localEnv {
	if env, ok := ctx.Value(envKey{}).(*localEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func contextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, &localEnv{})
}

// initializeAppContext prepares application context before command
// execution but after command line has been parsed.
func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error

	if cmd.NArg() == 0 {
		// nothing to do, just return
		return ctx, nil
	}

	env := envFromContext(ctx)

	configFile := cmd.String("config")
	if env.Cfg, err = config.LoadConfiguration(configFile); err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	if cmd.Bool("debug") {
		env.Cfg.Logging.ConsoleLogger.Level = "debug"
	}
	if env.Log, err = env.Cfg.Logging.Prepare(); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.restoreStdLog = zap.RedirectStdLog(env.Log)

	env.Log.Debug("Program started", zap.Strings("args", os.Args), zap.String("ver", misc.GetVersion()), zap.String("runtime", runtime.Version()))

	env.Eng = engine.New(env.Cfg, engine.EmitterFunc(func(event string, payload map[string]any) {
		env.Log.Info("Event", zap.String("channel", event), zap.Any("payload", payload))
	}), env.Log)

	return ctx, nil
}

func destroyAppContext(ctx context.Context, cmd *cli.Command) (err error) {
	env := envFromContext(ctx)

	if env.Eng != nil {
		env.Eng.Shutdown()
	}
	if env.Log != nil {
		env.Log.Debug("Program ended", zap.Strings("parsed args", cmd.Args().Slice()))
		_ = env.Log.Sync()
	}
	if env.restoreStdLog != nil {
		env.restoreStdLog()
	}
	return
}

var errWasHandled bool

func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {
	env := envFromContext(ctx)
	if env.Log != nil {
		env.Log.Error("Program ended with error", zap.Error(err))
		errWasHandled = true
	}
}

func usageErrorHandler(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return err
}

// openArg opens the book named by the first positional argument.
func openArg(ctx context.Context, cmd *cli.Command) (*localEnv, *engine.OpenResult, error) {
	env := envFromContext(ctx)
	src := cmd.Args().First()
	if src == "" {
		return nil, nil, fmt.Errorf("no input file given")
	}
	res, err := env.Eng.Open(src)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open %s: %w", src, err)
	}
	return env, res, nil
}

func runInfo(ctx context.Context, cmd *cli.Command) error {
	env, res, err := openArg(ctx, cmd)
	if err != nil {
		return err
	}
	defer env.Eng.Close(res.BookID)

	pkg, err := env.Eng.Packaging(res.BookID)
	if err != nil {
		return err
	}
	fmt.Printf("Title:    %s\n", res.Title)
	fmt.Printf("Version:  %s\n", pkg.Version)
	fmt.Printf("Spine:    %d items\n", len(res.Spine))
	fmt.Printf("Items:    %d resources\n", len(res.Resources))
	if pkg.UniqueIdentifier != "" {
		fmt.Printf("UID:      %s\n", pkg.UniqueIdentifier)
	}
	if pkg.RenditionLayout != "" {
		fmt.Printf("Layout:   %s\n", pkg.RenditionLayout)
	}
	if pkg.PageProgressionDirection != "" {
		fmt.Printf("Reading:  %s\n", pkg.PageProgressionDirection)
	}
	return nil
}

func runNav(ctx context.Context, cmd *cli.Command) error {
	env, res, err := openArg(ctx, cmd)
	if err != nil {
		return err
	}
	defer env.Eng.Close(res.BookID)

	nav, err := env.Eng.Nav(res.BookID)
	if err != nil {
		return err
	}
	fmt.Println("TOC:")
	printNavItems(nav.TOC, 1)
	if len(nav.PageList) > 0 {
		fmt.Println("Page list:")
		printNavItems(nav.PageList, 1)
	}
	if len(nav.Landmarks) > 0 {
		fmt.Println("Landmarks:")
		printNavItems(nav.Landmarks, 1)
	}
	return nil
}

func printNavItems(items []epub.NavItem, depth int) {
	for _, item := range items {
		fmt.Printf("%s%s  (%s)\n", strings.Repeat("  ", depth), item.Label, item.Href)
		printNavItems(item.Children, depth+1)
	}
}

func runLayout(ctx context.Context, cmd *cli.Command) error {
	env, res, err := openArg(ctx, cmd)
	if err != nil {
		return err
	}
	defer env.Eng.Close(res.BookID)

	opts := env.Eng.DefaultLayoutOptions()
	if w := cmd.Float("width"); w > 0 {
		opts.ViewportWidth = w
	}
	if h := cmd.Float("height"); h > 0 {
		opts.ViewportHeight = h
	}
	plan, err := env.Eng.ComputeLayout(res.BookID, opts)
	if err != nil {
		return err
	}
	fmt.Printf("Pages:   %d\n", plan.TotalPages)
	fmt.Printf("Spread:  %s\n", plan.SpreadMode)
	fmt.Printf("Fixed:   %v\n", plan.IsFixedLayout)
	for _, p := range plan.Pages {
		fmt.Printf("  page %3d  spine %3d  chars %d..%d\n", p.GlobalIndex, p.SpineIndex, p.StartChar, p.EndChar)
	}
	return nil
}

func runSearch(ctx context.Context, cmd *cli.Command) error {
	env, res, err := openArg(ctx, cmd)
	if err != nil {
		return err
	}
	defer env.Eng.Close(res.BookID)

	query := cmd.Args().Get(1)
	if query == "" {
		return fmt.Errorf("no search query given")
	}
	hits, err := env.Eng.Search(res.BookID, query, int(cmd.Int("max")))
	if err != nil {
		return err
	}
	for _, h := range hits {
		fmt.Printf("%-24s %s\n", h.CFI, h.Excerpt)
	}
	fmt.Printf("%d hit(s)\n", len(hits))
	return nil
}

func runLocations(ctx context.Context, cmd *cli.Command) error {
	env, res, err := openArg(ctx, cmd)
	if err != nil {
		return err
	}
	defer env.Eng.Close(res.BookID)

	locs, err := env.Eng.Locations(res.BookID, int(cmd.Int("chars")))
	if err != nil {
		return err
	}
	fmt.Printf("Locations: %d\n", locs.Total)
	for i, n := range locs.BySpine {
		if n > 0 {
			fmt.Printf("  spine %3d: %d\n", i, n)
		}
	}
	if cmd.Bool("save") {
		if err := env.Eng.SaveLocations(res.BookID, cmd.String("out")); err != nil {
			return err
		}
	}
	return nil
}

func runCover(ctx context.Context, cmd *cli.Command) error {
	env, res, err := openArg(ctx, cmd)
	if err != nil {
		return err
	}
	defer env.Eng.Close(res.BookID)

	cover, err := env.Eng.Cover(res.BookID)
	if err != nil {
		return err
	}
	out := cmd.String("out")
	if out == "" {
		fmt.Printf("Cover: %s, %d bytes (base64)\n", cover.Mime, len(cover.DataBase64))
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(cover.DataBase64)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("unable to write cover: %w", err)
	}
	fmt.Printf("Cover written to %s (%s)\n", out, cover.Mime)
	return nil
}

func runTtsWarm(ctx context.Context, cmd *cli.Command) error {
	env, res, err := openArg(ctx, cmd)
	if err != nil {
		return err
	}
	defer env.Eng.Close(res.BookID)

	if _, err := env.Eng.ComputeLayout(res.BookID, env.Eng.DefaultLayoutOptions()); err != nil {
		return err
	}
	page := int(cmd.Int("page"))
	queued, err := env.Eng.TtsEnqueuePage(res.BookID, page, 0, 1)
	if err != nil {
		return err
	}
	fmt.Printf("Queued %d utterance(s) for page %d\n", queued, page)
	return nil
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) error {
	env := envFromContext(ctx)
	var data []byte
	if cmd.Bool("default") || env.Cfg == nil {
		data = config.DefaultConfig()
	} else {
		var err error
		if data, err = config.Dump(env.Cfg); err != nil {
			return err
		}
	}
	dest := cmd.Args().First()
	if dest == "" {
		fmt.Print(string(data))
		return nil
	}
	return os.WriteFile(dest, data, 0644)
}

func main() {

	// allow graceful shutdown on interrupt
	ctx, stop := signal.NotifyContext(contextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "reading engine for EPUB publications",
		Version:         misc.GetVersion() + " (" + runtime.Version() + ") : " + misc.GetGitHash(),
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		OnUsageError:    usageErrorHandler,
		ExitErrHandler:  exitErrHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, DefaultText: "", Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "verbose console logging"},
		},
		Commands: []*cli.Command{
			{
				Name:         "info",
				Usage:        "Shows package information for an EPUB file",
				OnUsageError: usageErrorHandler,
				Action:       runInfo,
				ArgsUsage:    "SOURCE",
			},
			{
				Name:         "nav",
				Usage:        "Dumps navigation (TOC, page list, landmarks)",
				OnUsageError: usageErrorHandler,
				Action:       runNav,
				ArgsUsage:    "SOURCE",
			},
			{
				Name:         "layout",
				Usage:        "Computes and prints the layout plan",
				OnUsageError: usageErrorHandler,
				Action:       runLayout,
				Flags: []cli.Flag{
					&cli.FloatFlag{Name: "width", Usage: "viewport `WIDTH`"},
					&cli.FloatFlag{Name: "height", Usage: "viewport `HEIGHT`"},
				},
				ArgsUsage: "SOURCE",
			},
			{
				Name:         "search",
				Usage:        "Searches the publication text",
				OnUsageError: usageErrorHandler,
				Action:       runSearch,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "max", Value: 50, Usage: "maximum number of `HITS`"},
				},
				ArgsUsage: "SOURCE QUERY",
			},
			{
				Name:         "locations",
				Usage:        "Computes progress checkpoints",
				OnUsageError: usageErrorHandler,
				Action:       runLocations,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "chars", Usage: "characters per `LOCATION`"},
					&cli.BoolFlag{Name: "save", Usage: "persist the summary to the store"},
					&cli.StringFlag{Name: "out", Usage: "summary destination `FILE` (with --save)"},
				},
				ArgsUsage: "SOURCE",
			},
			{
				Name:         "cover",
				Usage:        "Extracts the cover image",
				OnUsageError: usageErrorHandler,
				Action:       runCover,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Usage: "write cover bytes to `FILE`"},
				},
				ArgsUsage: "SOURCE",
			},
			{
				Name:         "tts-warm",
				Usage:        "Queues TTS synthesis for a page's paragraphs",
				OnUsageError: usageErrorHandler,
				Action:       runTtsWarm,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "page", Usage: "page `INDEX` to synthesize"},
				},
				ArgsUsage: "SOURCE",
			},
			{
				Name:  "dumpconfig",
				Usage: "Dumps either default or actual configuration (YAML)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
				},
				OnUsageError: usageErrorHandler,
				Action:       outputConfiguration,
				ArgsUsage:    "DESTINATION",
			},
		},
	}

	var err error
	// NOTE: os.Exit is called at the end of main to set exit code, make
	// sure there are no other deferred functions after that
	defer func() {
		stop()
		if err != nil {
			if !errWasHandled {
				fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			}
			os.Exit(1)
		}
	}()
	err = app.Run(ctx, os.Args)
}
