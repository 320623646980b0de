// Package main provides the lektor audiobook player entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/wbialy/lektor/internal/app/catalog"
	"github.com/wbialy/lektor/internal/app/notify"
	"github.com/wbialy/lektor/internal/app/session"
	"github.com/wbialy/lektor/internal/app/session/state"
	"github.com/wbialy/lektor/internal/domain/book"
	"github.com/wbialy/lektor/internal/infra/config"
	"github.com/wbialy/lektor/internal/infra/engine"
	"github.com/wbialy/lektor/internal/infra/logger"
	"github.com/wbialy/lektor/internal/infra/store"
	"github.com/wbialy/lektor/internal/infra/tags"
)

var (
	app         = kingpin.New("lektor", "Audiobook player with resumable sessions")
	bookPath    = app.Arg("path", "Audiobook file or directory of audio files").Required().ExistingFileOrDir()
	configPath  = app.Flag("config", "Path to config file").Default("lektor.yaml").String()
	antispoiler = app.Flag("antispoiler", "Hide titles and durations of chapters not reached yet").Bool()
	verbose     = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile     = app.Flag("logfile", "Path to log file (default: stderr)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stderr",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		os.Exit(1)
	}
}

// run executes the main player logic. Using a separate function ensures
// defer statements run even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	resolver := catalog.NewResolver(tags.NewReader())
	cat, err := resolver.Resolve(ctx, *bookPath)
	metadataWarn := err != nil
	if err != nil && !errors.Is(err, book.ErrMetadataUnreadable) {
		return err
	}
	zlog.Info().Str("title", cat.Title).Int("units", cat.Len()).Msg("Resolved catalog")

	stateDir, err := resolveStateDir(cfg)
	if err != nil {
		return err
	}
	st, err := store.Open(stateDir)
	if err != nil {
		return err
	}
	defer st.Close()

	eng, err := engine.New(cfg.Engine)
	if err != nil {
		return errors.Wrap(err, "failed to create playback engine")
	}
	defer eng.Close()

	mgr, err := session.NewManager(cfg, cat, eng, st, *antispoiler)
	if err != nil {
		return errors.Wrap(err, "failed to create session manager")
	}

	if err := mgr.Start(ctx); err != nil {
		return err
	}
	if metadataWarn {
		mgr.PushMessage(cfg.GetMessage("metadata_unreadable"))
	}

	subID, updates := mgr.Updates()
	defer mgr.Unsubscribe(subID)
	go displayLoop(updates)

	go commandLoop(mgr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal")
	case <-mgr.Quit():
	}

	mgr.Close()
	zlog.Info().Msg("Player stopped")
	return nil
}

// resolveStateDir picks the configured state directory or a per-user
// default.
func resolveStateDir(cfg *config.Config) (string, error) {
	if cfg.Store.Dir != "" {
		return cfg.Store.Dir, nil
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", errors.Wrap(err, "cannot determine state directory")
	}
	dir := filepath.Join(cache, "lektor")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "cannot create state directory")
	}
	return dir, nil
}

// displayLoop renders session updates as single status lines. Position
// ticks within the same chapter are skipped so the terminal is not
// flooded; chapter changes, status changes and messages always print.
func displayLoop(updates <-chan notify.Update) {
	var last notify.Update
	seen := false

	for u := range updates {
		changed := !seen ||
			u.UnitIndex != last.UnitIndex ||
			u.Status != last.Status ||
			u.Speed != last.Speed ||
			u.Volume != last.Volume ||
			u.Message != last.Message
		last, seen = u, true
		if !changed {
			continue
		}

		line := fmt.Sprintf("[%s] %d. %s  %s/%s  %.2fx vol %.0f%%",
			statusGlyph(u.Status), u.UnitIndex+1, u.UnitTitle,
			book.FormatDuration(u.Position), book.FormatDuration(u.Duration),
			u.Speed, u.Volume*100)
		if u.Message != "" {
			line += "  | " + u.Message
		}
		fmt.Println(line)
	}
}

func statusGlyph(s state.Status) string {
	switch s {
	case state.StatusPlaying:
		return ">"
	case state.StatusPaused:
		return "||"
	default:
		return "#"
	}
}

// commandLoop reads commands from stdin and applies them until EOF.
func commandLoop(mgr *session.Manager) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := dispatch(mgr, line); err != nil {
			fmt.Println(err)
		}
	}
	// stdin closed: treat as quit
	_ = mgr.Apply(session.Command{Type: session.CmdQuit})
}

// dispatch parses one input line into a session command.
func dispatch(mgr *session.Manager, line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "p", "play", "pause":
		return mgr.Apply(session.Command{Type: session.CmdPlayPause})
	case "f", "forward":
		return mgr.Apply(session.Command{Type: session.CmdSeekForward})
	case "b", "back":
		return mgr.Apply(session.Command{Type: session.CmdSeekBack})
	case "n", "next":
		return mgr.Apply(session.Command{Type: session.CmdNextUnit})
	case "N", "prev":
		return mgr.Apply(session.Command{Type: session.CmdPrevUnit})
	case "g", "goto":
		if len(args) == 0 {
			return errors.New("usage: goto <chapter>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return errors.Newf("not a chapter number: %s", args[0])
		}
		return mgr.Apply(session.Command{Type: session.CmdSeekToUnit, UnitIndex: n - 1})
	case "+", "faster":
		return mgr.Apply(session.Command{Type: session.CmdSpeedUp})
	case "-", "slower":
		return mgr.Apply(session.Command{Type: session.CmdSpeedDown})
	case "v+", "louder":
		return mgr.Apply(session.Command{Type: session.CmdVolumeUp})
	case "v-", "quieter":
		return mgr.Apply(session.Command{Type: session.CmdVolumeDown})
	case "m", "mark":
		return mgr.Apply(session.Command{Type: session.CmdAddBookmark, Label: strings.Join(args, " ")})
	case "marks":
		printBookmarks(mgr)
		return nil
	case "j", "jump":
		id, err := bookmarkID(mgr, args)
		if err != nil {
			return err
		}
		return mgr.Apply(session.Command{Type: session.CmdJumpToBookmark, BookmarkID: id})
	case "rm", "unmark":
		id, err := bookmarkID(mgr, args)
		if err != nil {
			return err
		}
		return mgr.Apply(session.Command{Type: session.CmdRemoveBookmark, BookmarkID: id})
	case "mv", "rename":
		if len(args) < 2 {
			return errors.New("usage: mv <bookmark number> <label>")
		}
		id, err := bookmarkID(mgr, args[:1])
		if err != nil {
			return err
		}
		return mgr.Apply(session.Command{Type: session.CmdRenameBookmark, BookmarkID: id, Label: strings.Join(args[1:], " ")})
	case "s", "spoilers":
		return mgr.Apply(session.Command{Type: session.CmdToggleSpoiler})
	case "ls", "chapters":
		printChapters(mgr)
		return nil
	case "q", "quit":
		return mgr.Apply(session.Command{Type: session.CmdQuit})
	case "h", "help", "?":
		printHelp()
		return nil
	default:
		return errors.Newf("unknown command %q (try 'help')", cmd)
	}
}

// bookmarkID resolves a 1-based list position into a bookmark ID.
func bookmarkID(mgr *session.Manager, args []string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("usage: jump|rm <bookmark number>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return "", errors.Newf("not a bookmark number: %s", args[0])
	}
	marks := mgr.Bookmarks()
	if n < 1 || n > len(marks) {
		return "", errors.Newf("no bookmark %d (have %d)", n, len(marks))
	}
	return marks[n-1].ID, nil
}

func printBookmarks(mgr *session.Manager) {
	marks := mgr.Bookmarks()
	if len(marks) == 0 {
		fmt.Println("no bookmarks")
		return
	}
	for i, b := range marks {
		fmt.Printf("%2d. chapter %d, %s\n", i+1, b.UnitIndex+1, b.Display())
	}
}

func printChapters(mgr *session.Manager) {
	current := mgr.Snapshot().UnitIndex
	for i, c := range mgr.Chapters() {
		cursor := "  "
		if i == current {
			cursor = "> "
		}
		if c.Masked {
			fmt.Printf("%s%2d. %s\n", cursor, i+1, c.Title)
			continue
		}
		fmt.Printf("%s%2d. %s (%s)\n", cursor, i+1, c.Title,
			book.FormatDuration(time.Duration(c.Duration)*time.Millisecond))
	}
}

func printHelp() {
	fmt.Print(`commands:
  p              play / pause
  f / b          seek forward / back
  n / N          next / previous chapter
  goto <n>       jump to chapter n
  + / -          speed up / down
  v+ / v-        volume up / down
  m [label]      add bookmark at current position
  marks          list bookmarks
  j <n>          jump to bookmark n
  rm <n>         remove bookmark n
  mv <n> <label> rename bookmark n
  s              toggle antispoiler mode
  ls             list chapters
  q              quit
`)
}
