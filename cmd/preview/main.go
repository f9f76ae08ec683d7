// Package main provides a local interactive album preview player.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/previewbox/internal/app/playback"
	"github.com/osa030/previewbox/internal/infra/logger"
	"github.com/osa030/previewbox/internal/infra/manifestapi"
	"github.com/osa030/previewbox/internal/infra/output"
)

var (
	app        = kingpin.New("previewbox", "Play 40 second previews of a published album")
	shareID    = app.Arg("share-id", "Published album share ID").Required().String()
	baseURL    = app.Flag("base-url", "Manifest API base URL").Envar("PREVIEWBOX_MANIFEST_BASE_URL").Default(manifestapi.DefaultBaseURL).String()
	outputType = app.Flag("output", "Media output (virtual, speaker)").Default(output.TypeSpeaker).Enum(output.TypeVirtual, output.TypeSpeaker)
	capSeconds = app.Flag("cap", "Preview limit in seconds").Default("40").Int()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file").Default("logs/preview.log").String()
)

const help = `Commands:
  <n>          select and play track n (1-based)
  p            play / pause
  n, b         next / previous track
  s <seconds>  seek
  l            list tracks
  q            quit`

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	// Keep the terminal for the player; logs go to a file
	level := "info"
	if *verbose {
		level = "debug"
	}
	if err := logger.Init(logger.Config{Output: *logfile, File: *logfile, Level: level, MaxSizeMB: 10, MaxBackups: 1}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	client, err := manifestapi.New(manifestapi.Config{BaseURL: *baseURL, Timeout: 10 * time.Second})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	m, err := client.Fetch(ctx, *shareID)
	cancel()
	if err != nil {
		return err
	}

	newOutput, err := output.NewFactory(*outputType, nil)
	if err != nil {
		return err
	}
	out, err := newOutput()
	if err != nil {
		return err
	}

	p := m.Playlist()
	engine := playback.NewEngine(p, out, playback.Config{
		Cap:          time.Duration(*capSeconds) * time.Second,
		PollInterval: 250 * time.Millisecond,
	})
	defer engine.Close()

	fmt.Printf("%s (%d tracks, %d playable)\n\n", m.AlbumTitle, p.Len(), p.PlayableCount())
	printTracks(engine)
	fmt.Println()
	fmt.Println(help)

	unsubscribe := engine.Subscribe(newStatusLine(p.Len()).print)
	defer unsubscribe()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-sigCh:
			fmt.Println()
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if !dispatch(engine, strings.Fields(line)) {
				return nil
			}
		}
	}
}

// dispatch runs one command line. It returns false when the player should quit.
func dispatch(e *playback.Engine, args []string) bool {
	if len(args) == 0 {
		return true
	}

	switch args[0] {
	case "q", "quit":
		return false
	case "p":
		if e.Snapshot().Status.Active() {
			e.Pause()
		} else {
			e.Play()
		}
	case "n":
		e.Next()
	case "b":
		e.Prev()
	case "l":
		printTracks(e)
	case "s":
		if len(args) < 2 {
			fmt.Println("usage: s <seconds>")
			return true
		}
		sec, err := strconv.ParseFloat(args[1], 64)
		if err != nil || sec < 0 {
			fmt.Printf("invalid position: %s\n", args[1])
			return true
		}
		e.Seek(time.Duration(sec * float64(time.Second)))
	case "h", "?":
		fmt.Println(help)
	default:
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Printf("unknown command: %s\n", args[0])
			return true
		}
		e.SelectTrack(n - 1)
	}
	return true
}

func printTracks(e *playback.Engine) {
	active := e.Snapshot().ActiveIndex
	for i, t := range e.Playlist().Tracks() {
		marker := "  "
		if i == active {
			marker = "> "
		}
		note := ""
		if !t.Playable() {
			note = " (unavailable)"
		}
		fmt.Printf("%s%2d. %s%s\n", marker, i+1, t.DisplayTitle(i), note)
	}
}

// statusLine prints a line per status or track change and skips plain
// position updates.
type statusLine struct {
	mu    sync.Mutex
	total int
	last  playback.Snapshot
	shown bool
}

func newStatusLine(total int) *statusLine {
	return &statusLine{total: total}
}

func (l *statusLine) print(s playback.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.shown && s.Seq <= l.last.Seq {
		return
	}
	changed := !l.shown ||
		s.Status != l.last.Status ||
		s.ActiveIndex != l.last.ActiveIndex ||
		s.Notice != l.last.Notice
	l.last, l.shown = s, true
	if !changed {
		return
	}

	line := fmt.Sprintf("[%d/%d] %s %s", s.ActiveIndex+1, l.total, s.Status, s.Position.Truncate(time.Second))
	if s.PreviewEnded {
		line += " (preview limit)"
	}
	if err := s.Notice.Err(); err != nil {
		line += " error: " + err.Error()
		zlog.Warn().Err(err).Msgf("preview: notice: index=%d", s.ActiveIndex)
	}
	fmt.Println(line)
}
