// Package main provides the preview service CLI.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/previewbox/internal/api/connect"
)

var (
	app    = kingpin.New("previewctl", "previewbox preview service client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "API token").Envar("PREVIEWBOX_API_TOKEN").String()

	// open command
	openCmd     = app.Command("open", "Open a preview session")
	openShareID = openCmd.Arg("share-id", "Published album share ID").Required().String()

	// select command
	selectCmd     = app.Command("select", "Select and play a track")
	selectSession = selectCmd.Arg("session-id", "Session ID").Required().String()
	selectIndex   = selectCmd.Arg("index", "Track index (0-based)").Required().Int()

	// seek command
	seekCmd     = app.Command("seek", "Seek the active track")
	seekSession = seekCmd.Arg("session-id", "Session ID").Required().String()
	seekSeconds = seekCmd.Arg("seconds", "Position in seconds").Required().Float64()

	playCmd     = app.Command("play", "Play or resume")
	playSession = playCmd.Arg("session-id", "Session ID").Required().String()

	pauseCmd     = app.Command("pause", "Pause playback")
	pauseSession = pauseCmd.Arg("session-id", "Session ID").Required().String()

	nextCmd     = app.Command("next", "Switch to the next track")
	nextSession = nextCmd.Arg("session-id", "Session ID").Required().String()

	prevCmd     = app.Command("prev", "Switch to the previous track")
	prevSession = prevCmd.Arg("session-id", "Session ID").Required().String()

	snapshotCmd     = app.Command("snapshot", "Show the session state")
	snapshotSession = snapshotCmd.Arg("session-id", "Session ID").Required().String()

	closeCmd     = app.Command("close", "Close a session")
	closeSession = closeCmd.Arg("session-id", "Session ID").Required().String()

	// watch command
	watchCmd     = app.Command("watch", "Stream session notifications")
	watchSession = watchCmd.Arg("session-id", "Session ID").Required().String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewClient(http.DefaultClient, *server, *token)
	ctx := context.Background()

	switch command {
	case openCmd.FullCommand():
		open(ctx, client, *openShareID)
	case selectCmd.FullCommand():
		printSnapshot(client.SelectTrack(ctx, *selectSession, *selectIndex))
	case seekCmd.FullCommand():
		printSnapshot(client.Seek(ctx, *seekSession, *seekSeconds))
	case playCmd.FullCommand():
		printSnapshot(client.Play(ctx, *playSession))
	case pauseCmd.FullCommand():
		printSnapshot(client.Pause(ctx, *pauseSession))
	case nextCmd.FullCommand():
		printSnapshot(client.Next(ctx, *nextSession))
	case prevCmd.FullCommand():
		printSnapshot(client.Prev(ctx, *prevSession))
	case snapshotCmd.FullCommand():
		printSnapshot(client.GetSnapshot(ctx, *snapshotSession))
	case closeCmd.FullCommand():
		if err := client.CloseSession(ctx, *closeSession); err != nil {
			fail(err)
		}
		fmt.Println("Session closed")
	case watchCmd.FullCommand():
		watch(ctx, client, *watchSession)
	}
}

func fail(err error) {
	fmt.Printf("Error: %v\n", err)
	os.Exit(1)
}

func open(ctx context.Context, client *apiconnect.Client, shareID string) {
	res, err := client.OpenSession(ctx, shareID)
	if err != nil {
		fail(err)
	}

	fmt.Printf("Session ID: %s\n", res.SessionID)
	if res.LoadError != "" {
		fmt.Printf("Album could not be loaded: %s\n", res.LoadError)
		return
	}
	fmt.Printf("Album: %s\n", res.AlbumTitle)
	if res.CoverURL != "" {
		fmt.Printf("Cover: %s\n", res.CoverURL)
	}
	fmt.Println("\nTracks:")
	for _, t := range res.Tracks {
		mark := " "
		if !t.Playable {
			mark = "x"
		}
		length := "--:--"
		if t.DurationSec > 0 {
			length = formatSeconds(t.DurationSec)
		}
		fmt.Printf("  [%s] %2d. %-40s %s\n", mark, t.Index, t.Title, length)
	}
}

func watch(ctx context.Context, client *apiconnect.Client, sessionID string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nStopping...")
		cancel()
	}()

	fmt.Println("Watching session. Press Ctrl+C to exit.")
	err := client.WatchSession(ctx, sessionID, func(n *apiconnect.Notification) bool {
		fmt.Printf("[Sequence: %d] ", n.SequenceNo)
		printState(n.Snapshot)
		return true
	})
	if err != nil && ctx.Err() == nil {
		fmt.Printf("Stream error: %v\n", err)
		os.Exit(1)
	}
}

func printSnapshot(s *apiconnect.Snapshot, err error) {
	if err != nil {
		fail(err)
	}
	printState(s)
}

func printState(s *apiconnect.Snapshot) {
	if s == nil {
		fmt.Println("(no state)")
		return
	}
	window := s.CapSec
	if s.DurationSec > 0 && s.DurationSec < window {
		window = s.DurationSec
	}
	fmt.Printf("%s track=%d %s/%s", formatStatus(s.Status), s.ActiveIndex,
		formatSeconds(s.PositionSec), formatSeconds(window))
	if s.PlayIntent {
		fmt.Print(" autoplay")
	}
	if s.PreviewEnded {
		fmt.Print(" preview-ended")
	}
	if s.Notice != "" {
		fmt.Printf(" notice=%s", s.Notice)
		if s.NoticeMessage != "" {
			fmt.Printf(" (%s)", s.NoticeMessage)
		}
	}
	fmt.Println()
}

func formatStatus(status string) string {
	switch status {
	case "playing":
		return "▶️  Playing"
	case "loading":
		return "⏳ Loading"
	case "paused":
		return "⏸  Paused"
	case "capped":
		return "⏹  Preview limit"
	case "ended":
		return "🔚 Ended"
	case "idle":
		return "💤 Idle"
	default:
		return "❓ " + status
	}
}

func formatSeconds(sec float64) string {
	if sec < 0 {
		return "--:--"
	}
	total := int(sec)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
