// gaze-watch tails the live gaze stream of a running gazetrack dashboard
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-gaze/internal/httpc"
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/web"
)

func main() {
	addr := flag.String("addr", "localhost:8090", "Dashboard address of the running tracker")
	onlyEvents := flag.Bool("events", false, "Only print fixation and blink frames")
	level := flag.String("log", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*level)

	if st, err := fetchStatus(*addr); err != nil {
		log.Warn("status unavailable", "error", err)
	} else {
		log.Info("connected to tracker",
			"session", st.Stats.SessionID,
			"frames", st.Stats.FrameCount,
			"fixations", st.Stats.Fixations,
			"blinks", st.Stats.Blinks,
			"viewers", st.Clients.Gaze)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := watch(ctx, *addr, *onlyEvents); err != nil {
		log.Error("watch failed", "error", err)
		os.Exit(1)
	}
}

func fetchStatus(addr string) (*web.Status, error) {
	u := url.URL{Scheme: "http", Host: addr, Path: "/api/status"}
	resp, err := httpc.Get(u.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var st web.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decoding status failed: %w", err)
	}
	return &st, nil
}

func watch(ctx context.Context, addr string, onlyEvents bool) error {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws/gaze"}

	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w (status: %d)", u.String(), err, resp.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", u.String(), err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		var ev web.FrameEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if onlyEvents && !ev.Fixation && !ev.Blink {
			continue
		}
		fmt.Println(formatEvent(ev))
	}
}

// formatEvent renders one frame event as a single line
func formatEvent(ev web.FrameEvent) string {
	pos := "      -"
	if ev.Gaze != nil {
		pos = fmt.Sprintf("(%d,%d)", ev.Gaze.X, ev.Gaze.Y)
	}

	line := fmt.Sprintf("#%-6d %s", ev.Seq, pos)
	if ev.Fixation {
		line += " fixation"
	}
	if ev.Blink {
		line += " blink"
	}
	return line
}
