package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"schedgen/internal/capture"
	"schedgen/internal/config"
	appLog "schedgen/internal/log"
	"schedgen/internal/model"
	"schedgen/internal/projector"
	"schedgen/internal/session"
	"schedgen/internal/solver"
	"schedgen/internal/timeline"
	"schedgen/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	query      string
	busy       string
	snapshot   string
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	defer appLog.Sync()

	appLog.Info("schedgen starting", "version", "0.1.0")
	appLog.Info("effective config",
		"listen", conf.Listen,
		"service_url", conf.ServiceURL,
		"timezone", conf.Timezone,
		"reference_monday", conf.ReferenceMonday,
		"request_timeout", conf.RequestTimeout(),
		"query", flags.query,
		"snapshot", flags.snapshot,
	)

	mapper, err := newMapper(conf)
	if err != nil {
		appLog.Error("invalid reference week", err)
		os.Exit(1)
	}
	client := solver.NewClient(conf.ServiceURL, conf.RequestTimeout())

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case flags.snapshot != "":
		err = runSnapshot(ctx, conf, mapper, client, flags)
	case flags.query != "":
		err = runOnce(ctx, os.Stdout, conf, mapper, client, flags)
	default:
		err = web.StartServer(ctx, conf, mapper, client)
	}
	if err != nil {
		appLog.Error("schedgen failed", err)
		os.Exit(1)
	}
	appLog.Info("schedgen exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/schedgen/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.query, "query", "", "Submit these courses once, print every schedule and exit")
	flag.StringVar(&cfg.busy, "busy", "", `Busy intervals for -query as minute offsets, e.g. "540,600;-120,-60"`)
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Render the first schedule for -query to this PNG path and exit")

	flag.Parse()

	return cfg
}

func newMapper(conf *config.Config) (*timeline.Mapper, error) {
	loc, err := conf.Location()
	if err != nil {
		return nil, err
	}
	origin, err := conf.ReferenceOrigin()
	if err != nil {
		return nil, err
	}
	return timeline.NewMapper(origin, loc)
}

// parseBusy reads "s,e;s,e" minute offsets. Empty input yields no intervals.
func parseBusy(s string) ([]model.Interval, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []model.Interval
	for _, part := range strings.Split(s, ";") {
		bounds := strings.Split(strings.TrimSpace(part), ",")
		if len(bounds) != 2 {
			return nil, fmt.Errorf("busy interval %q: want start,end", part)
		}
		start, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
		if err != nil {
			return nil, fmt.Errorf("busy interval %q: %w", part, err)
		}
		end, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
		if err != nil {
			return nil, fmt.Errorf("busy interval %q: %w", part, err)
		}
		out = append(out, model.Interval{Start: start, End: end})
	}
	return out, nil
}

// runOnce submits flags.query once and writes every returned schedule to w.
func runOnce(ctx context.Context, w io.Writer, conf *config.Config, mapper *timeline.Mapper, gen session.Generator, flags flagConfig) error {
	busy, err := parseBusy(flags.busy)
	if err != nil {
		return err
	}

	sess := session.New(mapper, projector.NewColorCache(conf.Palette, nil), gen)
	for _, iv := range busy {
		if err := sess.AddInterval(iv); err != nil {
			return fmt.Errorf("busy interval %d,%d: %w", iv.Start, iv.End, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, conf.RequestTimeout())
	defer cancel()

	if err := sess.Submit(ctx, flags.query); err != nil {
		if msg := sess.View().Error; msg != "" {
			return errors.New(msg)
		}
		return err
	}

	printSchedules(w, sess)
	return nil
}

func printSchedules(w io.Writer, sess *session.Session) {
	v := sess.View()
	if v.Count == 0 {
		fmt.Fprintln(w, "No schedules found.")
		return
	}
	for {
		fmt.Fprintf(w, "Schedule %d of %d\n", v.Index+1, v.Count)
		for _, ev := range v.Events {
			if ev.Kind != model.EventKindClass {
				continue
			}
			fmt.Fprintf(w, "  %-9s %s-%s  %s\n",
				ev.Start.Weekday(), ev.Start.Format("15:04"), ev.End.Format("15:04"),
				strings.TrimSpace(ev.Title))
		}
		if !sess.Next() {
			return
		}
		v = sess.View()
	}
}

// runSnapshot serves the page in the background and captures the first
// schedule for flags.query.
func runSnapshot(ctx context.Context, conf *config.Config, mapper *timeline.Mapper, gen session.Generator, flags flagConfig) error {
	if flags.query == "" {
		return errors.New("-snapshot requires -query")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- web.StartServer(ctx, conf, mapper, gen) }()

	base := &url.URL{Scheme: "http", Host: conf.Listen, Path: "/"}
	if err := waitHealthy(ctx, base.JoinPath("health").String(), 10*time.Second); err != nil {
		return err
	}
	if conf.BasicAuth != nil && conf.BasicAuth.Username != "" {
		base.User = url.UserPassword(conf.BasicAuth.Username, conf.BasicAuth.Password)
	}

	err := capture.CaptureSchedulePNG(ctx, capture.CaptureOptions{
		URL:        base.String(),
		Query:      flags.query,
		OutputPath: flags.snapshot,
		Timeout:    conf.RequestTimeout() + 30*time.Second,
	})
	cancel()
	if serveErr := <-errCh; serveErr != nil && err == nil {
		err = serveErr
	}
	return err
}

func waitHealthy(ctx context.Context, healthURL string, limit time.Duration) error {
	deadline := time.Now().Add(limit)
	for {
		resp, err := http.Get(healthURL)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("server at %s not healthy after %s", healthURL, limit)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
