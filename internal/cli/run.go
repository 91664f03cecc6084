package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/SEARO1/Hand-Track/internal/app"
	"github.com/SEARO1/Hand-Track/internal/capture"
	"github.com/SEARO1/Hand-Track/internal/config"
	"github.com/SEARO1/Hand-Track/internal/detector"
	"github.com/SEARO1/Hand-Track/internal/gesture"
	"github.com/SEARO1/Hand-Track/internal/plugin"
	"github.com/SEARO1/Hand-Track/internal/render"
	"github.com/SEARO1/Hand-Track/internal/server"
	"github.com/SEARO1/Hand-Track/internal/store"
	"github.com/SEARO1/Hand-Track/internal/tracking"
	"github.com/SEARO1/Hand-Track/internal/tray"
)

var (
	replayPath  string
	recordPath  string
	noFPS       bool
	noLandmarks bool
)

var runCmd = &cobra.Command{
	Use:   "run [camera-index | video-file]",
	Short: "Recognize gestures from a camera or a video file",
	Long: `Run reads frames, detects hands and reports each stable gesture change.

Without an argument the configured camera is opened. A number selects a
camera index; anything else is treated as a video file.

Example:
  handtrack run
  handtrack run 1 --show
  handtrack run clip.mp4 --output annotated.mp4
  handtrack run --serve --journal --tray
  handtrack run clip.mp4 --replay clip.jsonl`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.String("output", "", "write an annotated video to this .mp4 path")
	f.Bool("show", false, "show a preview window ('q' quits, 's' saves a screenshot)")
	f.BoolVar(&noFPS, "no-fps", false, "hide the FPS counter")
	f.BoolVar(&noLandmarks, "no-landmarks", false, "hide the hand skeleton")
	f.Bool("serve", false, "serve the status page, API and MJPEG stream")
	f.String("addr", "", "HTTP listen address")
	f.Bool("journal", false, "record gesture changes to the SQLite journal")
	f.Bool("tray", false, "show a system tray menu")
	f.String("gesture-set", "", "gesture set: EIGHT, FOUR or THREE")
	f.Int("window", 0, "stability window size")
	f.Int("max-hands", 0, "maximum number of hands per frame")
	f.Float64("motion-threshold", 0, "skip detection when less than this percent of pixels changed")
	f.StringVar(&replayPath, "replay", "", "read landmarks from a recording instead of MediaPipe")
	f.StringVar(&recordPath, "record", "", "record detected landmarks to this file")

	bind := map[string]string{
		"output":           "output.video",
		"show":             "output.show",
		"serve":            "server.enabled",
		"addr":             "server.addr",
		"journal":          "journal.enabled",
		"tray":             "tray",
		"gesture-set":      "gesture_set",
		"window":           "window_size",
		"max-hands":        "max_hands",
		"motion-threshold": "motion_threshold",
	}
	for flag, key := range bind {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}
}

// sourceSpec is the parsed positional argument of run.
type sourceSpec struct {
	Camera bool
	Index  int
	Path   string
}

func (s sourceSpec) String() string {
	if s.Camera {
		return fmt.Sprintf("camera %d", s.Index)
	}
	return s.Path
}

func parseSource(arg string, defaultIndex int) sourceSpec {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return sourceSpec{Camera: true, Index: defaultIndex}
	}
	if n, err := strconv.Atoi(arg); err == nil && n >= 0 {
		return sourceSpec{Camera: true, Index: n}
	}
	return sourceSpec{Path: arg}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noFPS {
		cfg.Output.FPS = false
	}
	if noLandmarks {
		cfg.Output.Landmarks = false
	}

	var arg string
	if len(args) == 1 {
		arg = args[0]
	}
	target := parseSource(arg, cfg.Camera.Index)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := build(ctx, cfg, target)
	if err != nil {
		rt.closeAll()
		return err
	}
	return rt.run(ctx, stop)
}

// runner holds everything one run wires together.
type runner struct {
	cfg     config.Config
	app     *app.App
	store   *store.Store
	server  *server.Server
	tray    *tray.Tray
	video   *app.VideoSink
	closers []io.Closer
}

func (rt *runner) add(c io.Closer) {
	rt.closers = append(rt.closers, c)
}

// closeAll releases resources when build fails before the App owns them.
func (rt *runner) closeAll() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
}

func build(ctx context.Context, cfg config.Config, target sourceSpec) (*runner, error) {
	rt := &runner{cfg: cfg}

	if cfg.Journal.Enabled || cfg.Server.Enabled {
		st, err := store.New(cfg.Journal.DBPath)
		if err != nil {
			return rt, fmt.Errorf("open journal: %w", err)
		}
		rt.store = st
		rt.add(st)
	}

	src, err := openSource(cfg, target)
	if err != nil {
		return rt, err
	}
	rt.add(src)

	det, err := openDetector(cfg, rt)
	if err != nil {
		return rt, err
	}
	rt.add(det)

	classifier := gesture.NewClassifier(cfg.Set(), cfg.GestureThresholds())
	tracker := tracking.New(classifier, cfg.Tracking())

	overlay := render.DefaultOptions()
	overlay.FPS = cfg.Output.FPS
	overlay.Landmarks = cfg.Output.Landmarks
	if !cfg.Output.Show {
		overlay.Hint = ""
	}

	opts := []app.Option{
		app.WithOverlay(overlay),
		app.WithSinks(app.SinkFunc(logChange)),
	}

	if cfg.MotionThreshold > 0 {
		gate := capture.NewMotionGate(cfg.MotionThreshold, capture.DefaultMaxSkip)
		rt.add(app.CloseFunc(func() error { gate.Close(); return nil }))
		opts = append(opts, app.WithMotionGate(gate))
	}

	if cfg.Output.Video != "" {
		rt.video = app.NewVideoSink(cfg.Output.Video, cfg.Output.VideoFPS)
		rt.add(rt.video)
		opts = append(opts, app.WithFrameSinks(rt.video))
	}
	if cfg.Output.Show {
		preview := app.NewPreview("HandTrack", cfg.Output.ScreenshotDir)
		rt.add(preview)
		opts = append(opts, app.WithFrameSinks(preview))
	}

	if rt.store != nil && cfg.Journal.Enabled {
		journal, err := app.NewJournal(rt.store, target.String(), cfg.Set())
		if err != nil {
			return rt, fmt.Errorf("start journal session: %w", err)
		}
		async := app.NewAsyncSink("journal", journal, app.DefaultSinkBuffer)
		rt.add(async)
		opts = append(opts, app.WithSinks(async))
		slog.Info("journal session started", "session", journal.SessionID(), "db", rt.store.Path())
	}

	var plugins *plugin.Manager
	if rt.store != nil {
		plugins = plugin.NewManager(cfg.Plugins.Dir)
		if err := plugins.Discover(); err != nil {
			slog.Warn("plugin discovery failed", "dir", cfg.Plugins.Dir, "error", err)
		}
		invoker := plugin.NewInvoker(plugins, plugin.NewExecutor(cfg.Plugins.Timeout))
		dispatcher := app.NewActionDispatcher(ctx, rt.store.Bindings(), invoker, cfg.Plugins.ActionInterval)
		async := app.NewAsyncSink("actions", dispatcher, app.DefaultSinkBuffer)
		rt.add(async)
		opts = append(opts, app.WithSinks(async))
	}

	var hub *server.Hub
	var stream *server.Stream
	if cfg.Server.Enabled {
		hub = server.NewHub()
		stream = server.NewStream(float64(cfg.Server.StreamFPS))
		opts = append(opts, app.WithSinks(hub), app.WithFrameSinks(stream))
	}

	if cfg.Tray {
		rt.tray = tray.New(true)
		opts = append(opts, app.WithSinks(rt.tray))
	}

	pipeline := app.NewPipeline(src, det, tracker, opts...)
	rt.app = app.New(pipeline, rt.closers...)
	rt.closers = nil

	if rt.store != nil {
		enabled, err := rt.store.Settings().GetBool(server.SettingEnabled, true)
		if err != nil {
			slog.Warn("read detection setting", "error", err)
		}
		pipeline.SetEnabled(enabled)
	}

	if cfg.Server.Enabled {
		rt.server = server.New(server.Config{
			StaticDir:  cfg.Server.StaticDir,
			Store:      rt.store,
			Controller: rt.app,
			Plugins:    plugins,
			Hub:        hub,
			Stream:     stream,
		})
	}
	return rt, nil
}

func openSource(cfg config.Config, target sourceSpec) (capture.Source, error) {
	if !target.Camera {
		f, err := capture.OpenFile(target.Path)
		if err != nil {
			return nil, err
		}
		p := f.Props()
		slog.Info("video opened", "path", target.Path, "width", p.Width, "height", p.Height, "fps", p.FPS, "frames", p.FrameCount)
		return f, nil
	}

	camCfg := cfg.CameraConfig()
	camCfg.Index = target.Index
	cam, err := capture.OpenCamera(camCfg)
	if err != nil {
		return nil, err
	}
	p := cam.Props()
	slog.Info("camera opened", "device", cam.Candidate().String(), "width", p.Width, "height", p.Height, "fps", p.FPS)
	return cam, nil
}

func openDetector(cfg config.Config, rt *runner) (detector.Detector, error) {
	var det detector.Detector
	if replayPath != "" {
		f, err := os.Open(replayPath)
		if err != nil {
			return nil, fmt.Errorf("open replay: %w", err)
		}
		det = detector.NewReplayDetector(f)
	} else {
		mp, err := detector.NewMediaPipeDetector(cfg.DetectorConfig())
		if err != nil {
			return nil, err
		}
		det = mp
	}

	if recordPath != "" {
		f, err := os.Create(recordPath)
		if err != nil {
			det.Close()
			return nil, fmt.Errorf("create recording: %w", err)
		}
		rt.add(f)
		det = detector.NewRecorder(det, f)
	}
	return det, nil
}

// logChange reports every stable gesture change of every hand.
func logChange(res *app.FrameResult) {
	for _, h := range res.Hands {
		if !h.Changed {
			continue
		}
		slog.Info("gesture",
			"frame", res.Index,
			"slot", h.Slot,
			"gesture", h.Display,
			"confidence", fmt.Sprintf("%.2f", h.Confidence),
			"fingers", h.Fingers.String(),
		)
	}
}

func (rt *runner) run(ctx context.Context, stop context.CancelFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := rt.app.Start(ctx); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	if rt.server != nil {
		go func() {
			err := rt.server.ListenAndServe(ctx, rt.cfg.Server.Addr)
			if err != nil {
				slog.Error("http server stopped", "error", err)
				cancel()
			}
			serverErr <- err
		}()
	}

	go func() {
		<-rt.app.Done()
		cancel()
	}()

	if rt.tray != nil {
		rt.runTray(ctx, stop)
	} else {
		<-ctx.Done()
	}

	err := rt.app.Stop()
	if rt.server != nil {
		if sErr := <-serverErr; sErr != nil {
			err = errors.Join(err, sErr)
		}
	}

	attrs := []any{"frames", rt.app.Pipeline().Frames()}
	if rt.video != nil {
		attrs = append(attrs, "written", rt.video.Frames(), "output", rt.cfg.Output.Video)
	}
	slog.Info("finished", attrs...)
	return err
}

// runTray blocks on the tray loop, which must own the main thread.
func (rt *runner) runTray(ctx context.Context, stop context.CancelFunc) {
	t := rt.tray
	t.OnToggle(func(enabled bool) {
		rt.app.SetEnabled(enabled)
		if rt.store != nil {
			if err := rt.store.Settings().Set(server.SettingEnabled, strconv.FormatBool(enabled)); err != nil {
				slog.Warn("persist detection setting", "error", err)
			}
		}
	})
	t.OnOpen(func() {
		if rt.server == nil {
			slog.Warn("status page needs --serve")
			return
		}
		if err := tray.OpenBrowser(statusURL(rt.cfg.Server.Addr)); err != nil {
			slog.Warn("open status page", "error", err)
		}
	})
	t.OnQuit(stop)

	if !rt.app.IsEnabled() {
		t.SetEnabled(false)
	}

	go func() {
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()
}

func statusURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}
