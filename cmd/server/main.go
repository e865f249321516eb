package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/flexer23/TRTwitchPlaysBot/internal/adapter"
	"github.com/flexer23/TRTwitchPlaysBot/internal/chatloop"
	"github.com/flexer23/TRTwitchPlaysBot/internal/config"
	"github.com/flexer23/TRTwitchPlaysBot/internal/controllermgr"
	"github.com/flexer23/TRTwitchPlaysBot/internal/exec"
	"github.com/flexer23/TRTwitchPlaysBot/internal/macro"
	"github.com/flexer23/TRTwitchPlaysBot/internal/model"
	"github.com/flexer23/TRTwitchPlaysBot/internal/monitor"
	"github.com/flexer23/TRTwitchPlaysBot/internal/parse"
	"github.com/flexer23/TRTwitchPlaysBot/internal/store"
	"github.com/flexer23/TRTwitchPlaysBot/internal/transport"
	"github.com/flexer23/TRTwitchPlaysBot/internal/vgamepad"
)

// defaultVocabulary is the stock button/axis name set a gamepad backend
// exposes absent a platform-specific descriptor (spec.md §3's Input.Name
// is backend-defined; this is this binary's stock mapping).
var defaultVocabulary = []string{
	"a", "b", "x", "y",
	"up", "down", "left", "right",
	"start", "select",
	"l", "r", "l2", "r2", "l3", "r3",
	"lx", "ly", "rx", "ry",
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	banner := "TRTwitchPlaysBot starting"
	if isatty.IsTerminal(os.Stdout.Fd()) {
		banner = "\033[36m" + banner + "\033[0m"
	}
	log.Println(banner)

	dbPath := os.Getenv("TRTWITCHPLAYSBOT_DB_PATH")
	if dbPath == "" {
		dbPath = "bot.db"
	}
	sqlite, err := store.OpenSqlite(dbPath)
	if err != nil {
		log.Fatalf("open store %s: %v", dbPath, err)
	}
	defer sqlite.Close()

	settings, err := config.Load(sqlite)
	if err != nil {
		log.Fatalf("load settings: %v", err)
	}

	login := loadLogin()

	macroStore := newMacroStore(sqlite)
	expander := macro.NewExpander(macroStore, settings.MaxMacroDepth, 1024)

	if w := startMacrosWatcher(macroStore); w != nil {
		defer w.Stop()
	}

	p := parse.New(parse.Config{
		Vocabulary:                parse.NewVocabulary(defaultVocabulary),
		Blacklist:                 map[string]model.AccessLevel{},
		DefaultDurationType:       settings.DefaultDurationType,
		DefaultDurationValue:      200,
		FrameMs:                   settings.FrameLengthMs,
		MaxInputDurationMs:        settings.MaxInputDurationMs,
		MaxSimultaneousDurationMs: settings.MaxSimultaneousDurationMs,
		ControllerCount:           settings.ControllerCount,
	})

	backend := newBackend()
	mgr := controllermgr.New(backend)
	acquired := mgr.Init(settings.ControllerCount)
	log.Printf("[controllermgr] acquired %s/%s controller(s)",
		humanize.Comma(int64(acquired)), humanize.Comma(int64(settings.ControllerCount)))

	executor := exec.New(mgr, func(userID, msg string) {
		log.Printf("[executor] %s: %s", userID, msg)
	}, exec.Config{FrameMs: settings.FrameLengthMs, MaxQueueDepth: 32})
	executor.Start()

	monitorHub := monitor.NewHub()
	go monitorHub.Run()

	client := transport.NewMockClient()
	loop := chatloop.New(chatloop.Config{
		TickInterval:     durationOf(settings.MainThreadSleepMin),
		MinSleepTime:     durationOf(settings.MainThreadSleepMin),
		MaxSleepTime:     durationOf(settings.MainThreadSleepMax),
		MessageCooldown:  durationOf(settings.MessageCooldown),
		MaxOutboundQueue: 64,
		BotMessageLimit:  settings.BotMessageCharLimit,
	}, client, func(channel, text string) {
		log.Printf("[chatloop] dropped message for %s, outbound queue full (%s chars): %q",
			channel, humanize.Comma(int64(len(text))), text)
	})

	memes, err := sqlite.LoadAllMemes()
	if err != nil {
		log.Printf("[store] load memes: %v", err)
		memes = map[string]string{}
	}

	a := adapter.New(adapter.Config{
		DefaultPort:             0,
		AutoWhitelistEnabled:    settings.AutoWhitelistEnabled,
		AutoWhitelistInputCount: settings.AutoWhitelistInputCount,
		AutoWhitelistMsg:        settings.AutoWhitelistMsg,
		PortNotAcquiredMsg:      "that controller port isn't available right now",
	}, sqlite, memes, expander, p, mgr, executor, loop).WithMonitor(monitorHub)

	if w := startSettingsWatcher(settings, loop, a); w != nil {
		defer w.Stop()
	}

	dispatcher := transport.NewDispatcher()
	dispatcher.OnMessageReceived(func(ev transport.MessageReceived) {
		a.HandleMessage(login.ChannelName, ev)
	})

	reconnectRoutine, _ := chatloop.NewReconnectRoutine(
		reconnectorFunc(func() error { return client.Connect() }),
		func() bool { return !client.Connected() },
		func(err error) {
			if err != nil {
				log.Printf("[chatloop] reconnect failed: %v", err)
			}
		},
	)
	loop.RegisterRoutine(reconnectRoutine)

	if err := client.Connect(); err != nil {
		log.Printf("[chatloop] initial connect failed, relying on backoff: %v", err)
	} else if settings.ConnectMessage != "" {
		loop.Enqueue(login.ChannelName, settings.ConnectMessage)
	}

	loop.Start()

	coordinator := chatloop.NewCoordinator(loop, executor, mgr, 5*time.Second)

	mux := http.NewServeMux()
	registerRoutes(mux, macroStore, coordinator, monitorHub)

	srv := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		log.Printf("listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	waitForShutdown(srv, coordinator)
}

func waitForShutdown(srv *http.Server, coordinator *chatloop.Coordinator) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Println("shutting down")
	coordinator.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}

// reconnectorFunc adapts a bare func() error to chatloop.Reconnector.
type reconnectorFunc func() error

func (f reconnectorFunc) Reconnect() error { return f() }

// durationOf converts a config.Millis to a time.Duration.
func durationOf(m config.Millis) time.Duration {
	return time.Duration(m) * time.Millisecond
}

func loadLogin() *config.LoginInfo {
	path := os.Getenv("TRTWITCHPLAYSBOT_LOGIN_FILE")
	if path == "" {
		path = "login.json"
	}
	login, err := config.LoadLoginFile(path)
	if err != nil {
		log.Printf("[config] no login file at %s, using environment-only credentials: %v", path, err)
		login = &config.LoginInfo{}
	}
	if login.ChannelName == "" {
		login.ChannelName = "#twitchplaysbot"
	}
	return login
}

func newMacroStore(sqlite *store.Sqlite) *macro.Store {
	persist := func(name string, m *model.Macro, deleted bool) {
		if deleted {
			if err := sqlite.DeleteMacro(name); err != nil {
				log.Printf("[macro] delete %s: %v", name, err)
			}
			return
		}
		if err := sqlite.SaveMacro(store.MacroRecord{Name: m.Name, Expansion: m.Expansion}); err != nil {
			log.Printf("[macro] save %s: %v", name, err)
		}
	}

	s := macro.NewStore(persist)
	records, err := sqlite.LoadAllMacros()
	if err != nil {
		log.Printf("[macro] load existing macros: %v", err)
		return s
	}
	for _, r := range records {
		s.Add(r.Name, r.Expansion)
	}
	log.Printf("[macro] loaded %s macro(s)", humanize.Comma(int64(len(records))))
	return s
}

// startSettingsWatcher materializes settings as a JSON file and watches
// it for hand edits, applying the live-reloadable tunables (message
// cooldown, auto-whitelist) to the already-running loop and adapter
// without a restart, per SPEC_FULL.md §B. Other settings are wired into
// components at construction time and are not applied by a reload. A
// change to controller count or frame length on disk is logged as
// needing a restart; changes to the other construction-time settings
// (sigils, duration caps, and so on) are not logged.
func startSettingsWatcher(initial config.Settings, loop *chatloop.Loop, a *adapter.Adapter) *config.Watcher {
	path := os.Getenv("TRTWITCHPLAYSBOT_SETTINGS_FILE")
	if path == "" {
		path = "settings.json"
	}
	if err := config.SaveFile(path, initial); err != nil {
		log.Printf("[config] could not write %s, hot reload disabled: %v", path, err)
		return nil
	}

	current := initial
	w, err := config.NewWatcher(path, func(s config.Settings) {
		loop.SetMessageCooldown(durationOf(s.MessageCooldown))
		a.UpdateAutoWhitelist(s.AutoWhitelistEnabled, s.AutoWhitelistInputCount, s.AutoWhitelistMsg)
		if s.ControllerCount != current.ControllerCount || s.FrameLengthMs != current.FrameLengthMs {
			log.Printf("[config] controller count / frame length changed on disk, restart to apply")
		}
		current = s
	})
	if err != nil {
		log.Printf("[config] could not watch %s, hot reload disabled: %v", path, err)
		return nil
	}
	w.Start()
	log.Printf("[config] hot-reload watching %s", path)
	return w
}

// startMacrosWatcher materializes store's current macros as a JSON file
// and watches it for hand edits, reloading store without a restart.
// Admin HTTP macro CRUD (POST/DELETE /macros) goes through store
// directly and does not round-trip this file.
func startMacrosWatcher(store *macro.Store) *macro.Watcher {
	path := os.Getenv("TRTWITCHPLAYSBOT_MACROS_FILE")
	if path == "" {
		path = "macros.json"
	}
	if err := macro.SaveSeedsFile(path, store); err != nil {
		log.Printf("[macro] could not write %s, hot reload disabled: %v", path, err)
		return nil
	}
	w, err := macro.NewWatcher(path, store)
	if err != nil {
		log.Printf("[macro] could not watch %s, hot reload disabled: %v", path, err)
		return nil
	}
	w.Start()
	log.Printf("[macro] hot-reload watching %s", path)
	return w
}

// newBackend builds the virtual-HID backend this binary drives.
// spec.md scopes the real OS-specific driver out as an external
// capability; TRTWITCHPLAYSBOT_MAX_CONTROLLERS lets an operator cap how
// many virtual pads the mock backend will pretend to have.
func newBackend() vgamepad.Backend {
	b := vgamepad.NewMockBackend()
	if v := os.Getenv("TRTWITCHPLAYSBOT_MAX_CONTROLLERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			b.MaxDevices = n
		}
	}
	return b
}
