// Package config loads and hot-reloads the bot's tunables: the
// JSON-backed Settings document (mirrors the teacher's JSON-config
// loading idiom) and the login credentials document, plus an
// fsnotify-based watcher grounded on drivesync.Watcher's debounce shape.
package config

import (
	"encoding/json"
	"os"

	"github.com/flexer23/TRTwitchPlaysBot/internal/model"
)

// Settings is the bot's full set of tunables, spanning spec.md §5-§7's
// timing knobs and C3-C6's grammar defaults.
type Settings struct {
	MessageCooldown    Millis `json:"message_cooldown_ms"`
	MainThreadSleepMin Millis `json:"main_thread_sleep_min_ms"`
	MainThreadSleepMax Millis `json:"main_thread_sleep_max_ms"`

	BotMessageCharLimit int    `json:"bot_message_char_limit"`
	ConnectMessage      string `json:"connect_message"`

	AutoWhitelistEnabled    bool   `json:"auto_whitelist_enabled"`
	AutoWhitelistInputCount int64  `json:"auto_whitelist_input_count"`
	AutoWhitelistMsg        string `json:"auto_whitelist_msg"`

	UseChatBot    bool  `json:"use_chat_bot"`
	CreditsTime   Millis `json:"credits_time_ms"`
	CreditsAmount int    `json:"credits_amount"`

	DefaultDurationType model.DurationUnit `json:"default_duration_type"`
	FrameLengthMs       int                `json:"frame_length_ms"`

	CommandSigil string `json:"command_sigil"`
	MacroSigil   string `json:"macro_sigil"`
	MaxMacroDepth int   `json:"max_macro_depth"`

	MaxSimultaneousDurationMs int `json:"max_simultaneous_duration_ms"`
	MaxInputDurationMs        int `json:"max_input_duration_ms"`

	ControllerCount int `json:"controller_count"`
}

// Millis is a plain millisecond count kept as an int in JSON rather than
// a time.Duration string, matching the teacher's config documents (which
// never serialize time.Duration directly).
type Millis int64

// Defaults returns the settings a fresh install starts with.
func Defaults() Settings {
	return Settings{
		MessageCooldown:           Millis(1200),
		MainThreadSleepMin:        Millis(16),
		MainThreadSleepMax:        Millis(1000),
		BotMessageCharLimit:       500,
		ConnectMessage:            "TRTwitchPlaysBot connected.",
		AutoWhitelistEnabled:      true,
		AutoWhitelistInputCount:   100,
		AutoWhitelistMsg:          "%s has been auto-whitelisted!",
		UseChatBot:                false,
		CreditsTime:               Millis(0),
		CreditsAmount:             0,
		DefaultDurationType:       model.UnitMilliseconds,
		FrameLengthMs:             16,
		CommandSigil:              "!",
		MacroSigil:                "#",
		MaxMacroDepth:             10,
		MaxSimultaneousDurationMs: 60000,
		MaxInputDurationMs:        60000,
		ControllerCount:           4,
	}
}

// LoginInfo is the credential document the teacher keeps separate from
// Settings so it can be gitignored independently.
type LoginInfo struct {
	BotName     string `json:"bot_name"`
	Password    string `json:"password"`
	ChannelName string `json:"channel_name"`
}

// applyEnvOverrides applies the "secret lives in an env var" pattern from
// internal/auth's INTERNAL_API_TOKEN: a non-empty env var always wins
// over whatever the login document on disk says.
func (l *LoginInfo) applyEnvOverrides() {
	if v := os.Getenv("TRTWITCHPLAYSBOT_BOT_NAME"); v != "" {
		l.BotName = v
	}
	if v := os.Getenv("TRTWITCHPLAYSBOT_PASSWORD"); v != "" {
		l.Password = v
	}
	if v := os.Getenv("TRTWITCHPLAYSBOT_CHANNEL"); v != "" {
		l.ChannelName = v
	}
}

// LoadLoginFile reads a login document from disk and applies env
// overrides on top of it.
func LoadLoginFile(path string) (*LoginInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var l LoginInfo
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	l.applyEnvOverrides()
	return &l, nil
}
