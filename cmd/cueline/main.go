// Package main provides the CLI entrypoint for cueline.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/verte-zerg/cueline/internal/audio"
	"github.com/verte-zerg/cueline/internal/config"
	"github.com/verte-zerg/cueline/internal/model"
	"github.com/verte-zerg/cueline/internal/script"
	"github.com/verte-zerg/cueline/internal/segment"
	"github.com/verte-zerg/cueline/internal/session"
	"github.com/verte-zerg/cueline/internal/speech"
	"github.com/verte-zerg/cueline/internal/stats"
	"github.com/verte-zerg/cueline/internal/statsui"
	"github.com/verte-zerg/cueline/internal/store"
	"github.com/verte-zerg/cueline/internal/tui"
	"github.com/verte-zerg/cueline/internal/wordlist"
)

const (
	defaultUser      = "local"
	defaultMode      = "practice"
	defaultDirection = "show"
	defaultFailure   = "repeat-line"
	defaultAPIKeyEnv = "ELEVENLABS_API_KEY"
	defaultStatsTop  = 5
	dateLayout       = "2006-01-02"
)

var (
	rehearseAs            string
	rehearseUser          string
	rehearseMode          string
	rehearseDirections    string
	rehearseStrict        bool
	rehearseAutoAdvance   bool
	rehearseFailure       string
	rehearseMaxFailures   int
	rehearseCue           bool
	rehearsePlayUserLines bool
	rehearseRepeatFull    int
	rehearseSilenceMs     int
	rehearseRate          float64
	rehearseNarrator      string
	rehearseStartLine     int
	rehearseRecord        bool
	rehearseLexicon       string

	statsAs    string
	statsUser  string
	statsSince string
	statsTop   int

	resetUser string
	resetLine string
	resetAll  bool

	linesAs string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cueline SCENE",
		Short:         "Rehearse your lines against a speaking scene partner",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runRehearseCmd,
	}

	defaults := session.DefaultConfig()
	rootCmd.Flags().StringVar(&rehearseAs, "as", "", "character you play")
	rootCmd.Flags().StringVar(&rehearseUser, "user", defaultUser, "user id progress is stored under")
	rootCmd.Flags().StringVar(&rehearseMode, "mode", defaultMode, "learning mode: listen, practice or repeat")
	rootCmd.Flags().StringVar(&rehearseDirections, "directions", defaultDirection, "stage directions: speak, show or skip")
	rootCmd.Flags().BoolVar(&rehearseStrict, "strict", false, "require exact words instead of fuzzy matches")
	rootCmd.Flags().BoolVar(&rehearseAutoAdvance, "auto-advance", defaults.AutoAdvance, "move on after a correct line")
	rootCmd.Flags().StringVar(&rehearseFailure, "failure", defaultFailure, "after a miss: repeat-line, restart-line, restart-scene or wait")
	rootCmd.Flags().IntVar(&rehearseMaxFailures, "max-failures", defaults.MaxFailures, "misses in a row before the rehearsal stops")
	rootCmd.Flags().BoolVar(&rehearseCue, "cue", defaults.Cue, "play a tone when it is your turn")
	rootCmd.Flags().BoolVar(&rehearsePlayUserLines, "play-user-lines", false, "hear your own lines in listen mode")
	rootCmd.Flags().IntVar(&rehearseRepeatFull, "repeat-full", 0, "full-line repeats after building a line")
	rootCmd.Flags().IntVar(&rehearseSilenceMs, "silence-ms", 0, "pause in ms that ends an attempt (default 1200)")
	rootCmd.Flags().Float64Var(&rehearseRate, "rate", defaults.Rate, "partner speech rate (0.5-2)")
	rootCmd.Flags().StringVar(&rehearseNarrator, "narrator-voice", "", "voice for directions and unvoiced characters")
	rootCmd.Flags().IntVar(&rehearseStartLine, "start-line", 0, "line index to start from")
	rootCmd.Flags().BoolVar(&rehearseRecord, "record", false, "keep recordings of your attempts")
	rootCmd.Flags().StringVar(&rehearseLexicon, "lexicon", "", "file of extra names for the recognizer")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newResetCmd())
	rootCmd.AddCommand(newLinesCmd())

	return rootCmd
}

func runRehearseCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	r := fileCfg.Rehearsal
	applyStringConfig(cmd, "user", &rehearseUser, r.User)
	applyStringConfig(cmd, "mode", &rehearseMode, r.Mode)
	applyStringConfig(cmd, "directions", &rehearseDirections, r.Directions)
	applyBoolConfig(cmd, "strict", &rehearseStrict, r.Strict)
	applyBoolConfig(cmd, "auto-advance", &rehearseAutoAdvance, r.AutoAdvance)
	applyStringConfig(cmd, "failure", &rehearseFailure, r.Failure)
	applyIntConfig(cmd, "max-failures", &rehearseMaxFailures, r.MaxFailures)
	applyBoolConfig(cmd, "cue", &rehearseCue, r.Cue)
	applyBoolConfig(cmd, "play-user-lines", &rehearsePlayUserLines, r.PlayUserLines)
	applyIntConfig(cmd, "repeat-full", &rehearseRepeatFull, r.RepeatFull)
	applyIntConfig(cmd, "silence-ms", &rehearseSilenceMs, r.SilenceMs)
	applyFloatConfig(cmd, "rate", &rehearseRate, r.Rate)
	applyStringConfig(cmd, "narrator-voice", &rehearseNarrator, r.NarratorVoice)
	applyBoolConfig(cmd, "record", &rehearseRecord, r.Record)
	applyStringConfig(cmd, "lexicon", &rehearseLexicon, r.Lexicon)

	cfg, err := buildSessionConfig()
	if err != nil {
		return err
	}

	scene, err := loadScene(args[0], rehearseAs)
	if err != nil {
		return err
	}
	if rehearseLexicon != "" {
		extra, err := wordlist.LoadWords(rehearseLexicon)
		if err != nil {
			return fmt.Errorf("failed to load lexicon: %w", err)
		}
		scene.BiasTokens = wordlist.Merge(scene.BiasTokens, extra, wordlist.MaxTerms)
	}
	if cfg.StartLine >= len(scene.Lines) {
		return fmt.Errorf("--start-line must be < %d", len(scene.Lines))
	}

	apiKey, err := resolveAPIKey(fileCfg.Speech)
	if err != nil {
		return err
	}

	logger, closeLog, err := openLogger(fileCfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, fileCfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	sp := fileCfg.Speech
	tts := speech.NewTTS(speech.TTSConfig{
		APIKey:  apiKey,
		BaseURL: deref(sp.BaseURL),
		ModelID: deref(sp.TTSModel),
		Timeout: time.Duration(derefInt(sp.TimeoutSec)) * time.Second,
	})
	cache := speech.NewCache(tts, config.DefaultTTSCacheDir(), tts.Model(), logger)
	rec := speech.NewRealtime(speech.RealtimeConfig{
		APIKey:    apiKey,
		WSBaseURL: deref(sp.WSBaseURL),
		ModelID:   deref(sp.STTModel),
		Language:  deref(sp.Language),
	}, audio.NewCapture(fileCfg.Audio.Capture), logger)
	player := audio.NewPlayer(deref(fileCfg.Audio.Player), derefInt(fileCfg.Audio.Volume))

	var program *tea.Program
	achievements := stats.NewAchievements(st, logger)
	achievements.OnMilestone = func(days int) {
		program.Send(tui.MilestoneMsg(days))
	}
	opts := session.Options{
		Recognizer:   rec,
		Synthesizer:  cache,
		Player:       player,
		Store:        st,
		Achievements: achievements,
		Logger:       logger,
		OnUpdate: func(s session.Snapshot) {
			program.Send(tui.SnapshotMsg(s))
		},
	}
	if cfg.Record {
		opts.Recordings = store.NewRecordings(config.DefaultRecordingsDir())
	}

	engine := session.New(scene, cfg, opts)
	ui := tui.NewModel(engine)
	program = tea.NewProgram(ui, tea.WithAltScreen())

	logger.Info("rehearsal starting",
		"scene", scene.ID,
		"as", scene.UserCharacter,
		"mode", cfg.Mode.String(),
		"lines", len(scene.Lines),
		"key_terms", len(scene.BiasTokens),
	)

	var g errgroup.Group
	g.Go(func() error {
		err := engine.Run(ctx)
		program.Send(tui.DoneMsg{Err: err})
		return err
	})
	g.Go(func() error {
		reqs := speech.Requests(scene, cfg.NarratorVoice, cfg.Directions == model.DirectionsSpeak)
		if err := cache.Prefetch(ctx, reqs, derefInt(sp.Prefetch)); err != nil && ctx.Err() == nil {
			logger.Warn("prefetch incomplete", "err", err)
		}
		return nil
	})

	_, runErr := program.Run()
	engine.Quit()
	cancel()
	engineErr := g.Wait()
	if runErr != nil {
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}
	if err := ui.Err(); err != nil {
		return err
	}
	return engineErr
}

// buildSessionConfig turns the resolved flag values into engine settings.
func buildSessionConfig() (session.Config, error) {
	cfg := session.DefaultConfig()
	mode, ok := model.ParseLearningMode(rehearseMode)
	if !ok {
		return cfg, fmt.Errorf("--mode must be listen, practice or repeat")
	}
	directions, ok := model.ParseDirectionsMode(rehearseDirections)
	if !ok {
		return cfg, fmt.Errorf("--directions must be speak, show or skip")
	}
	failure, ok := model.ParseFailurePolicy(rehearseFailure)
	if !ok {
		return cfg, fmt.Errorf("--failure must be repeat-line, restart-line, restart-scene or wait")
	}
	cfg.UserID = strings.TrimSpace(rehearseUser)
	cfg.Mode = mode
	cfg.Directions = directions
	cfg.Strict = rehearseStrict
	cfg.AutoAdvance = rehearseAutoAdvance
	cfg.Failure = failure
	cfg.MaxFailures = rehearseMaxFailures
	cfg.Cue = rehearseCue
	cfg.PlayUserLines = rehearsePlayUserLines
	cfg.RepeatFullLine = rehearseRepeatFull
	cfg.Silence = cfg.Silence.WithShortSilence(time.Duration(rehearseSilenceMs) * time.Millisecond)
	cfg.Rate = rehearseRate
	cfg.NarratorVoice = strings.TrimSpace(rehearseNarrator)
	cfg.StartLine = rehearseStartLine
	cfg.Record = rehearseRecord
	if err := validateConfig(cfg, rehearseSilenceMs); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg session.Config, silenceMs int) error {
	if cfg.UserID == "" {
		return fmt.Errorf("--user must not be empty")
	}
	if cfg.MaxFailures <= 0 {
		return fmt.Errorf("--max-failures must be > 0")
	}
	if cfg.RepeatFullLine < 0 {
		return fmt.Errorf("--repeat-full must be >= 0")
	}
	if silenceMs < 0 {
		return fmt.Errorf("--silence-ms must be >= 0")
	}
	if cfg.Rate < 0.5 || cfg.Rate > 2 {
		return fmt.Errorf("--rate must be between 0.5 and 2")
	}
	if cfg.StartLine < 0 {
		return fmt.Errorf("--start-line must be >= 0")
	}
	return nil
}

func loadScene(path, as string) (model.Scene, error) {
	file, err := script.Load(path)
	if err != nil {
		return model.Scene{}, fmt.Errorf("failed to load scene: %w", err)
	}
	if strings.TrimSpace(as) == "" {
		return model.Scene{}, fmt.Errorf("--as is required (characters: %s)", strings.Join(file.Speakers(), ", "))
	}
	return file.Scene(as)
}

func resolveAPIKey(cfg config.SpeechConfig) (string, error) {
	name := defaultAPIKeyEnv
	if cfg.APIKeyEnv != nil && strings.TrimSpace(*cfg.APIKeyEnv) != "" {
		name = strings.TrimSpace(*cfg.APIKeyEnv)
	}
	key := strings.TrimSpace(os.Getenv(name))
	if key == "" {
		return "", fmt.Errorf("speech API key missing: set %s", name)
	}
	return key, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Backend, error) {
	path := deref(cfg.Path)
	if path == "" {
		path = config.DefaultDBPath()
	}
	st, err := store.OpenBackend(ctx, deref(cfg.DatabaseURL), path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(config.Template), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats SCENE",
		Short: "Show rehearsal stats for a scene",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsAs, "as", "", "character you play")
	cmd.Flags().StringVar(&statsUser, "user", defaultUser, "user id")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsTop, "top", defaultStatsTop, "number of weak lines to list")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "user", &statsUser, fileCfg.Rehearsal.User)
	if statsTop < 0 {
		return fmt.Errorf("--top must be >= 0")
	}

	var since *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation(dateLayout, statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		since = &parsed
	}

	scene, err := loadScene(args[0], statsAs)
	if err != nil {
		return err
	}
	cfg := model.StatsConfig{
		UserID:   statsUser,
		ScriptID: scene.ID,
		Since:    since,
		Top:      statsTop,
	}

	ctx := context.Background()
	st, err := openStore(ctx, fileCfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return printStats(ctx, cmd, st, scene, cfg)
	}
	program := tea.NewProgram(statsui.NewModel(st, scene, cfg), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

// printStats writes the report as plain text for pipes and scripts.
func printStats(ctx context.Context, cmd *cobra.Command, st store.Backend, scene model.Scene, cfg model.StatsConfig) error {
	report, err := stats.BuildReport(ctx, st, scene, cfg, time.Now())
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	out := cmd.OutOrStdout()
	if err := stats.RenderSummary(out, report); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if top := stats.TopLinesByAttempts(report.Lines, statsTop); len(top) > 0 {
		if _, err := fmt.Fprintf(out, "Most rehearsed: %s\n", strings.Join(top, ", ")); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if _, err := fmt.Fprintln(out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderLineTable(out, report.Lines); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset SCENE",
		Short: "Forget saved line building progress",
		Args:  cobra.ExactArgs(1),
		RunE:  runResetCmd,
	}
	cmd.Flags().StringVar(&resetUser, "user", defaultUser, "user id")
	cmd.Flags().StringVar(&resetLine, "line", "", "line id to reset")
	cmd.Flags().BoolVar(&resetAll, "all", false, "reset every line of the scene")
	return cmd
}

func runResetCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "user", &resetUser, fileCfg.Rehearsal.User)
	if (resetLine == "") == !resetAll {
		return fmt.Errorf("pass exactly one of --line or --all")
	}

	file, err := script.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load scene: %w", err)
	}
	speakers := file.Speakers()
	if len(speakers) == 0 {
		return fmt.Errorf("scene has no speaking characters")
	}
	// Line ids do not depend on the part played.
	scene, err := file.Scene(speakers[0])
	if err != nil {
		return err
	}
	ids, err := resetLineIDs(scene, resetLine, resetAll)
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := openStore(ctx, fileCfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	for _, id := range ids {
		if err := st.DeleteBuildProgress(ctx, resetUser, id); err != nil {
			return fmt.Errorf("failed to reset %s: %w", id, err)
		}
	}
	logErrf("Reset %d line(s)\n", len(ids))
	return nil
}

var errUnknownLine = errors.New("unknown line")

func resetLineIDs(scene model.Scene, line string, all bool) ([]string, error) {
	var ids []string
	for _, l := range scene.Lines {
		if l.IsDirection() {
			continue
		}
		if all || l.ID == line {
			ids = append(ids, l.ID)
		}
	}
	if !all && len(ids) == 0 {
		return nil, fmt.Errorf("%w %q", errUnknownLine, line)
	}
	return ids, nil
}

func newLinesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lines SCENE",
		Short: "List scene lines and how your lines are split for building",
		Args:  cobra.ExactArgs(1),
		RunE:  runLinesCmd,
	}
	cmd.Flags().StringVar(&linesAs, "as", "", "character you play")
	return cmd
}

func runLinesCmd(cmd *cobra.Command, args []string) error {
	scene, err := loadScene(args[0], linesAs)
	if err != nil {
		return err
	}
	return printLines(cmd, scene)
}

func printLines(cmd *cobra.Command, scene model.Scene) error {
	out := cmd.OutOrStdout()
	for i, l := range scene.Lines {
		marker := " "
		if l.IsUserLine {
			marker = "*"
		}
		who := l.CharacterName
		if who == "" {
			who = "(" + l.LineType.String() + ")"
		}
		if _, err := fmt.Fprintf(out, "%s %3d %-6s %-12s %s\n", marker, i, l.ID, who, stats.Truncate(l.Content, 60)); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		if !l.IsUserLine {
			continue
		}
		segs := segment.BuildSegments(l)
		if len(segs) < 2 {
			continue
		}
		for k, s := range segs {
			if _, err := fmt.Fprintf(out, "%28d. %s\n", k+1, s); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
