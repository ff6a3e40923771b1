package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dozie/my-job-hunter/internal/model"
)

// Config is the root configuration for the job hunter pipeline. It is
// immutable once loaded; Load is also the explicit reload operation, and
// LoadedAt versions the value handed to the orchestrator and scorer.
type Config struct {
	PollingInterval time.Duration
	RetentionDays   int // records not re-observed within this window go stale
	DBPath          string
	Tiers           []TierConfig
	Providers       ProvidersConfig
	Filters         FilterConfig
	Scoring         ScoringConfig
	Notification    NotificationConfig
	LoadedAt        time.Time
}

// TierConfig is one ordered group of providers. Tiers run sequentially in
// file order; providers inside a tier run concurrently.
type TierConfig struct {
	Name      string   `yaml:"name"`
	Providers []string `yaml:"providers"`
}

// ProvidersConfig holds the per-source settings, one block per adapter.
type ProvidersConfig struct {
	Greenhouse GreenhouseConfig
	Lever      LeverConfig
	Adzuna     AdzunaConfig
	Coresignal CoresignalConfig
	Brightdata BrightdataConfig
	SerpAPI    SerpAPIConfig
}

// BoardConfig identifies one company board on a hosted ATS.
type BoardConfig struct {
	Company string `yaml:"company"`
	Token   string `yaml:"token"`
}

// GreenhouseConfig configures the Greenhouse public boards adapter.
type GreenhouseConfig struct {
	Enabled bool          `yaml:"enabled"`
	Boards  []BoardConfig `yaml:"boards"`
}

// LeverConfig configures the Lever public postings adapter.
type LeverConfig struct {
	Enabled bool          `yaml:"enabled"`
	Boards  []BoardConfig `yaml:"boards"`
}

// AdzunaConfig configures the paginated Adzuna search adapter.
type AdzunaConfig struct {
	Enabled        bool
	AppID          string
	AppKey         string
	Countries      []string // country codes, one search per code
	Query          string
	MaxPages       int
	ResultsPerPage int
	MinDelay       time.Duration // gap between requests, Adzuna allows ~2/min
}

// CoresignalConfig configures the two-step credit-metered search/collect adapter.
type CoresignalConfig struct {
	Enabled            bool
	APIKey             string
	Titles             []string // title filters sent to the search endpoint
	Countries          []string
	MaxCollect         int // hard cap on collect calls per run, credits are billed per collect
	CollectConcurrency int
}

// BrightdataBoard is one dataset sub-board to trigger and download.
type BrightdataBoard struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"` // discovery URL handed to the trigger endpoint
}

// BrightdataConfig configures the async trigger/poll/download adapter.
type BrightdataConfig struct {
	Enabled            bool
	APIToken           string
	DatasetID          string
	Boards             []BrightdataBoard
	TriggerConcurrency int
	PollTimeout        time.Duration // hard wall-clock cap per sub-board
}

// SerpAPIConfig configures the search-engine aggregator adapter.
type SerpAPIConfig struct {
	Enabled           bool
	APIKey            string
	Query             string
	Location          string
	MorningPages      int // crawl depth before the boundary hour
	EveningPages      int // crawl depth from the boundary hour on
	BoundaryHour      int // local hour splitting morning from evening
	MonthlyCallBudget int
	BudgetReserve     int // forces depth 1 once budget minus reserve is spent
	MinDelay          time.Duration
}

// FilterConfig holds the role and location filter keyword lists.
type FilterConfig struct {
	TitleKeywords        []string `yaml:"title_keywords"`
	TitleExcludeKeywords []string `yaml:"title_exclude_keywords"`
	Locations            []string `yaml:"locations"`         // always-pass tokens, e.g. the home metro
	RemoteIndicators     []string `yaml:"remote_indicators"` // "remote", "work from anywhere", ...
	OnsiteIndicators     []string `yaml:"onsite_indicators"` // "hybrid", "on-site", ...
	RemoteInference      []string `yaml:"remote_inference"`  // used by the normalizer, not the filter
}

// ScoreWeights are the five dimension weights of the scoring formula.
type ScoreWeights struct {
	Remote           float64 `yaml:"remote"`
	Seniority        float64 `yaml:"seniority"`
	EmployerLocation float64 `yaml:"employer_location"`
	InterviewStyle   float64 `yaml:"interview_style"`
	RoleType         float64 `yaml:"role_type"`
}

// Sum returns the total weight, the denominator of the score formula.
func (w ScoreWeights) Sum() float64 {
	return w.Remote + w.Seniority + w.EmployerLocation + w.InterviewStyle + w.RoleType
}

// ScoringConfig controls the extraction and summarization calls and the
// deterministic formula applied to their output.
type ScoringConfig struct {
	Enabled           bool
	BaseURL           string
	APIKey            string
	ExtractModel      string
	SummaryModel      string
	Timeout           time.Duration
	Concurrency       int     // in-flight extraction calls
	SummaryThreshold  float64 // scores at or above this get the expensive summary call
	Weights           ScoreWeights
	TargetSeniorities []string
	RoleTypeFactors   map[string]float64
	InterviewFactors  map[string]float64
	LocationFull      []string // geography keywords worth factor 1.0
	LocationHalf      []string // geography keywords worth factor 0.5
}

// NotificationConfig controls which notifier receives run summaries.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	PollingInterval string             `yaml:"polling_interval"`
	RetentionDays   int                `yaml:"retention_days"`
	DBPath          string             `yaml:"db_path"`
	Tiers           []TierConfig       `yaml:"tiers"`
	Providers       rawProviders       `yaml:"providers"`
	Filters         FilterConfig       `yaml:"filters"`
	Scoring         rawScoring         `yaml:"scoring"`
	Notification    NotificationConfig `yaml:"notification"`
}

type rawProviders struct {
	Greenhouse GreenhouseConfig `yaml:"greenhouse"`
	Lever      LeverConfig      `yaml:"lever"`
	Adzuna     rawAdzuna        `yaml:"adzuna"`
	Coresignal rawCoresignal    `yaml:"coresignal"`
	Brightdata rawBrightdata    `yaml:"brightdata"`
	SerpAPI    rawSerpAPI       `yaml:"serpapi"`
}

type rawAdzuna struct {
	Enabled        bool     `yaml:"enabled"`
	AppID          string   `yaml:"app_id"`
	AppKey         string   `yaml:"app_key"`
	Countries      []string `yaml:"countries"`
	Query          string   `yaml:"query"`
	MaxPages       int      `yaml:"max_pages"`
	ResultsPerPage int      `yaml:"results_per_page"`
	MinDelay       string   `yaml:"min_delay"`
}

type rawCoresignal struct {
	Enabled            bool     `yaml:"enabled"`
	APIKey             string   `yaml:"api_key"`
	Titles             []string `yaml:"titles"`
	Countries          []string `yaml:"countries"`
	MaxCollect         int      `yaml:"max_collect"`
	CollectConcurrency int      `yaml:"collect_concurrency"`
}

type rawBrightdata struct {
	Enabled            bool              `yaml:"enabled"`
	APIToken           string            `yaml:"api_token"`
	DatasetID          string            `yaml:"dataset_id"`
	Boards             []BrightdataBoard `yaml:"boards"`
	TriggerConcurrency int               `yaml:"trigger_concurrency"`
	PollTimeout        string            `yaml:"poll_timeout"`
}

type rawSerpAPI struct {
	Enabled           bool   `yaml:"enabled"`
	APIKey            string `yaml:"api_key"`
	Query             string `yaml:"query"`
	Location          string `yaml:"location"`
	MorningPages      int    `yaml:"morning_pages"`
	EveningPages      int    `yaml:"evening_pages"`
	BoundaryHour      int    `yaml:"boundary_hour"`
	MonthlyCallBudget int    `yaml:"monthly_call_budget"`
	BudgetReserve     int    `yaml:"budget_reserve"`
	MinDelay          string `yaml:"min_delay"`
}

type rawScoring struct {
	Enabled           bool               `yaml:"enabled"`
	BaseURL           string             `yaml:"base_url"`
	APIKey            string             `yaml:"api_key"`
	ExtractModel      string             `yaml:"extract_model"`
	SummaryModel      string             `yaml:"summary_model"`
	Timeout           string             `yaml:"timeout"`
	Concurrency       int                `yaml:"concurrency"`
	SummaryThreshold  *float64           `yaml:"summary_threshold"`
	Weights           *ScoreWeights      `yaml:"weights"`
	TargetSeniorities []string           `yaml:"target_seniorities"`
	RoleTypeFactors   map[string]float64 `yaml:"role_type_factors"`
	InterviewFactors  map[string]float64 `yaml:"interview_factors"`
	LocationFull      []string           `yaml:"location_full"`
	LocationHalf      []string           `yaml:"location_half"`
}

// Load reads and parses the YAML config file at path, applies defaults,
// validates it, and returns Config. Calling it again is how configuration
// is reloaded: callers pass the fresh value down, nothing mutates in place.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	interval := 6 * time.Hour // default
	if raw.PollingInterval != "" {
		interval, err = time.ParseDuration(raw.PollingInterval)
		if err != nil {
			return nil, fmt.Errorf("parse polling_interval %q: %w", raw.PollingInterval, err)
		}
	}

	retention := raw.RetentionDays
	if retention == 0 {
		retention = 30
	}

	dbPath := raw.DBPath
	if dbPath == "" {
		dbPath = "jobhunter.db"
	}

	adzuna, err := buildAdzuna(raw.Providers.Adzuna)
	if err != nil {
		return nil, err
	}
	brightdata, err := buildBrightdata(raw.Providers.Brightdata)
	if err != nil {
		return nil, err
	}
	serpapi, err := buildSerpAPI(raw.Providers.SerpAPI)
	if err != nil {
		return nil, err
	}
	scoring, err := buildScoring(raw.Scoring)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		PollingInterval: interval,
		RetentionDays:   retention,
		DBPath:          dbPath,
		Tiers:           raw.Tiers,
		Providers: ProvidersConfig{
			Greenhouse: raw.Providers.Greenhouse,
			Lever:      raw.Providers.Lever,
			Adzuna:     adzuna,
			Coresignal: buildCoresignal(raw.Providers.Coresignal),
			Brightdata: brightdata,
			SerpAPI:    serpapi,
		},
		Filters:      raw.Filters,
		Scoring:      scoring,
		Notification: raw.Notification,
		LoadedAt:     time.Now(),
	}

	if len(cfg.Tiers) == 0 {
		cfg.Tiers = defaultTiers()
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func buildAdzuna(raw rawAdzuna) (AdzunaConfig, error) {
	minDelay := 31 * time.Second // stays under the 2-requests-per-minute ceiling
	if raw.MinDelay != "" {
		d, err := time.ParseDuration(raw.MinDelay)
		if err != nil {
			return AdzunaConfig{}, fmt.Errorf("parse providers.adzuna.min_delay %q: %w", raw.MinDelay, err)
		}
		minDelay = d
	}
	maxPages := raw.MaxPages
	if maxPages == 0 {
		maxPages = 5
	}
	perPage := raw.ResultsPerPage
	if perPage == 0 {
		perPage = 50
	}
	return AdzunaConfig{
		Enabled:        raw.Enabled,
		AppID:          raw.AppID,
		AppKey:         raw.AppKey,
		Countries:      raw.Countries,
		Query:          raw.Query,
		MaxPages:       maxPages,
		ResultsPerPage: perPage,
		MinDelay:       minDelay,
	}, nil
}

func buildCoresignal(raw rawCoresignal) CoresignalConfig {
	maxCollect := raw.MaxCollect
	if maxCollect == 0 {
		maxCollect = 40
	}
	concurrency := raw.CollectConcurrency
	if concurrency == 0 {
		concurrency = 10
	}
	return CoresignalConfig{
		Enabled:            raw.Enabled,
		APIKey:             raw.APIKey,
		Titles:             raw.Titles,
		Countries:          raw.Countries,
		MaxCollect:         maxCollect,
		CollectConcurrency: concurrency,
	}
}

func buildBrightdata(raw rawBrightdata) (BrightdataConfig, error) {
	pollTimeout := 5 * time.Minute
	if raw.PollTimeout != "" {
		d, err := time.ParseDuration(raw.PollTimeout)
		if err != nil {
			return BrightdataConfig{}, fmt.Errorf("parse providers.brightdata.poll_timeout %q: %w", raw.PollTimeout, err)
		}
		pollTimeout = d
	}
	concurrency := raw.TriggerConcurrency
	if concurrency == 0 {
		concurrency = 3
	}
	return BrightdataConfig{
		Enabled:            raw.Enabled,
		APIToken:           raw.APIToken,
		DatasetID:          raw.DatasetID,
		Boards:             raw.Boards,
		TriggerConcurrency: concurrency,
		PollTimeout:        pollTimeout,
	}, nil
}

func buildSerpAPI(raw rawSerpAPI) (SerpAPIConfig, error) {
	minDelay := 2 * time.Second
	if raw.MinDelay != "" {
		d, err := time.ParseDuration(raw.MinDelay)
		if err != nil {
			return SerpAPIConfig{}, fmt.Errorf("parse providers.serpapi.min_delay %q: %w", raw.MinDelay, err)
		}
		minDelay = d
	}
	cfg := SerpAPIConfig{
		Enabled:           raw.Enabled,
		APIKey:            raw.APIKey,
		Query:             raw.Query,
		Location:          raw.Location,
		MorningPages:      raw.MorningPages,
		EveningPages:      raw.EveningPages,
		BoundaryHour:      raw.BoundaryHour,
		MonthlyCallBudget: raw.MonthlyCallBudget,
		BudgetReserve:     raw.BudgetReserve,
		MinDelay:          minDelay,
	}
	if cfg.MorningPages == 0 {
		cfg.MorningPages = 3
	}
	if cfg.EveningPages == 0 {
		cfg.EveningPages = 1
	}
	if cfg.BoundaryHour == 0 {
		cfg.BoundaryHour = 12
	}
	if cfg.MonthlyCallBudget == 0 {
		cfg.MonthlyCallBudget = 250
	}
	if cfg.BudgetReserve == 0 {
		cfg.BudgetReserve = 50
	}
	return cfg, nil
}

func buildScoring(raw rawScoring) (ScoringConfig, error) {
	timeout := 60 * time.Second
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return ScoringConfig{}, fmt.Errorf("parse scoring.timeout %q: %w", raw.Timeout, err)
		}
		timeout = d
	}

	baseURL := raw.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	concurrency := raw.Concurrency
	if concurrency == 0 {
		concurrency = 5
	}

	threshold := 7.0
	if raw.SummaryThreshold != nil {
		threshold = *raw.SummaryThreshold
	}

	weights := defaultWeights()
	if raw.Weights != nil {
		weights = *raw.Weights
	}

	targets := raw.TargetSeniorities
	if len(targets) == 0 {
		targets = []string{model.SeniorityMid, model.SenioritySenior}
	}

	roleFactors := defaultRoleTypeFactors()
	for k, v := range raw.RoleTypeFactors {
		roleFactors[k] = v
	}
	interviewFactors := defaultInterviewFactors()
	for k, v := range raw.InterviewFactors {
		interviewFactors[k] = v
	}

	return ScoringConfig{
		Enabled:           raw.Enabled,
		BaseURL:           baseURL,
		APIKey:            raw.APIKey,
		ExtractModel:      raw.ExtractModel,
		SummaryModel:      raw.SummaryModel,
		Timeout:           timeout,
		Concurrency:       concurrency,
		SummaryThreshold:  threshold,
		Weights:           weights,
		TargetSeniorities: targets,
		RoleTypeFactors:   roleFactors,
		InterviewFactors:  interviewFactors,
		LocationFull:      raw.LocationFull,
		LocationHalf:      raw.LocationHalf,
	}, nil
}

func defaultWeights() ScoreWeights {
	return ScoreWeights{
		Remote:           2.0,
		Seniority:        2.5,
		EmployerLocation: 1.5,
		InterviewStyle:   1.0,
		RoleType:         3.0,
	}
}

func defaultRoleTypeFactors() map[string]float64 {
	return map[string]float64{
		model.RoleBackend:   1.0,
		model.RolePlatform:  1.0,
		model.RoleFullstack: 0.75,
		model.RoleData:      0.5,
		model.RoleFrontend:  0.25,
		model.RoleOther:     0.25,
	}
}

func defaultInterviewFactors() map[string]float64 {
	return map[string]float64{
		model.InterviewPractical: 1.0,
		model.InterviewTakeHome:  0.75,
		model.InterviewLeetcode:  0.25,
		model.InterviewUnknown:   0.0,
	}
}

func defaultTiers() []TierConfig {
	return []TierConfig{
		{Name: "premium", Providers: []string{"coresignal"}},
		{Name: "scrapers", Providers: []string{"brightdata"}},
		{Name: "boards", Providers: []string{"greenhouse", "lever"}},
		{Name: "aggregators", Providers: []string{"adzuna", "serpapi"}},
	}
}

// knownProviders are the adapter names tiers may reference.
var knownProviders = []string{"greenhouse", "lever", "adzuna", "coresignal", "brightdata", "serpapi"}

func validate(cfg *Config) error {
	if cfg.PollingInterval <= 0 {
		return fmt.Errorf("polling_interval must be positive, got %v", cfg.PollingInterval)
	}
	if cfg.RetentionDays <= 0 {
		return fmt.Errorf("retention_days must be positive, got %d", cfg.RetentionDays)
	}

	seen := make(map[string]bool)
	for _, tier := range cfg.Tiers {
		if tier.Name == "" {
			return fmt.Errorf("every tier needs a name")
		}
		for _, p := range tier.Providers {
			if !slices.Contains(knownProviders, p) {
				return fmt.Errorf("tier %q references unknown provider %q", tier.Name, p)
			}
			if seen[p] {
				return fmt.Errorf("provider %q appears in more than one tier", p)
			}
			seen[p] = true
		}
	}

	if cfg.EnabledProviderCount() == 0 {
		return fmt.Errorf("at least one provider must be enabled")
	}

	p := cfg.Providers
	if p.Greenhouse.Enabled && len(p.Greenhouse.Boards) == 0 {
		return fmt.Errorf("providers.greenhouse.boards is required when greenhouse is enabled")
	}
	if p.Lever.Enabled && len(p.Lever.Boards) == 0 {
		return fmt.Errorf("providers.lever.boards is required when lever is enabled")
	}
	if p.Adzuna.Enabled && (p.Adzuna.AppID == "" || p.Adzuna.AppKey == "") {
		return fmt.Errorf("providers.adzuna.app_id and app_key are required when adzuna is enabled")
	}
	if p.Coresignal.Enabled && p.Coresignal.APIKey == "" {
		return fmt.Errorf("providers.coresignal.api_key is required when coresignal is enabled")
	}
	if p.Brightdata.Enabled {
		if p.Brightdata.APIToken == "" || p.Brightdata.DatasetID == "" {
			return fmt.Errorf("providers.brightdata.api_token and dataset_id are required when brightdata is enabled")
		}
		if len(p.Brightdata.Boards) == 0 {
			return fmt.Errorf("providers.brightdata.boards is required when brightdata is enabled")
		}
	}
	if p.SerpAPI.Enabled {
		if p.SerpAPI.APIKey == "" {
			return fmt.Errorf("providers.serpapi.api_key is required when serpapi is enabled")
		}
		if p.SerpAPI.BudgetReserve >= p.SerpAPI.MonthlyCallBudget {
			return fmt.Errorf("providers.serpapi.budget_reserve must be below monthly_call_budget")
		}
	}

	if cfg.Notification.Type == "slack" {
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
		}
	}

	s := cfg.Scoring
	if s.Enabled {
		if s.APIKey == "" {
			return fmt.Errorf("scoring.api_key is required when scoring is enabled")
		}
		if s.ExtractModel == "" || s.SummaryModel == "" {
			return fmt.Errorf("scoring.extract_model and summary_model are required when scoring is enabled")
		}
	}
	if s.Weights.Sum() <= 0 {
		return fmt.Errorf("scoring.weights must sum to a positive value")
	}
	if s.SummaryThreshold < 0 || s.SummaryThreshold > 10 {
		return fmt.Errorf("scoring.summary_threshold must be between 0 and 10, got %v", s.SummaryThreshold)
	}
	for _, sen := range s.TargetSeniorities {
		if !slices.Contains(model.Seniorities(), sen) {
			return fmt.Errorf("scoring.target_seniorities contains unknown level %q", sen)
		}
	}

	return nil
}

// EnabledProviderCount returns how many provider blocks are switched on.
func (c *Config) EnabledProviderCount() int {
	n := 0
	p := c.Providers
	for _, enabled := range []bool{
		p.Greenhouse.Enabled, p.Lever.Enabled, p.Adzuna.Enabled,
		p.Coresignal.Enabled, p.Brightdata.Enabled, p.SerpAPI.Enabled,
	} {
		if enabled {
			n++
		}
	}
	return n
}

// ProviderEnabled reports whether the named provider block is switched on.
func (c *Config) ProviderEnabled(name string) bool {
	switch name {
	case "greenhouse":
		return c.Providers.Greenhouse.Enabled
	case "lever":
		return c.Providers.Lever.Enabled
	case "adzuna":
		return c.Providers.Adzuna.Enabled
	case "coresignal":
		return c.Providers.Coresignal.Enabled
	case "brightdata":
		return c.Providers.Brightdata.Enabled
	case "serpapi":
		return c.Providers.SerpAPI.Enabled
	}
	return false
}
