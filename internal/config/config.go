package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PortalConfig describes the scheduling portal being driven.
type PortalConfig struct {
	// BaseURL is the portal origin, e.g. "https://partners.fresha.com".
	BaseURL string `yaml:"base_url" json:"base_url"`

	// ListPath is the path of the protected appointments-list page.
	ListPath string `yaml:"list_path" json:"list_path"`

	// SignInPath is the path of the credential login page.
	SignInPath string `yaml:"sign_in_path" json:"sign_in_path"`

	// TypeKeyDelayMs paces password entry: one keystroke per delay. The
	// portal attaches listeners per keystroke, so filling the field in
	// one shot is not accepted.
	TypeKeyDelayMs int `yaml:"type_key_delay_ms" json:"type_key_delay_ms"`
}

// ColumnsConfig maps each logical export field to an ordered list of
// accepted header names. Matching is case-insensitive substring matching,
// so the lists cover both locales the portal renders.
type ColumnsConfig struct {
	Reference []string `yaml:"reference" json:"reference"`
	Client    []string `yaml:"client" json:"client"`
	Phone     []string `yaml:"phone" json:"phone"`
	Time      []string `yaml:"time" json:"time"`
	Date      []string `yaml:"date" json:"date"`
	Service   []string `yaml:"service" json:"service"`
	Status    []string `yaml:"status" json:"status"`
}

// UnknownPhonePolicy controls what happens to rows whose phone number
// could not be recovered (the "Not Found" sentinel normalizes to "").
type UnknownPhonePolicy string

const (
	// UnknownSeparate keeps one group per appointment reference.
	UnknownSeparate UnknownPhonePolicy = "separate"
	// UnknownMerge collapses every unknown-phone row into one group.
	UnknownMerge UnknownPhonePolicy = "merge"
)

// GroupingConfig controls cancellation filtering and phone normalization.
type GroupingConfig struct {
	// CancellationTerms are status values that exclude a row entirely,
	// compared case-insensitively.
	CancellationTerms []string `yaml:"cancellation_terms" json:"cancellation_terms"`

	// CountryCodes is the precedence-ordered list of country calling
	// codes stripped during normalization. At most one code is stripped
	// per number, first match wins.
	CountryCodes []string `yaml:"country_codes" json:"country_codes"`

	// UnknownPhonePolicy: "separate" (default) or "merge".
	UnknownPhonePolicy UnknownPhonePolicy `yaml:"unknown_phone_policy" json:"unknown_phone_policy"`
}

// MessageConfig controls the composed reminder text and deep link.
type MessageConfig struct {
	// Template is a text/template body with fields .FirstName, .Date,
	// .Time and .Services.
	Template string `yaml:"template" json:"template"`

	// FallbackFirstName is used when the client name strips to empty.
	FallbackFirstName string `yaml:"fallback_first_name" json:"fallback_first_name"`

	// LinkCountryCode prefixes the normalized number in the messaging
	// deep link (web.whatsapp.com expects a full international number).
	LinkCountryCode string `yaml:"link_country_code" json:"link_country_code"`
}

// Config is the top-level application configuration. Credentials are
// deliberately absent: they come from the environment (see Credentials).
type Config struct {
	Portal PortalConfig `yaml:"portal" json:"portal"`

	// SessionFile is where the authenticated-session blob is persisted.
	SessionFile string `yaml:"session_file" json:"session_file"`

	// ArtifactDir is where the consolidated CSV, HTML sheet and ICS feed
	// are written.
	ArtifactDir string `yaml:"artifact_dir" json:"artifact_dir"`

	// TargetDateOffsetDays selects the report date relative to the run
	// date. Default 1 (tomorrow).
	TargetDateOffsetDays int `yaml:"target_date_offset_days" json:"target_date_offset_days"`

	// Headless controls the Chromium launch mode.
	Headless bool `yaml:"headless" json:"headless"`

	// OpenReport opens the rendered sheet in the default application.
	OpenReport bool `yaml:"open_report" json:"open_report"`

	// Schedule is an optional cron expression (e.g. "0 19 * * *"). When
	// set and -once is not forced, the pipeline runs on this schedule
	// instead of once.
	Schedule string `yaml:"schedule" json:"schedule"`

	Columns  ColumnsConfig  `yaml:"columns" json:"columns"`
	Grouping GroupingConfig `yaml:"grouping" json:"grouping"`
	Message  MessageConfig  `yaml:"message" json:"message"`
}

// DefaultMessageTemplate is the pt-PT reminder text. The salon signature
// is part of the template so it can be replaced wholesale.
const DefaultMessageTemplate = "Olá {{.FirstName}} 🤍\n" +
	"Lembrete: a tua marcação é amanhã, dia {{.Date}}, às {{.Time}}, para {{.Services}}.\n\n" +
	"Se precisares de fazer alguma alteração, é só avisar. 🌸"

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Portal: PortalConfig{
			BaseURL:        "https://partners.fresha.com",
			ListPath:       "/sales/appointments-list/",
			SignInPath:     "/users/sign-in",
			TypeKeyDelayMs: 300,
		},
		SessionFile:          "apptsheet-session.json",
		ArtifactDir:          ".",
		TargetDateOffsetDays: 1,
		Headless:             true,
		OpenReport:           false,
		Schedule:             "",
		Columns: ColumnsConfig{
			Reference: []string{"Referência", "Ref"},
			Client:    []string{"Cliente", "Client"},
			Phone:     []string{"Telemóvel", "Telefone", "Mobile", "Phone"},
			Time:      []string{"Horário", "Time"},
			Date:      []string{"Data agendada", "Scheduled date"},
			Service:   []string{"Serviço", "Service"},
			Status:    []string{"Situação", "Status"},
		},
		Grouping: GroupingConfig{
			CancellationTerms:  []string{"Cancelado", "Cancelled"},
			CountryCodes:       []string{"351"},
			UnknownPhonePolicy: UnknownSeparate,
		},
		Message: MessageConfig{
			Template:          DefaultMessageTemplate,
			FallbackFirstName: "Cliente",
			LinkCountryCode:   "351",
		},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Portal.BaseURL == "" {
		c.Portal.BaseURL = def.Portal.BaseURL
	}
	if c.Portal.ListPath == "" {
		c.Portal.ListPath = def.Portal.ListPath
	}
	if c.Portal.SignInPath == "" {
		c.Portal.SignInPath = def.Portal.SignInPath
	}
	if c.Portal.TypeKeyDelayMs <= 0 {
		c.Portal.TypeKeyDelayMs = def.Portal.TypeKeyDelayMs
	}
	if c.SessionFile == "" {
		c.SessionFile = def.SessionFile
	}
	if c.ArtifactDir == "" {
		c.ArtifactDir = def.ArtifactDir
	}
	if c.TargetDateOffsetDays == 0 {
		c.TargetDateOffsetDays = def.TargetDateOffsetDays
	}
	if len(c.Columns.Reference) == 0 {
		c.Columns.Reference = def.Columns.Reference
	}
	if len(c.Columns.Client) == 0 {
		c.Columns.Client = def.Columns.Client
	}
	if len(c.Columns.Phone) == 0 {
		c.Columns.Phone = def.Columns.Phone
	}
	if len(c.Columns.Time) == 0 {
		c.Columns.Time = def.Columns.Time
	}
	if len(c.Columns.Date) == 0 {
		c.Columns.Date = def.Columns.Date
	}
	if len(c.Columns.Service) == 0 {
		c.Columns.Service = def.Columns.Service
	}
	if len(c.Columns.Status) == 0 {
		c.Columns.Status = def.Columns.Status
	}
	if len(c.Grouping.CancellationTerms) == 0 {
		c.Grouping.CancellationTerms = def.Grouping.CancellationTerms
	}
	if len(c.Grouping.CountryCodes) == 0 {
		c.Grouping.CountryCodes = def.Grouping.CountryCodes
	}
	switch c.Grouping.UnknownPhonePolicy {
	case UnknownSeparate, UnknownMerge:
		// ok
	default:
		c.Grouping.UnknownPhonePolicy = UnknownSeparate
	}
	if c.Message.Template == "" {
		c.Message.Template = def.Message.Template
	}
	if c.Message.FallbackFirstName == "" {
		c.Message.FallbackFirstName = def.Message.FallbackFirstName
	}
	if c.Message.LinkCountryCode == "" {
		c.Message.LinkCountryCode = def.Message.LinkCountryCode
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create a default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so the
				// caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".apptsheet-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// ListURL returns the absolute URL of the protected appointments list.
func (c *Config) ListURL() string {
	return c.Portal.BaseURL + c.Portal.ListPath
}

// SignInURL returns the absolute URL of the login page.
func (c *Config) SignInURL() string {
	return c.Portal.BaseURL + c.Portal.SignInPath
}
