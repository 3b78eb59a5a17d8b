package models

import (
	"github.com/Gobusters/ectolinq"

	clerrors "github.com/Ramsey-B/clover/pkg/errors"
)

// DedupConfig tells the engine which fields identify, corroborate and merge records
type DedupConfig struct {
	// UniqueIDFields hold identifiers that must never differ between two
	// records of the same entity (SSN, member number, ...)
	UniqueIDFields []string `yaml:"unique_id_fields" json:"unique_id_fields"`

	FirstNameField string `yaml:"first_name_field" json:"first_name_field"`
	LastNameField  string `yaml:"last_name_field" json:"last_name_field"`
	FullNameField  string `yaml:"full_name_field" json:"full_name_field"`

	PhoneFields       []string `yaml:"phone_fields" json:"phone_fields"`
	EmailFields       []string `yaml:"email_fields" json:"email_fields"`
	DOBField          string   `yaml:"dob_field" json:"dob_field"`
	AddressFields     []string `yaml:"address_fields" json:"address_fields"`
	PlaceholderEmails []string `yaml:"placeholder_emails" json:"placeholder_emails"`

	NameThreshold  int `yaml:"name_threshold" json:"name_threshold" validate:"gte=0,lte=100"`
	FuzzyThreshold int `yaml:"fuzzy_threshold" json:"fuzzy_threshold" validate:"gte=0,lte=100"`
	MinConfidence  int `yaml:"min_confidence" json:"min_confidence" validate:"gte=0,lte=100"`

	LinkFields        []string `yaml:"link_fields" json:"link_fields"`
	ConcatenateFields []string `yaml:"concatenate_fields" json:"concatenate_fields"`
	ExcludedFields    []string `yaml:"excluded_fields" json:"excluded_fields"`
	ConcatDelimiter   string   `yaml:"concat_delimiter" json:"concat_delimiter"`
	HistoryField      string   `yaml:"history_field" json:"history_field"`

	// Tiers and Bonuses turn a pair's confidence into a tier
	Tiers   TierThresholds       `yaml:"tiers" json:"tiers"`
	Bonuses CorroborationBonuses `yaml:"bonuses" json:"bonuses"`

	// Normalizers overrides the comparison form of a field with a chain of
	// named normalizers, e.g. {"Member ID": ["trim", "digits"]}
	Normalizers map[string][]string `yaml:"normalizers" json:"normalizers" validate:"omitempty,dive,min=1"`

	Quality QualityWeights `yaml:"quality" json:"quality"`

	// seeded marks a config that started from DefaultDedupConfig, so its
	// zero values were chosen rather than left out
	seeded bool
}

// TierThresholds are the confidence cut-offs between tiers. Corroborated is
// the lower bar for Strong when at least one corroborating field agrees;
// Conflict is the confidence reported for conflicting identifiers.
type TierThresholds struct {
	Strong       int `yaml:"strong" json:"strong" validate:"lte=100,gtfield=Corroborated"`
	Corroborated int `yaml:"corroborated" json:"corroborated" validate:"gtfield=Possible"`
	Possible     int `yaml:"possible" json:"possible" validate:"gtfield=Conflict"`
	Conflict     int `yaml:"conflict" json:"conflict" validate:"gte=0"`
}

func (t TierThresholds) ordered() bool {
	return t.Strong <= 100 && t.Strong > t.Corroborated && t.Corroborated > t.Possible && t.Possible > t.Conflict && t.Conflict >= 0
}

// CorroborationBonuses are the points each agreeing field adds to name similarity
type CorroborationBonuses struct {
	Phone   int `yaml:"phone" json:"phone" validate:"gte=0,lte=100"`
	Email   int `yaml:"email" json:"email" validate:"gte=0,lte=100"`
	DOB     int `yaml:"dob" json:"dob" validate:"gte=0,lte=100"`
	Address int `yaml:"address" json:"address" validate:"gte=0,lte=100"`
}

// QualityWeights are the completeness points used to elect survivors
type QualityWeights struct {
	IdentityField int            `yaml:"identity_field" json:"identity_field" validate:"gte=0"`
	ContactField  int            `yaml:"contact_field" json:"contact_field" validate:"gte=0"`
	AddressField  int            `yaml:"address_field" json:"address_field" validate:"gte=0"`
	OtherField    int            `yaml:"other_field" json:"other_field" validate:"gte=0"`
	PerLink       int            `yaml:"per_link" json:"per_link" validate:"gte=0"`
	LinkWeights   map[string]int `yaml:"link_weights" json:"link_weights" validate:"omitempty,dive,gte=0"`
}

// DefaultDedupConfig returns thresholds and weights tuned for person records
func DefaultDedupConfig() DedupConfig {
	return DedupConfig{
		FullNameField:     "Name",
		PhoneFields:       []string{"Phone"},
		EmailFields:       []string{"Email"},
		PlaceholderEmails: []string{"none@none.com", "noemail@noemail.com", "na@na.com", "unknown@unknown.com"},
		NameThreshold:     75,
		FuzzyThreshold:    70,
		MinConfidence:     70,
		ConcatDelimiter:   " | ",
		HistoryField:      "Merge History",
		Tiers:             TierThresholds{Strong: 85, Corroborated: 75, Possible: 70, Conflict: 50},
		Bonuses:           CorroborationBonuses{Phone: 10, Email: 10, DOB: 15, Address: 5},
		Quality:           DefaultQualityWeights(),
		seeded:            true,
	}
}

// DefaultQualityWeights favors linked activity over sparse contact data
func DefaultQualityWeights() QualityWeights {
	return QualityWeights{
		IdentityField: 10,
		ContactField:  5,
		AddressField:  3,
		OtherField:    1,
		PerLink:       4,
	}
}

func (w QualityWeights) isZero() bool {
	return w.IdentityField == 0 && w.ContactField == 0 && w.AddressField == 0 && w.OtherField == 0 && w.PerLink == 0
}

// NameFields returns the configured name-bearing fields
func (c DedupConfig) NameFields() []string {
	out := make([]string, 0, 3)
	for _, f := range []string{c.FirstNameField, c.LastNameField, c.FullNameField} {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Validate fails when nothing would be compared
func (c DedupConfig) Validate() error {
	if len(c.UniqueIDFields) == 0 && len(c.NameFields()) == 0 {
		return clerrors.NewConfigurationError("no match fields selected: configure at least one unique id or name field")
	}
	if c.FirstNameField != "" && c.LastNameField == "" && c.FullNameField == "" {
		return clerrors.NewConfigurationError("first_name_field requires last_name_field or full_name_field")
	}
	if c.Tiers != (TierThresholds{}) && !c.Tiers.ordered() {
		return clerrors.NewConfigurationError("tier thresholds must satisfy 100 >= strong > corroborated > possible > conflict >= 0")
	}
	for field, w := range c.Quality.LinkWeights {
		if w < 0 {
			return clerrors.NewConfigurationError("link weight for %q must not be negative", field)
		}
	}
	return nil
}

// WithDefaults fills what a hand-built config left unset. A config derived
// from DefaultDedupConfig, which includes every rules file, already holds its
// defaults and is returned as is, so explicit zeros survive.
func (c DedupConfig) WithDefaults() DedupConfig {
	if c.seeded {
		return c
	}
	def := DefaultDedupConfig()
	if c.NameThreshold == 0 {
		c.NameThreshold = def.NameThreshold
	}
	if c.FuzzyThreshold == 0 {
		c.FuzzyThreshold = def.FuzzyThreshold
	}
	if c.MinConfidence == 0 {
		c.MinConfidence = def.MinConfidence
	}
	if c.ConcatDelimiter == "" {
		c.ConcatDelimiter = def.ConcatDelimiter
	}
	if c.HistoryField == "" {
		c.HistoryField = def.HistoryField
	}
	if c.Tiers == (TierThresholds{}) {
		c.Tiers = def.Tiers
	}
	if c.Bonuses == (CorroborationBonuses{}) {
		c.Bonuses = def.Bonuses
	}
	if c.Quality.isZero() {
		links := c.Quality.LinkWeights
		c.Quality = def.Quality
		c.Quality.LinkWeights = links
	}
	c.seeded = true
	return c
}

func (c DedupConfig) IsLinkField(field string) bool {
	return ectolinq.Contains(c.LinkFields, field)
}

func (c DedupConfig) IsConcatenateField(field string) bool {
	return ectolinq.Contains(c.ConcatenateFields, field)
}

func (c DedupConfig) IsExcludedField(field string) bool {
	return ectolinq.Contains(c.ExcludedFields, field)
}
