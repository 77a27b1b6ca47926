package extract

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ebcovid/caseledger/internal/domain"
)

// Field identifies one extractable value of a case entry.
type Field string

const (
	FieldCaseNumber   Field = "case_number"
	FieldFacility     Field = "facility"
	FieldDepartment   Field = "department"
	FieldBuilding     Field = "building"
	FieldPostedDate   Field = "posted_date"
	FieldLastWorkDate Field = "last_work_date"
	FieldTestedDate   Field = "tested_date"
)

func (f Field) String() string { return string(f) }

var (
	textFields = []Field{FieldCaseNumber, FieldFacility, FieldDepartment, FieldBuilding}
	dateFields = []Field{FieldPostedDate, FieldLastWorkDate, FieldTestedDate}
)

const datePlaceholder = "{date}"

//go:embed patterns.yaml
var builtinPatterns []byte

// PatternSet is a compiled, immutable revision of the extraction rules.
type PatternSet struct {
	ID          string
	Description string
	Sanitize    bool

	date   *regexp.Regexp
	fields map[Field]*regexp.Regexp
	dates  map[Field]*regexp.Regexp
}

// Registry holds the known pattern sets keyed by id.
type Registry struct {
	defaultID string
	sets      map[string]*PatternSet
}

type patternFile struct {
	Default string          `yaml:"default"`
	Sets    []patternSetDef `yaml:"sets"`
}

type patternSetDef struct {
	ID          string            `yaml:"id"`
	Description string            `yaml:"description"`
	Sanitize    bool              `yaml:"sanitize"`
	Date        string            `yaml:"date"`
	Fields      map[string]string `yaml:"fields"`
	Dates       map[string]string `yaml:"dates"`
}

// Builtin returns the registry compiled from the embedded pattern file.
func Builtin() (*Registry, error) {
	reg, err := ParseRegistry(builtinPatterns)
	if err != nil {
		return nil, fmt.Errorf("builtin patterns: %w", err)
	}
	return reg, nil
}

// LoadRegistry returns the builtin registry extended with the sets defined in
// the YAML file at path. An empty path returns the builtin registry.
func LoadRegistry(path string) (*Registry, error) {
	reg, err := Builtin()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return reg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read patterns %s: %w", path, err)
	}
	extra, err := ParseRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("patterns %s: %w", path, err)
	}
	if err := reg.Merge(extra); err != nil {
		return nil, fmt.Errorf("patterns %s: %w", path, err)
	}
	return reg, nil
}

// ParseRegistry compiles a YAML pattern file.
func ParseRegistry(data []byte) (*Registry, error) {
	var f patternFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	reg := &Registry{defaultID: f.Default, sets: make(map[string]*PatternSet, len(f.Sets))}
	for _, def := range f.Sets {
		if _, dup := reg.sets[def.ID]; dup {
			return nil, fmt.Errorf("pattern set %q defined twice", def.ID)
		}
		set, err := compileSet(def)
		if err != nil {
			return nil, err
		}
		reg.sets[set.ID] = set
	}

	if reg.defaultID != "" {
		if _, ok := reg.sets[reg.defaultID]; !ok {
			return nil, fmt.Errorf("default pattern set %q: %w", reg.defaultID, domain.ErrUnknownPatternSet)
		}
	}
	return reg, nil
}

func compileSet(def patternSetDef) (*PatternSet, error) {
	if strings.TrimSpace(def.ID) == "" {
		return nil, domain.NewValidationError("id", "pattern set id is required")
	}
	wrap := func(err error) error { return fmt.Errorf("pattern set %q: %w", def.ID, err) }

	if def.Date == "" {
		return nil, wrap(domain.NewValidationError("date", "date expression is required"))
	}
	date, err := regexp.Compile(def.Date)
	if err != nil {
		return nil, wrap(fmt.Errorf("date: %w", err))
	}
	for _, group := range []string{"month", "day", "year"} {
		if date.SubexpIndex(group) < 0 {
			return nil, wrap(domain.NewValidationError("date", "missing named group "+group))
		}
	}

	set := &PatternSet{
		ID:          def.ID,
		Description: def.Description,
		Sanitize:    def.Sanitize,
		date:        date,
		fields:      make(map[Field]*regexp.Regexp, len(textFields)),
		dates:       make(map[Field]*regexp.Regexp, len(dateFields)),
	}

	for _, f := range textFields {
		expr, ok := def.Fields[f.String()]
		if !ok {
			return nil, wrap(domain.NewValidationError(f.String(), "pattern is required"))
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, wrap(fmt.Errorf("%s: %w", f, err))
		}
		if re.NumSubexp() < 1 {
			return nil, wrap(domain.NewValidationError(f.String(), "pattern needs a capturing group"))
		}
		set.fields[f] = re
	}

	for _, f := range dateFields {
		tmpl, ok := def.Dates[f.String()]
		if !ok {
			return nil, wrap(domain.NewValidationError(f.String(), "template is required"))
		}
		if !strings.Contains(tmpl, datePlaceholder) {
			return nil, wrap(domain.NewValidationError(f.String(), "template must contain "+datePlaceholder))
		}
		re, err := regexp.Compile(strings.Replace(tmpl, datePlaceholder, def.Date, 1))
		if err != nil {
			return nil, wrap(fmt.Errorf("%s: %w", f, err))
		}
		set.dates[f] = re
	}

	return set, nil
}

// Get returns the set with the given id. An empty id selects the default set.
func (r *Registry) Get(id string) (*PatternSet, error) {
	if id == "" {
		id = r.defaultID
	}
	set, ok := r.sets[id]
	if !ok {
		return nil, fmt.Errorf("pattern set %q: %w", id, domain.ErrUnknownPatternSet)
	}
	return set, nil
}

// DefaultID returns the id selected when no set is requested.
func (r *Registry) DefaultID() string { return r.defaultID }

// IDs returns the known set ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.sets))
	for id := range r.sets {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Merge adds the sets of other. Redefining an existing id is an error so that
// historical documents keep parsing the same way. A non-empty default in
// other replaces the current default.
func (r *Registry) Merge(other *Registry) error {
	for id := range other.sets {
		if _, exists := r.sets[id]; exists {
			return fmt.Errorf("pattern set %q already defined", id)
		}
	}
	for id, set := range other.sets {
		r.sets[id] = set
	}
	if other.defaultID != "" {
		r.defaultID = other.defaultID
	}
	return nil
}
