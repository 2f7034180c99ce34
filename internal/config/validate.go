package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mpcoder1111/Spashta-CKG/internal/enrich"
	"github.com/mpcoder1111/Spashta-CKG/internal/schema"
)

// ErrInvalidProfile is returned when a profile fails validation.
var ErrInvalidProfile = errors.New("config: invalid profile")

var validate = validator.New()

// Violation is one profile finding.
type Violation struct {
	Issue string `json:"issue"`
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// Report is the machine-readable profile validation result.
type Report struct {
	Source     string      `json:"source"`
	Status     string      `json:"status"`
	Violations []Violation `json:"violations"`
}

// Passed reports whether the profile may drive a run.
func (r *Report) Passed() bool {
	return r.Status == schema.StatusPass
}

// Validate checks field constraints, then governance: every language needs
// a builder in builders and every framework an adapter that loads.
func Validate(p *Profile, builders []string) (*Report, error) {
	r := &Report{Source: p.Source, Status: schema.StatusPass, Violations: []Violation{}}

	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, fmt.Errorf("config: validate: %w", err)
		}
		for _, fe := range verrs {
			r.Violations = append(r.Violations, Violation{
				Issue: "Invalid field (" + fe.Tag() + ")",
				Key:   fe.Namespace(),
				Value: fmt.Sprint(fe.Value()),
			})
		}
	}

	known := make(map[string]bool, len(builders))
	for _, b := range builders {
		known[b] = true
	}
	seen := make(map[string]bool, len(p.Languages))
	for i, lang := range p.Languages {
		key := fmt.Sprintf("languages[%d]", i)
		switch {
		case lang == "":
		case seen[lang]:
			r.Violations = append(r.Violations, Violation{Issue: "Duplicate Language", Key: key, Value: lang})
		case !known[lang]:
			r.Violations = append(r.Violations, Violation{Issue: "No Builder For Language", Key: key, Value: lang})
		}
		seen[lang] = true
	}
	for i, fw := range p.Frameworks {
		if fw == "" {
			continue
		}
		if _, err := enrich.LoadAdapter(fw, p.RulesDir); err != nil {
			r.Violations = append(r.Violations, Violation{
				Issue: "No Adapter For Framework",
				Key:   fmt.Sprintf("frameworks[%d]", i),
				Value: fw,
			})
		}
	}

	if len(r.Violations) > 0 {
		r.Status = schema.StatusFail
		issues := make([]string, 0, len(r.Violations))
		for _, v := range r.Violations {
			issues = append(issues, v.Issue+" "+v.Key)
		}
		return r, fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(issues, "; "))
	}
	return r, nil
}
