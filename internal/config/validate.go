package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/printeer-go/printeer/internal/errs"
)

// domainPattern matches a dot-separated label grammar with an optional
// leading "*." wildcard and no whitespace.
var domainPattern = regexp.MustCompile(`^(\*\.)?[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?)*$`)

var validatorInstance = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("domainpattern", func(fl validator.FieldLevel) bool {
		return isValidDomainPattern(fl.Field().String())
	})
	return v
}

func isValidDomainPattern(p string) bool {
	if p == "" || strings.ContainsAny(p, " \t\r\n") {
		return false
	}
	return domainPattern.MatchString(p)
}

// Validate runs struct-tag bounds checking (go-playground/validator)
// then the cross-field invariants tags cannot express on their own
// (warn < critical, pool.min <= max, domain pattern grammar on slice
// elements).
//
// suspiciousWarnings collects non-fatal "suspicious value" warnings;
// the caller logs them, they never fail validation.
func Validate(c *EffectiveConfig) (suspiciousWarnings []string, err error) {
	if verr := validatorInstance.Struct(c); verr != nil {
		return nil, errs.NewValidationError("struct", verr.Error())
	}

	if c.Browser.Pool.Min > c.Browser.Pool.Max {
		return nil, errs.NewValidationError("browser.pool", fmt.Sprintf("pool.min (%d) must be <= pool.max (%d)", c.Browser.Pool.Min, c.Browser.Pool.Max))
	}

	if c.Thresholds.MemoryWarn >= c.Thresholds.MemoryCritical {
		return nil, errs.NewValidationError("thresholds.memory", "memoryWarn must be < memoryCritical")
	}
	if c.Thresholds.CPUWarn >= c.Thresholds.CPUCritical {
		return nil, errs.NewValidationError("thresholds.cpu", "cpuWarn must be < cpuCritical")
	}
	if c.Thresholds.DiskWarn >= c.Thresholds.DiskCritical {
		return nil, errs.NewValidationError("thresholds.disk", "diskWarn must be < diskCritical")
	}

	for _, d := range c.Security.AllowedDomains {
		if !isValidDomainPattern(d) {
			return nil, errs.NewValidationError("security.allowedDomains", "malformed domain pattern: "+d)
		}
	}
	for _, d := range c.Security.BlockedDomains {
		if !isValidDomainPattern(d) {
			return nil, errs.NewValidationError("security.blockedDomains", "malformed domain pattern: "+d)
		}
	}

	suspiciousWarnings = collectSuspiciousWarnings(c)
	return suspiciousWarnings, nil
}

// collectSuspiciousWarnings flags values that are legal but unusual
// enough to warrant a non-fatal warning.
func collectSuspiciousWarnings(c *EffectiveConfig) []string {
	var warnings []string
	if c.Resources.MaxMemoryMB < 256 {
		warnings = append(warnings, fmt.Sprintf("resources.maxMemoryMB is unusually low (%d)", c.Resources.MaxMemoryMB))
	}
	if c.Resources.MaxConcurrentRequests > 20 {
		warnings = append(warnings, fmt.Sprintf("resources.maxConcurrentRequests is unusually high (%d)", c.Resources.MaxConcurrentRequests))
	}
	return warnings
}
