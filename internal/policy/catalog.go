package policy

import "github.com/auditecx/auditecx-cli/internal/model"

// defaultCatalog is the built-in control set used when no YAML catalog
// is configured.
func defaultCatalog() []Control {
	return []Control{
		{
			ID:              "SOX_404",
			Label:           "SOX 404: Control Certification",
			Guidance:        "Policies must enforce dual approval and segregation of duties for material disbursements.",
			RequiredPhrases: []string{"dual approval", "segregation of duties"},
			Triggers: []Trigger{
				{Pattern: `\bsingle (?:approval|sign(?:er|ature))\b`, Message: "Single approval detected where dual approval is required.", Severity: model.SeverityHigh},
				{Pattern: `\bmanual override\b`, Message: "Manual override detected; ensure compensating controls exist.", Severity: model.SeverityMedium},
			},
			MissingMessage: "Missing explicit dual-approval and segregation clauses for SOX 404 coverage.",
		},
		{
			ID:              "VENDOR_RISK",
			Label:           "Vendor Risk: Third-Party Oversight",
			Guidance:        "Policy should outline third-party risk scoring, onboarding reviews, and remediation cadence.",
			RequiredPhrases: []string{"vendor risk", "third-party"},
			Triggers: []Trigger{
				{Pattern: `\bannual review\b`, Message: "Annual review cadence detected; ensure quarterly cadence for critical vendors.", Severity: model.SeverityMedium},
				{Pattern: `\bno (?:formal )?risk assessment\b`, Message: "Explicit statement that no formal risk assessment is required.", Severity: model.SeverityHigh},
			},
			MissingMessage: "Missing vendor risk program description or third-party oversight language.",
		},
		{
			ID:              "RETENTION",
			Label:           "Record Retention",
			Guidance:        "Policy should define retention horizons, legal hold triggers, and destruction approvals.",
			RequiredPhrases: []string{"retain", "year"},
			Triggers: []Trigger{
				{Pattern: `\bdelete immediately\b`, Message: "Immediate deletion directive conflicts with retention requirements.", Severity: model.SeverityHigh},
				{Pattern: `\b7\s*days\b`, Message: "Short retention window detected; validate against statutory minimums.", Severity: model.SeverityMedium},
			},
			MissingMessage: "Retention durations are not documented for statutory records.",
		},
		{
			ID:              "ACCESS_CONTROL",
			Label:           "Access Control & Least Privilege",
			Guidance:        "Policy should require least privilege, periodic reviews, and revocation timelines.",
			RequiredPhrases: []string{"least privilege", "access review"},
			Triggers: []Trigger{
				{Pattern: `\bpermanent access\b`, Message: "Permanent access detected; review revocation timeline.", Severity: model.SeverityMedium},
				{Pattern: `\bno approval needed\b`, Message: "Statement indicates access does not require approval.", Severity: model.SeverityHigh},
			},
			MissingMessage: "Least privilege or access review cadence not specified.",
		},
	}
}
