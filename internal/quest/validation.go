package quest

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	minNameLength        = 3
	maxNameLength        = 50
	minDescriptionLength = 10
)

// Validate derives every error of a step from the form values and the role.
// It does not read or write engine state and returns an empty set for REVIEW.
func Validate(state FormState, step Step, role Role) ValidationErrors {
	errs := make(ValidationErrors)

	switch step {
	case StepTypeSelection:
		validateTypeSelection(&state, errs)
	case StepDetails:
		validateDetails(&state, errs)
	case StepContract:
		variant, err := role.variant()
		if err != nil {
			errs[FieldUserType] = "User type is invalid"
			break
		}
		variant.validateContract(&state, errs)
	case StepReview:
		// review only displays the accumulated state
	}

	return errs
}

// ValidateAll validates every step in StepOrder and merges the results
func ValidateAll(state FormState, role Role) ValidationErrors {
	all := make(ValidationErrors)
	for _, step := range StepOrder {
		all.Merge(Validate(state, step, role))
	}
	return all
}

func validateTypeSelection(state *FormState, errs ValidationErrors) {
	if state.Type == "" {
		errs[FieldType] = "Quest type is required"
	}

	switch {
	case state.Category == "":
		errs[FieldCategory] = "Category is required"
	case state.Type != "" && !state.Type.Allows(state.Category):
		errs[FieldCategory] = "Category is not available for the selected quest type"
	}
}

func validateDetails(state *FormState, errs ValidationErrors) {
	switch n := utf8.RuneCountInString(state.Name); {
	case n == 0:
		errs[FieldName] = "Name is required"
	case n < minNameLength:
		errs[FieldName] = "Name must be at least 3 characters"
	case n > maxNameLength:
		errs[FieldName] = "Name must be less than 50 characters"
	}

	switch n := utf8.RuneCountInString(state.Description); {
	case n == 0:
		errs[FieldDescription] = "Description is required"
	case n < minDescriptionLength:
		errs[FieldDescription] = "Description must be at least 10 characters"
	}

	if state.Points == "" {
		errs[FieldPoints] = "Points allocation is required"
	} else if points, err := strconv.Atoi(strings.TrimSpace(state.Points)); err != nil {
		errs[FieldPoints] = "Points must be a number"
	} else if points < 1 {
		errs[FieldPoints] = "Points must be greater than 0"
	}

	if state.Website == "" {
		errs[FieldWebsite] = "Website URL is required"
	} else if !strings.HasPrefix(state.Website, "http") {
		errs[FieldWebsite] = "Website must be a valid URL"
	}

	if state.Duration == "" {
		errs[FieldDuration] = "Duration is required"
	}

	if state.RequiredMetric == "" {
		errs[FieldRequiredMetric] = "Required metric is required"
	}
}
