package quest

import (
	"encoding/json"
	"fmt"
)

// FormValue is one text part of an encoded submission
type FormValue struct {
	Key   Field
	Value string
}

// Submission is the encoded form handed to a Submitter. Values keep the
// field order of FormState; list fields are JSON encoded.
type Submission struct {
	Values []FormValue
	Image  *Image
}

// Value returns the encoded value of a field, or "" when absent
func (s *Submission) Value(field Field) string {
	for _, v := range s.Values {
		if v.Key == field {
			return v.Value
		}
	}
	return ""
}

// EncodeSubmission converts the form into submission parts
func EncodeSubmission(state FormState) (*Submission, error) {
	contracts := state.Contracts
	if contracts == nil {
		contracts = []string{}
	}
	encodedContracts, err := json.Marshal(contracts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode contracts: %w", err)
	}

	sub := &Submission{
		Values: []FormValue{
			{FieldType, string(state.Type)},
			{FieldCategory, string(state.Category)},
			{FieldName, state.Name},
			{FieldDescription, state.Description},
			{FieldPoints, state.Points},
			{FieldWebsite, state.Website},
			{FieldDuration, string(state.Duration)},
			{FieldRequiredMetric, state.RequiredMetric},
			{FieldImagePreview, state.ImagePreview},
			{FieldContracts, string(encodedContracts)},
			{FieldFunctionABI, state.FunctionABI},
			{FieldContractAddress, state.ContractAddress},
			{FieldCurrentStep, string(state.CurrentStep)},
			{FieldUserType, string(state.UserType)},
		},
	}

	if state.Image != nil {
		img := *state.Image
		sub.Image = &img
	}

	return sub, nil
}
