package quest

import (
	"fmt"
)

// Step represents a wizard step
type Step string

const (
	StepTypeSelection Step = "TYPE_SELECTION"
	StepDetails       Step = "DETAILS"
	StepContract      Step = "CONTRACT"
	StepReview        Step = "REVIEW"
)

// StepOrder is the fixed order of wizard steps
var StepOrder = []Step{StepTypeSelection, StepDetails, StepContract, StepReview}

var stepLabels = map[Step]string{
	StepTypeSelection: "Quest Type",
	StepDetails:       "Details",
	StepContract:      "Contract",
	StepReview:        "Review",
}

// Label returns the display label of the step
func (s Step) Label() string {
	return stepLabels[s]
}

// Index returns the position of the step in StepOrder, or -1
func (s Step) Index() int {
	for i, step := range StepOrder {
		if step == s {
			return i
		}
	}
	return -1
}

// ParseStep parses a step name
func ParseStep(s string) (Step, error) {
	step := Step(s)
	if step.Index() < 0 {
		return "", fmt.Errorf("%w: unknown step %q", ErrInvalidValue, s)
	}
	return step, nil
}

// QuestType represents the metric category a quest tracks
type QuestType string

const (
	QuestTypeTVL QuestType = "TVL"
	QuestTypeTRX QuestType = "TRX"
	QuestTypeDAU QuestType = "DAU"
)

// QuestTypes lists every supported quest type
var QuestTypes = []QuestType{QuestTypeTVL, QuestTypeTRX, QuestTypeDAU}

// Category represents a quest category; the allowed set depends on the quest type
type Category string

const (
	CategoryHodl      Category = "Hodl"
	CategoryPump      Category = "Pump"
	CategoryBTC       Category = "BTC"
	CategoryToTheMoon Category = "To The Moon"
	CategorySendIt    Category = "Send It"
)

// Categories returns the categories available for the quest type
func (t QuestType) Categories() []Category {
	switch t {
	case QuestTypeTVL:
		return []Category{CategoryHodl, CategoryPump}
	case QuestTypeTRX:
		return []Category{CategoryBTC, CategoryToTheMoon}
	case QuestTypeDAU:
		return []Category{CategorySendIt}
	default:
		return nil
	}
}

// Allows reports whether c belongs to the category set of t
func (t QuestType) Allows(c Category) bool {
	for _, allowed := range t.Categories() {
		if allowed == c {
			return true
		}
	}
	return false
}

// ParseQuestType parses a quest type; the empty string means unset
func ParseQuestType(s string) (QuestType, error) {
	if s == "" {
		return "", nil
	}
	for _, t := range QuestTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown quest type %q", ErrInvalidValue, s)
}

// ParseCategory parses a category; the empty string means unset
func ParseCategory(s string) (Category, error) {
	if s == "" {
		return "", nil
	}
	for _, t := range QuestTypes {
		for _, c := range t.Categories() {
			if string(c) == s {
				return c, nil
			}
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidValue, s)
}

// Duration is a fixed quest duration code
type Duration string

const (
	Duration7d  Duration = "7d"
	Duration14d Duration = "14d"
	Duration30d Duration = "30d"
	Duration90d Duration = "90d"
)

// Durations lists the selectable duration codes
var Durations = []Duration{Duration7d, Duration14d, Duration30d, Duration90d}

// ParseDuration parses a duration code; the empty string means unset
func ParseDuration(s string) (Duration, error) {
	if s == "" {
		return "", nil
	}
	for _, d := range Durations {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: unknown duration %q", ErrInvalidValue, s)
}

// Field names a writable or validated form field. The values match the
// keys used by the submission endpoint and the error map.
type Field string

const (
	FieldType            Field = "type"
	FieldCategory        Field = "category"
	FieldName            Field = "name"
	FieldDescription     Field = "description"
	FieldPoints          Field = "points"
	FieldWebsite         Field = "website"
	FieldDuration        Field = "duration"
	FieldRequiredMetric  Field = "requiredMetric"
	FieldImage           Field = "image"
	FieldImagePreview    Field = "imagePreview"
	FieldContracts       Field = "contracts"
	FieldFunctionABI     Field = "functionAbi"
	FieldContractAddress Field = "contractAddress"
	FieldCurrentStep     Field = "currentStep"
	FieldUserType        Field = "userType"

	// FieldSubmit is reserved for submission collaborator failures
	FieldSubmit Field = "submit"
)

// Image is an uploaded quest image
type Image struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// Size returns the image size in bytes
func (i *Image) Size() int {
	if i == nil {
		return 0
	}
	return len(i.Data)
}

// FormState holds the values of one wizard session. Text inputs are kept
// as entered; numeric checks happen during validation.
type FormState struct {
	Type            QuestType `json:"type"`
	Category        Category  `json:"category"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Points          string    `json:"points"`
	Website         string    `json:"website"`
	Duration        Duration  `json:"duration"`
	RequiredMetric  string    `json:"requiredMetric"`
	Image           *Image    `json:"image"`
	ImagePreview    string    `json:"imagePreview"`
	Contracts       []string  `json:"contracts"`
	FunctionABI     string    `json:"functionAbi"`
	ContractAddress string    `json:"contractAddress"`
	CurrentStep     Step      `json:"currentStep"`
	UserType        Role      `json:"userType"`
}

// initialState returns the defaults for a new session of the given role
func initialState(role Role) FormState {
	return FormState{
		Contracts:   []string{},
		CurrentStep: StepTypeSelection,
		UserType:    role,
	}
}

// clone returns a deep copy so callers cannot reach engine-owned memory
func (s FormState) clone() FormState {
	out := s
	out.Contracts = append([]string{}, s.Contracts...)
	if s.Image != nil {
		img := *s.Image
		img.Data = append([]byte(nil), s.Image.Data...)
		out.Image = &img
	}
	return out
}
