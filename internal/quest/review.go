package quest

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"fargoat/internal/blockchain/evm"
)

// ReviewContract is a contract as shown on the review step
type ReviewContract struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Address    string `json:"address,omitempty"`
	Registered bool   `json:"registered"`
}

// Review is the read-only summary rendered on the REVIEW step
type Review struct {
	Title            string           `json:"title"`
	Type             QuestType        `json:"type"`
	Category         Category         `json:"category"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	Points           string           `json:"points"`
	Website          string           `json:"website"`
	Duration         string           `json:"duration"`
	RequiredMetric   string           `json:"required_metric"`
	ImagePreview     string           `json:"image_preview,omitempty"`
	Contracts        []ReviewContract `json:"contracts,omitempty"`
	ContractAddress  string           `json:"contract_address,omitempty"`
	FunctionABI      string           `json:"function_abi"`
	FunctionSelector string           `json:"function_selector,omitempty"`
	Ready            bool             `json:"ready"`
	Errors           ValidationErrors `json:"errors"`
}

var metricPrinter = message.NewPrinter(language.English)

// Review builds the review summary of the current state
func (e *Engine) Review() Review {
	state := e.State()
	return BuildReview(state, e.role)
}

// BuildReview builds a review summary for a state and role
func BuildReview(state FormState, role Role) Review {
	errs := ValidateAll(state, role)

	r := Review{
		Type:           state.Type,
		Category:       state.Category,
		Name:           state.Name,
		Description:    state.Description,
		Points:         state.Points,
		Website:        state.Website,
		Duration:       state.Duration.Label(),
		RequiredMetric: FormatMetric(state.RequiredMetric, state.Type),
		ImagePreview:   state.ImagePreview,
		FunctionABI:    ResolveFunction(state.FunctionABI),
		Ready:          errs.Empty(),
		Errors:         errs,
	}

	if role == RoleFounder {
		r.Title = "Founder Quest"
		for _, id := range state.Contracts {
			rc := ReviewContract{ID: id}
			if c, ok := LookupContract(id); ok {
				rc.Name = c.Name
				rc.Registered = true
				if addr, err := evm.ChecksumAddress(c.Address); err == nil {
					rc.Address = addr
				}
			}
			r.Contracts = append(r.Contracts, rc)
		}
	} else {
		r.Title = "Community Quest"
		r.ContractAddress = state.ContractAddress
		if addr, err := evm.ChecksumAddress(state.ContractAddress); err == nil {
			r.ContractAddress = addr
		}
	}

	if selector, err := evm.FunctionSelectorHex(r.FunctionABI); err == nil {
		r.FunctionSelector = selector
	}

	return r
}

// FormatMetric renders a required metric value for its quest type:
// TVL in dollars, DAU in users, TRX as a plain count
func FormatMetric(value string, t QuestType) string {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return value
	}

	var formatted string
	switch {
	case n == math.Trunc(n) && math.Abs(n) < 1<<63:
		formatted = metricPrinter.Sprintf("%d", int64(n))
	case n == math.Trunc(n):
		// beyond int64
		formatted = metricPrinter.Sprintf("%.0f", n)
	default:
		formatted = metricPrinter.Sprintf("%.2f", n)
	}

	switch t {
	case QuestTypeTVL:
		return "$" + formatted
	case QuestTypeTRX:
		return formatted
	case QuestTypeDAU:
		return formatted + " users"
	default:
		return value
	}
}
