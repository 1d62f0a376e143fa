package quest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// MaxImageSize is the upload limit for quest images (5MB)
const MaxImageSize = 5 * 1024 * 1024

// Submitter delivers a completed quest to the backend that accepts it
type Submitter interface {
	SubmitQuest(ctx context.Context, sub *Submission) (json.RawMessage, error)
}

// NavigationPolicy decides which steps SetStep may target once the current step is valid
type NavigationPolicy int

const (
	// NavigateAny allows any step once the current step validates
	NavigateAny NavigationPolicy = iota
	// NavigateAdjacent only allows the previous or the next step
	NavigateAdjacent
)

// ParseNavigationPolicy parses "any" or "adjacent"
func ParseNavigationPolicy(s string) (NavigationPolicy, error) {
	switch strings.ToLower(s) {
	case "", "any":
		return NavigateAny, nil
	case "adjacent":
		return NavigateAdjacent, nil
	default:
		return 0, fmt.Errorf("%w: unknown navigation policy %q", ErrInvalidValue, s)
	}
}

func (p NavigationPolicy) allows(from, to Step) bool {
	if p != NavigateAdjacent {
		return true
	}
	diff := to.Index() - from.Index()
	return diff >= -1 && diff <= 1
}

// Option configures an Engine
type Option func(*Engine)

// WithNavigationPolicy sets the step navigation policy
func WithNavigationPolicy(p NavigationPolicy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// ImageFile is an image upload handed to HandleImageUpload
type ImageFile struct {
	Filename    string
	ContentType string
	Size        int64 // declared size, checked before reading
	Reader      io.Reader
}

// Engine holds the state of one wizard session. All mutation goes through
// its methods; readers get copies.
type Engine struct {
	mu         sync.RWMutex
	role       Role
	state      FormState
	errors     ValidationErrors
	policy     NavigationPolicy
	submitting bool

	submitter Submitter
	logger    *zap.Logger
}

// NewEngine creates a wizard session for the given role
func NewEngine(role Role, submitter Submitter, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if _, err := role.variant(); err != nil {
		return nil, err
	}

	e := &Engine{
		role:      role,
		state:     initialState(role),
		errors:    make(ValidationErrors),
		submitter: submitter,
		logger:    logger.Named("quest").With(zap.String("role", string(role))),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Role returns the session role
func (e *Engine) Role() Role {
	return e.role
}

// State returns a copy of the current form values
func (e *Engine) State() FormState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.clone()
}

// Errors returns a copy of the current error set
func (e *Engine) Errors() ValidationErrors {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.errors.Clone()
}

// Snapshot returns state and errors read under the same lock
func (e *Engine) Snapshot() (FormState, ValidationErrors) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.clone(), e.errors.Clone()
}

// UpdateField overwrites one field and clears its error. Changing the
// quest type also clears the category, since categories depend on the type.
func (e *Engine) UpdateField(field Field, value any) error {
	if field == e.role.inactiveField() {
		return fmt.Errorf("%w: %s", ErrInactiveField, field)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch field {
	case FieldType:
		s, err := asString(field, value)
		if err != nil {
			return err
		}
		t, err := ParseQuestType(s)
		if err != nil {
			return err
		}
		if t != e.state.Type {
			e.state.Category = ""
		}
		e.state.Type = t
	case FieldCategory:
		s, err := asString(field, value)
		if err != nil {
			return err
		}
		c, err := ParseCategory(s)
		if err != nil {
			return err
		}
		e.state.Category = c
	case FieldDuration:
		s, err := asString(field, value)
		if err != nil {
			return err
		}
		d, err := ParseDuration(s)
		if err != nil {
			return err
		}
		e.state.Duration = d
	case FieldContracts:
		contracts, err := asStrings(field, value)
		if err != nil {
			return err
		}
		e.state.Contracts = contracts
	case FieldName, FieldDescription, FieldPoints, FieldWebsite,
		FieldRequiredMetric, FieldFunctionABI, FieldContractAddress:
		s, err := asString(field, value)
		if err != nil {
			return err
		}
		*e.textField(field) = s
	case FieldImage, FieldImagePreview, FieldCurrentStep, FieldUserType:
		return fmt.Errorf("%w: %s", ErrReadOnlyField, field)
	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidValue, string(field))
	}

	delete(e.errors, field)
	return nil
}

func (e *Engine) textField(field Field) *string {
	switch field {
	case FieldName:
		return &e.state.Name
	case FieldDescription:
		return &e.state.Description
	case FieldPoints:
		return &e.state.Points
	case FieldWebsite:
		return &e.state.Website
	case FieldRequiredMetric:
		return &e.state.RequiredMetric
	case FieldFunctionABI:
		return &e.state.FunctionABI
	case FieldContractAddress:
		return &e.state.ContractAddress
	}
	panic("quest: not a text field: " + string(field))
}

// SetStep validates the current step and moves to target when it passes.
// On failure the current step's errors replace the error set and are
// returned; an empty result means the move happened.
func (e *Engine) SetStep(target Step) (ValidationErrors, error) {
	if target.Index() < 0 {
		return nil, fmt.Errorf("%w: unknown step %q", ErrInvalidValue, string(target))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.state.CurrentStep
	if !e.policy.allows(current, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrStepNotReachable, current, target)
	}

	errs := Validate(e.state, current, e.role)
	if !errs.Empty() {
		e.errors = errs.Clone()
		e.logger.Debug("Step change blocked",
			zap.String("from", string(current)),
			zap.String("to", string(target)),
			zap.Int("errors", len(errs)))
		return errs, nil
	}

	e.state.CurrentStep = target
	e.errors = make(ValidationErrors)
	return errs, nil
}

// Validate validates a step against the current state without mutating it
func (e *Engine) Validate(step Step) ValidationErrors {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Validate(e.state, step, e.role)
}

// IsValid reports whether the step currently has no errors
func (e *Engine) IsValid(step Step) bool {
	return e.Validate(step).Empty()
}

// HandleImageUpload stores the image and its data URL preview together.
// Files over MaxImageSize set the image error and leave the state untouched;
// accepted reports whether the image was stored.
func (e *Engine) HandleImageUpload(file ImageFile) (accepted bool, err error) {
	if file.Size > MaxImageSize {
		e.RejectImage()
		return false, nil
	}
	if file.Reader == nil {
		return false, fmt.Errorf("%w: image has no content", ErrInvalidValue)
	}

	data, err := io.ReadAll(io.LimitReader(file.Reader, MaxImageSize+1))
	if err != nil {
		return false, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxImageSize {
		e.RejectImage()
		return false, nil
	}

	contentType := file.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	preview := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Image = &Image{
		Filename:    file.Filename,
		ContentType: contentType,
		Data:        data,
	}
	e.state.ImagePreview = preview
	delete(e.errors, FieldImage)
	delete(e.errors, FieldImagePreview)

	return true, nil
}

// RejectImage records the oversize image error and leaves the stored image as is
func (e *Engine) RejectImage() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors[FieldImage] = "Image size must be less than 5MB"
}

// RemoveImage clears the image and its preview
func (e *Engine) RemoveImage() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Image = nil
	e.state.ImagePreview = ""
}

// ResetForm restores the defaults for the session role and clears all errors
func (e *Engine) ResetForm() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
}

func (e *Engine) reset() {
	e.state = initialState(e.role)
	e.errors = make(ValidationErrors)
}

// SubmitForm validates every step and hands the encoded form to the
// submitter. Validation failures return *IncompleteError without calling
// the submitter. A submitter failure is recorded under the submit key and
// returned; the form keeps its values. On success the form is reset.
func (e *Engine) SubmitForm(ctx context.Context) (json.RawMessage, error) {
	e.mu.Lock()
	if e.submitting {
		e.mu.Unlock()
		return nil, ErrSubmitInProgress
	}

	all := ValidateAll(e.state, e.role)
	if !all.Empty() {
		e.errors = all.Clone()
		e.mu.Unlock()
		return nil, &IncompleteError{Errors: all}
	}

	if e.submitter == nil {
		e.mu.Unlock()
		return nil, e.recordSubmitError(errors.New("no submission endpoint configured"))
	}

	sub, err := EncodeSubmission(e.state)
	if err != nil {
		e.mu.Unlock()
		return nil, e.recordSubmitError(err)
	}
	e.submitting = true
	e.mu.Unlock()

	result, err := e.submitter.SubmitQuest(ctx, sub)

	e.mu.Lock()
	e.submitting = false
	e.mu.Unlock()

	if err != nil {
		return nil, e.recordSubmitError(err)
	}

	e.logger.Info("Quest submitted",
		zap.String("name", sub.Value(FieldName)),
		zap.String("type", sub.Value(FieldType)))

	e.ResetForm()
	return result, nil
}

func (e *Engine) recordSubmitError(err error) error {
	e.mu.Lock()
	e.errors[FieldSubmit] = err.Error()
	e.mu.Unlock()

	e.logger.Warn("Quest submission failed", zap.Error(err))
	return fmt.Errorf("failed to submit quest: %w", err)
}

func asString(field Field, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case QuestType:
		return string(v), nil
	case Category:
		return string(v), nil
	case Duration:
		return string(v), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("%w: %s expects a string, got %T", ErrInvalidValue, field, value)
	}
}

func asStrings(field Field, value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return append([]string{}, v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s expects a list of strings", ErrInvalidValue, field)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return []string{}, nil
	default:
		return nil, fmt.Errorf("%w: %s expects a list of strings, got %T", ErrInvalidValue, field, value)
	}
}
