package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/dossier/pkg/types"
)

// Input limits.
const (
	MinHandleLength   = 3
	MinPasswordLength = 6
)

// Registration and login errors. Validation errors wrap ErrValidation.
var (
	ErrHandleTooShort     = fmt.Errorf("%w: handle must be at least %d characters", types.ErrValidation, MinHandleLength)
	ErrPasswordTooShort   = fmt.Errorf("%w: passcode must be at least %d characters", types.ErrValidation, MinPasswordLength)
	ErrPasswordMismatch   = fmt.Errorf("%w: passcodes do not match", types.ErrValidation)
	ErrContactRequired    = fmt.Errorf("%w: a phone number or email is required for account recovery", types.ErrValidation)
	ErrHandleTaken        = errors.New("agent handle is already taken")
	ErrInvalidCredentials = errors.New("invalid credentials or no profile found")
	ErrUnrecoverable      = errors.New("no recovery contact on file, passcode is unrecoverable")
)

// dummyHash is compared against when the handle is unknown so that a failed
// login costs the same whether or not the agent exists.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dossier-login-placeholder"), bcrypt.MinCost)

// RegisterRequest carries the onboarding form.
type RegisterRequest struct {
	Name     string
	Password string
	Confirm  string
	Phone    string
	Email    string
}

// Validate checks the onboarding rules.
func (r RegisterRequest) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(r.Name)) < MinHandleLength {
		return ErrHandleTooShort
	}
	if err := validatePassword(r.Password, r.Confirm); err != nil {
		return err
	}
	if strings.TrimSpace(r.Phone) == "" && strings.TrimSpace(r.Email) == "" {
		return ErrContactRequired
	}
	return nil
}

func validatePassword(password, confirm string) error {
	if utf8.RuneCountInString(strings.TrimSpace(password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

// Register creates a profile with a fresh id, zero points and no missions.
// Handles are unique under case folding; registrations and imports take the
// handles slot one at a time so only one of two equal handles succeeds.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (types.AgentProfile, error) {
	if err := req.Validate(); err != nil {
		s.metrics.Registration("invalid")
		return types.AgentProfile{}, err
	}
	name := strings.TrimSpace(req.Name)

	release, err := s.handles.acquire(ctx, handleSlot)
	if err != nil {
		return types.AgentProfile{}, err
	}
	defer release()

	_, found, err := types.FindAgentByName(ctx, s.agents, name)
	if err != nil {
		return types.AgentProfile{}, err
	}
	if found {
		s.metrics.Registration("taken")
		return types.AgentProfile{}, ErrHandleTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return types.AgentProfile{}, fmt.Errorf("hashing passcode: %w", err)
	}
	a := types.AgentProfile{
		ID:       NewID(AgentIDPrefix),
		Name:     name,
		Password: string(hash),
		Missions: []types.Mission{},
		Phone:    strings.TrimSpace(req.Phone),
		Email:    strings.TrimSpace(req.Email),
	}
	if err := s.agents.Add(ctx, a); err != nil {
		return types.AgentProfile{}, err
	}
	s.metrics.Registration("ok")
	s.log.Info().Str("agent", a.ID).Str("name", a.Name).Msg("agent registered")
	return a, nil
}

// Login returns the profile for name when password matches. Unknown handles
// and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, name, password string) (types.AgentProfile, error) {
	a, found, err := types.FindAgentByName(ctx, s.agents, name)
	if err != nil {
		return types.AgentProfile{}, err
	}
	if !found {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return types.AgentProfile{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(password)); err != nil {
		s.log.Debug().Str("agent", a.ID).Msg("login rejected")
		return types.AgentProfile{}, ErrInvalidCredentials
	}
	return a, nil
}

// RecoveryOutcome classifies a recovery request.
type RecoveryOutcome int

// Recovery outcomes.
const (
	RecoveryNotFound RecoveryOutcome = iota
	RecoveryUnrecoverable
	RecoveryAcknowledged
)

// RecoveryResult is the answer to a recovery request.
type RecoveryResult struct {
	Outcome RecoveryOutcome
	Agent   string
	Message string
}

// RequestRecovery reports whether the handle can be recovered. Store
// failures are returned as errors; the three outcomes are not.
func (s *Service) RequestRecovery(ctx context.Context, handle string) (RecoveryResult, error) {
	a, err := s.FindByName(ctx, handle)
	if isNotFound(err) {
		return RecoveryResult{Outcome: RecoveryNotFound, Message: "Agent handle not found in database."}, nil
	}
	if err != nil {
		return RecoveryResult{}, err
	}
	if !a.HasRecoveryContact() {
		return RecoveryResult{
			Outcome: RecoveryUnrecoverable,
			Agent:   a.Name,
			Message: "CRITICAL ERROR: No recovery contact on file. Passcode is unrecoverable.",
		}, nil
	}
	s.log.Info().Str("agent", a.ID).Msg("recovery requested")
	return RecoveryResult{
		Outcome: RecoveryAcknowledged,
		Agent:   a.Name,
		Message: fmt.Sprintf("Recovery signal acknowledged for Agent %s. Check your secure comms for a reset link.", a.Name),
	}, nil
}

// ResetPassword replaces the passcode of a recoverable profile.
func (s *Service) ResetPassword(ctx context.Context, handle, password, confirm string) error {
	if err := validatePassword(password, confirm); err != nil {
		return err
	}
	a, err := s.FindByName(ctx, handle)
	if err != nil {
		return err
	}
	if !a.HasRecoveryContact() {
		return ErrUnrecoverable
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return fmt.Errorf("hashing passcode: %w", err)
	}
	if _, err := s.Mutate(ctx, a.ID, func(p *types.AgentProfile) error {
		p.Password = string(hash)
		return nil
	}); err != nil {
		return err
	}
	s.log.Info().Str("agent", a.ID).Msg("passcode reset")
	return nil
}
