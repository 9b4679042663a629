package diario

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"schoolsync-backend/lib/browser"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("schoolsync.scrapers.diario")

type SessionState int

const (
	StateIdle SessionState = iota
	StateCredentialsSubmitted
	StateAwaitingVerification
	StateAuthenticated
	StateTimedOut
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCredentialsSubmitted:
		return "CREDENTIALS_SUBMITTED"
	case StateAwaitingVerification:
		return "AWAITING_VERIFICATION"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateTimedOut:
		return "TIMED_OUT"
	}
	return "UNKNOWN"
}

var ErrVerificationTimeout = fmt.Errorf("timed out waiting for human verification")

type SessionOptions struct {
	LoginUrl string
	// how often the browser location is polled during the
	// verification wait, 2s when unset
	PollInterval time.Duration
	// how long to wait for the human to complete verification,
	// 2 minutes when unset
	VerificationTimeout time.Duration
}

// SessionController owns one browser context and drives it through
// credential submission and the human-assisted verification wait.
// AUTHENTICATED and TIMED_OUT are terminal, a controller is not reused
// across runs.
type SessionController struct {
	driver browser.Driver
	opts   SessionOptions
	state  SessionState
}

func NewSessionController(driver browser.Driver, opts SessionOptions) *SessionController {
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Second * 2
	}
	if opts.VerificationTimeout == 0 {
		opts.VerificationTimeout = time.Minute * 2
	}
	return &SessionController{
		driver: driver,
		opts:   opts,
		state:  StateIdle,
	}
}

func (s *SessionController) State() SessionState {
	return s.state
}

func (s *SessionController) Driver() browser.Driver {
	return s.driver
}

// Close releases the underlying browser context. Safe to call from a
// defer regardless of which state the controller ended up in.
func (s *SessionController) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Login submits credentials and blocks until the human completes the
// verification step or the configured timeout elapses. The platform
// demands the verification step on every login, there is no path that
// skips the wait.
func (s *SessionController) Login(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "session:Login")
	defer span.End()

	if s.state != StateIdle {
		return fmt.Errorf("login attempted in state %s", s.state)
	}

	err := s.submitCredentials(ctx, username, password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit credentials")
		return err
	}
	s.state = StateCredentialsSubmitted

	s.state = StateAwaitingVerification
	err = s.awaitVerification(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verification wait failed")
		return err
	}

	span.SetAttributes(attribute.String("state", s.state.String()))
	return nil
}

func (s *SessionController) submitCredentials(ctx context.Context, username, password string) error {
	err := s.driver.Navigate(ctx, s.opts.LoginUrl)
	if err != nil {
		return fmt.Errorf("open login page: %w", err)
	}

	usernameField, err := resolveField(ctx, s.driver, fieldUsername)
	if err != nil {
		return err
	}
	passwordField, err := resolveField(ctx, s.driver, fieldPassword)
	if err != nil {
		return err
	}
	submitButton, err := resolveField(ctx, s.driver, fieldLoginSubmit)
	if err != nil {
		return err
	}

	err = s.driver.Fill(ctx, usernameField, username)
	if err != nil {
		return fmt.Errorf("fill username: %w", err)
	}
	err = s.driver.Fill(ctx, passwordField, password)
	if err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	return s.driver.Click(ctx, submitButton)
}

func (s *SessionController) awaitVerification(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session:awaitVerification")
	defer span.End()

	start := time.Now()
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		location, err := s.driver.Location(ctx)
		if err != nil {
			return fmt.Errorf("read browser location: %w", err)
		}
		if !onLoginSurface(location, s.opts.LoginUrl) {
			s.state = StateAuthenticated
			span.SetAttributes(attribute.String("elapsed", time.Since(start).String()))
			return nil
		}

		elapsed := time.Since(start)
		if elapsed > s.opts.VerificationTimeout {
			s.state = StateTimedOut
			return fmt.Errorf("%w after %s", ErrVerificationTimeout, elapsed.Round(time.Second))
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			// cooperative cancellation, nothing has been written
			// anywhere yet so closing the browser is all the
			// cleanup there is
			s.driver.Close(context.WithoutCancel(ctx))
			return ctx.Err()
		}
	}
}

// authentication state is inferred solely from the browser leaving the
// login surface, the platform offers nothing more reliable
func onLoginSurface(location, loginUrl string) bool {
	current, err := url.Parse(location)
	if err != nil {
		return true
	}
	login, err := url.Parse(loginUrl)
	if err != nil {
		return true
	}
	if !strings.EqualFold(current.Hostname(), login.Hostname()) {
		return false
	}
	return strings.TrimSuffix(current.Path, "/") == strings.TrimSuffix(login.Path, "/")
}
