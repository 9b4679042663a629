package diario

import (
	"context"
	"errors"
	"testing"
	"time"

	"schoolsync-backend/lib/browser"
	"schoolsync-backend/lib/testutil"

	"github.com/stretchr/testify/require"
)

const loginUrl = "https://diario.example.edu.br/login.aspx"

func newLoginFake() *browser.Fake {
	fake := browser.NewFake()
	fake.Present[`input[name="txtUsuario"]`] = true
	fake.Present[`input[name="txtSenha"]`] = true
	fake.Present[`button[type="submit"]`] = true
	return fake
}

func TestLoginTimesOutOnLoginSurface(t *testing.T) {
	_, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name: "scrapers/diario/session",
	})
	defer cleanup()

	fake := newLoginFake()
	controller := NewSessionController(fake, SessionOptions{
		LoginUrl:            loginUrl,
		PollInterval:        time.Millisecond * 10,
		VerificationTimeout: time.Millisecond * 50,
	})

	err := controller.Login(context.Background(), "user", "hunter2")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrVerificationTimeout))
	require.Equal(t, StateTimedOut, controller.State())
}

func TestLoginAuthenticatesWhenLocationLeavesLoginSurface(t *testing.T) {
	_, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name: "scrapers/diario/session",
	})
	defer cleanup()

	fake := newLoginFake()
	// the "human" finishes verification on the third poll
	fake.OnLocation = func(polls int) string {
		if polls >= 3 {
			return "https://diario.example.edu.br/home.aspx"
		}
		return ""
	}

	controller := NewSessionController(fake, SessionOptions{
		LoginUrl:            loginUrl,
		PollInterval:        time.Millisecond * 10,
		VerificationTimeout: time.Second * 5,
	})

	start := time.Now()
	err := controller.Login(context.Background(), "user", "hunter2")
	require.NoError(t, err)
	require.Equal(t, StateAuthenticated, controller.State())
	// two poll intervals plus scheduling slack, nowhere near the timeout
	require.Less(t, time.Since(start), time.Second)
}

func TestLoginCancellationClosesBrowser(t *testing.T) {
	_, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name: "scrapers/diario/session",
	})
	defer cleanup()

	fake := newLoginFake()
	controller := NewSessionController(fake, SessionOptions{
		LoginUrl:            loginUrl,
		PollInterval:        time.Millisecond * 10,
		VerificationTimeout: time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(time.Millisecond * 30)
		cancel()
	}()

	err := controller.Login(ctx, "user", "hunter2")
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, fake.Closed)
}

func TestLoginIsNotReusable(t *testing.T) {
	_, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name: "scrapers/diario/session",
	})
	defer cleanup()

	fake := newLoginFake()
	fake.OnLocation = func(polls int) string {
		return "https://diario.example.edu.br/home.aspx"
	}
	controller := NewSessionController(fake, SessionOptions{
		LoginUrl:     loginUrl,
		PollInterval: time.Millisecond * 10,
	})

	require.NoError(t, controller.Login(context.Background(), "user", "hunter2"))
	require.Error(t, controller.Login(context.Background(), "user", "hunter2"))
}

func TestOnLoginSurface(t *testing.T) {
	require.True(t, onLoginSurface("https://diario.example.edu.br/login.aspx?next=1", loginUrl))
	require.True(t, onLoginSurface("https://diario.example.edu.br/login.aspx/", loginUrl))
	require.False(t, onLoginSurface("https://diario.example.edu.br/home.aspx", loginUrl))
	require.False(t, onLoginSurface("https://other.example.com/login.aspx", loginUrl))
}
