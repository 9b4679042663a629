package cmd

import (
	"context"
	"fmt"
	"time"

	"schoolsync-backend/lib/browser"
	"schoolsync-backend/scrapers/diario"
	"schoolsync-backend/services/sync"
)

// openNavigator starts a visible browser, logs in and waits for the
// operator to finish the verification step in the window.
func openNavigator(ctx context.Context) (*diario.Navigator, func(), error) {
	driver, err := browser.NewChrome(ctx, browser.ChromeOptions{
		ExecPath: config.Portal.ChromePath,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("start browser: %w", err)
	}
	cleanup := func() {
		driver.Close(context.WithoutCancel(ctx))
	}

	controller := diario.NewSessionController(driver, diario.SessionOptions{
		LoginUrl:            config.Portal.LoginUrl,
		VerificationTimeout: time.Duration(timeout) * time.Second,
	})

	fmt.Println("Logging in. Complete the verification step in the browser window when prompted.")
	err = controller.Login(ctx, config.Portal.Username, config.Portal.Password)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	nav, err := diario.NewNavigator(controller, diario.NavigatorOptions{
		PageUrl: config.Portal.ScheduleUrl,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return nav, cleanup, nil
}

// selections built from the --class/--subject/--term flags, nil when
// none were given (meaning: walk everything).
func flagSelections(classValue, subjectValue string, term int) []sync.Selection {
	if classValue == "" {
		return nil
	}
	return []sync.Selection{{
		ClassValue:   classValue,
		SubjectValue: subjectValue,
		TermIndex:    term - 1,
	}}
}
