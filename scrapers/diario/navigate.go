package diario

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"schoolsync-backend/lib/browser"
	"schoolsync-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type NavigatorOptions struct {
	// url of the schedule/grades page behind the login
	PageUrl string
	// bounded wait for the async table render after the results
	// trigger, 15s when unset
	ResultsTimeout time.Duration
}

// Navigator drives the cascading selection controls of the results
// page. The precondition on ordering (class before subject before
// term) comes from the page itself: later option lists are reloaded
// off the change event of the earlier control, selecting out of order
// leaves stale or empty lists.
type Navigator struct {
	driver browser.Driver
	opts   NavigatorOptions

	classSelected   bool
	subjectSelected bool
}

// NewNavigator requires an authenticated session, handing it a
// controller that never reached AUTHENTICATED is a caller bug.
func NewNavigator(session *SessionController, opts NavigatorOptions) (*Navigator, error) {
	if session.State() != StateAuthenticated {
		return nil, fmt.Errorf("navigator requires an authenticated session, got %s", session.State())
	}
	if opts.ResultsTimeout == 0 {
		opts.ResultsTimeout = time.Second * 15
	}
	return &Navigator{driver: session.Driver(), opts: opts}, nil
}

// Driver exposes the underlying browser session, export downloads
// reuse its cookies.
func (n *Navigator) Driver() browser.Driver {
	return n.driver
}

func (n *Navigator) Open(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "navigator:Open")
	defer span.End()

	err := n.driver.Navigate(ctx, n.opts.PageUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open results page")
		return err
	}
	n.classSelected = false
	n.subjectSelected = false
	return nil
}

// ClassOptions lists the class sections currently offered by the class
// select, used when a run targets "all".
func (n *Navigator) ClassOptions(ctx context.Context) ([]htmlutil.SelectOption, error) {
	return n.selectOptions(ctx, fieldClassSelect)
}

// SubjectOptions depends on a class being selected first.
func (n *Navigator) SubjectOptions(ctx context.Context) ([]htmlutil.SelectOption, error) {
	if !n.classSelected {
		return nil, fmt.Errorf("subject options are stale until a class is selected")
	}
	return n.selectOptions(ctx, fieldSubjectSelect)
}

func (n *Navigator) selectOptions(ctx context.Context, f field) ([]htmlutil.SelectOption, error) {
	ctx, span := tracer.Start(ctx, "navigator:selectOptions")
	defer span.End()
	span.SetAttributes(attribute.String("control", f.String()))

	selector, err := resolveField(ctx, n.driver, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "control not found")
		return nil, err
	}
	html, err := n.driver.OuterHTML(ctx, selector)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read control")
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse control html")
		return nil, err
	}
	return htmlutil.GetSelectOptions(ctx, doc.Selection), nil
}

// SelectCascade sets the class, subject and term controls strictly in
// that order. subjectValue may be empty to leave subject and term
// untouched, termIndex is ignored when negative. A term without a
// subject is rejected, the term list isn't populated yet at that point.
func (n *Navigator) SelectCascade(ctx context.Context, classValue, subjectValue string, termIndex int) error {
	ctx, span := tracer.Start(ctx, "navigator:SelectCascade")
	defer span.End()
	span.SetAttributes(
		attribute.String("class", classValue),
		attribute.String("subject", subjectValue),
		attribute.Int("term", termIndex),
	)

	if classValue == "" {
		return fmt.Errorf("a class section must be selected before anything else")
	}
	if subjectValue == "" && termIndex >= 0 {
		return fmt.Errorf("cannot select a term without selecting a subject first")
	}

	err := n.selectControl(ctx, fieldClassSelect, classValue)
	if err != nil {
		return err
	}
	n.classSelected = true

	if subjectValue == "" {
		return nil
	}
	err = n.selectControl(ctx, fieldSubjectSelect, subjectValue)
	if err != nil {
		return err
	}
	n.subjectSelected = true

	if termIndex < 0 {
		return nil
	}
	// term options carry 1-based values in the markup
	return n.selectControl(ctx, fieldTermSelect, strconv.Itoa(termIndex+1))
}

func (n *Navigator) selectControl(ctx context.Context, f field, value string) error {
	selector, err := resolveField(ctx, n.driver, f)
	if err != nil {
		return err
	}
	err = n.driver.SelectOption(ctx, selector, value)
	if err != nil {
		return fmt.Errorf("select %s = %q: %w", f, value, err)
	}
	return nil
}

// how often the results table is checked during the bounded wait
const resultsPollInterval = time.Millisecond * 100

// ShowResults clicks the results trigger and waits (bounded) for the
// table to come up. The server populates the table asynchronously
// after the click, so right after it the control may not exist under
// any known name yet. Resolution is therefore retried for the whole
// wait, a drift error only means the timeout expired under every
// strategy.
func (n *Navigator) ShowResults(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "navigator:ShowResults")
	defer span.End()

	trigger, err := resolveField(ctx, n.driver, fieldResultsTrigger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "results trigger not found")
		return err
	}
	err = n.driver.Click(ctx, trigger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to click results trigger")
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, n.opts.ResultsTimeout)
	defer cancel()

	var lastErr error
	for {
		table, err := resolveField(waitCtx, n.driver, fieldResultsTable)
		if err == nil {
			err = n.driver.WaitVisible(waitCtx, table)
			if err == nil {
				return nil
			}
		}
		lastErr = err

		select {
		case <-waitCtx.Done():
			span.RecordError(lastErr)
			span.SetStatus(codes.Error, "results table never populated")
			return fmt.Errorf("wait for results table: %w", lastErr)
		case <-time.After(resultsPollInterval):
		}
	}
}
