package sync

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

type SmtpConfig struct {
	Server       string
	Port         int
	EmailAddress string
	Password     string
	// operators who receive the run digest
	Recipients []string
}

func (c SmtpConfig) enabled() bool {
	return c.Server != "" && len(c.Recipients) > 0
}

func digestBody(report RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sync run %s finished at %s.\n\n", report.RunID, report.FinishedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Rows extracted: %d\nRows persisted: %d\n", report.RowsExtracted, report.RowsPersisted)

	drifted := 0
	for _, p := range report.Pages {
		if p.Drift != "" {
			drifted++
		}
	}
	if drifted > 0 {
		fmt.Fprintf(&b, "Pages skipped due to markup drift: %d\n", drifted)
	}

	if len(report.UnmappedClasses) > 0 {
		fmt.Fprintf(&b, "\nClass sections without a local mapping:\n")
		for _, id := range report.UnmappedClasses {
			fmt.Fprintf(&b, "  - %s\n", id)
		}
	}
	if len(report.Unresolved) > 0 {
		fmt.Fprintf(&b, "\nCells needing alias review:\n")
		for _, item := range report.Unresolved {
			fmt.Fprintf(&b, "  - [%s %s %s] %q\n", item.ExternalClassID, item.Day, item.TimeSlot, item.RawText)
		}
	}
	if len(report.NeedsReview) > 0 {
		fmt.Fprintf(&b, "\nStudent candidates needing review:\n")
		for _, c := range report.NeedsReview {
			fmt.Fprintf(&b, "  - %q -> %q (%.2f)\n", c.ExternalName, c.LocalName, c.Score)
		}
	}
	return b.String()
}

// sendDigest mails the run summary to the configured operators, a noop
// when smtp isn't configured.
func (s Service) sendDigest(report RunReport) error {
	if !s.options.Smtp.enabled() {
		return nil
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("SchoolSync <%s>", s.options.Smtp.EmailAddress)
	mail.To = s.options.Smtp.Recipients
	mail.Subject = fmt.Sprintf("Sync run %s", report.RunID)
	mail.Text = []byte(digestBody(report))

	addr := fmt.Sprintf("%s:%d", s.options.Smtp.Server, s.options.Smtp.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", s.options.Smtp.EmailAddress, s.options.Smtp.Password, s.options.Smtp.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		return mail.Send(addr, nil)
	}
	return err
}
