package diario

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"

	"schoolsync-backend/lib/browser"
	"schoolsync-backend/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	restyInstrumentOutput = output
}

// ExportClient downloads server-generated exports (csv student lists
// and the like) over plain http, riding on the cookies of an already
// authenticated browser session instead of logging in a second time.
type ExportClient struct {
	BaseUrl *url.URL
	Http    *resty.Client
}

func NewExportClient(ctx context.Context, driver browser.Driver, baseUrl string) (*ExportClient, error) {
	base, err := url.Parse(baseUrl)
	if err != nil {
		return nil, err
	}

	cookies, err := driver.Cookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("read session cookies: %w", err)
	}

	client := resty.New()
	client.SetBaseURL(baseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	jar.SetCookies(base, cookies)
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(base.Hostname()))
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return &ExportClient{
		BaseUrl: base,
		Http:    client,
	}, nil
}

// DownloadStudentList fetches the csv export of the given class
// section's enrolled students.
func (c *ExportClient) DownloadStudentList(ctx context.Context, classValue string) ([]byte, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParam("turma", classValue).
		SetQueryParam("formato", "csv").
		Get("/relatorios/alunos/exportar")
	if err != nil {
		return nil, err
	}
	if res.StatusCode() != 200 {
		return nil, fmt.Errorf("export returned status %d", res.StatusCode())
	}
	return res.Body(), nil
}
