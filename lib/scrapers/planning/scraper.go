package planning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"

	"iutcal-backend/lib/telemetry"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
const acceptLanguage = "fr-FR,fr;q=0.9,en;q=0.8"

var dateShape = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

type ClientOptions struct {
	// LoginUrl is the identity provider login page.
	LoginUrl string
	// LoginTitle is the substring the login page title must contain.
	LoginTitle string
	// AppUrl is the landing url of the planning application after login.
	AppUrl string

	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	GenerateDelay     time.Duration
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.LoginTitle == "" {
		o.LoginTitle = "Service central d'authentification"
	}
	if o.NavigationTimeout == 0 {
		o.NavigationTimeout = time.Second * 30
	}
	if o.SettleDelay == 0 {
		o.SettleDelay = time.Second * 2
	}
	if o.GenerateDelay == 0 {
		o.GenerateDelay = time.Second * 5
	}
	return o
}

type Credentials struct {
	Username string
	Password string
}

// Client drives a headless browser through the SSO login and planning UI of
// the upstream portal. It holds no session state between calls: every
// FetchRawCalendar spawns and disposes of its own browser.
type Client struct {
	opts ClientOptions
	http *resty.Client
}

func NewClient(opts ClientOptions) *Client {
	client := resty.New()
	client.SetHeader("user-agent", userAgent)
	client.SetHeader("accept-language", acceptLanguage)
	client.SetTimeout(time.Second * 30)
	telemetry.InstrumentResty(client, "iutcal.lib.scrapers.planning.http")

	return &Client{
		opts: opts.withDefaults(),
		http: client,
	}
}

// FetchRawCalendar runs the full login / navigate / export sequence for one
// group and returns the raw ICS text of the generated export. Dates are in
// DD/MM/YYYY form as the portal expects. Any step failure aborts the whole
// call; there is no partial retry at this layer.
func (c *Client) FetchRawCalendar(ctx context.Context, creds Credentials, group, rangeStart, rangeEnd string) (string, error) {
	ctx, span := tracer.Start(ctx, "client:FetchRawCalendar")
	defer span.End()

	if err := validateRequest(creds, group, rangeStart, rangeEnd); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		return "", err
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:], chromedp.UserAgent(userAgent))...,
	)
	defer cancelAlloc()
	browser, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	raw, err := c.fetch(ctx, browser, creds, group, rangeStart, rangeEnd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return raw, nil
}

func validateRequest(creds Credentials, group, rangeStart, rangeEnd string) error {
	if creds.Username == "" || creds.Password == "" {
		return ValidationError{Reason: "credentials must not be empty"}
	}
	if group == "" {
		return ValidationError{Reason: "group must not be empty"}
	}
	if !dateShape.MatchString(rangeStart) {
		return ValidationError{Reason: fmt.Sprintf("start date %q is not in DD/MM/YYYY form", rangeStart)}
	}
	if !dateShape.MatchString(rangeEnd) {
		return ValidationError{Reason: fmt.Sprintf("end date %q is not in DD/MM/YYYY form", rangeEnd)}
	}
	return nil
}

// fetch is the linear state machine behind FetchRawCalendar. `browser` is
// the chromedp context of the session; `ctx` is only used for the final
// authenticated download.
func (c *Client) fetch(ctx context.Context, browser context.Context, creds Credentials, group, rangeStart, rangeEnd string) (string, error) {
	ev := chromedpEvaluator{ctx: browser}

	// upstream varies behavior by client, pin headers for the whole session
	err := chromedp.Run(browser,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": acceptLanguage,
		}),
	)
	if err != nil {
		return "", fmt.Errorf("configure session headers: %w", err)
	}

	var title string
	err = chromedp.Run(browser,
		chromedp.Navigate(c.opts.LoginUrl),
		chromedp.Title(&title),
	)
	if err != nil {
		return "", fmt.Errorf("navigate to login page: %w", err)
	}
	if !strings.Contains(title, c.opts.LoginTitle) {
		return "", UnexpectedPageError{Title: title}
	}

	var submitted bool
	err = chromedp.Run(browser, chromedp.Evaluate(submitLoginScript(creds), &submitted))
	if err != nil {
		return "", fmt.Errorf("submit credentials: %w", err)
	}
	if !submitted {
		return "", UnexpectedPageError{Title: title}
	}

	// bounded wait for the post-login redirect into the planning app
	navCtx, cancelNav := context.WithTimeout(browser, c.opts.NavigationTimeout)
	err = chromedp.Run(navCtx, chromedp.Poll(
		fmt.Sprintf(`location.href.startsWith(%s)`, jsString(c.opts.AppUrl)),
		nil,
		chromedp.WithPollingInterval(time.Millisecond*200),
	))
	cancelNav()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, chromedp.ErrPollingTimeout) {
			return "", AuthenticationTimeoutError{Timeout: c.opts.NavigationTimeout}
		}
		return "", fmt.Errorf("wait for planning app: %w", err)
	}

	// the planning app always shows a "reconnect" prompt for sessions
	// opened through SSO, it has to be dismissed before the tree renders
	clicked, err := FindAndClick(ctx, ev, ControlStrategies, "Reconnexion", "Reconnect")
	if err != nil {
		return "", fmt.Errorf("reconnect: %w", err)
	}
	if !clicked {
		slog.WarnContext(ctx, "reconnect control not found, assuming already connected")
	}
	err = c.waitSettled(browser)
	if err != nil {
		return "", fmt.Errorf("wait for planning app to settle: %w", err)
	}

	found, err := FindAndClick(ctx, ev, GroupStrategies, group)
	if err != nil {
		return "", fmt.Errorf("locate group: %w", err)
	}
	if !found {
		return "", GroupNotFoundError{
			Group:   group,
			Closest: c.closestGroupLabel(browser, group),
		}
	}
	// the tree gives no completion signal for a selection
	err = chromedp.Run(browser, chromedp.Sleep(c.opts.SettleDelay))
	if err != nil {
		return "", err
	}

	found, err = FindAndClick(ctx, ev, ControlStrategies,
		"Exporter l'agenda", "Export agenda", "Export calendar")
	if err != nil {
		return "", fmt.Errorf("locate export control: %w", err)
	}
	if !found {
		return "", ExportControlNotFoundError{}
	}
	err = chromedp.Run(browser, chromedp.Sleep(c.opts.SettleDelay))
	if err != nil {
		return "", err
	}

	var datesSet bool
	err = chromedp.Run(browser, chromedp.Evaluate(setDateRangeScript(rangeStart, rangeEnd), &datesSet))
	if err != nil {
		return "", fmt.Errorf("set date range: %w", err)
	}
	if !datesSet {
		return "", ExportControlNotFoundError{}
	}

	found, err = FindAndClick(ctx, ev, ControlStrategies, "Générer URL", "Generate URL")
	if err != nil {
		return "", fmt.Errorf("locate generate control: %w", err)
	}
	if !found {
		return "", LinkGenerationError{}
	}
	err = chromedp.Run(browser, chromedp.Sleep(c.opts.GenerateDelay))
	if err != nil {
		return "", err
	}

	link, err := c.readGeneratedLink(browser)
	if err != nil {
		return "", err
	}
	slog.DebugContext(ctx, "generated export link", "group", group, "link", link)

	return c.downloadExport(ctx, browser, link)
}

func (c *Client) waitSettled(browser context.Context) error {
	settleCtx, cancel := context.WithTimeout(browser, c.opts.NavigationTimeout)
	defer cancel()
	err := chromedp.Run(settleCtx, chromedp.Poll(
		`document.readyState === 'complete'`,
		nil,
		chromedp.WithPollingInterval(time.Millisecond*200),
	))
	if err != nil {
		return err
	}
	// scripts keep building the tree after readyState settles
	return chromedp.Run(browser, chromedp.Sleep(c.opts.SettleDelay))
}

// closestGroupLabel harvests the visible tree labels and returns the one
// most similar to the requested group, for a friendlier not-found error.
// Best effort only: any failure yields an empty suggestion.
func (c *Client) closestGroupLabel(browser context.Context, group string) string {
	var labels []string
	err := chromedp.Run(browser, chromedp.Evaluate(
		`Array.from(document.querySelectorAll('span.x-tree3-node-text')).map(e => e.textContent.trim()).filter(t => t.length > 0)`,
		&labels,
	))
	if err != nil {
		return ""
	}

	best := ""
	bestScore := 0.0
	for _, label := range labels {
		score := matchr.JaroWinkler(group, label, false)
		if score > bestScore {
			best = label
			bestScore = score
		}
	}
	if bestScore < 0.75 {
		return ""
	}
	return best
}

// readGeneratedLink pulls the page html and looks for the download link in
// the results area, either as an anchor or as a copyable text field.
func (c *Client) readGeneratedLink(browser context.Context) (string, error) {
	var pageHtml string
	err := chromedp.Run(browser, chromedp.OuterHTML("html", &pageHtml, chromedp.ByQuery))
	if err != nil {
		return "", fmt.Errorf("read results area: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHtml))
	if err != nil {
		return "", fmt.Errorf("parse results area: %w", err)
	}

	link := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if isExportLink(href) {
			link = href
			return false
		}
		return true
	})
	if link == "" {
		doc.Find("input[type=text],textarea").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			value, _ := s.Attr("value")
			if value == "" {
				value = s.Text()
			}
			if isExportLink(value) {
				link = strings.TrimSpace(value)
				return false
			}
			return true
		})
	}
	if link == "" {
		return "", LinkGenerationError{}
	}
	return link, nil
}

func isExportLink(href string) bool {
	return strings.Contains(href, "ical") || strings.Contains(href, "anonymous_cal")
}

// downloadExport fetches the generated link with the browser session's
// cookies. resty is used instead of driving a download through the browser
// so the body comes back as plain text.
func (c *Client) downloadExport(ctx context.Context, browser context.Context, link string) (string, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(browser, chromedp.ActionFunc(func(cdctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(cdctx)
		return err
	}))
	if err != nil {
		return "", fmt.Errorf("read session cookies: %w", err)
	}

	target, err := c.resolveLink(link)
	if err != nil {
		return "", err
	}

	httpCookies := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		httpCookies = append(httpCookies, &http.Cookie{
			Name:   ck.Name,
			Value:  ck.Value,
			Domain: ck.Domain,
			Path:   ck.Path,
		})
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetCookies(httpCookies).
		Get(target)
	if err != nil {
		return "", fmt.Errorf("download export: %w", err)
	}
	if res.IsError() {
		return "", fmt.Errorf("download export: status %s", res.Status())
	}
	return string(res.Body()), nil
}

func (c *Client) resolveLink(link string) (string, error) {
	base, err := url.Parse(c.opts.AppUrl)
	if err != nil {
		return "", fmt.Errorf("parse app url: %w", err)
	}
	ref, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", fmt.Errorf("parse generated link: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

func submitLoginScript(creds Credentials) string {
	return fmt.Sprintf(`(() => {
	const user = document.querySelector('#username, input[name=username]');
	const pass = document.querySelector('#password, input[name=password]');
	if (!user || !pass) return false;
	user.value = %s;
	pass.value = %s;
	const form = user.form || document.querySelector('form');
	if (!form) return false;
	form.submit();
	return true;
})()`, jsString(creds.Username), jsString(creds.Password))
}

// setDateRangeScript locates the export dialog's date inputs by their label
// text (french or english ui) and writes the values programmatically, which
// is far less fragile than simulated typing against a date widget.
func setDateRangeScript(rangeStart, rangeEnd string) string {
	return fmt.Sprintf(`(() => {
	const labels = Array.from(document.querySelectorAll('label,span,div,td'));
	const findInput = (names) => {
		for (const l of labels) {
			const t = l.textContent.trim().toLowerCase();
			if (!names.some(n => t === n || t.startsWith(n + ' '))) continue;
			const forId = l.getAttribute ? l.getAttribute('for') : null;
			if (forId) {
				const direct = document.getElementById(forId);
				if (direct) return direct;
			}
			const near = l.closest('tr,div') || l.parentElement;
			if (near) {
				const input = near.querySelector('input');
				if (input) return input;
			}
		}
		return null;
	};
	const startInput = findInput(['du', 'début', 'from', 'start']);
	const endInput = findInput(['au', 'fin', 'to', 'end']);
	if (!startInput || !endInput || startInput === endInput) return false;
	const write = (el, v) => {
		el.value = v;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		el.dispatchEvent(new Event('blur'));
	};
	write(startInput, %s);
	write(endInput, %s);
	return true;
})()`, jsString(rangeStart), jsString(rangeEnd))
}

// chromedpEvaluator adapts a live chromedp context to the Evaluator
// interface the lookup strategies are written against.
type chromedpEvaluator struct {
	ctx context.Context
}

func (e chromedpEvaluator) Eval(_ context.Context, expr string, out any) error {
	return chromedp.Run(e.ctx, chromedp.Evaluate(expr, out))
}
