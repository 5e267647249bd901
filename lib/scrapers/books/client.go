// Package books scrapes the listing pages of the books.toscrape.com demo shop.
package books

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"utf8fix/lib/htmlutil"
	"utf8fix/lib/restyutil"
	"utf8fix/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html/charset"
)

const DefaultBaseUrl = "https://books.toscrape.com/"

var tracer = telemetry.Tracer("utf8fix.lib.scrapers.books")

var ErrUnexpectedStatus = errors.New("unexpected status")

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client
}

type ClientOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl   string
	Timeout   time.Duration
	UserAgent string
	// where request dumps go, nil disables them
	Instrument restyutil.InstrumentOutput
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if baseUrl.Scheme == "" || baseUrl.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseUrl)
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	if opts.UserAgent != "" {
		client.SetHeader("user-agent", opts.UserAgent)
	}
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	restyutil.InstrumentClient(client, tracer, opts.Instrument)

	return &Client{
		BaseUrl: baseUrl,
		Http:    client,
	}, nil
}

func (c *Client) get(ctx context.Context, link string) (*goquery.Document, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(link)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("GET %s: %w: %s", link, ErrUnexpectedStatus, res.Status())
	}

	// the pages declare their charset, respect it instead of assuming utf-8
	body, err := charset.NewReader(bytes.NewReader(res.Body()), res.Header().Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(body)
}

func (c *Client) resolve(link string) (*url.URL, error) {
	ref, err := url.Parse(link)
	if err != nil {
		return nil, err
	}
	return c.BaseUrl.ResolveReference(ref), nil
}

// FetchPage parses one listing page, `link` may be relative to the base url.
func (c *Client) FetchPage(ctx context.Context, link string) (Page, error) {
	ctx, span := tracer.Start(ctx, "client:FetchPage")
	defer span.End()

	pageUrl, err := c.resolve(link)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid page url")
		return Page{}, err
	}
	span.SetAttributes(attribute.String("url", pageUrl.String()))

	doc, err := c.get(ctx, pageUrl.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch page")
		return Page{}, err
	}

	page := ParsePage(doc, pageUrl)
	span.SetAttributes(attribute.Int("books", len(page.Books)))
	return page, nil
}

// ParsePage extracts the books and the next link from a listing document,
// links are resolved against `pageUrl`.
func ParsePage(doc *goquery.Document, pageUrl *url.URL) Page {
	page := Page{URL: pageUrl.String()}

	doc.Find("article.product_pod").Each(func(_ int, pod *goquery.Selection) {
		anchor := pod.Find("h3 > a").First()
		// the visible text is truncated, the title attribute is not
		title := strings.TrimSpace(anchor.AttrOr("title", ""))
		if title == "" {
			title = htmlutil.SelectionText(anchor)
		}
		detail, _ := htmlutil.ResolveHref(pageUrl, anchor)

		page.Books = append(page.Books, Book{
			Title:     title,
			Price:     htmlutil.SelectionText(pod.Find("p.price_color").First()),
			Rating:    ParseRating(pod.Find("p.star-rating").AttrOr("class", "")),
			InStock:   strings.EqualFold(htmlutil.SelectionText(pod.Find("p.availability").First()), "in stock"),
			DetailURL: detail,
		})
	})

	next, ok := htmlutil.ResolveHref(pageUrl, doc.Find("li.next > a").First())
	if ok {
		page.NextURL = next
	}
	return page
}

// FetchDetail reads the product page of a single book.
func (c *Client) FetchDetail(ctx context.Context, link string) (Detail, error) {
	ctx, span := tracer.Start(ctx, "client:FetchDetail")
	defer span.End()

	detailUrl, err := c.resolve(link)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid detail url")
		return Detail{}, err
	}
	span.SetAttributes(attribute.String("url", detailUrl.String()))

	doc, err := c.get(ctx, detailUrl.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch detail")
		return Detail{}, err
	}
	return ParseDetail(doc), nil
}

func ParseDetail(doc *goquery.Document) Detail {
	detail := Detail{
		Title:       htmlutil.SelectionText(doc.Find("div.product_main h1").First()),
		Description: htmlutil.SelectionText(doc.Find("#product_description").Next().Filter("p")),
	}
	if detail.Title == "" {
		detail.Title = htmlutil.SelectionText(doc.Find("h1").First())
	}
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		if strings.EqualFold(htmlutil.SelectionText(row.Find("th")), "upc") {
			detail.UPC = htmlutil.SelectionText(row.Find("td"))
		}
	})
	return detail
}

type ScrapeOptions struct {
	// defaults to the base url
	StartUrl string
	// 0 means only the start page
	MaxPages int
	// fetch the product page of every book as well
	WithDetails bool
}

// Scrape walks listing pages by following the "next" link. Pages are fetched
// one after another.
func (c *Client) Scrape(ctx context.Context, opts ScrapeOptions) ([]Book, error) {
	ctx, span := tracer.Start(ctx, "client:Scrape")
	defer span.End()

	link := opts.StartUrl
	if link == "" {
		link = c.BaseUrl.String()
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	var result []Book
	seen := map[string]bool{}
	for i := 0; i < maxPages && link != ""; i++ {
		pageUrl, err := c.resolve(link)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid next link")
			return result, err
		}
		if seen[pageUrl.String()] {
			slog.WarnContext(ctx, "next link loops back", "url", pageUrl.String())
			break
		}
		seen[pageUrl.String()] = true

		page, err := c.FetchPage(ctx, pageUrl.String())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to scrape page")
			return result, err
		}
		slog.InfoContext(ctx, "scraped page", "url", page.URL, "books", len(page.Books))

		if opts.WithDetails {
			for j := range page.Books {
				b := &page.Books[j]
				if b.DetailURL == "" {
					continue
				}
				detail, err := c.FetchDetail(ctx, b.DetailURL)
				if err != nil {
					slog.WarnContext(ctx, "failed to fetch book detail", "url", b.DetailURL, "err", err)
					continue
				}
				if detail.Title != "" {
					b.Title = detail.Title
				}
				b.UPC = detail.UPC
				b.Description = detail.Description
			}
		}

		result = append(result, page.Books...)
		link = page.NextURL
	}

	span.SetAttributes(attribute.Int("books", len(result)))
	return result, nil
}
