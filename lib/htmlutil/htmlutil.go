package htmlutil

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("schoolsync.lib.htmlutil")

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

// CleanText trims and collapses the text content of rendered html, the
// server likes to indent cell contents with runs of tabs and newlines.
func CleanText(s string) string {
	s = strings.Map(func(c rune) rune {
		if unicode.IsSpace(c) {
			return ' '
		}
		if !unicode.IsPrint(c) {
			return -1
		}
		return c
	}, s)
	s = strings.Trim(s, " ")
	return innerWhitespace.ReplaceAllString(s, " ")
}

type SelectOption struct {
	Value string
	Label string
}

// GetSelectOptions reads the option list of a <select> element selection.
// Placeholder options with an empty value attribute are skipped.
func GetSelectOptions(ctx context.Context, sel *goquery.Selection) []SelectOption {
	_, span := tracer.Start(ctx, "GetSelectOptions")
	defer span.End()

	options := []SelectOption{}
	sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		value := opt.AttrOr("value", "")
		if value == "" {
			return
		}
		label := CleanText(opt.Text())
		options = append(options, SelectOption{
			Value: value,
			Label: label,
		})
		span.AddEvent("option", trace.WithAttributes(
			attribute.String("value", value),
			attribute.String("label", label),
		))
	})
	return options
}

// GetTableGrid flattens a <table> selection into a zero-indexed grid of
// cleaned cell text. Header cells (th) count as cells like any other.
func GetTableGrid(ctx context.Context, table *goquery.Selection) [][]string {
	_, span := tracer.Start(ctx, "GetTableGrid")
	defer span.End()

	var grid [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var row []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			row = append(row, CleanText(cell.Text()))
		})
		if row != nil {
			grid = append(grid, row)
		}
	})

	span.SetAttributes(attribute.Int("rows", len(grid)))
	return grid
}
