// Package parser turns flight result markup into records and normalizes
// the values found in them.
package parser

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
)

const (
	resultSelector      = "div.flightresult_grid"
	airlineSelector     = "div.flightname div.fn_rht h4"
	flightCodeSelector  = ".airlinecode kbd"
	departureSelector   = "div.fdepbx"
	arrivalSelector     = "div.farrbx"
	durationSelector    = "div.durationbx"
	stopsSelector       = "div.stopbx span.text-danger"
	originSelector      = "span[id*='OriginAirportCode']"
	destinationSelector = "span[id*='DestinationAirportCode']"
	priceBlockSelector  = "div.flpricebx"
	fareNameSelector    = "div.fareClassTag span.comtag"
	offerPriceSelector  = "tt[id^='OfferPrice_']"
)

// flightNumberSeparator joins multiple legs of one result.
const flightNumberSeparator = ", "

// ParsePage extracts every flight result in markup. It fails only when the
// markup cannot be read as a document; a broken result block is logged and
// skipped.
func ParsePage(markup string) ([]models.FlightRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	var records []models.FlightRecord
	doc.Find(resultSelector).Each(func(i int, res *goquery.Selection) {
		record, err := extractFlight(res)
		if err != nil {
			slog.Warn("skipping result block",
				slog.Int("index", i),
				slog.Any("error", err),
			)
			return
		}
		records = append(records, record)
	})
	return records, nil
}

// readBlock reads the fields of one result block. It is a variable so a
// failing block can be simulated.
var readBlock = readFlight

func extractFlight(res *goquery.Selection) (record models.FlightRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			record = nil
			err = fmt.Errorf("extract result block: %v", r)
		}
	}()
	return readBlock(res), nil
}

func readFlight(res *goquery.Selection) models.FlightRecord {
	record := models.FlightRecord{
		models.FieldAirline:       textOr(res.Find(airlineSelector), models.NotAvailable),
		models.FieldFlightNumber:  flightNumbers(res),
		models.FieldDepartureTime: textOr(res.Find(departureSelector).First().Find("tt"), models.NotAvailable),
		models.FieldOrigin:        textOr(res.Find(departureSelector).First().Find(originSelector), models.NotAvailable),
		models.FieldArrivalTime:   textOr(res.Find(arrivalSelector).First().Find("tt"), models.NotAvailable),
		models.FieldDestination:   textOr(res.Find(arrivalSelector).First().Find(destinationSelector), models.NotAvailable),
		models.FieldDuration:      textOr(res.Find(durationSelector).First().Find("tt"), models.NotAvailable),
		models.FieldStops:         textOr(res.Find(stopsSelector), models.DefaultStops),
	}

	res.Find(priceBlockSelector).Each(func(_ int, block *goquery.Selection) {
		fare := textOr(block.Find(fareNameSelector), models.DefaultFareName)
		tag := block.Find(offerPriceSelector).First()
		if tag.Length() == 0 {
			return
		}
		price := StripNonNumeric(tag.Text())
		if previous, ok := record[fare]; ok {
			slog.Debug("duplicate fare in result block",
				slog.String("fare", fare),
				slog.String("suppressed", previous),
				slog.String("kept", price),
			)
		}
		record[fare] = price
	})

	return record
}

// flightNumbers joins every code+suffix pair of the result. Pairs missing
// either half are left out.
func flightNumbers(res *goquery.Selection) string {
	var numbers []string
	res.Find(flightCodeSelector).Each(func(_ int, kbd *goquery.Selection) {
		code := kbd.Find("code").First()
		suffix := kbd.Find("small").First()
		if code.Length() == 0 || suffix.Length() == 0 {
			return
		}
		digits := cleanText(strings.ReplaceAll(suffix.Text(), "-", ""))
		numbers = append(numbers, cleanText(code.Text())+"-"+digits)
	})
	if len(numbers) == 0 {
		return models.NotAvailable
	}
	return strings.Join(numbers, flightNumberSeparator)
}

// textOr returns the trimmed text of the first matched node, or fallback
// when nothing matched or the text is blank.
func textOr(sel *goquery.Selection, fallback string) string {
	first := sel.First()
	if first.Length() == 0 {
		return fallback
	}
	if text := cleanText(first.Text()); text != "" {
		return text
	}
	return fallback
}
