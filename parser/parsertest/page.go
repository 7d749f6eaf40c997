// Package parsertest builds flight result markup for tests.
package parsertest

import (
	"fmt"
	"strings"
)

// Flight describes one result block. Empty strings leave the matching
// element out of the markup.
type Flight struct {
	Airline     string
	Codes       [][2]string
	Departure   string
	Origin      string
	Arrival     string
	Destination string
	Duration    string
	Stops       string
	Fares       []Fare
}

// Fare is one price block. An empty Name omits the fare tag; NoPrice omits
// the offer price element.
type Fare struct {
	Name    string
	Price   string
	NoPrice bool
}

// Page wraps result blocks in a results document.
func Page(flights ...Flight) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Flight results</title></head><body>`)
	b.WriteString(`<div class="searchsummary"><span>Showing one-way fares sorted by price</span></div>`)
	b.WriteString(`<div id="flightresults">`)
	for i, f := range flights {
		writeFlight(&b, i, f)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

// Flights returns n distinct one-leg flights with a single "Saver" fare.
func Flights(start, n int) []Flight {
	out := make([]Flight, 0, n)
	for i := start; i < start+n; i++ {
		out = append(out, Flight{
			Airline:     "IndiGo",
			Codes:       [][2]string{{"6E", fmt.Sprintf("-%d", 100+i)}},
			Departure:   "06:10",
			Origin:      "DEL",
			Arrival:     "08:20",
			Destination: "BOM",
			Duration:    "2h 10m",
			Fares:       []Fare{{Name: "Saver", Price: fmt.Sprintf("₹ %d", 4000+i)}},
		})
	}
	return out
}

func writeFlight(b *strings.Builder, idx int, f Flight) {
	b.WriteString(`<div class="flightresult_grid">`)
	if f.Airline != "" {
		fmt.Fprintf(b, `<div class="flightname"><div class="fn_lft"><img src="logo.png"/></div><div class="fn_rht"><h4>%s</h4></div></div>`, f.Airline)
	}
	if len(f.Codes) > 0 {
		b.WriteString(`<div class="airlinecode">`)
		for _, c := range f.Codes {
			b.WriteString(`<kbd>`)
			if c[0] != "" {
				fmt.Fprintf(b, `<code id="">%s</code>`, c[0])
			}
			if c[1] != "" {
				fmt.Fprintf(b, `<small>%s</small>`, c[1])
			}
			b.WriteString(`</kbd>`)
		}
		b.WriteString(`</div>`)
	}
	if f.Departure != "" || f.Origin != "" {
		fmt.Fprintf(b, `<div class="fdepbx"><tt>%s</tt><span id="OriginAirportCode_%d">%s</span></div>`, f.Departure, idx, f.Origin)
	}
	if f.Arrival != "" || f.Destination != "" {
		fmt.Fprintf(b, `<div class="farrbx"><tt>%s</tt><span id="DestinationAirportCode_%d">%s</span></div>`, f.Arrival, idx, f.Destination)
	}
	if f.Duration != "" {
		fmt.Fprintf(b, `<div class="durationbx"><tt>%s</tt></div>`, f.Duration)
	}
	if f.Stops != "" {
		fmt.Fprintf(b, `<div class="stopbx"><span class="text-danger">%s</span></div>`, f.Stops)
	}
	for j, fare := range f.Fares {
		b.WriteString(`<div class="flpricebx">`)
		if fare.Name != "" {
			fmt.Fprintf(b, `<div class="fareClassTag"><span class="comtag">%s</span></div>`, fare.Name)
		}
		if !fare.NoPrice {
			fmt.Fprintf(b, `<tt id="OfferPrice_%d_%d">%s</tt>`, idx, j, fare.Price)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div>`)
}
