// Package domain models water-supply interruption announcements published by
// Turkish municipal water utilities.
//
// # Data Sources
//
// Three cities are tracked, each with its own upstream conventions:
//
//	İzmir (İZSU):
//	  - Fault-driven interruptions come from the city's open data API as a JSON
//	    array. Neighborhoods arrive either as a single string ("Mahalle") or as
//	    a list ("Mahalleler"). Faults only; the API never reports planned work.
//	  - Planned works are announced as free text on an HTML page. Each district
//	    paragraph starts with "<District> İlçesi'nin ...;" or "<District> İlçesi;"
//	    followed by the affected neighborhoods, often wrapped over several lines.
//	Ankara (ASKİ) and İstanbul (İSKİ):
//	  - Free-form HTML pages with no stable structure. Their text is handed to
//	    an LLM which returns records as JSON.
//
// # Classification
//
// Every record carries a [Type]:
//
//	PLANNED: maintenance, investment, capacity or low-pressure work, drought.
//	FAULT:   pipe bursts and other physical damage.
//
// The LLM answers in Turkish ("PLANLI", "ARIZA"); [ParseType] maps both the
// Turkish and English spellings and drops anything else.
//
// # Time Windows
//
// Time windows are kept as free text. The İzmir planned-works page announces
// one window for the whole page ("09:00-17:00" or "09.00 - 17.00"); it is
// attached to every record from that page. When no window is found the
// placeholder [TimeWindowAnnounced] is used.
//
// # Known Limitations
//
// [GroupDistrictLines] depends on İZSU's fixed phrasing. If the marker words
// change, the page yields no records; there is no fallback.
package domain
