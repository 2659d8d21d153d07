package domain

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// District announcement markers used by İZSU's planned-works page.
const (
	markerDistrictOf   = "İlçesi'nin"
	markerDistrictList = "İlçesi;"
	markerDistrictWord = "İlçesi"
)

var (
	// timeWindowRe matches "HH:MM-HH:MM" style ranges; the separator inside a
	// time may be a colon or a period ("09.00 - 17.00").
	timeWindowRe = regexp.MustCompile(`(\d{1,2}[:.]\d{2})\s*-\s*(\d{1,2}[:.]\d{2})`)

	// boilerplate phrases that never belong to a neighborhood list.
	clickHerePhrase = "tıklayınız"
	letterheadText  = "İZMİR SU VE KANALİZASYON"
)

// ExtractTimeWindow returns the first time range found in text, or
// [TimeWindowAnnounced] when there is none.
func ExtractTimeWindow(text string) string {
	if m := timeWindowRe.FindString(text); m != "" {
		return m
	}
	return TimeWindowAnnounced
}

// GroupDistrictLines rebuilds district → neighborhood groups from the
// line-wrapped text of the İzmir planned-works announcement.
//
// A line containing a district marker starts a new group: the text before the
// first ';' (marker words removed) is the district and the text after it is
// the start of the neighborhood list. Following lines are appended to the
// neighborhood list with a single space until the next marker. Blank lines and
// boilerplate are skipped. A group is emitted only when both its district and
// neighborhood text are non-empty. Every record gets the same timeWindow.
func GroupDistrictLines(city string, lines []string, timeWindow string) []Record {
	lower := cases.Lower(language.Turkish)
	records := []Record{}

	var district, neighborhood string
	flush := func() {
		if district == "" || neighborhood == "" {
			return
		}
		records = append(records, Record{
			City:         city,
			Type:         TypePlanned,
			District:     district,
			Neighborhood: neighborhood,
			TimeWindow:   timeWindow,
			Reason:       ReasonPlannedWork,
		})
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || isBoilerplate(lower, line) {
			continue
		}

		if isDistrictMarker(line) {
			flush()
			district, neighborhood = parseDistrictLine(line)
			continue
		}

		if district == "" {
			continue
		}
		if neighborhood == "" {
			neighborhood = line
		} else {
			neighborhood += " " + line
		}
	}
	flush()

	return records
}

func isDistrictMarker(line string) bool {
	return strings.Contains(line, markerDistrictOf) || strings.Contains(line, markerDistrictList)
}

// isBoilerplate reports links and the utility letterhead. The click-here check
// uses Turkish casing so "TIKLAYINIZ" folds to "tıklayınız".
func isBoilerplate(lower cases.Caser, line string) bool {
	if strings.Contains(line, letterheadText) {
		return true
	}
	return strings.Contains(lower.String(line), clickHerePhrase)
}

// parseDistrictLine splits "Bornova İlçesi'nin; Kazımdirik, Erzene" into
// ("Bornova", "Kazımdirik, Erzene").
func parseDistrictLine(line string) (district, neighborhood string) {
	head, tail, _ := strings.Cut(line, ";")
	head = strings.ReplaceAll(head, markerDistrictOf, "")
	head = strings.ReplaceAll(head, markerDistrictWord, "")
	return strings.TrimSpace(head), strings.TrimSpace(tail)
}
