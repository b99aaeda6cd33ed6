package timezone

import (
	"strings"
	"sync"
	"time"
	_ "time/tzdata"
)

var airportTimezones = map[string]string{
	// Indonesia
	"CGK": "Asia/Jakarta", // Jakarta - Soekarno-Hatta
	"HLP": "Asia/Jakarta", // Jakarta - Halim Perdanakusuma
	"BDO": "Asia/Jakarta",
	"SUB": "Asia/Jakarta",
	"SRG": "Asia/Jakarta",
	"JOG": "Asia/Jakarta",
	"SOC": "Asia/Jakarta",
	"PLM": "Asia/Jakarta",
	"BTH": "Asia/Jakarta",
	"PKU": "Asia/Jakarta",
	"PDG": "Asia/Jakarta",
	"KNO": "Asia/Jakarta",
	"BTJ": "Asia/Jakarta",
	"PNK": "Asia/Pontianak",
	"DPS": "Asia/Makassar", // Bali - Ngurah Rai
	"LOP": "Asia/Makassar",
	"UPG": "Asia/Makassar",
	"BPN": "Asia/Makassar",
	"MDC": "Asia/Makassar",
	"DJJ": "Asia/Jayapura",
	"TIM": "Asia/Jayapura",
	"AMQ": "Asia/Jayapura",
	"SOQ": "Asia/Jayapura",

	// Middle East
	"DAM": "Asia/Damascus", // Damascus
	"ALP": "Asia/Damascus", // Aleppo
	"LTK": "Asia/Damascus", // Latakia
	"MHD": "Asia/Tehran",   // Mashhad
	"IKA": "Asia/Tehran",   // Tehran - Imam Khomeini
	"THR": "Asia/Tehran",   // Tehran - Mehrabad
	"SYZ": "Asia/Tehran",
	"IFN": "Asia/Tehran",
	"BGW": "Asia/Baghdad",
	"NJF": "Asia/Baghdad",
	"BEY": "Asia/Beirut",
	"AMM": "Asia/Amman",
	"DXB": "Asia/Dubai",
	"AUH": "Asia/Dubai",
	"SHJ": "Asia/Dubai",
	"DOH": "Asia/Qatar",
	"BAH": "Asia/Bahrain",
	"KWI": "Asia/Kuwait",
	"MCT": "Asia/Muscat",
	"JED": "Asia/Riyadh",
	"RUH": "Asia/Riyadh",
	"MED": "Asia/Riyadh",
	"IST": "Europe/Istanbul",
	"SAW": "Europe/Istanbul",
	"CAI": "Africa/Cairo",

	// Europe
	"LHR": "Europe/London",
	"LGW": "Europe/London",
	"CDG": "Europe/Paris",
	"FRA": "Europe/Berlin",
	"MUC": "Europe/Berlin",
	"AMS": "Europe/Amsterdam",
	"BCN": "Europe/Madrid",
	"MAD": "Europe/Madrid",
	"FCO": "Europe/Rome",
	"VIE": "Europe/Vienna",
	"ZRH": "Europe/Zurich",

	// Asia-Pacific
	"SIN": "Asia/Singapore",
	"KUL": "Asia/Kuala_Lumpur",
	"BKK": "Asia/Bangkok",
	"HKG": "Asia/Hong_Kong",
	"HND": "Asia/Tokyo",
	"NRT": "Asia/Tokyo",
	"ICN": "Asia/Seoul",
	"DEL": "Asia/Kolkata",
	"BOM": "Asia/Kolkata",
	"SYD": "Australia/Sydney",
	"MEL": "Australia/Melbourne",
	"PER": "Australia/Perth",

	// Americas
	"JFK": "America/New_York",
	"EWR": "America/New_York",
	"ORD": "America/Chicago",
	"LAX": "America/Los_Angeles",
	"SFO": "America/Los_Angeles",
	"YYZ": "America/Toronto",
	"GRU": "America/Sao_Paulo",
}

var locations sync.Map // zone name -> *time.Location

// Name returns the IANA zone for an airport, or "UTC" when it is unknown.
func Name(airport string) string {
	if tz, ok := airportTimezones[strings.ToUpper(airport)]; ok {
		return tz
	}
	return "UTC"
}

func Location(airport string) *time.Location {
	name := Name(airport)
	if loc, ok := locations.Load(name); ok {
		return loc.(*time.Location)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = time.UTC
	}
	locations.Store(name, loc)
	return loc
}

// In returns t expressed in the airport's local time.
func In(t time.Time, airport string) time.Time {
	return t.In(Location(airport))
}

// ParseLocal parses a supplier timestamp. Timestamps carrying an offset are
// taken as-is; naive ones are interpreted in the airport's local time.
func ParseLocal(timeStr, airport string) (time.Time, error) {
	withOffset := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04-07:00",
	}
	for _, format := range withOffset {
		if t, err := time.Parse(format, timeStr); err == nil {
			return In(t, airport), nil
		}
	}

	loc := Location(airport)
	naive := []string{
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
	}
	for _, format := range naive {
		if t, err := time.ParseInLocation(format, timeStr, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, &time.ParseError{
		Value:   timeStr,
		Message: "unable to parse time string",
	}
}

// DayBounds returns the [start, end) instants of date in the airport's zone.
func DayBounds(date, airport string) (time.Time, time.Time, error) {
	loc := Location(airport)
	start, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.AddDate(0, 0, 1), nil
}
